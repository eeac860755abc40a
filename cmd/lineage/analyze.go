package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-lineage/pkg/analysis"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
)

type analyzeOptions struct {
	catalog catalogFlags

	roots         []string
	direction     string
	maxDepth      int
	decay         float64
	minConfidence float64
	expectTypes   []string
	format        string
	out           string
	timeout       time.Duration
	quiet         bool
}

func newAnalyzeCmd(global *globalOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze --root ID [--root ID...]",
		Short: "Analyze the impact of changing one or more catalog entities",
		Example: `  lineage analyze --catalog catalog.yaml --root warehouse.orders
  lineage analyze --catalog-url https://catalog.internal/api --root raw.events \
      --direction both --max-depth 8 --format xlsx --out impact.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, global, opts)
		},
	}

	f := cmd.Flags()
	opts.catalog.register(f)
	f.StringArrayVarP(&opts.roots, "root", "r", nil, "Root entity id (repeatable)")
	f.StringVarP(&opts.direction, "direction", "d", "downstream", "Direction: downstream, upstream or both")
	f.IntVar(&opts.maxDepth, "max-depth", analysis.DefaultMaxDepth, "Maximum hops from the roots (0-100)")
	f.Float64Var(&opts.decay, "decay", -1, "Score decay per hop (default from config)")
	f.Float64Var(&opts.minConfidence, "min-confidence", 0, "Ignore edges below this confidence")
	f.StringArrayVar(&opts.expectTypes, "expect-type", nil, "Entity type expected to carry lineage (repeatable)")
	f.StringVarP(&opts.format, "format", "f", "json", "Output format (see 'lineage formats')")
	f.StringVarP(&opts.out, "out", "o", "", "Write output to this file instead of stdout")
	f.DurationVar(&opts.timeout, "timeout", 0, "Bound the whole analysis (default from config)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the summary to stderr")
	_ = cmd.MarkFlagRequired("root")

	return cmd
}

func runAnalyze(cmd *cobra.Command, global *globalOptions, opts *analyzeOptions) error {
	cfg, err := global.config()
	if err != nil {
		return err
	}

	dir, err := lineage.ParseDirection(opts.direction)
	if err != nil {
		return err
	}

	roots := make([]lineage.NodeID, len(opts.roots))
	for i, r := range opts.roots {
		roots[i] = lineage.NodeID(r)
	}

	req := analysis.NewRequest(roots...)
	req.Direction = dir
	req.MaxDepth = opts.maxDepth
	req.DecayFactor = cfg.DefaultDecayFactor
	if opts.decay >= 0 {
		req.DecayFactor = opts.decay
	}
	req.ConfidenceThreshold = opts.minConfidence
	req.ExpectedTypesForGaps = opts.expectTypes
	req.ExportFormat = opts.format
	req.Timeout = opts.timeout
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	gw, closeGateway, err := opts.catalog.open(ctx)
	if err != nil {
		return err
	}
	defer closeGateway()

	a, err := analysis.New(gw, *cfg,
		analysis.WithLogger(global.logger(cmd)),
		analysis.WithMetrics(metrics.NewRegistry()),
	)
	if err != nil {
		return err
	}

	res, err := a.Analyze(ctx, req)
	var notFound *lineage.RootNotFoundError
	if err != nil && !(errors.As(err, &notFound) && res != nil) {
		return err
	}

	if err := writeOutput(cmd.OutOrStdout(), opts.out, res.Export); err != nil {
		return err
	}
	if !opts.quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), renderSummary(res))
	}
	return nil
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
