// Package analysis runs a full impact analysis: load the graph from the
// catalog, traverse it, score impact, pick the critical path, detect gaps and
// optionally export the result.
package analysis

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-lineage/pkg/catalog"
	"github.com/dd0wney/cluso-lineage/pkg/export"
	"github.com/dd0wney/cluso-lineage/pkg/gaps"
	"github.com/dd0wney/cluso-lineage/pkg/impact"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/loader"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
	"github.com/dd0wney/cluso-lineage/pkg/traversal"
)

// Analyzer runs analyses against one catalog. It keeps no per-analysis state,
// so concurrent calls to Analyze are independent.
type Analyzer struct {
	gateway catalog.Gateway
	cfg     Config
	logger  logging.Logger
	metrics *metrics.Registry
	newID   func() string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger (default: no-op).
func WithLogger(l logging.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logging.OrNop(l)
	}
}

// WithMetrics records fetch and analysis metrics in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(a *Analyzer) {
		a.metrics = reg
	}
}

// New creates an Analyzer.
func New(gateway catalog.Gateway, cfg Config, opts ...Option) (*Analyzer, error) {
	if gateway == nil {
		return nil, lineage.InvalidConfig("analysis: gateway is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		gateway: gateway,
		cfg:     cfg,
		logger:  logging.NewNopLogger(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the analyzer's configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Analyze runs one analysis.
//
// Invalid requests fail before any fetch with an error wrapping
// lineage.ErrInvalidConfig. Roots unknown to the catalog are reported with a
// *lineage.RootNotFoundError: if some roots exist the result is returned
// alongside the error, if none do the result is nil. Budget exhaustion and
// cancellation are not errors; they yield a truncated result.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	if err := req.Validate(); err != nil {
		a.metrics.RecordAnalysis(req.Direction.String(), StatusInvalid, time.Since(started), 0, 0)
		return nil, err
	}
	format, _ := req.format()

	id := a.newID()
	logger := a.logger.With(logging.Component("analysis"), logging.AnalysisID(id))
	defer a.metrics.TrackInFlight()()

	timeout := req.Timeout
	if timeout == 0 {
		timeout = a.cfg.AnalysisTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Info("analysis started",
		logging.Direction(req.Direction),
		logging.Depth(req.MaxDepth),
		logging.Count(len(req.RootIDs)),
	)

	ld, err := loader.New(a.gateway, a.cfg.LoaderOptions(req.ConfidenceThreshold, logger, a.metrics))
	if err != nil {
		return nil, err
	}
	loaded, err := ld.Load(ctx, req.RootIDs, req.Direction, req.MaxDepth)
	if err != nil {
		return nil, a.fail(logger, req, started, err)
	}

	var notFound error
	if len(loaded.NotFoundRoots) > 0 {
		notFound = &lineage.RootNotFoundError{IDs: loaded.NotFoundRoots}
		if !anyRootLoaded(loaded.Graph, req.RootIDs) {
			a.metrics.RecordAnalysis(req.Direction.String(), StatusNotFound, time.Since(started), 0, 0)
			logger.Error("analysis failed", logging.Error(notFound), logging.Latency(time.Since(started)))
			return nil, notFound
		}
	}

	res, err := a.assemble(id, req, format, loaded)
	if err != nil {
		return nil, a.fail(logger, req, started, err)
	}
	res.Duration = time.Since(started)

	a.metrics.RecordAnalysis(req.Direction.String(), res.Status(), res.Duration, len(res.Nodes), len(res.Edges))

	fields := []logging.Field{
		logging.String("status", res.Status()),
		logging.Int("nodes", len(res.Nodes)),
		logging.Int("edges", len(res.Edges)),
		logging.Int("incomplete", len(res.IncompleteNodeIDs)),
		logging.Int("gaps", res.GapSummary.WithGaps),
		logging.Bool("truncated", res.Truncated),
		logging.Latency(res.Duration),
	}
	if notFound != nil {
		logger.Warn("analysis finished with missing roots", append(fields, logging.Error(notFound))...)
	} else {
		logger.Info("analysis finished", fields...)
	}

	return res, notFound
}

func (a *Analyzer) assemble(id string, req Request, format export.Format, loaded *loader.Result) (*Result, error) {
	g := loaded.Graph

	tr, err := traversal.Traverse(g, req.RootIDs, req.Direction, traversal.Options{
		MaxDepth:      req.MaxDepth,
		MinConfidence: req.ConfidenceThreshold,
	})
	if err != nil {
		return nil, err
	}

	report, err := impact.Score(g, tr, impact.Options{
		DecayFactor:         req.DecayFactor,
		ConfidenceThreshold: req.ConfidenceThreshold,
		Thresholds:          a.cfg.Risk,
	})
	if err != nil {
		return nil, err
	}

	gapReport := gaps.DetectGaps(g, req.ExpectedTypesForGaps)

	res := &Result{
		AnalysisID:        id,
		Direction:         req.Direction,
		Nodes:             g.Nodes(),
		Edges:             g.Edges(),
		ImpactReport:      report,
		CriticalPath:      impact.FindCriticalPath(report),
		GapReport:         gapReport,
		GapSummary:        gaps.Summarize(gapReport),
		Truncated:         loaded.Truncated,
		TruncationCauses:  loaded.TruncationCauses,
		IncompleteNodeIDs: g.IncompleteNodeIDs(),
		NotFoundRoots:     loaded.NotFoundRoots,
		Warnings:          loaded.Warnings,
		LoadStats:         loaded.Stats,
		Graph:             g,
		Traversal:         tr,
	}

	if format != "" {
		data, err := export.Export(res.Bundle(), format)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", format, err)
		}
		res.Export = data
		res.ExportFormat = string(format)
	}
	return res, nil
}

func (a *Analyzer) fail(logger logging.Logger, req Request, started time.Time, err error) error {
	a.metrics.RecordAnalysis(req.Direction.String(), StatusFailed, time.Since(started), 0, 0)
	logger.Error("analysis failed", logging.Error(err), logging.Latency(time.Since(started)))
	return err
}

// Bundle returns the export bundle for the result.
func (r *Result) Bundle() export.Bundle {
	return export.Bundle{
		Graph:        r.Graph,
		Impact:       r.ImpactReport,
		CriticalPath: r.CriticalPath,
		Gaps:         r.GapReport,
		Truncated:    r.Truncated,
	}
}

// ExportAs renders the result in another format.
func (r *Result) ExportAs(format export.Format) ([]byte, error) {
	return export.Export(r.Bundle(), format)
}

func anyRootLoaded(g *lineage.Graph, roots []lineage.NodeID) bool {
	return slices.ContainsFunc(roots, g.HasNode)
}
