package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-lineage/pkg/export"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

func newConvertCmd() *cobra.Command {
	var (
		from string
		to   string
		out  string
	)

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert a node-link JSON or GraphML lineage graph to another format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			if from == "" {
				from = guessInterchange(args[0])
			}
			g, err := parseInterchange(from, data)
			if err != nil {
				return err
			}

			format, err := export.ParseFormat(to)
			if err != nil {
				return err
			}
			rendered, err := export.Export(export.Bundle{Graph: g}, format)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, rendered)
		},
	}

	f := cmd.Flags()
	f.StringVar(&from, "from", "", "Input format: interchange or graphml (default from extension)")
	f.StringVarP(&to, "to", "t", "json", "Output format")
	f.StringVarP(&out, "out", "o", "", "Write output to this file instead of stdout")
	return cmd
}

func guessInterchange(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".graphml") || strings.HasSuffix(lower, ".xml") {
		return string(export.FormatGraphML)
	}
	return string(export.FormatInterchange)
}

func parseInterchange(from string, data []byte) (*lineage.Graph, error) {
	format, err := export.ParseFormat(from)
	if err != nil {
		return nil, err
	}
	switch format {
	case export.FormatInterchange:
		return export.ParseInterchange(data)
	case export.FormatGraphML:
		return export.ParseGraphML(data)
	default:
		return nil, fmt.Errorf("cannot read %s input: want interchange or graphml", format)
	}
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List export formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, f := range export.Formats() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-12s %s\n", f, f.Kind(), f.ContentType())
			}
		},
	}
}
