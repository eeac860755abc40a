package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-lineage/pkg/catalog"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and prepare lineage catalogs",
	}
	cmd.AddCommand(
		newCatalogValidateCmd(),
		newCatalogSeedCmd(),
		newCatalogPingCmd(),
	)
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate FIXTURE",
		Short: "Check a catalog fixture for dangling or malformed relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := catalog.LoadFixture(args[0])
			if err != nil {
				return err
			}

			problems := validateFixture(fx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d entities, %d relationships\n", len(fx.Entities), len(fx.Relationships))
			for _, p := range problems {
				fmt.Fprintf(out, "  %s\n", p)
			}
			if strict && len(problems) > 0 {
				return fmt.Errorf("%d problems found", len(problems))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any problem is found")
	return cmd
}

// validateFixture lists relationships the loader would drop or flag.
func validateFixture(fx *catalog.Fixture) []string {
	known := make(map[lineage.NodeID]bool, len(fx.Entities))
	for _, e := range fx.Entities {
		known[e.ID] = true
	}

	var problems []string
	for i, r := range fx.Relationships {
		switch {
		case r.Source == "" || r.Target == "":
			problems = append(problems, fmt.Sprintf("relationship %d: missing endpoint", i))
			continue
		case !known[r.Source]:
			problems = append(problems, fmt.Sprintf("relationship %d: unknown source %q", i, r.Source))
		case !known[r.Target]:
			problems = append(problems, fmt.Sprintf("relationship %d: unknown target %q", i, r.Target))
		}
		if c := r.Confidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
			problems = append(problems, fmt.Sprintf("relationship %d: confidence %v outside [0,1]", i, *c))
		}
	}
	return problems
}

func newCatalogSeedCmd() *cobra.Command {
	var (
		databaseURL string
		truncate    bool
	)

	cmd := &cobra.Command{
		Use:   "seed FIXTURE",
		Short: "Load a catalog fixture into a PostgreSQL lineage catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return fmt.Errorf("--catalog-db is required")
			}
			fx, err := catalog.LoadFixture(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			gw, err := catalog.NewPGGateway(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer gw.Close()

			if err := gw.EnsureSchema(ctx); err != nil {
				return err
			}
			if truncate {
				if err := gw.Truncate(ctx); err != nil {
					return err
				}
			}
			if err := gw.Seed(ctx, fx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entities, %d relationships\n", len(fx.Entities), len(fx.Relationships))
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "catalog-db", "", "PostgreSQL URL of the lineage catalog database")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "Remove existing catalog rows first")
	return cmd
}

func newCatalogPingCmd() *cobra.Command {
	flags := &catalogFlags{}

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that a catalog is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, closeGateway, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeGateway()

			p, ok := gw.(catalog.Pinger)
			if !ok {
				return fmt.Errorf("catalog does not support ping")
			}
			if err := p.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "catalog reachable")
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}
