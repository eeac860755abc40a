package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-lineage/pkg/analysis"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
)

// Version is set at build time.
var Version = "dev"

const logLevelEnv = "LINEAGE_LOG_LEVEL"

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

// logger writes JSON logs to stderr. LINEAGE_LOG_LEVEL applies unless
// --log-level is given.
func (o *globalOptions) logger(cmd *cobra.Command) logging.Logger {
	level := o.logLevel
	if f := cmd.Flags().Lookup("log-level"); f == nil || !f.Changed {
		if env, ok := os.LookupEnv(logLevelEnv); ok {
			level = env
		}
	}
	return logging.NewJSONLogger(cmd.ErrOrStderr(), logging.ParseLevel(level))
}

// config loads the engine config from --config (optional) with LINEAGE_*
// environment overrides.
func (o *globalOptions) config() (*analysis.Config, error) {
	return analysis.LoadConfig(o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Impact analysis over data lineage catalogs",
		Long: `lineage loads the lineage graph around one or more catalog entities and
reports what a change to them would affect:

• decayed impact scores and risk levels per reached entity
• the critical path carrying the most downstream (or upstream) impact
• entities missing expected upstream or downstream lineage

Results can be exported as JSON, YAML, CSV, XLSX, node-link JSON or GraphML.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML engine config")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newCatalogCmd(),
		newConvertCmd(),
		newServeCmd(opts),
		newFormatsCmd(),
	)
	return cmd
}
