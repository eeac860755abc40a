package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-lineage/pkg/analysis"
	"github.com/dd0wney/cluso-lineage/pkg/catalog"
	"github.com/dd0wney/cluso-lineage/pkg/health"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
	"github.com/dd0wney/cluso-lineage/pkg/server"
)

type serveOptions struct {
	catalog catalogFlags

	addr            string
	httpRateLimit   float64
	httpRateBurst   int
	maxBodyBytes    int64
	maxConcurrent   int
	shutdownTimeout time.Duration
	tls             server.TLSConfig
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve lineage analyses over HTTP",
		Long: `serve exposes POST /v1/analyses, GET /v1/formats, /health, /health/ready
and /metrics. SIGHUP reloads --config; SIGINT and SIGTERM drain in-flight
analyses before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, opts)
		},
	}

	f := cmd.Flags()
	opts.catalog.register(f)
	f.StringVar(&opts.addr, "addr", ":8080", "Listen address")
	f.Float64Var(&opts.httpRateLimit, "http-rate-limit", 0, "Max analysis requests per second (0 = unlimited)")
	f.IntVar(&opts.httpRateBurst, "http-rate-burst", 10, "Burst size for --http-rate-limit")
	f.Int64Var(&opts.maxBodyBytes, "max-body-bytes", server.DefaultMaxBodyBytes, "Largest accepted request body")
	f.IntVar(&opts.maxConcurrent, "max-concurrent", server.DefaultMaxConcurrent, "Report degraded readiness above this many in-flight analyses")
	f.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", server.DefaultShutdownTimeout, "How long to drain on shutdown")
	f.StringVar(&opts.tls.CertFile, "tls-cert", "", "TLS certificate file")
	f.StringVar(&opts.tls.KeyFile, "tls-key", "", "TLS private key file")
	f.StringVar(&opts.tls.ClientCAFile, "tls-client-ca", "", "CA file for verifying client certificates")
	f.BoolVar(&opts.tls.RequireClientCert, "tls-require-client-cert", false, "Reject clients without a certificate")
	f.BoolVar(&opts.tls.SelfSigned, "tls-self-signed", false, "Serve TLS with a generated self-signed certificate (development only)")

	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveOptions) error {
	ctx := cmd.Context()
	logger := global.logger(cmd)

	cfg, err := global.config()
	if err != nil {
		return err
	}

	tlsConfig, err := opts.tls.Load()
	if err != nil {
		return err
	}

	gw, closeGateway, err := opts.catalog.open(ctx)
	if err != nil {
		return err
	}
	defer closeGateway()

	reg := metrics.NewRegistry()
	newAnalyzer := func(cfg analysis.Config) (*analysis.Analyzer, error) {
		return analysis.New(gw, cfg, analysis.WithLogger(logger), analysis.WithMetrics(reg))
	}

	a, err := newAnalyzer(*cfg)
	if err != nil {
		return err
	}

	hc := health.NewHealthChecker()
	if p, ok := gw.(catalog.Pinger); ok {
		hc.RegisterReadinessCheck("catalog", health.CatalogCheck(p))
	}

	api, err := server.NewAPI(a, server.Options{
		Logger:        logger,
		Metrics:       reg,
		Health:        hc,
		MaxBodyBytes:  opts.maxBodyBytes,
		RateLimit:     opts.httpRateLimit,
		RateBurst:     opts.httpRateBurst,
		MaxConcurrent: opts.maxConcurrent,
		TLS:           tlsConfig != nil,
	})
	if err != nil {
		return err
	}

	gs := server.NewGracefulServer(opts.addr, api.Handler(), logger)
	gs.SetShutdownTimeout(opts.shutdownTimeout)
	gs.SetTLSConfig(tlsConfig)
	gs.SetConfigReloadFunc(func() error {
		cfg, err := global.config()
		if err != nil {
			return err
		}
		next, err := newAnalyzer(*cfg)
		if err != nil {
			return err
		}
		api.SetAnalyzer(next)
		if level, ok := os.LookupEnv(logLevelEnv); ok {
			logger.SetLevel(logging.ParseLevel(level))
		}
		logger.Info("analyzer rebuilt",
			logging.Int("max_parallel_fetches", cfg.MaxParallelFetches),
			logging.Duration("analysis_timeout", cfg.AnalysisTimeout),
		)
		return nil
	})

	return gs.Run(ctx)
}
