package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/pts/core"
	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// thresholdConfigured reports whether the selection threshold came from a flag, env or config file.
func thresholdConfigured(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("selection-threshold") || viper.InConfig("selection-threshold") {
		return true
	}
	_, ok := os.LookupEnv("PTS_SELECTION_THRESHOLD")
	return ok
}

// serveCmd runs the HTTP prediction API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve test selection over HTTP with Prometheus metrics.",
	Long: `Start an HTTP server that answers test selection requests from CI.

Endpoints:
  POST /api/v1/predict - select tests for a commit
  GET  /health         - liveness and model status
  GET  /metrics        - Prometheus metrics (reduction rate, savings, latency)

The selection threshold defaults to 0.6 here unless it is configured.
When a CI provider and project are configured, commits are described through
the provider API; files listed in the request take precedence.

Examples:
  # Serve the default model on :8000
  pts serve

  # Describe commits through GitHub
  PTS_CI_TOKEN=... pts serve --ci-provider github --ci-project acme/shop --listen-addr :9000`,
	Args:    cobra.NoArgs,
	PreRunE: setupWith(setupOptions{}),
	Run: func(cmd *cobra.Command, _ []string) {
		if !thresholdConfigured(cmd) {
			cfg.Threshold = contract.DefaultServeThreshold
		}

		model, err := core.LoadEstimator(cfg.ModelFile)
		if err != nil {
			contract.LogFatal("Cannot load model", err)
		}

		opts := server.Options{Model: model, Version: version}
		if fetcher := core.NewChangeFetcher(cfg); fetcher != nil {
			opts.Fetcher = fetcher
		}

		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := server.New(cfg, cacheManager, opts).Run(ctx); err != nil {
			contract.LogFatal("Server stopped", err)
		}
	},
}
