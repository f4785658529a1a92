package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"voteverse/internal/app/bootstrap"
	"voteverse/internal/platform/config"
	"voteverse/internal/platform/observability"

	"github.com/spf13/cobra"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring over shared SQL storage.
// 3) Relay the election outbox to the event bus until signalled.
func main() {
	var (
		configFile string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:          "voteverse-worker",
		Short:        "Relay election outbox events",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := observability.NewLogger(debug || cfg.Debug)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.BuildWorker(ctx, *cfg, logger)
			if err != nil {
				return fmt.Errorf("bootstrap worker failed: %w", err)
			}
			runErr := app.Run(ctx)
			stop()
			if err := app.Close(); err != nil {
				logger.Error("worker shutdown close failed",
					"event", "worker_close_failed",
					"module", "cmd/worker",
					"layer", "platform",
					"error", err.Error(),
				)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to config file (.yaml or .toml)")
	cmd.Flags().BoolVarP(&debug, "debug", "D", false, "enable debug logging")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
