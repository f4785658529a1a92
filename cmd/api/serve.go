package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"voteverse/internal/app/bootstrap"
	"voteverse/internal/platform/config"

	"github.com/spf13/cobra"
)

func serveRun(cmd *cobra.Command, _ []string) error {
	cfg := config.FromContext(cmd.Context())
	logger := commonRun(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildAPI(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	runErr := app.Run(ctx)
	stop()
	if err := app.Close(); err != nil {
		logger.Error("api shutdown close failed",
			"event", "api_close_failed",
			"module", "cmd/api",
			"layer", "platform",
			"error", err.Error(),
		)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  serveRun,
	}
}
