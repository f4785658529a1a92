package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voteverse/internal/app/wiring"
	"voteverse/internal/platform/config"
	"voteverse/internal/platform/httpserver"
	"voteverse/internal/platform/observability"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const shutdownTimeout = 10 * time.Second

type APIApp struct {
	server       *httpserver.Server
	core         *wiring.Core
	relay        bool
	pollInterval time.Duration
	logger       *slog.Logger
}

type WorkerApp struct {
	core         *wiring.Core
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) (*APIApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", cfg.ServiceName, "process", "api")

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}
	core, err := wiring.Build(ctx, cfg, metrics, logger)
	if err != nil {
		return nil, err
	}

	server := httpserver.New(core.Sessions, core.Election, metrics, logger, normalizeAddr(cfg.HTTPAddr))
	return &APIApp{
		server:       server,
		core:         core,
		relay:        cfg.Relay.InProcess,
		pollInterval: cfg.Relay.PollInterval,
		logger:       logger,
	}, nil
}

// BuildWorker wires the relay against shared SQL storage. Sessions stay in
// memory since the worker serves no clients.
func BuildWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*WorkerApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", cfg.ServiceName, "process", "worker")
	if cfg.Storage.Backend != config.StorageSQL {
		return nil, errors.New("worker requires storage.backend=sql; the kv backend is owned by the api process")
	}
	cfg.Storage.KVBackend = config.KVMemory

	core, err := wiring.Build(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		core:         core,
		pollInterval: cfg.Relay.PollInterval,
		logger:       logger,
	}, nil
}

// Run serves HTTP until ctx ends, then drains in-flight requests.
func (a *APIApp) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := a.core.StartAudit(gctx); err != nil {
		return fmt.Errorf("start audit consumer: %w", err)
	}
	if a.relay {
		g.Go(func() error {
			a.core.RunRelay(gctx, a.pollInterval)
			return nil
		})
	}
	g.Go(a.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"relay_in_process", a.relay,
	)
	return g.Wait()
}

func (a *APIApp) Close() error {
	if a.core != nil {
		return a.core.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.core.StartAudit(ctx); err != nil {
		return fmt.Errorf("start audit consumer: %w", err)
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)
	w.core.RunRelay(ctx, w.pollInterval)
	return nil
}

func (w *WorkerApp) Close() error {
	if w.core != nil {
		return w.core.Close()
	}
	return nil
}

func normalizeAddr(addr string) string {
	value := strings.TrimSpace(addr)
	if value == "" {
		return ":8080"
	}
	if strings.Contains(value, ":") {
		return value
	}
	return ":" + value
}
