package wiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	votingcoordinator "voteverse/contexts/election/voting-coordinator"
	busadapter "voteverse/contexts/election/voting-coordinator/adapters/bus"
	"voteverse/contexts/election/voting-coordinator/adapters/kvstore"
	postgresadapter "voteverse/contexts/election/voting-coordinator/adapters/postgres"
	electionentities "voteverse/contexts/election/voting-coordinator/domain/entities"
	electionports "voteverse/contexts/election/voting-coordinator/ports"
	sessionauthority "voteverse/contexts/identity-access/session-authority"
	"voteverse/contexts/identity-access/session-authority/adapters/delivery"
	kvadapter "voteverse/contexts/identity-access/session-authority/adapters/kv"
	"voteverse/contexts/identity-access/session-authority/adapters/memory"
	sessionqueries "voteverse/contexts/identity-access/session-authority/application/queries"
	sessionentities "voteverse/contexts/identity-access/session-authority/domain/entities"
	"voteverse/internal/platform/config"
	"voteverse/internal/platform/db"
	"voteverse/internal/platform/kv"
	"voteverse/internal/platform/messaging"
	"voteverse/internal/platform/observability"
	"voteverse/internal/shared/keylock"
)

// Core is both contexts wired over one storage backend and one event bus.
type Core struct {
	Sessions  sessionauthority.Module
	Election  votingcoordinator.Module
	Bus       *messaging.Bus
	Metrics   *observability.Metrics
	Directory *memory.Directory

	logger  *slog.Logger
	closers []func() error
}

// Build opens the configured storage and wires the session and election
// modules to each other. metrics may be nil.
func Build(ctx context.Context, cfg config.Config, metrics *observability.Metrics, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}
	core := &Core{Metrics: metrics, logger: logger}

	backend, err := openKV(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	core.closers = append(core.closers, backend.Close)

	seed := ElectionSeed(cfg.Seed)
	var (
		store  electionports.ElectionStore
		outbox electionports.OutboxRepository
	)
	switch cfg.Storage.Backend {
	case config.StorageSQL:
		database, err := db.Open(db.Options{
			Dialect: cfg.Storage.SQLDialect,
			DSN:     cfg.Storage.SQLDSN,
			DataDir: cfg.Storage.DataDir,
		})
		if err != nil {
			_ = core.Close()
			return nil, err
		}
		core.closers = append(core.closers, database.Close)
		repo := postgresadapter.NewRepository(database.DB, logger)
		if err := repo.Migrate(ctx); err != nil {
			_ = core.Close()
			return nil, err
		}
		if err := repo.Seed(ctx, seed); err != nil {
			_ = core.Close()
			return nil, err
		}
		store, outbox = repo, repo
	default:
		kvStore, err := kvstore.Open(ctx, backend, seed, logger)
		if err != nil {
			_ = core.Close()
			return nil, err
		}
		store, outbox = kvStore, kvStore
	}

	core.Bus = messaging.NewBus(logger)
	events := busadapter.New(core.Bus)
	locks := keylock.New()
	sessionStore := kvadapter.NewSessionStore(backend, logger)

	electionDeps := votingcoordinator.Dependencies{
		Store:          store,
		Outbox:         outbox,
		Sessions:       ActorResolver{Sessions: sessionqueries.SessionQuery{Sessions: sessionStore}},
		Locks:          locks,
		Publisher:      events,
		Subscriber:     events,
		RelayBatchSize: cfg.Relay.BatchSize,
		Logger:         logger,
	}
	if metrics != nil {
		electionDeps.Metrics = metrics
	}
	core.Election = votingcoordinator.NewModule(electionDeps)

	core.Directory = memory.NewDirectory(DirectoryVoters(cfg.Seed), sessionentities.AdminCredentials{
		Username: cfg.Session.AdminUsername,
		Password: cfg.Session.AdminPassword,
	})
	sessionDeps := sessionauthority.Dependencies{
		Directory: core.Directory,
		Registry: VoterRegistry{
			Queries:   core.Election.Queries,
			Districts: core.Election.Districts,
		},
		Sessions:         sessionStore,
		Locks:            locks,
		Codes:            delivery.LogSender{Logger: logger},
		Clock:            core.Directory,
		IDGen:            core.Directory,
		VerificationCode: cfg.Session.VerificationCode,
		VerificationTTL:  cfg.Session.VerificationTTL,
		Logger:           logger,
	}
	if metrics != nil {
		sessionDeps.Metrics = metrics
	}
	core.Sessions = sessionauthority.NewModule(sessionDeps)
	core.Sessions.Directory = core.Directory

	logger.Info("election core wired",
		"event", "core_wired",
		"module", "internal/app/wiring",
		"layer", "platform",
		"storage_backend", cfg.Storage.Backend,
		"kv_backend", cfg.Storage.KVBackend,
		"districts", len(seed.Districts),
		"voters", len(seed.Voters),
	)
	return core, nil
}

func openKV(cfg config.StorageConfig, logger *slog.Logger) (kv.Store, error) {
	switch cfg.KVBackend {
	case config.KVBadger:
		dir := cfg.DataDir
		if dir != "" {
			dir = filepath.Join(dir, "kv")
		}
		return kv.OpenBadger(dir, logger)
	case config.KVMemory, "":
		return kv.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown kv backend %q", cfg.KVBackend)
	}
}

// StartAudit subscribes the audit consumer to the event bus until ctx ends.
func (c *Core) StartAudit(ctx context.Context) error {
	return c.Election.Audit.Start(ctx)
}

// RunRelay drains the outbox every interval until ctx ends. Failed cycles
// are logged and retried on the next tick.
func (c *Core) RunRelay(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := c.Election.Relay.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("outbox relay cycle failed",
				"event", "outbox_relay_cycle_failed",
				"module", "internal/app/wiring",
				"layer", "worker",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases storage in reverse open order and waits for bus
// subscribers to exit.
func (c *Core) Close() error {
	if c.Bus != nil {
		c.Bus.Wait()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// ElectionSeed converts the configured seed into the election's form.
func ElectionSeed(seed config.SeedConfig) electionports.ElectionSeed {
	out := electionports.ElectionSeed{
		Districts:  append([]string(nil), seed.Districts...),
		Candidates: make([]electionentities.Candidate, 0, len(seed.Candidates)),
		Voters:     make([]electionentities.Voter, 0, len(seed.Voters)),
	}
	for _, candidate := range seed.Candidates {
		out.Candidates = append(out.Candidates, electionentities.Candidate{
			ID:       strings.TrimSpace(candidate.ID),
			Name:     strings.TrimSpace(candidate.Name),
			District: strings.TrimSpace(candidate.District),
			Image:    strings.TrimSpace(candidate.Image),
		})
	}
	for _, voter := range seed.Voters {
		out.Voters = append(out.Voters, electionentities.Voter{
			ID:       strings.TrimSpace(voter.ID),
			Phone:    strings.TrimSpace(voter.Phone),
			Name:     strings.TrimSpace(voter.Name),
			District: strings.TrimSpace(voter.District),
			HasVoted: voter.HasVoted,
		})
	}
	return out
}

// DirectoryVoters converts the configured seed into the identity directory.
func DirectoryVoters(seed config.SeedConfig) []sessionentities.Voter {
	out := make([]sessionentities.Voter, 0, len(seed.Voters))
	for _, voter := range seed.Voters {
		out = append(out, sessionentities.Voter{
			ID:       voter.ID,
			Phone:    voter.Phone,
			Name:     voter.Name,
			District: voter.District,
			HasVoted: voter.HasVoted,
		})
	}
	return out
}
