package votingcoordinator

import (
	"context"
	"log/slog"

	httpadapter "voteverse/contexts/election/voting-coordinator/adapters/http"
	"voteverse/contexts/election/voting-coordinator/adapters/kvstore"
	postgresadapter "voteverse/contexts/election/voting-coordinator/adapters/postgres"
	"voteverse/contexts/election/voting-coordinator/application/commands"
	"voteverse/contexts/election/voting-coordinator/application/queries"
	"voteverse/contexts/election/voting-coordinator/application/workers"
	"voteverse/contexts/election/voting-coordinator/ports"
	"voteverse/internal/platform/kv"
	"voteverse/internal/shared/keylock"
)

type Module struct {
	Handler   httpadapter.Handler
	Queries   queries.ElectionQuery
	Districts commands.DistrictUseCase
	Relay     workers.OutboxRelay
	Audit     workers.AuditConsumer
}

type Dependencies struct {
	Store          ports.ElectionStore
	Outbox         ports.OutboxRepository
	Sessions       ports.SessionResolver
	Locks          ports.VoterLocker
	Metrics        ports.VoteMetrics
	Publisher      ports.EventPublisher
	Subscriber     ports.EventSubscriber
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	RelayBatchSize int
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	locks := deps.Locks
	if locks == nil {
		locks = keylock.New()
	}
	clock := deps.Clock
	if clock == nil {
		clock = postgresadapter.SystemClock{}
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = postgresadapter.UUIDGenerator{}
	}

	voteUseCase := commands.VoteUseCase{
		Store:    deps.Store,
		Sessions: deps.Sessions,
		Locks:    locks,
		Metrics:  deps.Metrics,
		Clock:    clock,
		IDGen:    idGen,
		Logger:   deps.Logger,
	}
	publicationUseCase := commands.PublicationUseCase{
		Store:    deps.Store,
		Sessions: deps.Sessions,
		Metrics:  deps.Metrics,
		Clock:    clock,
		IDGen:    idGen,
		Logger:   deps.Logger,
	}
	electionQuery := queries.ElectionQuery{Store: deps.Store, Sessions: deps.Sessions}

	return Module{
		Handler: httpadapter.Handler{
			Votes:       voteUseCase,
			Publication: publicationUseCase,
			Queries:     electionQuery,
			Logger:      deps.Logger,
		},
		Queries: electionQuery,
		Districts: commands.DistrictUseCase{
			Store:  deps.Store,
			Locks:  locks,
			Clock:  clock,
			IDGen:  idGen,
			Logger: deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     clock,
			BatchSize: deps.RelayBatchSize,
			Logger:    deps.Logger,
		},
		Audit: workers.AuditConsumer{
			Subscriber: deps.Subscriber,
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule seeds a kv-mirrored store over the memory backend.
// Relay and Audit are left without a bus.
func NewInMemoryModule(seed ports.ElectionSeed, sessions ports.SessionResolver, logger *slog.Logger) (Module, error) {
	store, err := kvstore.Open(context.Background(), kv.NewMemory(), seed, logger)
	if err != nil {
		return Module{}, err
	}
	return NewModule(Dependencies{
		Store:    store,
		Outbox:   store,
		Sessions: sessions,
		Logger:   logger,
	}), nil
}
