package sessionauthority

import (
	"log/slog"
	"time"

	"voteverse/contexts/identity-access/session-authority/adapters/delivery"
	httpadapter "voteverse/contexts/identity-access/session-authority/adapters/http"
	kvadapter "voteverse/contexts/identity-access/session-authority/adapters/kv"
	"voteverse/contexts/identity-access/session-authority/adapters/memory"
	"voteverse/contexts/identity-access/session-authority/application/commands"
	"voteverse/contexts/identity-access/session-authority/application/queries"
	"voteverse/contexts/identity-access/session-authority/domain/entities"
	"voteverse/contexts/identity-access/session-authority/ports"
	"voteverse/internal/platform/kv"
	"voteverse/internal/shared/keylock"
)

type Module struct {
	Handler   httpadapter.Handler
	Queries   queries.SessionQuery
	Directory *memory.Directory
}

type Dependencies struct {
	Directory        ports.VoterDirectory
	Registry         ports.VoterRegistry
	Sessions         ports.SessionStore
	Locks            ports.SessionLocker
	Codes            ports.CodeSender
	Metrics          ports.AuthMetrics
	Clock            ports.Clock
	IDGen            ports.IDGenerator
	VerificationCode string
	VerificationTTL  time.Duration
	Logger           *slog.Logger
}

func NewModule(deps Dependencies) Module {
	locks := deps.Locks
	if locks == nil {
		locks = keylock.New()
	}
	sessionUseCase := commands.SessionUseCase{
		Directory:        deps.Directory,
		Registry:         deps.Registry,
		Sessions:         deps.Sessions,
		Locks:            locks,
		Codes:            deps.Codes,
		Metrics:          deps.Metrics,
		Clock:            deps.Clock,
		IDGen:            deps.IDGen,
		VerificationCode: deps.VerificationCode,
		VerificationTTL:  deps.VerificationTTL,
		Logger:           deps.Logger,
	}
	sessionQuery := queries.SessionQuery{
		Sessions: deps.Sessions,
		Registry: deps.Registry,
	}
	return Module{
		Handler: httpadapter.Handler{
			Sessions: sessionUseCase,
			Queries:  sessionQuery,
			Logger:   deps.Logger,
		},
		Queries: sessionQuery,
	}
}

// NewInMemoryModule wires the static directory and a memory-backed session
// store. registry may be nil, in which case directory snapshots are served.
func NewInMemoryModule(
	voters []entities.Voter,
	admin entities.AdminCredentials,
	registry ports.VoterRegistry,
	logger *slog.Logger,
) Module {
	directory := memory.NewDirectory(voters, admin)
	module := NewModule(Dependencies{
		Directory: directory,
		Registry:  registry,
		Sessions:  kvadapter.NewSessionStore(kv.NewMemory(), logger),
		Codes:     delivery.LogSender{Logger: logger},
		Clock:     directory,
		IDGen:     directory,
		Logger:    logger,
	})
	module.Directory = directory
	return module
}
