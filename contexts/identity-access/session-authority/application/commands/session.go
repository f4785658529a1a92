package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "voteverse/contexts/identity-access/session-authority/application"
	"voteverse/contexts/identity-access/session-authority/domain/entities"
	domainerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	"voteverse/contexts/identity-access/session-authority/ports"
)

const (
	moduleName = "identity-access/session-authority"

	DefaultVerificationCode = "1234"
)

// SessionUseCase drives the session state machine. Every transition runs
// under the per-session lock and is persisted before the call returns.
type SessionUseCase struct {
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

type SessionResult struct {
	SessionID string
	Session   entities.Session
	Voter     *entities.Voter
}

// OpenSession starts an anonymous session for a new client.
func (uc SessionUseCase) OpenSession(ctx context.Context) (SessionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	sessionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return SessionResult{}, err
	}
	now := uc.now()
	record := ports.SessionRecord{
		SessionID: sessionID,
		Session:   entities.Anonymous{},
		OpenedAt:  now,
		UpdatedAt: now,
	}
	if err := uc.Sessions.SaveSession(ctx, record); err != nil {
		logger.Error("session open persist failed",
			"event", "session_open_persist_failed",
			"module", moduleName,
			"layer", "application",
			"error", err.Error(),
		)
		return SessionResult{}, err
	}
	logger.Info("session opened",
		"event", "session_opened",
		"module", moduleName,
		"layer", "application",
		"session_id", sessionID,
	)
	return SessionResult{SessionID: sessionID, Session: record.Session}, nil
}

// Terminate signs the session out from any state.
func (uc SessionUseCase) Terminate(ctx context.Context, sessionID string) error {
	logger := application.ResolveLogger(uc.Logger)
	var previous entities.SessionKind
	_, err := uc.mutate(ctx, sessionID, func(record *ports.SessionRecord) (bool, error) {
		previous = record.Session.Kind()
		record.Session = entities.Anonymous{}
		record.Voter = nil
		return true, nil
	})
	if err != nil {
		return err
	}
	logger.Info("session terminated",
		"event", "session_terminated",
		"module", moduleName,
		"layer", "application",
		"session_id", strings.TrimSpace(sessionID),
		"previous_state", string(previous),
	)
	return nil
}

// mutate loads the session under its lock, applies fn and persists the
// record when fn reports a change. fn may change the record and still fail.
func (uc SessionUseCase) mutate(
	ctx context.Context,
	sessionID string,
	fn func(record *ports.SessionRecord) (bool, error),
) (ports.SessionRecord, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return ports.SessionRecord{}, domainerrors.ErrInvalidSessionInput
	}
	if uc.Locks != nil {
		unlock := uc.Locks.Lock("session:" + id)
		defer unlock()
	}

	record, err := uc.Sessions.LoadSession(ctx, id)
	if err != nil {
		return ports.SessionRecord{}, err
	}
	changed, fnErr := fn(&record)
	if changed {
		record.UpdatedAt = uc.now()
		if err := uc.Sessions.SaveSession(ctx, record); err != nil {
			application.ResolveLogger(uc.Logger).Error("session persist failed",
				"event", "session_persist_failed",
				"module", moduleName,
				"layer", "application",
				"session_id", id,
				"state", string(record.Session.Kind()),
				"error", err.Error(),
			)
			return ports.SessionRecord{}, err
		}
	}
	return record, fnErr
}

func (uc SessionUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc SessionUseCase) verificationCode() string {
	if code := strings.TrimSpace(uc.VerificationCode); code != "" {
		return code
	}
	return DefaultVerificationCode
}
