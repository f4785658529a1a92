package kvadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voteverse/contexts/identity-access/session-authority/domain/entities"
	domainerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	"voteverse/contexts/identity-access/session-authority/ports"
	"voteverse/internal/platform/kv"
)

const (
	keySession             = "session/"
	keyCurrentUser         = "currentUser/"
	keyIsAdmin             = "isAdmin/"
	keyPendingVerification = "pendingVerification/"

	flagTrue = "true"
)

// SessionStore keeps each session under the currentUser, isAdmin and
// pendingVerification keys, suffixed with the session id. The session/ key
// only carries lifecycle metadata; the state is derived from the other keys.
type SessionStore struct {
	store  kv.Store
	logger *slog.Logger
}

func NewSessionStore(store kv.Store, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{store: store, logger: logger}
}

type sessionDoc struct {
	OpenedAt      time.Time `json:"opened_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	AdminUsername string    `json:"admin_username,omitempty"`
}

type pendingDoc struct {
	Phone       string    `json:"phone"`
	RequestedAt time.Time `json:"requested_at"`
}

func (s *SessionStore) LoadSession(ctx context.Context, sessionID string) (ports.SessionRecord, error) {
	id := strings.TrimSpace(sessionID)
	var record ports.SessionRecord
	err := s.store.View(ctx, func(txn kv.Txn) error {
		raw, err := txn.Get(keySession + id)
		if errors.Is(err, kv.ErrNotFound) {
			return domainerrors.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var doc sessionDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode session %s: %w", id, err)
		}
		record = ports.SessionRecord{
			SessionID: id,
			Session:   entities.Anonymous{},
			OpenedAt:  doc.OpenedAt,
			UpdatedAt: doc.UpdatedAt,
		}

		if raw, err := txn.Get(keyCurrentUser + id); err == nil {
			var voter entities.Voter
			if err := json.Unmarshal(raw, &voter); err != nil {
				return fmt.Errorf("decode current user %s: %w", id, err)
			}
			record.Session = entities.AuthenticatedVoter{VoterID: voter.ID}
			record.Voter = &voter
			return nil
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}

		if raw, err := txn.Get(keyIsAdmin + id); err == nil {
			if string(raw) == flagTrue {
				record.Session = entities.AuthenticatedAdmin{Username: doc.AdminUsername}
				return nil
			}
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}

		if raw, err := txn.Get(keyPendingVerification + id); err == nil {
			var pending pendingDoc
			if err := json.Unmarshal(raw, &pending); err != nil {
				return fmt.Errorf("decode pending verification %s: %w", id, err)
			}
			record.Session = entities.PendingVerification{
				Phone:       pending.Phone,
				RequestedAt: pending.RequestedAt,
			}
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, domainerrors.ErrSessionNotFound) {
		s.logError("session_store_load_failed", err, "session_id", id)
	}
	return record, err
}

func (s *SessionStore) SaveSession(ctx context.Context, record ports.SessionRecord) error {
	id := strings.TrimSpace(record.SessionID)
	if id == "" {
		return domainerrors.ErrInvalidSessionInput
	}
	if record.Session == nil {
		record.Session = entities.Anonymous{}
	}

	doc := sessionDoc{OpenedAt: record.OpenedAt.UTC(), UpdatedAt: record.UpdatedAt.UTC()}
	writes := map[string][]byte{}
	switch current := record.Session.(type) {
	case entities.Anonymous:
	case entities.PendingVerification:
		payload, err := json.Marshal(pendingDoc{Phone: current.Phone, RequestedAt: current.RequestedAt.UTC()})
		if err != nil {
			return err
		}
		writes[keyPendingVerification+id] = payload
	case entities.AuthenticatedVoter:
		voter := entities.Voter{ID: current.VoterID}
		if record.Voter != nil {
			voter = *record.Voter
			voter.ID = current.VoterID
		}
		payload, err := json.Marshal(voter)
		if err != nil {
			return err
		}
		writes[keyCurrentUser+id] = payload
	case entities.AuthenticatedAdmin:
		doc.AdminUsername = current.Username
		writes[keyIsAdmin+id] = []byte(flagTrue)
	default:
		return fmt.Errorf("unsupported session state %T", record.Session)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	writes[keySession+id] = payload

	err = s.store.Update(ctx, func(txn kv.Txn) error {
		for _, prefix := range []string{keyCurrentUser, keyIsAdmin, keyPendingVerification} {
			if err := txn.Delete(prefix + id); err != nil {
				return err
			}
		}
		for key, value := range writes {
			if err := txn.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logError("session_store_save_failed", err, "session_id", id, "state", string(record.Session.Kind()))
	}
	return err
}

func (s *SessionStore) logError(event string, err error, attrs ...any) {
	fields := []any{
		"event", event,
		"module", "identity-access/session-authority",
		"layer", "adapter",
		"error", err.Error(),
	}
	fields = append(fields, attrs...)
	s.logger.Error("session store operation failed", fields...)
}

var _ ports.SessionStore = (*SessionStore)(nil)
