package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"voteverse/contexts/election/voting-coordinator/domain/entities"
	domainerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	"voteverse/contexts/election/voting-coordinator/ports"
	"voteverse/internal/platform/kv"
	"voteverse/internal/shared/outbox"
)

const (
	keyDistricts       = "districts"
	keyCandidates      = "candidates"
	keyVotersStatus    = "votersStatus"
	keyPublished       = "publishedResults"
	keyPublishedAt     = "publishedResultsAt"
	keyOutboxPending   = "outbox/pending/"
	keyOutboxPublished = "outbox/published/"

	flagTrue = "true"
)

// Store keeps the election in memory and mirrors every committed
// transaction to the kv backend under the candidates, votersStatus and
// publishedResults keys. A transaction works on a copy that replaces the
// live state only after the backend write succeeded.
type Store struct {
	mu      sync.RWMutex
	backend kv.Store
	state   snapshot
	logger  *slog.Logger
}

// Open loads the persisted election, or writes seed when none exists yet.
func Open(ctx context.Context, backend kv.Store, seed ports.ElectionSeed, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{backend: backend, logger: logger}

	loaded, found, err := load(ctx, backend)
	if err != nil {
		return nil, err
	}
	if found {
		s.state = loaded
		logger.Info("election snapshot loaded",
			"event", "election_kvstore_loaded",
			"module", "election/voting-coordinator",
			"layer", "adapter",
			"districts", len(loaded.districts),
			"voters", len(loaded.voters),
			"published", loaded.published,
		)
		return s, nil
	}

	s.state = fromSeed(seed)
	if err := s.persist(ctx, s.state, nil); err != nil {
		return nil, fmt.Errorf("persist election seed: %w", err)
	}
	logger.Info("election snapshot seeded",
		"event", "election_kvstore_seeded",
		"module", "election/voting-coordinator",
		"layer", "adapter",
		"districts", len(s.state.districts),
		"voters", len(s.state.voters),
	)
	return s, nil
}

func (s *Store) Districts(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.state.districts...), nil
}

func (s *Store) CandidatesOf(_ context.Context, district string) ([]entities.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.state.candidates[strings.TrimSpace(district)]
	return append([]entities.Candidate{}, items...), nil
}

func (s *Store) VotersOf(_ context.Context, district string) ([]entities.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	district = strings.TrimSpace(district)
	items := []entities.Voter{}
	for _, voter := range s.state.voters {
		if voter.District == district {
			items = append(items, voter)
		}
	}
	return items, nil
}

func (s *Store) GetVoter(_ context.Context, voterID string) (entities.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.state.voterIndex[strings.TrimSpace(voterID)]
	if !ok {
		return entities.Voter{}, domainerrors.ErrVoterNotFound
	}
	return s.state.voters[idx], nil
}

func (s *Store) ResultsState(context.Context) (entities.ResultsState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.resultsState(), nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.ElectionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	tx := &electionTx{state: &work}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty && len(tx.outbox) == 0 {
		return nil
	}
	if err := s.persist(ctx, work, tx.outbox); err != nil {
		s.logError("election_kvstore_persist_failed", err)
		return err
	}
	s.state = work
	return nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	errLimit := errors.New("limit reached")
	items := make([]ports.OutboxMessage, 0, limit)
	err := s.backend.View(ctx, func(txn kv.Txn) error {
		return txn.Iterate(keyOutboxPending, func(_ string, value []byte) error {
			var row outbox.Message
			if err := json.Unmarshal(value, &row); err != nil {
				return err
			}
			items = append(items, ports.OutboxMessage{
				OutboxID:     row.ID,
				EventType:    row.EventType,
				PartitionKey: row.PartitionKey,
				Payload:      append([]byte(nil), row.Payload...),
				CreatedAt:    row.CreatedAt.UTC(),
			})
			if len(items) >= limit {
				return errLimit
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, errLimit) {
		s.logError("election_kvstore_outbox_list_failed", err)
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	errFound := errors.New("found")
	return s.backend.Update(ctx, func(txn kv.Txn) error {
		var (
			pendingKey string
			row        outbox.Message
		)
		err := txn.Iterate(keyOutboxPending, func(key string, value []byte) error {
			if !strings.HasSuffix(key, "-"+outboxID) {
				return nil
			}
			if err := json.Unmarshal(value, &row); err != nil {
				return err
			}
			pendingKey = key
			return errFound
		})
		if err != nil && !errors.Is(err, errFound) {
			return err
		}
		if pendingKey == "" {
			return domainerrors.ErrConflict
		}
		at := publishedAt.UTC()
		row.Status = outbox.StatusPublished
		row.PublishedAt = &at
		payload, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := txn.Delete(pendingKey); err != nil {
			return err
		}
		return txn.Set(keyOutboxPublished+outboxID, payload)
	})
}

func (s *Store) persist(ctx context.Context, state snapshot, rows []outbox.Message) error {
	districts, err := json.Marshal(state.districts)
	if err != nil {
		return err
	}
	candidates := make(map[string][]candidateDoc, len(state.candidates))
	for district, items := range state.candidates {
		docs := make([]candidateDoc, 0, len(items))
		for _, item := range items {
			docs = append(docs, candidateDocFromEntity(item))
		}
		candidates[district] = docs
	}
	candidatesPayload, err := json.Marshal(candidates)
	if err != nil {
		return err
	}
	voters := make([]voterDoc, 0, len(state.voters))
	for _, voter := range state.voters {
		voters = append(voters, voterDocFromEntity(voter))
	}
	votersPayload, err := json.Marshal(voters)
	if err != nil {
		return err
	}

	return s.backend.Update(ctx, func(txn kv.Txn) error {
		if err := txn.Set(keyDistricts, districts); err != nil {
			return err
		}
		if err := txn.Set(keyCandidates, candidatesPayload); err != nil {
			return err
		}
		if err := txn.Set(keyVotersStatus, votersPayload); err != nil {
			return err
		}
		if state.published {
			if err := txn.Set(keyPublished, []byte(flagTrue)); err != nil {
				return err
			}
			if state.publishedAt != nil {
				if err := txn.Set(keyPublishedAt, []byte(state.publishedAt.UTC().Format(time.RFC3339Nano))); err != nil {
					return err
				}
			}
		}
		for _, row := range rows {
			payload, err := json.Marshal(row)
			if err != nil {
				return err
			}
			key := fmt.Sprintf("%s%020d-%s", keyOutboxPending, row.CreatedAt.UnixNano(), row.ID)
			if err := txn.Set(key, payload); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) logError(event string, err error, attrs ...any) {
	fields := []any{
		"event", event,
		"module", "election/voting-coordinator",
		"layer", "adapter",
		"error", err.Error(),
	}
	fields = append(fields, attrs...)
	s.logger.Error("election kv store operation failed", fields...)
}

var (
	_ ports.ElectionStore    = (*Store)(nil)
	_ ports.OutboxRepository = (*Store)(nil)
)
