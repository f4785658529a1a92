package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"voteverse/contexts/election/voting-coordinator/domain/entities"
	domainerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	"voteverse/contexts/election/voting-coordinator/ports"
	"voteverse/internal/platform/kv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeed() ports.ElectionSeed {
	return ports.ElectionSeed{
		Districts: []string{"North", "South"},
		Candidates: []entities.Candidate{
			{ID: "101", Name: "Alexander Mitchell", District: "North"},
			{ID: "102", Name: "Isabella Roberts", District: "North"},
			{ID: "201", Name: "Sophia Martinez", District: "South"},
		},
		Voters: []entities.Voter{
			{ID: "1001", Phone: "9876543210", Name: "John Doe", District: "North"},
			{ID: "1002", Phone: "9876543211", Name: "Jane Smith", District: "South"},
		},
	}
}

// flakyBackend fails Update calls while failing is set.
type flakyBackend struct {
	kv.Store
	failing bool
}

func (f *flakyBackend) Update(ctx context.Context, fn func(txn kv.Txn) error) error {
	if f.failing {
		return errors.New("disk full")
	}
	return f.Store.Update(ctx, fn)
}

func TestPersistFailureRollsBackTransaction(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Store: kv.NewMemory()}
	store, err := Open(ctx, backend, testSeed(), nil)
	require.NoError(t, err)

	backend.failing = true
	err = store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.ApplyVote("1001", "102")
		return err
	})
	require.Error(t, err)

	voter, err := store.GetVoter(ctx, "1001")
	require.NoError(t, err)
	assert.False(t, voter.HasVoted)
	candidates, err := store.CandidatesOf(ctx, "North")
	require.NoError(t, err)
	assert.Equal(t, 0, candidates[1].Votes)
}

func TestCallbackErrorDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, kv.NewMemory(), testSeed(), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		if _, err := tx.SetWinner("North", "101"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	candidates, err := store.CandidatesOf(ctx, "North")
	require.NoError(t, err)
	for _, candidate := range candidates {
		assert.False(t, candidate.Winner)
	}
}

func TestReopenRestoresCommittedState(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	store, err := Open(ctx, backend, testSeed(), nil)
	require.NoError(t, err)

	publishedAt := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	require.NoError(t, store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		if _, err := tx.ApplyVote("1002", "201"); err != nil {
			return err
		}
		if _, err := tx.SetWinner("South", "201"); err != nil {
			return err
		}
		_, err := tx.Publish(publishedAt)
		return err
	}))

	reopened, err := Open(ctx, backend, ports.ElectionSeed{}, nil)
	require.NoError(t, err)
	districts, err := reopened.Districts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "South"}, districts)

	south, err := reopened.CandidatesOf(ctx, "South")
	require.NoError(t, err)
	require.Len(t, south, 1)
	assert.Equal(t, 1, south[0].Votes)
	assert.True(t, south[0].Winner)

	voter, err := reopened.GetVoter(ctx, "1002")
	require.NoError(t, err)
	assert.True(t, voter.HasVoted)

	state, err := reopened.ResultsState(ctx)
	require.NoError(t, err)
	assert.True(t, state.Published)
	require.NotNil(t, state.PublishedAt)
	assert.True(t, state.PublishedAt.Equal(publishedAt))

	flag, err := kv.Get(ctx, backend, "publishedResults")
	require.NoError(t, err)
	assert.Equal(t, "true", string(flag))
}

func TestOutboxListAndMarkPublished(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, kv.NewMemory(), testSeed(), nil)
	require.NoError(t, err)

	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"evt-b", "evt-a"} {
		event := ports.EventEnvelope{EventID: id, EventType: "vote.cast", OccurredAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, store.WithinTx(ctx, func(tx ports.ElectionTx) error {
			return tx.AppendOutbox(event)
		}))
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "evt-b", pending[0].OutboxID)
	assert.Equal(t, "evt-a", pending[1].OutboxID)

	limited, err := store.ListPendingOutbox(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, store.MarkOutboxPublished(ctx, "evt-b", base))
	pending, err = store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "evt-a", pending[0].OutboxID)

	assert.ErrorIs(t, store.MarkOutboxPublished(ctx, "evt-missing", base), domainerrors.ErrConflict)
}

func TestAssignDistrictRejectsUnknownAndLockedVoters(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, kv.NewMemory(), testSeed(), nil)
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.AssignDistrict("1001", "Atlantis")
		return err
	})
	assert.ErrorIs(t, err, domainerrors.ErrUnknownDistrict)

	require.NoError(t, store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.ApplyVote("1001", "101")
		return err
	}))
	err = store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.AssignDistrict("1001", "South")
		return err
	})
	assert.ErrorIs(t, err, domainerrors.ErrDistrictLocked)
}
