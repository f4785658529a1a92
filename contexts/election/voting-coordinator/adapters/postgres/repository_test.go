package postgresadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"voteverse/contexts/election/voting-coordinator/domain/entities"
	domainerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	"voteverse/contexts/election/voting-coordinator/ports"
	"voteverse/internal/platform/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeededRepository(t *testing.T) *Repository {
	t.Helper()
	database, err := db.Open(db.Options{Dialect: db.DialectSQLite})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	repo := NewRepository(database.DB, nil)
	ctx := context.Background()
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Seed(ctx, ports.ElectionSeed{
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
	}))
	return repo
}

func TestSeedIsIdempotentAndOrdered(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, ports.ElectionSeed{Districts: []string{"West"}}))

	districts, err := repo.Districts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "South"}, districts)

	north, err := repo.CandidatesOf(ctx, "North")
	require.NoError(t, err)
	require.Len(t, north, 2)
	assert.Equal(t, "101", north[0].ID)
	assert.Equal(t, "102", north[1].ID)

	empty, err := repo.CandidatesOf(ctx, "Atlantis")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = repo.GetVoter(ctx, "9999")
	assert.ErrorIs(t, err, domainerrors.ErrVoterNotFound)
}

func TestApplyVoteCountsOnce(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		voter, err := tx.ApplyVote("1001", "102")
		if err != nil {
			return err
		}
		assert.True(t, voter.HasVoted)
		return nil
	}))

	err := repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.ApplyVote("1001", "101")
		return err
	})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyVoted)

	north, err := repo.CandidatesOf(ctx, "North")
	require.NoError(t, err)
	assert.Equal(t, 0, north[0].Votes)
	assert.Equal(t, 1, north[1].Votes)
}

func TestApplyVoteForeignCandidateRollsBack(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()

	err := repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.ApplyVote("1001", "201")
		return err
	})
	assert.ErrorIs(t, err, domainerrors.ErrCandidateNotFound)

	voter, err := repo.GetVoter(ctx, "1001")
	require.NoError(t, err)
	assert.False(t, voter.HasVoted)
}

func TestSetWinnerAndPublish(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

	require.NoError(t, repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		marked, err := tx.SetWinner("North", "101")
		require.NoError(t, err)
		assert.True(t, marked)
		marked, err = tx.SetWinner("North", "102")
		require.NoError(t, err)
		assert.True(t, marked)
		marked, err = tx.SetWinner("North", "201")
		require.NoError(t, err)
		assert.False(t, marked)

		flipped, err := tx.Publish(at)
		require.NoError(t, err)
		assert.True(t, flipped)
		flipped, err = tx.Publish(at.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, flipped)
		return nil
	}))

	north, err := repo.CandidatesOf(ctx, "North")
	require.NoError(t, err)
	assert.False(t, north[0].Winner)
	assert.True(t, north[1].Winner)

	state, err := repo.ResultsState(ctx)
	require.NoError(t, err)
	assert.True(t, state.Published)
	require.NotNil(t, state.PublishedAt)
	assert.True(t, state.PublishedAt.Equal(at))
}

func TestAssignDistrict(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		voter, err := tx.AssignDistrict("1001", "South")
		require.NoError(t, err)
		assert.Equal(t, "South", voter.District)
		return nil
	}))

	err := repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.AssignDistrict("1001", "Atlantis")
		return err
	})
	assert.ErrorIs(t, err, domainerrors.ErrUnknownDistrict)

	require.NoError(t, repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.ApplyVote("1002", "201")
		return err
	}))
	err = repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.AssignDistrict("1002", "North")
		return err
	})
	assert.ErrorIs(t, err, domainerrors.ErrDistrictLocked)

	require.NoError(t, repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		_, err := tx.AssignDistrict("1002", "South")
		return err
	}))
}

func TestOutboxRowsFollowTransaction(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		return tx.AppendOutbox(ports.EventEnvelope{EventID: "evt-1", EventType: "vote.cast", OccurredAt: at})
	}))
	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(tx ports.ElectionTx) error {
		if err := tx.AppendOutbox(ports.EventEnvelope{EventID: "evt-2", EventType: "vote.cast", OccurredAt: at}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	pending, err := repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "evt-1", pending[0].OutboxID)

	require.NoError(t, repo.MarkOutboxPublished(ctx, "evt-1", at))
	assert.ErrorIs(t, repo.MarkOutboxPublished(ctx, "evt-1", at), domainerrors.ErrConflict)

	pending, err = repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
