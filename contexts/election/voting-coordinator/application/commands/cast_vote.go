package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "voteverse/contexts/election/voting-coordinator/application"
	"voteverse/contexts/election/voting-coordinator/domain/entities"
	domainerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	"voteverse/contexts/election/voting-coordinator/ports"
)

type CastVoteCommand struct {
	SessionID   string
	CandidateID string
}

// VoteUseCase casts ballots. Attempts for the same voter are serialized by
// Locks, and the published check, eligibility checks and the tally update all
// run inside one store transaction.
type VoteUseCase struct {
	Store    ports.ElectionStore
	Sessions ports.SessionResolver
	Locks    ports.VoterLocker
	Metrics  ports.VoteMetrics
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.Voter, error) {
	logger := application.ResolveLogger(uc.Logger)
	candidateID := strings.TrimSpace(cmd.CandidateID)

	actor, err := uc.Sessions.ResolveActor(ctx, cmd.SessionID)
	if err != nil {
		return entities.Voter{}, err
	}
	var voterID string
	switch actor.Kind {
	case entities.ActorVoter:
		voterID = strings.TrimSpace(actor.VoterID)
	case entities.ActorAnonymous, entities.ActorAdmin:
	}
	if voterID == "" {
		return entities.Voter{}, uc.reject(logger, domainerrors.ErrNotAuthenticated, "", candidateID)
	}

	unlock := uc.lockVoter(voterID)
	defer unlock()

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Voter{}, err
	}
	now := uc.now()

	var updated entities.Voter
	err = uc.Store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		state, err := tx.ResultsState()
		if err != nil {
			return err
		}
		if state.Published {
			return domainerrors.ErrElectionClosed
		}

		voter, err := tx.Voter(voterID)
		if err != nil {
			if errors.Is(err, domainerrors.ErrVoterNotFound) {
				return domainerrors.ErrNotAuthenticated
			}
			return err
		}
		if voter.HasVoted {
			return domainerrors.ErrAlreadyVoted
		}
		if _, found, err := tx.Candidate(voter.District, candidateID); err != nil {
			return err
		} else if !found {
			return domainerrors.ErrCandidateNotFound
		}

		updated, err = tx.ApplyVote(voterID, candidateID)
		if err != nil {
			return err
		}
		envelope, err := newElectionEnvelope(eventID, EventVoteCast, partitionKeyDistrict, voter.District, now, map[string]any{
			"voter_id":     voterID,
			"candidate_id": candidateID,
			"district":     voter.District,
		})
		if err != nil {
			return err
		}
		return tx.AppendOutbox(envelope)
	})
	if err != nil {
		return entities.Voter{}, uc.reject(logger, err, voterID, candidateID)
	}

	if uc.Metrics != nil {
		uc.Metrics.VoteCast(updated.District)
	}
	logger.Info("vote cast",
		"event", "election_vote_cast",
		"module", moduleName,
		"layer", "application",
		"voter_id", voterID,
		"candidate_id", candidateID,
		"district", updated.District,
	)
	return updated, nil
}

func (uc VoteUseCase) reject(logger *slog.Logger, err error, voterID string, candidateID string) error {
	reason := rejectionReason(err)
	if uc.Metrics != nil {
		uc.Metrics.VoteRejected(reason)
	}
	attrs := []any{
		"event", "election_vote_rejected",
		"module", moduleName,
		"layer", "application",
		"voter_id", voterID,
		"candidate_id", candidateID,
		"reason", reason,
		"error", err.Error(),
	}
	if reason == "error" {
		logger.Error("vote cast failed", attrs...)
	} else {
		logger.Warn("vote rejected", attrs...)
	}
	return err
}

func (uc VoteUseCase) lockVoter(voterID string) func() {
	if uc.Locks == nil {
		return func() {}
	}
	return uc.Locks.Lock("voter:" + voterID)
}

func (uc VoteUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
