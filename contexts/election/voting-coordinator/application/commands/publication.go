package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "voteverse/contexts/election/voting-coordinator/application"
	"voteverse/contexts/election/voting-coordinator/domain/entities"
	domainerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	"voteverse/contexts/election/voting-coordinator/ports"
)

type MarkWinnerCommand struct {
	SessionID   string
	District    string
	CandidateID string
}

// PublicationUseCase holds the administrator-only operations. Both run in
// the same store transaction as ballot casting.
type PublicationUseCase struct {
	Store    ports.ElectionStore
	Sessions ports.SessionResolver
	Metrics  ports.VoteMetrics
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

// MarkWinner flags one candidate per district. An unknown candidate is a
// silent no-op.
func (uc PublicationUseCase) MarkWinner(ctx context.Context, cmd MarkWinnerCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	district := strings.TrimSpace(cmd.District)
	candidateID := strings.TrimSpace(cmd.CandidateID)

	if err := uc.requireAdmin(ctx, logger, cmd.SessionID, "mark_winner"); err != nil {
		return err
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	now := uc.now()

	var marked bool
	err = uc.Store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		state, err := tx.ResultsState()
		if err != nil {
			return err
		}
		if state.Published {
			return domainerrors.ErrElectionClosed
		}
		marked, err = tx.SetWinner(district, candidateID)
		if err != nil || !marked {
			return err
		}
		envelope, err := newElectionEnvelope(eventID, EventWinnerMarked, partitionKeyDistrict, district, now, map[string]any{
			"district":     district,
			"candidate_id": candidateID,
		})
		if err != nil {
			return err
		}
		return tx.AppendOutbox(envelope)
	})
	if err != nil {
		logger.Warn("winner marking rejected",
			"event", "election_winner_rejected",
			"module", moduleName,
			"layer", "application",
			"district", district,
			"candidate_id", candidateID,
			"error", err.Error(),
		)
		return err
	}
	if !marked {
		logger.Info("winner marking ignored unknown candidate",
			"event", "election_winner_noop",
			"module", moduleName,
			"layer", "application",
			"district", district,
			"candidate_id", candidateID,
		)
		return nil
	}
	if uc.Metrics != nil {
		uc.Metrics.WinnerMarked(district)
	}
	logger.Info("winner marked",
		"event", "election_winner_marked",
		"module", moduleName,
		"layer", "application",
		"district", district,
		"candidate_id", candidateID,
	)
	return nil
}

// PublishResults closes the election. Repeat calls succeed and change nothing.
func (uc PublicationUseCase) PublishResults(ctx context.Context, sessionID string) error {
	logger := application.ResolveLogger(uc.Logger)
	if err := uc.requireAdmin(ctx, logger, sessionID, "publish_results"); err != nil {
		return err
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	now := uc.now()

	var flipped bool
	err = uc.Store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		changed, err := tx.Publish(now)
		if err != nil {
			return err
		}
		flipped = changed
		if !changed {
			return nil
		}
		envelope, err := newElectionEnvelope(eventID, EventResultsPublished, partitionKeyElection, electionPartitionValue, now, map[string]any{
			"published_at": now.Format(time.RFC3339Nano),
		})
		if err != nil {
			return err
		}
		return tx.AppendOutbox(envelope)
	})
	if err != nil {
		logger.Error("results publication failed",
			"event", "election_publish_failed",
			"module", moduleName,
			"layer", "application",
			"error", err.Error(),
		)
		return err
	}
	if !flipped {
		logger.Debug("results already published",
			"event", "election_publish_noop",
			"module", moduleName,
			"layer", "application",
		)
		return nil
	}
	if uc.Metrics != nil {
		uc.Metrics.ResultsPublished()
	}
	logger.Info("results published",
		"event", "election_results_published",
		"module", moduleName,
		"layer", "application",
		"published_at", now,
	)
	return nil
}

func (uc PublicationUseCase) requireAdmin(ctx context.Context, logger *slog.Logger, sessionID string, operation string) error {
	actor, err := uc.Sessions.ResolveActor(ctx, sessionID)
	if err != nil {
		return err
	}
	switch actor.Kind {
	case entities.ActorAdmin:
		return nil
	case entities.ActorAnonymous, entities.ActorVoter:
	}
	if uc.Metrics != nil {
		uc.Metrics.VoteRejected("not_authorized")
	}
	logger.Warn("admin operation rejected",
		"event", "election_admin_rejected",
		"module", moduleName,
		"layer", "application",
		"operation", operation,
		"actor", string(actor.Kind),
	)
	return domainerrors.ErrNotAuthorized
}

func (uc PublicationUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
