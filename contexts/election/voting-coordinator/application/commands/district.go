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

type AssignDistrictCommand struct {
	VoterID  string
	District string
}

// DistrictUseCase moves a voter between districts. It shares the per-voter
// lock with VoteUseCase so a reassignment never interleaves with a ballot.
type DistrictUseCase struct {
	Store  ports.ElectionStore
	Locks  ports.VoterLocker
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc DistrictUseCase) AssignDistrict(ctx context.Context, cmd AssignDistrictCommand) (entities.Voter, error) {
	logger := application.ResolveLogger(uc.Logger)
	voterID := strings.TrimSpace(cmd.VoterID)
	district := strings.TrimSpace(cmd.District)
	if voterID == "" {
		return entities.Voter{}, domainerrors.ErrVoterNotFound
	}

	if uc.Locks != nil {
		unlock := uc.Locks.Lock("voter:" + voterID)
		defer unlock()
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Voter{}, err
	}
	now := uc.now()

	var updated entities.Voter
	err = uc.Store.WithinTx(ctx, func(tx ports.ElectionTx) error {
		known, err := tx.HasDistrict(district)
		if err != nil {
			return err
		}
		if !known {
			return domainerrors.ErrUnknownDistrict
		}
		voter, err := tx.Voter(voterID)
		if err != nil {
			return err
		}
		if voter.District == district {
			updated = voter
			return nil
		}
		if voter.HasVoted {
			return domainerrors.ErrDistrictLocked
		}
		updated, err = tx.AssignDistrict(voterID, district)
		if err != nil {
			return err
		}
		envelope, err := newElectionEnvelope(eventID, EventDistrictAssigned, partitionKeyDistrict, district, now, map[string]any{
			"voter_id":      voterID,
			"district":      district,
			"from_district": voter.District,
		})
		if err != nil {
			return err
		}
		return tx.AppendOutbox(envelope)
	})
	if err != nil {
		logger.Warn("district assignment rejected",
			"event", "election_district_rejected",
			"module", moduleName,
			"layer", "application",
			"voter_id", voterID,
			"district", district,
			"error", err.Error(),
		)
		return entities.Voter{}, err
	}
	logger.Info("district assigned",
		"event", "election_district_assigned",
		"module", moduleName,
		"layer", "application",
		"voter_id", voterID,
		"district", updated.District,
	)
	return updated, nil
}

func (uc DistrictUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
