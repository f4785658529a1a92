package commands

import (
	"context"
	"strings"

	application "voteverse/contexts/identity-access/session-authority/application"
	"voteverse/contexts/identity-access/session-authority/domain/entities"
	domainerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	"voteverse/contexts/identity-access/session-authority/ports"
)

type SetDistrictCommand struct {
	SessionID string
	District  string
}

// SetDistrict reassigns the signed-in voter's district. It may be called
// any number of times before the voter casts a ballot.
func (uc SessionUseCase) SetDistrict(ctx context.Context, cmd SetDistrictCommand) (entities.Voter, error) {
	logger := application.ResolveLogger(uc.Logger)
	district := strings.TrimSpace(cmd.District)
	var updated entities.Voter

	_, err := uc.mutate(ctx, cmd.SessionID, func(record *ports.SessionRecord) (bool, error) {
		var voterID string
		switch current := record.Session.(type) {
		case entities.AuthenticatedVoter:
			voterID = current.VoterID
		case entities.Anonymous, entities.PendingVerification, entities.AuthenticatedAdmin:
			return false, domainerrors.ErrNotAuthenticated
		default:
			return false, domainerrors.ErrNotAuthenticated
		}
		if district == "" || uc.Registry == nil {
			return false, domainerrors.ErrUnknownDistrict
		}

		voter, err := uc.Registry.AssignDistrict(ctx, voterID, district)
		if err != nil {
			return false, err
		}
		if voter.Phone == "" && record.Voter != nil {
			voter.Phone = record.Voter.Phone
		}
		record.Voter = &voter
		updated = voter
		return true, nil
	})
	if err != nil {
		logger.Warn("district selection rejected",
			"event", "session_district_rejected",
			"module", moduleName,
			"layer", "application",
			"session_id", strings.TrimSpace(cmd.SessionID),
			"district", district,
			"error", err.Error(),
		)
		return entities.Voter{}, err
	}
	logger.Info("district selected",
		"event", "session_district_selected",
		"module", moduleName,
		"layer", "application",
		"session_id", strings.TrimSpace(cmd.SessionID),
		"voter_id", updated.ID,
		"district", updated.District,
	)
	return updated, nil
}
