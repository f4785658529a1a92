package commands

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	application "voteverse/contexts/identity-access/session-authority/application"
	"voteverse/contexts/identity-access/session-authority/domain/entities"
	domainerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	"voteverse/contexts/identity-access/session-authority/ports"
)

type RequestVerificationCommand struct {
	SessionID string
	Phone     string
}

type ConfirmVerificationCommand struct {
	SessionID string
	Code      string
}

// RequestVerification moves the session to PendingVerification for a
// registered phone and then hands the phone to the code sender.
func (uc SessionUseCase) RequestVerification(ctx context.Context, cmd RequestVerificationCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	phone := strings.TrimSpace(cmd.Phone)

	_, err := uc.mutate(ctx, cmd.SessionID, func(record *ports.SessionRecord) (bool, error) {
		if _, err := uc.Directory.LookupByPhone(ctx, phone); err != nil {
			return false, err
		}
		record.Session = entities.PendingVerification{
			Phone:       phone,
			RequestedAt: uc.now(),
		}
		record.Voter = nil
		return true, nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrVoterNotRegistered) {
			uc.recordVerification("not_registered")
			logger.Warn("verification requested for unknown phone",
				"event", "session_verification_unknown_phone",
				"module", moduleName,
				"layer", "application",
				"session_id", strings.TrimSpace(cmd.SessionID),
			)
		}
		return err
	}
	uc.recordVerification("accepted")
	logger.Info("verification requested",
		"event", "session_verification_requested",
		"module", moduleName,
		"layer", "application",
		"session_id", strings.TrimSpace(cmd.SessionID),
	)

	uc.deliverCode(ctx, cmd.SessionID, phone)
	return nil
}

// ConfirmVerification checks the code for a pending session. A wrong code is
// ErrInvalidCode in every state and leaves the session as it was, so a
// pending caller can retry.
func (uc SessionUseCase) ConfirmVerification(ctx context.Context, cmd ConfirmVerificationCommand) (entities.Voter, error) {
	logger := application.ResolveLogger(uc.Logger)
	var voter entities.Voter

	_, err := uc.mutate(ctx, cmd.SessionID, func(record *ports.SessionRecord) (bool, error) {
		code := strings.TrimSpace(cmd.Code)
		if subtle.ConstantTimeCompare([]byte(code), []byte(uc.verificationCode())) != 1 {
			return false, domainerrors.ErrInvalidCode
		}

		var pending entities.PendingVerification
		switch current := record.Session.(type) {
		case entities.PendingVerification:
			pending = current
		case entities.Anonymous, entities.AuthenticatedVoter, entities.AuthenticatedAdmin:
			return false, domainerrors.ErrNoPendingVerification
		default:
			return false, domainerrors.ErrNoPendingVerification
		}

		if pending.Expired(uc.now(), uc.VerificationTTL) {
			record.Session = entities.Anonymous{}
			return true, domainerrors.ErrVerificationExpired
		}

		resolved, err := uc.resolveVoter(ctx, pending.Phone)
		if err != nil {
			return false, err
		}
		record.Session = entities.AuthenticatedVoter{VoterID: resolved.ID}
		record.Voter = &resolved
		voter = resolved
		return true, nil
	})
	if err != nil {
		logger.Warn("verification confirm rejected",
			"event", "session_verification_rejected",
			"module", moduleName,
			"layer", "application",
			"session_id", strings.TrimSpace(cmd.SessionID),
			"error", err.Error(),
		)
		return entities.Voter{}, err
	}
	logger.Info("voter authenticated",
		"event", "session_voter_authenticated",
		"module", moduleName,
		"layer", "application",
		"session_id", strings.TrimSpace(cmd.SessionID),
		"voter_id", voter.ID,
	)
	return voter, nil
}

// resolveVoter maps a verified phone to the live voter record.
func (uc SessionUseCase) resolveVoter(ctx context.Context, phone string) (entities.Voter, error) {
	voter, err := uc.Directory.LookupByPhone(ctx, phone)
	if err != nil {
		return entities.Voter{}, err
	}
	if uc.Registry == nil {
		return voter, nil
	}
	live, err := uc.Registry.GetVoter(ctx, voter.ID)
	if err != nil {
		return entities.Voter{}, err
	}
	if live.Phone == "" {
		live.Phone = voter.Phone
	}
	return live, nil
}

func (uc SessionUseCase) deliverCode(ctx context.Context, sessionID string, phone string) {
	if uc.Codes == nil {
		return
	}
	if err := uc.Codes.SendVerificationCode(ctx, phone); err != nil {
		if uc.Metrics != nil {
			uc.Metrics.CodeDeliveryFailed()
		}
		application.ResolveLogger(uc.Logger).Warn("verification code delivery failed",
			"event", "session_code_delivery_failed",
			"module", moduleName,
			"layer", "application",
			"session_id", strings.TrimSpace(sessionID),
			"error", err.Error(),
		)
	}
}

func (uc SessionUseCase) recordVerification(outcome string) {
	if uc.Metrics != nil {
		uc.Metrics.VerificationRequested(outcome)
	}
}
