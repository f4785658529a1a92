package commands

import (
	"context"
	"crypto/subtle"
	"strings"

	application "voteverse/contexts/identity-access/session-authority/application"
	"voteverse/contexts/identity-access/session-authority/domain/entities"
	domainerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	"voteverse/contexts/identity-access/session-authority/ports"
)

type AuthenticateAdminCommand struct {
	SessionID string
	Username  string
	Password  string
}

// AuthenticateAdmin is accepted from any state and always re-checks the
// credentials. On mismatch the session is left untouched.
func (uc SessionUseCase) AuthenticateAdmin(ctx context.Context, cmd AuthenticateAdminCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	username := strings.TrimSpace(cmd.Username)

	_, err := uc.mutate(ctx, cmd.SessionID, func(record *ports.SessionRecord) (bool, error) {
		expected, err := uc.Directory.AdminCredentials(ctx)
		if err != nil {
			return false, err
		}
		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(expected.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(cmd.Password), []byte(expected.Password)) == 1
		if !userOK || !passOK {
			return false, domainerrors.ErrInvalidAdminCredentials
		}
		record.Session = entities.AuthenticatedAdmin{Username: expected.Username}
		record.Voter = nil
		return true, nil
	})
	if err != nil {
		if uc.Metrics != nil {
			uc.Metrics.AdminLogin("rejected")
		}
		logger.Warn("admin authentication rejected",
			"event", "session_admin_rejected",
			"module", moduleName,
			"layer", "application",
			"session_id", strings.TrimSpace(cmd.SessionID),
			"error", err.Error(),
		)
		return err
	}
	if uc.Metrics != nil {
		uc.Metrics.AdminLogin("accepted")
	}
	logger.Info("admin authenticated",
		"event", "session_admin_authenticated",
		"module", moduleName,
		"layer", "application",
		"session_id", strings.TrimSpace(cmd.SessionID),
	)
	return nil
}
