package delivery

import (
	"context"
	"log/slog"
	"strings"

	"voteverse/contexts/identity-access/session-authority/ports"
)

// LogSender stands in for an SMS gateway: it records that a code went out
// for the phone and never fails.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) SendVerificationCode(ctx context.Context, phone string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "verification code dispatched",
		"event", "session_code_dispatched",
		"module", "identity-access/session-authority",
		"layer", "adapter",
		"phone", MaskPhone(phone),
	)
	return nil
}

// MaskPhone keeps only the last four digits.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

var _ ports.CodeSender = LogSender{}
