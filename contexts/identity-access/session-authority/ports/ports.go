package ports

import (
	"context"
	"time"

	"voteverse/contexts/identity-access/session-authority/domain/entities"
)

// VoterDirectory is the static registry of eligible voters and the fixed
// administrator credentials.
type VoterDirectory interface {
	LookupByPhone(ctx context.Context, phone string) (entities.Voter, error)
	AdminCredentials(ctx context.Context) (entities.AdminCredentials, error)
}

// VoterRegistry reads and updates the live voter record owned by the
// election.
type VoterRegistry interface {
	GetVoter(ctx context.Context, voterID string) (entities.Voter, error)
	AssignDistrict(ctx context.Context, voterID string, district string) (entities.Voter, error)
}

// SessionRecord is the persisted form of a session. Voter carries the
// snapshot stored while a voter is signed in.
type SessionRecord struct {
	SessionID string
	Session   entities.Session
	Voter     *entities.Voter
	OpenedAt  time.Time
	UpdatedAt time.Time
}

type SessionStore interface {
	LoadSession(ctx context.Context, sessionID string) (SessionRecord, error)
	SaveSession(ctx context.Context, record SessionRecord) error
}

type SessionLocker interface {
	Lock(key string) func()
}

// CodeSender delivers a verification code. Its result never changes the
// session state.
type CodeSender interface {
	SendVerificationCode(ctx context.Context, phone string) error
}

type AuthMetrics interface {
	VerificationRequested(outcome string)
	CodeDeliveryFailed()
	AdminLogin(outcome string)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
