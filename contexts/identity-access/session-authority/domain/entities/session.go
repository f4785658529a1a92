package entities

import "time"

type SessionKind string

const (
	SessionKindAnonymous           SessionKind = "anonymous"
	SessionKindPendingVerification SessionKind = "pending_verification"
	SessionKindVoter               SessionKind = "voter"
	SessionKindAdmin               SessionKind = "admin"
)

// Session is exactly one of Anonymous, PendingVerification,
// AuthenticatedVoter or AuthenticatedAdmin.
type Session interface {
	Kind() SessionKind
	session()
}

type Anonymous struct{}

type PendingVerification struct {
	Phone       string
	RequestedAt time.Time
}

type AuthenticatedVoter struct {
	VoterID string
}

type AuthenticatedAdmin struct {
	Username string
}

func (Anonymous) Kind() SessionKind           { return SessionKindAnonymous }
func (PendingVerification) Kind() SessionKind { return SessionKindPendingVerification }
func (AuthenticatedVoter) Kind() SessionKind  { return SessionKindVoter }
func (AuthenticatedAdmin) Kind() SessionKind  { return SessionKindAdmin }

func (Anonymous) session()           {}
func (PendingVerification) session() {}
func (AuthenticatedVoter) session()  {}
func (AuthenticatedAdmin) session()  {}

// Expired reports whether a pending verification is older than ttl.
// A zero ttl never expires.
func (p PendingVerification) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(p.RequestedAt) > ttl
}
