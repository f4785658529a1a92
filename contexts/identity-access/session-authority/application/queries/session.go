package queries

import (
	"context"
	"strings"

	"voteverse/contexts/identity-access/session-authority/domain/entities"
	domainerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	"voteverse/contexts/identity-access/session-authority/ports"
)

type SessionQuery struct {
	Sessions ports.SessionStore
	Registry ports.VoterRegistry
}

type SessionView struct {
	SessionID string
	Session   entities.Session
	Voter     *entities.Voter
}

// ResolveSession returns the current variant without side effects.
func (q SessionQuery) ResolveSession(ctx context.Context, sessionID string) (entities.Session, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, domainerrors.ErrInvalidSessionInput
	}
	record, err := q.Sessions.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return record.Session, nil
}

// CurrentSession returns the session with a fresh voter snapshot when a
// voter is signed in.
func (q SessionQuery) CurrentSession(ctx context.Context, sessionID string) (SessionView, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return SessionView{}, domainerrors.ErrInvalidSessionInput
	}
	record, err := q.Sessions.LoadSession(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	view := SessionView{SessionID: record.SessionID, Session: record.Session}

	switch current := record.Session.(type) {
	case entities.AuthenticatedVoter:
		voter := record.Voter
		if q.Registry != nil {
			live, err := q.Registry.GetVoter(ctx, current.VoterID)
			if err != nil {
				return SessionView{}, err
			}
			if live.Phone == "" && voter != nil {
				live.Phone = voter.Phone
			}
			voter = &live
		}
		view.Voter = voter
	case entities.Anonymous, entities.PendingVerification, entities.AuthenticatedAdmin:
	}
	return view, nil
}
