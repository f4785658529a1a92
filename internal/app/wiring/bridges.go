package wiring

import (
	"context"
	"errors"
	"fmt"

	electioncommands "voteverse/contexts/election/voting-coordinator/application/commands"
	electionqueries "voteverse/contexts/election/voting-coordinator/application/queries"
	electionentities "voteverse/contexts/election/voting-coordinator/domain/entities"
	electionerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	electionports "voteverse/contexts/election/voting-coordinator/ports"
	sessionqueries "voteverse/contexts/identity-access/session-authority/application/queries"
	sessionentities "voteverse/contexts/identity-access/session-authority/domain/entities"
	sessionerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	sessionports "voteverse/contexts/identity-access/session-authority/ports"
)

// ActorResolver lets the election read who holds a session.
type ActorResolver struct {
	Sessions sessionqueries.SessionQuery
}

func (r ActorResolver) ResolveActor(ctx context.Context, sessionID string) (electionentities.Actor, error) {
	session, err := r.Sessions.ResolveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessionerrors.ErrSessionNotFound) || errors.Is(err, sessionerrors.ErrInvalidSessionInput) {
			return electionentities.Actor{Kind: electionentities.ActorAnonymous}, nil
		}
		return electionentities.Actor{}, fmt.Errorf("resolve session: %w", err)
	}
	switch current := session.(type) {
	case sessionentities.AuthenticatedVoter:
		return electionentities.Actor{Kind: electionentities.ActorVoter, VoterID: current.VoterID}, nil
	case sessionentities.AuthenticatedAdmin:
		return electionentities.Actor{Kind: electionentities.ActorAdmin, Username: current.Username}, nil
	case sessionentities.Anonymous, sessionentities.PendingVerification:
		return electionentities.Actor{Kind: electionentities.ActorAnonymous}, nil
	default:
		return electionentities.Actor{}, fmt.Errorf("unexpected session variant %T", session)
	}
}

// VoterRegistry serves the session context from the election's live voter
// records.
type VoterRegistry struct {
	Queries   electionqueries.ElectionQuery
	Districts electioncommands.DistrictUseCase
}

func (r VoterRegistry) GetVoter(ctx context.Context, voterID string) (sessionentities.Voter, error) {
	voter, err := r.Queries.GetVoter(ctx, voterID)
	if err != nil {
		return sessionentities.Voter{}, mapElectionError(err)
	}
	return toSessionVoter(voter), nil
}

func (r VoterRegistry) AssignDistrict(ctx context.Context, voterID string, district string) (sessionentities.Voter, error) {
	voter, err := r.Districts.AssignDistrict(ctx, electioncommands.AssignDistrictCommand{
		VoterID:  voterID,
		District: district,
	})
	if err != nil {
		return sessionentities.Voter{}, mapElectionError(err)
	}
	return toSessionVoter(voter), nil
}

func mapElectionError(err error) error {
	switch {
	case errors.Is(err, electionerrors.ErrVoterNotFound):
		return fmt.Errorf("%w: %w", sessionerrors.ErrVoterNotRegistered, err)
	case errors.Is(err, electionerrors.ErrUnknownDistrict):
		return fmt.Errorf("%w: %w", sessionerrors.ErrUnknownDistrict, err)
	case errors.Is(err, electionerrors.ErrDistrictLocked):
		return fmt.Errorf("%w: %w", sessionerrors.ErrDistrictLocked, err)
	case errors.Is(err, electionerrors.ErrInvalidVoteInput):
		return fmt.Errorf("%w: %w", sessionerrors.ErrInvalidSessionInput, err)
	default:
		return err
	}
}

func toSessionVoter(voter electionentities.Voter) sessionentities.Voter {
	return sessionentities.Voter{
		ID:       voter.ID,
		Phone:    voter.Phone,
		Name:     voter.Name,
		District: voter.District,
		HasVoted: voter.HasVoted,
	}
}

var (
	_ electionports.SessionResolver = ActorResolver{}
	_ sessionports.VoterRegistry    = VoterRegistry{}
)
