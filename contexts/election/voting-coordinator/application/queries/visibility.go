package queries

import (
	"context"

	"voteverse/contexts/election/voting-coordinator/domain/entities"
	domainerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
)

// TalliesVisible reports whether the holder of sessionID may read vote
// counts, winner flags and who has voted. Admins always may; everyone else
// only once results are published.
func (q ElectionQuery) TalliesVisible(ctx context.Context, sessionID string) (bool, error) {
	state, err := q.Store.ResultsState(ctx)
	if err != nil {
		return false, err
	}
	if state.Published {
		return true, nil
	}
	if q.Sessions == nil {
		return false, nil
	}
	actor, err := q.Sessions.ResolveActor(ctx, sessionID)
	if err != nil {
		return false, err
	}
	switch actor.Kind {
	case entities.ActorAdmin:
		return true, nil
	case entities.ActorAnonymous, entities.ActorVoter:
	}
	return false, nil
}

// CandidatesFor lists a district's ballot. Votes and winner flags are zeroed
// unless the viewer may see tallies; the bool reports which.
func (q ElectionQuery) CandidatesFor(ctx context.Context, sessionID string, district string) ([]entities.Candidate, bool, error) {
	visible, err := q.TalliesVisible(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	items, err := q.CandidatesOf(ctx, district)
	if err != nil {
		return nil, false, err
	}
	if !visible {
		for i := range items {
			items[i].Votes = 0
			items[i].Winner = false
		}
	}
	return items, visible, nil
}

func (q ElectionQuery) VotersFor(ctx context.Context, sessionID string, district string) ([]entities.Voter, error) {
	if err := q.requireTallies(ctx, sessionID); err != nil {
		return nil, err
	}
	return q.VotersOf(ctx, district)
}

func (q ElectionQuery) ResultsFor(ctx context.Context, sessionID string) (entities.ElectionResults, error) {
	if err := q.requireTallies(ctx, sessionID); err != nil {
		return entities.ElectionResults{}, err
	}
	return q.Results(ctx)
}

func (q ElectionQuery) requireTallies(ctx context.Context, sessionID string) error {
	visible, err := q.TalliesVisible(ctx, sessionID)
	if err != nil {
		return err
	}
	if !visible {
		return domainerrors.ErrNotAuthorized
	}
	return nil
}
