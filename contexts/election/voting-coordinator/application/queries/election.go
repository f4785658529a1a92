package queries

import (
	"context"
	"strings"

	"voteverse/contexts/election/voting-coordinator/domain/entities"
	"voteverse/contexts/election/voting-coordinator/ports"
)

// ElectionQuery reads election state. The unscoped reads serve other
// modules and operators; the *For reads apply the viewer rules in
// visibility.go. Sessions may be nil, in which case every viewer is
// anonymous.
type ElectionQuery struct {
	Store    ports.ElectionStore
	Sessions ports.SessionResolver
}

func (q ElectionQuery) Districts(ctx context.Context) ([]string, error) {
	return q.Store.Districts(ctx)
}

// CandidatesOf returns an empty slice for an unknown district.
func (q ElectionQuery) CandidatesOf(ctx context.Context, district string) ([]entities.Candidate, error) {
	items, err := q.Store.CandidatesOf(ctx, strings.TrimSpace(district))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []entities.Candidate{}
	}
	return items, nil
}

func (q ElectionQuery) VotersOf(ctx context.Context, district string) ([]entities.Voter, error) {
	items, err := q.Store.VotersOf(ctx, strings.TrimSpace(district))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []entities.Voter{}
	}
	return items, nil
}

func (q ElectionQuery) GetVoter(ctx context.Context, voterID string) (entities.Voter, error) {
	return q.Store.GetVoter(ctx, strings.TrimSpace(voterID))
}

func (q ElectionQuery) ResultsState(ctx context.Context) (entities.ResultsState, error) {
	return q.Store.ResultsState(ctx)
}

// Results builds the per-district dashboard: tallies, turnout and winner.
func (q ElectionQuery) Results(ctx context.Context) (entities.ElectionResults, error) {
	state, err := q.Store.ResultsState(ctx)
	if err != nil {
		return entities.ElectionResults{}, err
	}
	districts, err := q.Store.Districts(ctx)
	if err != nil {
		return entities.ElectionResults{}, err
	}

	results := entities.ElectionResults{
		State:     state,
		Districts: make([]entities.DistrictResult, 0, len(districts)),
	}
	for _, district := range districts {
		candidates, err := q.Store.CandidatesOf(ctx, district)
		if err != nil {
			return entities.ElectionResults{}, err
		}
		voters, err := q.Store.VotersOf(ctx, district)
		if err != nil {
			return entities.ElectionResults{}, err
		}
		item := entities.DistrictResult{
			District:   district,
			Candidates: candidates,
			Voters:     len(voters),
		}
		for _, candidate := range candidates {
			item.TotalVotes += candidate.Votes
			if candidate.Winner {
				item.WinnerID = candidate.ID
			}
		}
		for _, voter := range voters {
			if voter.HasVoted {
				item.VotedCount++
			}
		}
		results.Districts = append(results.Districts, item)
	}
	return results, nil
}

// DistrictSummary is the one-line view of a district printed by the CLI.
type DistrictSummary struct {
	District   string
	TotalVotes int
	Voters     int
	VotedCount int
	Turnout    float64
	Leader     entities.Candidate
	WinnerID   string
	HasLeader  bool
	LeaderTied bool
}

// Summaries condenses Results. The leader is the candidate with the most
// votes; a tie for first place sets LeaderTied.
func (q ElectionQuery) Summaries(ctx context.Context) ([]DistrictSummary, entities.ResultsState, error) {
	results, err := q.Results(ctx)
	if err != nil {
		return nil, entities.ResultsState{}, err
	}
	items := make([]DistrictSummary, 0, len(results.Districts))
	for _, district := range results.Districts {
		summary := DistrictSummary{
			District:   district.District,
			TotalVotes: district.TotalVotes,
			Voters:     district.Voters,
			VotedCount: district.VotedCount,
			Turnout:    district.Turnout(),
			WinnerID:   district.WinnerID,
		}
		for _, candidate := range district.Candidates {
			switch {
			case !summary.HasLeader || candidate.Votes > summary.Leader.Votes:
				summary.Leader = candidate
				summary.HasLeader = true
				summary.LeaderTied = false
			case candidate.Votes == summary.Leader.Votes:
				summary.LeaderTied = true
			}
		}
		items = append(items, summary)
	}
	return items, results.State, nil
}
