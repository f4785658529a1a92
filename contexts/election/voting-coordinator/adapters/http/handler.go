package httpadapter

import (
	"context"
	"log/slog"

	"voteverse/contexts/election/voting-coordinator/application/commands"
	"voteverse/contexts/election/voting-coordinator/application/queries"
	"voteverse/contexts/election/voting-coordinator/domain/entities"
	httptransport "voteverse/contexts/election/voting-coordinator/transport/http"
)

type Handler struct {
	Votes       commands.VoteUseCase
	Publication commands.PublicationUseCase
	Queries     queries.ElectionQuery
	Logger      *slog.Logger
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	voter, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		SessionID:   sessionID,
		CandidateID: req.CandidateID,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		Status: "vote_recorded",
		Voter:  mapVoter(voter),
	}, nil
}

func (h Handler) MarkWinnerHandler(
	ctx context.Context,
	sessionID string,
	district string,
	req httptransport.MarkWinnerRequest,
) (httptransport.StatusResponse, error) {
	if err := h.Publication.MarkWinner(ctx, commands.MarkWinnerCommand{
		SessionID:   sessionID,
		District:    district,
		CandidateID: req.CandidateID,
	}); err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{Status: "winner_marked"}, nil
}

func (h Handler) PublishResultsHandler(ctx context.Context, sessionID string) (httptransport.StatusResponse, error) {
	if err := h.Publication.PublishResults(ctx, sessionID); err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{Status: "published"}, nil
}

func (h Handler) DistrictsHandler(ctx context.Context) (httptransport.DistrictsResponse, error) {
	districts, err := h.Queries.Districts(ctx)
	if err != nil {
		return httptransport.DistrictsResponse{}, err
	}
	if districts == nil {
		districts = []string{}
	}
	return httptransport.DistrictsResponse{Districts: districts}, nil
}

// CandidatesOfHandler serves the ballot for a district. Tallies are left out
// until the viewer may see them.
func (h Handler) CandidatesOfHandler(ctx context.Context, sessionID string, district string) (httptransport.CandidatesResponse, error) {
	items, visible, err := h.Queries.CandidatesFor(ctx, sessionID, district)
	if err != nil {
		return httptransport.CandidatesResponse{}, err
	}
	return httptransport.CandidatesResponse{
		District:       district,
		TalliesVisible: visible,
		Candidates:     mapCandidates(items, visible),
	}, nil
}

func (h Handler) VotersOfHandler(ctx context.Context, sessionID string, district string) (httptransport.VotersResponse, error) {
	items, err := h.Queries.VotersFor(ctx, sessionID, district)
	if err != nil {
		return httptransport.VotersResponse{}, err
	}
	voters := make([]httptransport.VoterResponse, 0, len(items))
	for _, item := range items {
		voters = append(voters, mapVoter(item))
	}
	return httptransport.VotersResponse{District: district, Voters: voters}, nil
}

func (h Handler) ResultsHandler(ctx context.Context, sessionID string) (httptransport.ResultsResponse, error) {
	results, err := h.Queries.ResultsFor(ctx, sessionID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	resp := httptransport.ResultsResponse{
		Published:   results.State.Published,
		PublishedAt: results.State.PublishedAt,
		Districts:   make([]httptransport.DistrictResultResponse, 0, len(results.Districts)),
	}
	for _, district := range results.Districts {
		resp.Districts = append(resp.Districts, httptransport.DistrictResultResponse{
			District:   district.District,
			Candidates: mapCandidates(district.Candidates, true),
			TotalVotes: district.TotalVotes,
			Voters:     district.Voters,
			VotedCount: district.VotedCount,
			Turnout:    district.Turnout(),
			WinnerID:   district.WinnerID,
		})
	}
	return resp, nil
}

func mapCandidates(items []entities.Candidate, withTallies bool) []httptransport.CandidateResponse {
	out := make([]httptransport.CandidateResponse, 0, len(items))
	for _, item := range items {
		resp := httptransport.CandidateResponse{
			ID:       item.ID,
			Name:     item.Name,
			District: item.District,
			Image:    item.Image,
		}
		if withTallies {
			votes, winner := item.Votes, item.Winner
			resp.Votes = &votes
			resp.Winner = &winner
		}
		out = append(out, resp)
	}
	return out
}

func mapVoter(voter entities.Voter) httptransport.VoterResponse {
	return httptransport.VoterResponse{
		ID:       voter.ID,
		Name:     voter.Name,
		District: voter.District,
		HasVoted: voter.HasVoted,
	}
}
