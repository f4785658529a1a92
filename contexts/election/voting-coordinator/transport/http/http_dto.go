package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
}

type MarkWinnerRequest struct {
	CandidateID string `json:"candidate_id"`
}

type CandidateResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	District string `json:"district"`
	Image    string `json:"image,omitempty"`
	Votes    *int   `json:"votes,omitempty"`
	Winner   *bool  `json:"winner,omitempty"`
}

type VoterResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	District string `json:"district"`
	HasVoted bool   `json:"has_voted"`
}

type CastVoteResponse struct {
	Status string        `json:"status"`
	Voter  VoterResponse `json:"voter"`
}

type DistrictsResponse struct {
	Districts []string `json:"districts"`
}

type CandidatesResponse struct {
	District       string              `json:"district"`
	TalliesVisible bool                `json:"tallies_visible"`
	Candidates     []CandidateResponse `json:"candidates"`
}

type VotersResponse struct {
	District string          `json:"district"`
	Voters   []VoterResponse `json:"voters"`
}

type DistrictResultResponse struct {
	District   string              `json:"district"`
	Candidates []CandidateResponse `json:"candidates"`
	TotalVotes int                 `json:"total_votes"`
	Voters     int                 `json:"voters"`
	VotedCount int                 `json:"voted_count"`
	Turnout    float64             `json:"turnout"`
	WinnerID   string              `json:"winner_id,omitempty"`
}

type ResultsResponse struct {
	Published   bool                     `json:"published"`
	PublishedAt *time.Time               `json:"published_at,omitempty"`
	Districts   []DistrictResultResponse `json:"districts"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
