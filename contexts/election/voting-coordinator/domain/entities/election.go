package entities

import "time"

type Candidate struct {
	ID       string
	Name     string
	District string
	Image    string
	Votes    int
	Winner   bool
}

type Voter struct {
	ID       string
	Phone    string
	Name     string
	District string
	HasVoted bool
}

type ResultsState struct {
	Published   bool
	PublishedAt *time.Time
}

type DistrictResult struct {
	District   string
	Candidates []Candidate
	TotalVotes int
	Voters     int
	VotedCount int
	WinnerID   string
}

type ElectionResults struct {
	State     ResultsState
	Districts []DistrictResult
}

// Turnout is the share of district voters who have cast a ballot.
func (r DistrictResult) Turnout() float64 {
	if r.Voters == 0 {
		return 0
	}
	return float64(r.VotedCount) / float64(r.Voters)
}
