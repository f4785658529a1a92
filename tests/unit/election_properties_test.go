package unit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	electionerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	electionhttp "voteverse/contexts/election/voting-coordinator/transport/http"
	sessionerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	sessionhttp "voteverse/contexts/identity-access/session-authority/transport/http"
	"voteverse/internal/app/wiring"
	"voteverse/internal/platform/config"
)

var propertyDistricts = []string{"North", "South", "East", "West"}

// propertySeed registers six voters and three candidates per district, none
// of whom has voted yet.
func propertySeed() config.SeedConfig {
	seed := config.SeedConfig{Districts: propertyDistricts}
	for d, district := range propertyDistricts {
		for c := 1; c <= 3; c++ {
			seed.Candidates = append(seed.Candidates, config.SeedCandidate{
				ID:       fmt.Sprintf("%d0%d", d+1, c),
				Name:     fmt.Sprintf("%s candidate %d", district, c),
				District: district,
			})
		}
		for v := 1; v <= 6; v++ {
			seed.Voters = append(seed.Voters, config.SeedVoter{
				ID:       fmt.Sprintf("%d%02d", d+1, v),
				Phone:    fmt.Sprintf("55500%d%04d", d+1, v),
				Name:     fmt.Sprintf("%s voter %d", district, v),
				District: district,
			})
		}
	}
	return seed
}

type voterModel struct {
	id        string
	sessionID string
	district  string
	voted     bool
}

type electionModel struct {
	t          *testing.T
	core       *wiring.Core
	admin      string
	voters     []*voterModel
	candidates map[string]string
	published  bool
}

func newElectionModel(t *testing.T, b backend) *electionModel {
	t.Helper()
	cfg := config.Default()
	cfg.Seed = propertySeed()
	b.apply(&cfg)
	core := newCore(t, cfg)

	m := &electionModel{
		t:          t,
		core:       core,
		admin:      signInAdmin(t, core),
		candidates: map[string]string{},
	}
	for _, candidate := range cfg.Seed.Candidates {
		m.candidates[candidate.ID] = candidate.District
	}
	for _, voter := range cfg.Seed.Voters {
		m.voters = append(m.voters, &voterModel{
			id:        voter.ID,
			sessionID: signInVoter(t, core, voter.Phone),
			district:  voter.District,
		})
	}
	return m
}

func (m *electionModel) candidateIDs() []string {
	ids := make([]string, 0, len(m.candidates))
	for _, district := range propertyDistricts {
		for id, home := range m.candidates {
			if home == district {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (m *electionModel) tallies() map[string]map[string]int {
	out := make(map[string]map[string]int, len(propertyDistricts))
	for _, district := range propertyDistricts {
		out[district] = tally(m.t, m.core, district)
	}
	return out
}

func (m *electionModel) cast(voter *voterModel, candidateID string) {
	t := m.t
	before := m.tallies()
	err := castVote(m.core, voter.sessionID, candidateID)

	var want error
	switch {
	case m.published:
		want = electionerrors.ErrElectionClosed
	case voter.voted:
		want = electionerrors.ErrAlreadyVoted
	case m.candidates[candidateID] != voter.district:
		want = electionerrors.ErrCandidateNotFound
	}
	if want == nil {
		if err != nil {
			t.Fatalf("voter %s ballot for %s: %v", voter.id, candidateID, err)
		}
		voter.voted = true
		after := m.tallies()
		if after[voter.district][candidateID] != before[voter.district][candidateID]+1 {
			t.Fatalf("ballot for %s did not add exactly one vote", candidateID)
		}
		return
	}
	if !errors.Is(err, want) {
		t.Fatalf("voter %s ballot for %s: expected %v, got %v", voter.id, candidateID, want, err)
	}
	after := m.tallies()
	for district, counts := range before {
		for id, votes := range counts {
			if after[district][id] != votes {
				t.Fatalf("rejected ballot changed %s/%s from %d to %d", district, id, votes, after[district][id])
			}
		}
	}
}

func (m *electionModel) moveDistrict(voter *voterModel, district string) {
	_, err := m.core.Sessions.Handler.SetDistrictHandler(context.Background(), voter.sessionID, sessionhttp.SetDistrictRequest{District: district})
	switch {
	case voter.voted && district != voter.district:
		if !errors.Is(err, sessionerrors.ErrDistrictLocked) {
			m.t.Fatalf("voter %s moved after voting: %v", voter.id, err)
		}
	case err != nil:
		m.t.Fatalf("voter %s move to %s: %v", voter.id, district, err)
	default:
		voter.district = district
	}
}

func (m *electionModel) markWinner(district, candidateID string) {
	_, err := m.core.Election.Handler.MarkWinnerHandler(context.Background(), m.admin, district, electionhttp.MarkWinnerRequest{CandidateID: candidateID})
	if m.published {
		if !errors.Is(err, electionerrors.ErrElectionClosed) {
			m.t.Fatalf("expected ErrElectionClosed for winner after publish, got %v", err)
		}
		return
	}
	if err != nil {
		m.t.Fatalf("mark %s winner in %s: %v", candidateID, district, err)
	}
}

func (m *electionModel) checkInvariants() {
	t := m.t
	ctx := context.Background()
	for _, district := range propertyDistricts {
		candidates, err := m.core.Election.Queries.CandidatesOf(ctx, district)
		if err != nil {
			t.Fatalf("list candidates: %v", err)
		}
		votes, winners := 0, 0
		for _, candidate := range candidates {
			votes += candidate.Votes
			if candidate.Winner {
				winners++
			}
		}
		voters, err := m.core.Election.Queries.VotersOf(ctx, district)
		if err != nil {
			t.Fatalf("list voters: %v", err)
		}
		voted := 0
		for _, voter := range voters {
			if voter.HasVoted {
				voted++
			}
		}
		if votes != voted {
			t.Fatalf("%s holds %d votes for %d ballots cast", district, votes, voted)
		}
		if winners > 1 {
			t.Fatalf("%s has %d winners", district, winners)
		}
	}
}

func TestRandomOperationSequencesKeepInvariants(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			m := newElectionModel(t, b)
			rng := rand.New(rand.NewPCG(7, 11))
			candidateIDs := m.candidateIDs()

			for step := range 300 {
				voter := m.voters[rng.IntN(len(m.voters))]
				switch op := rng.IntN(10); {
				case op < 6:
					m.cast(voter, candidateIDs[rng.IntN(len(candidateIDs))])
				case op < 8:
					m.moveDistrict(voter, propertyDistricts[rng.IntN(len(propertyDistricts))])
				default:
					district := propertyDistricts[rng.IntN(len(propertyDistricts))]
					m.markWinner(district, candidateIDs[rng.IntN(len(candidateIDs))])
				}
				if step == 240 {
					if _, err := m.core.Election.Handler.PublishResultsHandler(context.Background(), m.admin); err != nil {
						t.Fatalf("publish: %v", err)
					}
					m.published = true
				}
				if step%20 == 0 {
					m.checkInvariants()
				}
			}
			m.checkInvariants()
		})
	}
}

func TestForeignDistrictBallotIsRejected(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		sessionID := signInVoter(t, core, "9876543210")
		for _, candidateID := range []string{"201", "304", "401", "999"} {
			if err := castVote(core, sessionID, candidateID); !errors.Is(err, electionerrors.ErrCandidateNotFound) {
				t.Fatalf("ballot for %s: expected ErrCandidateNotFound, got %v", candidateID, err)
			}
		}
		for _, district := range []string{"North", "South", "West"} {
			for id, votes := range tally(t, core, district) {
				if votes != 0 {
					t.Fatalf("%s/%s changed to %d", district, id, votes)
				}
			}
		}
		voter, err := core.Election.Queries.GetVoter(context.Background(), "1001")
		if err != nil || voter.HasVoted {
			t.Fatalf("rejected ballots flipped hasVoted: %+v err=%v", voter, err)
		}
	})
}

func TestPublicationIsFinalAndIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		ctx := context.Background()
		adminSession := signInAdmin(t, core)
		voterSession := signInVoter(t, core, "9876543211")

		if _, err := core.Election.Handler.PublishResultsHandler(ctx, adminSession); err != nil {
			t.Fatalf("publish: %v", err)
		}
		first, err := core.Election.Queries.ResultsState(ctx)
		if err != nil || !first.Published || first.PublishedAt == nil {
			t.Fatalf("expected published state, got %+v err=%v", first, err)
		}

		if _, err := core.Election.Handler.PublishResultsHandler(ctx, adminSession); err != nil {
			t.Fatalf("second publish: %v", err)
		}
		second, err := core.Election.Queries.ResultsState(ctx)
		if err != nil || !second.Published || second.PublishedAt == nil || !second.PublishedAt.Equal(*first.PublishedAt) {
			t.Fatalf("second publish changed state from %+v to %+v err=%v", first, second, err)
		}

		if err := castVote(core, voterSession, "201"); !errors.Is(err, electionerrors.ErrElectionClosed) {
			t.Fatalf("expected ErrElectionClosed for ballot, got %v", err)
		}
		_, err = core.Election.Handler.MarkWinnerHandler(ctx, adminSession, "South", electionhttp.MarkWinnerRequest{CandidateID: "201"})
		if !errors.Is(err, electionerrors.ErrElectionClosed) {
			t.Fatalf("expected ErrElectionClosed for winner, got %v", err)
		}
		if got := tally(t, core, "South"); got["201"] != 0 {
			t.Fatalf("closed election accepted a ballot: %v", got)
		}
	})
}

func TestWinnerExclusivityAcrossDistricts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		ctx := context.Background()
		adminSession := signInAdmin(t, core)
		marks := []struct{ district, candidate string }{
			{"North", "101"}, {"South", "203"}, {"North", "104"}, {"North", "201"}, {"South", "202"}, {"North", "104"},
		}
		for _, mark := range marks {
			if _, err := core.Election.Handler.MarkWinnerHandler(ctx, adminSession, mark.district, electionhttp.MarkWinnerRequest{CandidateID: mark.candidate}); err != nil {
				t.Fatalf("mark %s in %s: %v", mark.candidate, mark.district, err)
			}
		}
		want := map[string]string{"North": "104", "South": "202", "East": "", "West": ""}
		for district, winnerID := range want {
			candidates, err := core.Election.Queries.CandidatesOf(ctx, district)
			if err != nil {
				t.Fatalf("list candidates: %v", err)
			}
			for _, candidate := range candidates {
				if candidate.Winner != (candidate.ID == winnerID) {
					t.Fatalf("%s: unexpected winner flag on %s", district, candidate.ID)
				}
			}
		}
	})
}
