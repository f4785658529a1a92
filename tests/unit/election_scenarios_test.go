package unit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	electionerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	"voteverse/contexts/election/voting-coordinator/ports"
	electionhttp "voteverse/contexts/election/voting-coordinator/transport/http"
	"voteverse/contexts/identity-access/session-authority/domain/entities"
	sessionerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	sessionhttp "voteverse/contexts/identity-access/session-authority/transport/http"
	"voteverse/internal/app/wiring"
	"voteverse/internal/platform/config"

	"go.uber.org/goleak"
)

type backend struct {
	name  string
	apply func(cfg *config.Config)
}

var backends = []backend{
	{name: "kv-memory", apply: func(cfg *config.Config) {}},
	{name: "sql-sqlite", apply: func(cfg *config.Config) {
		cfg.Storage.Backend = config.StorageSQL
		cfg.Storage.SQLDialect = config.SQLSQLite
	}},
}

func newCore(t *testing.T, cfg config.Config) *wiring.Core {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	core, err := wiring.Build(context.Background(), cfg, nil, logger)
	if err != nil {
		t.Fatalf("build core: %v", err)
	}
	t.Cleanup(func() { _ = core.Close() })
	return core
}

func forEachBackend(t *testing.T, fn func(t *testing.T, core *wiring.Core)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			cfg := config.Default()
			b.apply(&cfg)
			fn(t, newCore(t, cfg))
		})
	}
}

func openSession(t *testing.T, core *wiring.Core) string {
	t.Helper()
	resp, err := core.Sessions.Handler.OpenSessionHandler(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return resp.SessionID
}

func signInVoter(t *testing.T, core *wiring.Core, phone string) string {
	t.Helper()
	ctx := context.Background()
	sessionID := openSession(t, core)
	if _, err := core.Sessions.Handler.RequestVerificationHandler(ctx, sessionID, sessionhttp.RequestVerificationRequest{Phone: phone}); err != nil {
		t.Fatalf("request verification for %s: %v", phone, err)
	}
	if _, err := core.Sessions.Handler.ConfirmVerificationHandler(ctx, sessionID, sessionhttp.ConfirmVerificationRequest{Code: "1234"}); err != nil {
		t.Fatalf("confirm verification for %s: %v", phone, err)
	}
	return sessionID
}

func signInAdmin(t *testing.T, core *wiring.Core) string {
	t.Helper()
	sessionID := openSession(t, core)
	if _, err := core.Sessions.Handler.AuthenticateAdminHandler(context.Background(), sessionID, sessionhttp.AuthenticateAdminRequest{
		Username: "admin",
		Password: "admin123",
	}); err != nil {
		t.Fatalf("admin sign in: %v", err)
	}
	return sessionID
}

func castVote(core *wiring.Core, sessionID, candidateID string) error {
	_, err := core.Election.Handler.CastVoteHandler(context.Background(), sessionID, electionhttp.CastVoteRequest{CandidateID: candidateID})
	return err
}

func tally(t *testing.T, core *wiring.Core, district string) map[string]int {
	t.Helper()
	candidates, err := core.Election.Queries.CandidatesOf(context.Background(), district)
	if err != nil {
		t.Fatalf("list %s candidates: %v", district, err)
	}
	out := make(map[string]int, len(candidates))
	for _, candidate := range candidates {
		out[candidate.ID] = candidate.Votes
	}
	return out
}

func TestVoterVerification(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		ctx := context.Background()
		sessionID := openSession(t, core)

		if _, err := core.Sessions.Handler.RequestVerificationHandler(ctx, sessionID, sessionhttp.RequestVerificationRequest{Phone: "9876543210"}); err != nil {
			t.Fatalf("request verification: %v", err)
		}
		voter, err := core.Sessions.Handler.ConfirmVerificationHandler(ctx, sessionID, sessionhttp.ConfirmVerificationRequest{Code: "1234"})
		if err != nil {
			t.Fatalf("confirm verification: %v", err)
		}
		if voter.ID != "1001" || voter.District != "North" || voter.HasVoted {
			t.Fatalf("unexpected voter %+v", voter)
		}
		expectVoterSession(t, core, sessionID, "1001")

		_, err = core.Sessions.Handler.ConfirmVerificationHandler(ctx, sessionID, sessionhttp.ConfirmVerificationRequest{Code: "0000"})
		if !errors.Is(err, sessionerrors.ErrInvalidCode) {
			t.Fatalf("expected ErrInvalidCode, got %v", err)
		}
		expectVoterSession(t, core, sessionID, "1001")
	})
}

func TestWrongCodeKeepsVerificationPending(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		ctx := context.Background()
		sessionID := openSession(t, core)

		if _, err := core.Sessions.Handler.RequestVerificationHandler(ctx, sessionID, sessionhttp.RequestVerificationRequest{Phone: "9876543211"}); err != nil {
			t.Fatalf("request verification: %v", err)
		}
		_, err := core.Sessions.Handler.ConfirmVerificationHandler(ctx, sessionID, sessionhttp.ConfirmVerificationRequest{Code: "0000"})
		if !errors.Is(err, sessionerrors.ErrInvalidCode) {
			t.Fatalf("expected ErrInvalidCode, got %v", err)
		}
		session, err := core.Sessions.Queries.ResolveSession(ctx, sessionID)
		if err != nil {
			t.Fatalf("resolve session: %v", err)
		}
		if _, ok := session.(entities.PendingVerification); !ok {
			t.Fatalf("expected session to stay pending, got %#v", session)
		}
		if _, err := core.Sessions.Handler.ConfirmVerificationHandler(ctx, sessionID, sessionhttp.ConfirmVerificationRequest{Code: "1234"}); err != nil {
			t.Fatalf("retry with the right code: %v", err)
		}
		expectVoterSession(t, core, sessionID, "1002")
	})
}

func expectVoterSession(t *testing.T, core *wiring.Core, sessionID, voterID string) {
	t.Helper()
	session, err := core.Sessions.Queries.ResolveSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("resolve session: %v", err)
	}
	if got, ok := session.(entities.AuthenticatedVoter); !ok || got.VoterID != voterID {
		t.Fatalf("expected AuthenticatedVoter(%s), got %#v", voterID, session)
	}
}

func TestSingleBallotPerVoter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		sessionID := signInVoter(t, core, "9876543210")

		if err := castVote(core, sessionID, "102"); err != nil {
			t.Fatalf("cast vote: %v", err)
		}
		if got := tally(t, core, "North"); got["102"] != 1 {
			t.Fatalf("expected 102 to have one vote, got %v", got)
		}
		voter, err := core.Election.Queries.GetVoter(context.Background(), "1001")
		if err != nil || !voter.HasVoted {
			t.Fatalf("expected voter 1001 to have voted, got %+v err=%v", voter, err)
		}

		if err := castVote(core, sessionID, "101"); !errors.Is(err, electionerrors.ErrAlreadyVoted) {
			t.Fatalf("expected ErrAlreadyVoted, got %v", err)
		}
		if got := tally(t, core, "North"); got["101"] != 0 || got["102"] != 1 {
			t.Fatalf("tally changed after rejected ballot: %v", got)
		}

		// A fresh sign-in for the same voter does not reopen the ballot.
		again := signInVoter(t, core, "9876543210")
		if err := castVote(core, again, "103"); !errors.Is(err, electionerrors.ErrAlreadyVoted) {
			t.Fatalf("expected ErrAlreadyVoted on a new session, got %v", err)
		}
	})
}

func TestAdminAuthentication(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		ctx := context.Background()
		sessionID := openSession(t, core)

		_, err := core.Sessions.Handler.AuthenticateAdminHandler(ctx, sessionID, sessionhttp.AuthenticateAdminRequest{Username: "admin", Password: "wrong"})
		if !errors.Is(err, sessionerrors.ErrInvalidAdminCredentials) {
			t.Fatalf("expected ErrInvalidAdminCredentials, got %v", err)
		}
		session, err := core.Sessions.Queries.ResolveSession(ctx, sessionID)
		if err != nil {
			t.Fatalf("resolve session: %v", err)
		}
		if _, ok := session.(entities.Anonymous); !ok {
			t.Fatalf("failed admin login changed the session to %#v", session)
		}

		if _, err := core.Sessions.Handler.AuthenticateAdminHandler(ctx, sessionID, sessionhttp.AuthenticateAdminRequest{Username: "admin", Password: "admin123"}); err != nil {
			t.Fatalf("admin sign in: %v", err)
		}
		session, err = core.Sessions.Queries.ResolveSession(ctx, sessionID)
		if err != nil {
			t.Fatalf("resolve session: %v", err)
		}
		if got, ok := session.(entities.AuthenticatedAdmin); !ok || got.Username != "admin" {
			t.Fatalf("expected AuthenticatedAdmin(admin), got %#v", session)
		}
	})
}

func TestWinnerReassignment(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		ctx := context.Background()
		adminSession := signInAdmin(t, core)

		for _, candidateID := range []string{"102", "103"} {
			if _, err := core.Election.Handler.MarkWinnerHandler(ctx, adminSession, "North", electionhttp.MarkWinnerRequest{CandidateID: candidateID}); err != nil {
				t.Fatalf("mark %s winner: %v", candidateID, err)
			}
		}
		candidates, err := core.Election.Queries.CandidatesOf(ctx, "North")
		if err != nil {
			t.Fatalf("list candidates: %v", err)
		}
		for _, candidate := range candidates {
			if candidate.Winner != (candidate.ID == "103") {
				t.Fatalf("unexpected winner flag on %s: %v", candidate.ID, candidate.Winner)
			}
		}
	})
}

func TestConcurrentBallotsForOneVoter(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		sessions := []string{signInVoter(t, core, "9876543210"), signInVoter(t, core, "9876543210")}
		candidates := []string{"101", "102", "103", "104"}

		const attempts = 32
		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			rejected  atomic.Int32
		)
		start := make(chan struct{})
		failures := make(chan error, attempts)
		for i := range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := castVote(core, sessions[i%len(sessions)], candidates[i%len(candidates)])
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, electionerrors.ErrAlreadyVoted):
					rejected.Add(1)
				default:
					failures <- err
				}
			}()
		}
		close(start)
		wg.Wait()
		close(failures)

		for err := range failures {
			t.Fatalf("unexpected ballot error: %v", err)
		}
		if successes.Load() != 1 || rejected.Load() != attempts-1 {
			t.Fatalf("expected exactly one success, got %d successes and %d rejections", successes.Load(), rejected.Load())
		}
		total := 0
		for _, votes := range tally(t, core, "North") {
			total += votes
		}
		if total != 1 {
			t.Fatalf("expected exactly one increment in North, got %d", total)
		}
	})
}

func TestPublicationRacingBallots(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Seed = propertySeed()
			b.apply(&cfg)
			core := newCore(t, cfg)
			ctx := context.Background()
			adminSession := signInAdmin(t, core)

			type ballot struct{ sessionID, candidateID string }
			var ballots []ballot
			for d, district := range propertyDistricts {
				for _, voter := range cfg.Seed.Voters {
					if voter.District != district {
						continue
					}
					sessionID := signInVoter(t, core, voter.Phone)
					candidateID := fmt.Sprintf("%d0%d", d+1, len(ballots)%3+1)
					// two sessions per voter so the voter lock is contended too
					ballots = append(ballots, ballot{sessionID, candidateID}, ballot{signInVoter(t, core, voter.Phone), candidateID})
				}
			}

			var (
				wg        sync.WaitGroup
				successes atomic.Int32
			)
			start := make(chan struct{})
			failures := make(chan error, len(ballots)+1)
			for i, next := range ballots {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if i == len(ballots)/2 {
						if _, err := core.Election.Handler.PublishResultsHandler(ctx, adminSession); err != nil {
							failures <- fmt.Errorf("publish: %w", err)
						}
					}
					err := castVote(core, next.sessionID, next.candidateID)
					switch {
					case err == nil:
						successes.Add(1)
					case errors.Is(err, electionerrors.ErrAlreadyVoted), errors.Is(err, electionerrors.ErrElectionClosed):
					default:
						failures <- err
					}
				}()
			}
			close(start)
			wg.Wait()
			close(failures)

			for err := range failures {
				t.Fatalf("unexpected error: %v", err)
			}
			state, err := core.Election.Queries.ResultsState(ctx)
			if err != nil || !state.Published {
				t.Fatalf("expected published election, got %+v err=%v", state, err)
			}

			votes, voted := 0, 0
			for _, district := range propertyDistricts {
				for _, count := range tally(t, core, district) {
					votes += count
				}
				voters, err := core.Election.Queries.VotersOf(ctx, district)
				if err != nil {
					t.Fatalf("list voters: %v", err)
				}
				for _, voter := range voters {
					if voter.HasVoted {
						voted++
					}
				}
			}
			if votes != voted || votes != int(successes.Load()) {
				t.Fatalf("tally %d, voted voters %d, accepted ballots %d", votes, voted, successes.Load())
			}

			if err := castVote(core, ballots[0].sessionID, ballots[0].candidateID); !errors.Is(err, electionerrors.ErrElectionClosed) {
				t.Fatalf("expected ErrElectionClosed after publication, got %v", err)
			}
		})
	}
}

func TestOutboxEventsReachAudit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core *wiring.Core) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		seen := make(chan string, 8)
		audit := core.Election.Audit
		audit.OnEvent = func(event ports.EventEnvelope, _ map[string]any) {
			seen <- event.EventType
		}
		if err := audit.Start(ctx); err != nil {
			t.Fatalf("start audit: %v", err)
		}

		sessionID := signInVoter(t, core, "9876543213")
		if err := castVote(core, sessionID, "403"); err != nil {
			t.Fatalf("cast vote: %v", err)
		}
		published, err := core.Election.Relay.RunOnce(ctx)
		if err != nil || published != 1 {
			t.Fatalf("expected one relayed event, got %d err=%v", published, err)
		}

		select {
		case eventType := <-seen:
			if eventType != "vote.cast" {
				t.Fatalf("unexpected event %s", eventType)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("audit consumer did not see the ballot")
		}
		if published, err := core.Election.Relay.RunOnce(ctx); err != nil || published != 0 {
			t.Fatalf("outbox should be drained, got %d err=%v", published, err)
		}
		cancel()
	})
}
