package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"voteverse/contexts/identity-access/session-authority/domain/entities"
	domainerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	"voteverse/contexts/identity-access/session-authority/ports"
)

type stubDirectory struct{}

func (stubDirectory) LookupByPhone(_ context.Context, phone string) (entities.Voter, error) {
	if phone == "9876543210" {
		return entities.Voter{ID: "1001", Phone: phone, Name: "John Doe", District: "North"}, nil
	}
	return entities.Voter{}, domainerrors.ErrVoterNotRegistered
}

func (stubDirectory) AdminCredentials(context.Context) (entities.AdminCredentials, error) {
	return entities.AdminCredentials{Username: "admin", Password: "admin123"}, nil
}

type stubSessions struct {
	records map[string]ports.SessionRecord
	saves   int
}

func (s *stubSessions) LoadSession(_ context.Context, id string) (ports.SessionRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return ports.SessionRecord{}, domainerrors.ErrSessionNotFound
	}
	return record, nil
}

func (s *stubSessions) SaveSession(_ context.Context, record ports.SessionRecord) error {
	if s.records == nil {
		s.records = map[string]ports.SessionRecord{}
	}
	s.records[record.SessionID] = record
	s.saves++
	return nil
}

type failingSender struct{ calls int }

func (f *failingSender) SendVerificationCode(context.Context, string) error {
	f.calls++
	return errors.New("gateway down")
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct{ next int }

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	s.next++
	return "session-" + string(rune('0'+s.next)), nil
}

func newUseCase(sender ports.CodeSender, clock *fixedClock, ttl time.Duration) (SessionUseCase, *stubSessions) {
	sessions := &stubSessions{}
	return SessionUseCase{
		Directory:       stubDirectory{},
		Sessions:        sessions,
		Codes:           sender,
		Clock:           clock,
		IDGen:           &sequenceIDs{},
		VerificationTTL: ttl,
	}, sessions
}

func TestDeliveryFailureKeepsPendingVerification(t *testing.T) {
	ctx := context.Background()
	sender := &failingSender{}
	uc, sessions := newUseCase(sender, &fixedClock{now: time.Now().UTC()}, 0)

	opened, err := uc.OpenSession(ctx)
	if err != nil {
		t.Fatalf("open session failed: %v", err)
	}
	if err := uc.RequestVerification(ctx, RequestVerificationCommand{SessionID: opened.SessionID, Phone: " 9876543210 "}); err != nil {
		t.Fatalf("request verification should ignore delivery errors, got %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected one delivery attempt, got %d", sender.calls)
	}
	pending, ok := sessions.records[opened.SessionID].Session.(entities.PendingVerification)
	if !ok {
		t.Fatalf("expected pending verification, got %T", sessions.records[opened.SessionID].Session)
	}
	if pending.Phone != "9876543210" {
		t.Fatalf("expected trimmed phone, got %q", pending.Phone)
	}
}

func TestUnknownPhoneLeavesSessionAnonymous(t *testing.T) {
	ctx := context.Background()
	uc, sessions := newUseCase(nil, &fixedClock{now: time.Now().UTC()}, 0)
	opened, _ := uc.OpenSession(ctx)

	err := uc.RequestVerification(ctx, RequestVerificationCommand{SessionID: opened.SessionID, Phone: "0000000000"})
	if !errors.Is(err, domainerrors.ErrVoterNotRegistered) {
		t.Fatalf("expected voter not registered, got %v", err)
	}
	if _, ok := sessions.records[opened.SessionID].Session.(entities.Anonymous); !ok {
		t.Fatalf("expected anonymous session after rejected request")
	}
}

func TestPendingVerificationExpiresWhenTTLConfigured(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	uc, sessions := newUseCase(nil, clock, 5*time.Minute)
	opened, _ := uc.OpenSession(ctx)
	if err := uc.RequestVerification(ctx, RequestVerificationCommand{SessionID: opened.SessionID, Phone: "9876543210"}); err != nil {
		t.Fatalf("request verification failed: %v", err)
	}

	clock.now = clock.now.Add(6 * time.Minute)
	_, err := uc.ConfirmVerification(ctx, ConfirmVerificationCommand{SessionID: opened.SessionID, Code: "1234"})
	if !errors.Is(err, domainerrors.ErrVerificationExpired) {
		t.Fatalf("expected expired verification, got %v", err)
	}
	if _, ok := sessions.records[opened.SessionID].Session.(entities.Anonymous); !ok {
		t.Fatalf("expected session reset to anonymous after expiry")
	}
}

func TestPendingVerificationNeverExpiresByDefault(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	uc, _ := newUseCase(nil, clock, 0)
	opened, _ := uc.OpenSession(ctx)
	if err := uc.RequestVerification(ctx, RequestVerificationCommand{SessionID: opened.SessionID, Phone: "9876543210"}); err != nil {
		t.Fatalf("request verification failed: %v", err)
	}

	clock.now = clock.now.Add(30 * 24 * time.Hour)
	voter, err := uc.ConfirmVerification(ctx, ConfirmVerificationCommand{SessionID: opened.SessionID, Code: "1234"})
	if err != nil {
		t.Fatalf("confirm verification failed: %v", err)
	}
	if voter.ID != "1001" {
		t.Fatalf("expected voter 1001, got %s", voter.ID)
	}
}

func TestFailedAdminLoginDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	uc, sessions := newUseCase(nil, &fixedClock{now: time.Now().UTC()}, 0)
	opened, _ := uc.OpenSession(ctx)
	before := sessions.saves

	err := uc.AuthenticateAdmin(ctx, AuthenticateAdminCommand{SessionID: opened.SessionID, Username: "admin", Password: "nope"})
	if !errors.Is(err, domainerrors.ErrInvalidAdminCredentials) {
		t.Fatalf("expected invalid admin credentials, got %v", err)
	}
	if sessions.saves != before {
		t.Fatalf("rejected login must not write the session")
	}
}

func TestBlankSessionIDIsRejected(t *testing.T) {
	uc, _ := newUseCase(nil, &fixedClock{now: time.Now().UTC()}, 0)
	if err := uc.Terminate(context.Background(), "  "); !errors.Is(err, domainerrors.ErrInvalidSessionInput) {
		t.Fatalf("expected invalid session input, got %v", err)
	}
}

func TestConfirmCodeCheckedBeforeSessionState(t *testing.T) {
	ctx := context.Background()
	uc, sessions := newUseCase(nil, &fixedClock{now: time.Now().UTC()}, 0)
	opened, _ := uc.OpenSession(ctx)

	tests := []struct {
		name string
		code string
		want error
	}{
		{name: "wrong code without request", code: "0000", want: domainerrors.ErrInvalidCode},
		{name: "blank code without request", code: " ", want: domainerrors.ErrInvalidCode},
		{name: "right code without request", code: "1234", want: domainerrors.ErrNoPendingVerification},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.ConfirmVerification(ctx, ConfirmVerificationCommand{SessionID: opened.SessionID, Code: tc.code})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if _, ok := sessions.records[opened.SessionID].Session.(entities.Anonymous); !ok {
				t.Fatalf("rejected confirm changed the session")
			}
		})
	}

	if err := uc.RequestVerification(ctx, RequestVerificationCommand{SessionID: opened.SessionID, Phone: "9876543210"}); err != nil {
		t.Fatalf("request verification failed: %v", err)
	}
	if _, err := uc.ConfirmVerification(ctx, ConfirmVerificationCommand{SessionID: opened.SessionID, Code: "1234"}); err != nil {
		t.Fatalf("confirm verification failed: %v", err)
	}
	_, err := uc.ConfirmVerification(ctx, ConfirmVerificationCommand{SessionID: opened.SessionID, Code: "0000"})
	if !errors.Is(err, domainerrors.ErrInvalidCode) {
		t.Fatalf("expected invalid code after sign-in, got %v", err)
	}
	if voter, ok := sessions.records[opened.SessionID].Session.(entities.AuthenticatedVoter); !ok || voter.VoterID != "1001" {
		t.Fatalf("wrong code must keep the voter signed in, got %#v", sessions.records[opened.SessionID].Session)
	}
}
