package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	busadapter "voteverse/contexts/election/voting-coordinator/adapters/bus"
	"voteverse/contexts/election/voting-coordinator/adapters/kvstore"
	"voteverse/contexts/election/voting-coordinator/ports"
	"voteverse/internal/platform/kv"
	"voteverse/internal/platform/messaging"

	"go.uber.org/goleak"
)

type flakyPublisher struct {
	failOn    string
	published []string
}

func (p *flakyPublisher) Publish(_ context.Context, _ string, event ports.EventEnvelope) error {
	if event.EventID == p.failOn {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, event.EventID)
	return nil
}

func seedOutbox(t *testing.T, ids ...string) *kvstore.Store {
	t.Helper()
	ctx := context.Background()
	store, err := kvstore.Open(ctx, kv.NewMemory(), ports.ElectionSeed{Districts: []string{"North"}}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i, id := range ids {
		event := ports.EventEnvelope{
			EventID:    id,
			EventType:  "vote.cast",
			OccurredAt: base.Add(time.Duration(i) * time.Second),
			Data:       []byte(`{"district":"North"}`),
		}
		if err := store.WithinTx(ctx, func(tx ports.ElectionTx) error { return tx.AppendOutbox(event) }); err != nil {
			t.Fatalf("append outbox: %v", err)
		}
	}
	return store
}

func TestRelayStopsAtFirstFailureAndResumes(t *testing.T) {
	store := seedOutbox(t, "evt-1", "evt-2", "evt-3")
	publisher := &flakyPublisher{failOn: "evt-2"}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, BatchSize: 10}
	ctx := context.Background()

	published, err := relay.RunOnce(ctx)
	if err == nil {
		t.Fatalf("expected publish failure")
	}
	if published != 1 {
		t.Fatalf("expected one row published before the failure, got %d", published)
	}

	publisher.failOn = ""
	published, err = relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if published != 2 {
		t.Fatalf("expected the remaining two rows, got %d", published)
	}
	if got := publisher.published; len(got) != 3 || got[1] != "evt-2" || got[2] != "evt-3" {
		t.Fatalf("unexpected publish order %v", got)
	}

	published, err = relay.RunOnce(ctx)
	if err != nil || published != 0 {
		t.Fatalf("expected an empty cycle, got %d err=%v", published, err)
	}
}

func TestAuditConsumerReceivesRelayedEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := seedOutbox(t, "evt-1")
	bus := messaging.NewBus(nil)
	events := busadapter.New(bus)
	ctx, cancel := context.WithCancel(context.Background())

	seen := make(chan map[string]any, 1)
	consumer := AuditConsumer{
		Subscriber: events,
		OnEvent: func(_ ports.EventEnvelope, data map[string]any) {
			seen <- data
		},
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer: %v", err)
	}

	relay := OutboxRelay{Outbox: store, Publisher: events}
	if _, err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay: %v", err)
	}

	select {
	case data := <-seen:
		if data["district"] != "North" {
			t.Fatalf("unexpected event data %v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audit consumer did not receive the event")
	}

	cancel()
	bus.Wait()
}
