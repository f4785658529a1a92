package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	application "voteverse/contexts/election/voting-coordinator/application"
	"voteverse/contexts/election/voting-coordinator/ports"
)

// AuditTopics are the election events written to the audit log.
var AuditTopics = []string{
	"vote.cast",
	"election.winner_marked",
	"election.results_published",
	"voter.district_assigned",
}

// AuditConsumer writes every relayed election event to the audit log.
// OnEvent, when set, sees each decoded event after it is logged.
type AuditConsumer struct {
	Subscriber    ports.EventSubscriber
	ConsumerGroup string
	Logger        *slog.Logger
	OnEvent       func(event ports.EventEnvelope, data map[string]any)
}

func (c AuditConsumer) Start(ctx context.Context) error {
	group := c.ConsumerGroup
	if group == "" {
		group = "election-audit"
	}
	for _, topic := range AuditTopics {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handle); err != nil {
			return err
		}
	}
	return nil
}

func (c AuditConsumer) handle(_ context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	data := map[string]any{}
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
	}
	logger.Info("election event audited",
		"event", "election_event_audited",
		"module", "election/voting-coordinator",
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
		"occurred_at", event.OccurredAt,
	)
	if c.OnEvent != nil {
		c.OnEvent(event, data)
	}
	return nil
}
