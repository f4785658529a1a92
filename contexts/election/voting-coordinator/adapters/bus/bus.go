package busadapter

import (
	"context"

	"voteverse/contexts/election/voting-coordinator/ports"
	"voteverse/internal/platform/messaging"
	"voteverse/internal/shared/events"
)

// EventBus maps election envelopes onto the shared platform bus.
type EventBus struct {
	Bus *messaging.Bus
}

func New(bus *messaging.Bus) EventBus {
	return EventBus{Bus: bus}
}

func (b EventBus) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	return b.Bus.Publish(ctx, topic, toShared(event))
}

func (b EventBus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	return b.Bus.Subscribe(ctx, topic, consumerGroup, func(ctx context.Context, event events.Envelope) error {
		return handler(ctx, fromShared(event))
	})
}

func toShared(event ports.EventEnvelope) events.Envelope {
	return events.Envelope{
		EventID:          event.EventID,
		EventType:        event.EventType,
		OccurredAt:       event.OccurredAt,
		SourceService:    event.SourceService,
		TraceID:          event.TraceID,
		SchemaVersion:    event.SchemaVersion,
		PartitionKeyPath: event.PartitionKeyPath,
		PartitionKey:     event.PartitionKey,
		Data:             event.Data,
	}
}

func fromShared(event events.Envelope) ports.EventEnvelope {
	return ports.EventEnvelope{
		EventID:          event.EventID,
		EventType:        event.EventType,
		OccurredAt:       event.OccurredAt,
		SourceService:    event.SourceService,
		TraceID:          event.TraceID,
		SchemaVersion:    event.SchemaVersion,
		PartitionKeyPath: event.PartitionKeyPath,
		PartitionKey:     event.PartitionKey,
		Data:             event.Data,
	}
}

var (
	_ ports.EventPublisher  = EventBus{}
	_ ports.EventSubscriber = EventBus{}
)
