package ports

import (
	"context"
	"time"

	"voteverse/contexts/election/voting-coordinator/domain/entities"
)

// ElectionStore owns candidates, voter ballot status and the published flag.
// Reads outside WithinTx see the last committed state.
type ElectionStore interface {
	Districts(ctx context.Context) ([]string, error)
	CandidatesOf(ctx context.Context, district string) ([]entities.Candidate, error)
	VotersOf(ctx context.Context, district string) ([]entities.Voter, error)
	GetVoter(ctx context.Context, voterID string) (entities.Voter, error)
	ResultsState(ctx context.Context) (entities.ResultsState, error)
	// WithinTx runs fn as the single critical section for mutations. Writes
	// made through tx are persisted before WithinTx returns nil; any error
	// discards all of them.
	WithinTx(ctx context.Context, fn func(tx ElectionTx) error) error
}

// ElectionSeed is the initial election written to an empty store.
type ElectionSeed struct {
	Districts  []string
	Candidates []entities.Candidate
	Voters     []entities.Voter
}

type ElectionTx interface {
	ResultsState() (entities.ResultsState, error)
	HasDistrict(district string) (bool, error)
	Voter(voterID string) (entities.Voter, error)
	Candidate(district string, candidateID string) (entities.Candidate, bool, error)
	// ApplyVote increments the candidate tally and flips hasVoted together.
	ApplyVote(voterID string, candidateID string) (entities.Voter, error)
	// SetWinner marks candidateID and clears its siblings. It reports false
	// without error when the candidate is not in district.
	SetWinner(district string, candidateID string) (bool, error)
	// Publish reports whether this call flipped the flag.
	Publish(at time.Time) (bool, error)
	AssignDistrict(voterID string, district string) (entities.Voter, error)
	AppendOutbox(event EventEnvelope) error
}

type EventEnvelope struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	OccurredAt       time.Time `json:"occurred_at"`
	SourceService    string    `json:"source_service"`
	TraceID          string    `json:"trace_id"`
	SchemaVersion    int       `json:"schema_version"`
	PartitionKeyPath string    `json:"partition_key_path"`
	PartitionKey     string    `json:"partition_key"`
	Data             []byte    `json:"data"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// SessionResolver maps a session id to the acting identity. Unknown
// sessions resolve to an anonymous actor.
type SessionResolver interface {
	ResolveActor(ctx context.Context, sessionID string) (entities.Actor, error)
}

type VoterLocker interface {
	Lock(key string) func()
}

type VoteMetrics interface {
	VoteCast(district string)
	VoteRejected(reason string)
	WinnerMarked(district string)
	ResultsPublished()
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
