package commands

import (
	"encoding/json"
	"errors"
	"time"

	domainerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	"voteverse/contexts/election/voting-coordinator/ports"
)

const (
	moduleName    = "election/voting-coordinator"
	sourceService = "voting-coordinator"

	EventVoteCast          = "vote.cast"
	EventWinnerMarked      = "election.winner_marked"
	EventResultsPublished  = "election.results_published"
	EventDistrictAssigned  = "voter.district_assigned"
	partitionKeyDistrict   = "district"
	partitionKeyElection   = "election"
	electionPartitionValue = "election"
)

func newElectionEnvelope(
	eventID string,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}

// rejectionReason is the metric label for a failed command.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, domainerrors.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, domainerrors.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, domainerrors.ErrCandidateNotFound):
		return "candidate_not_found"
	case errors.Is(err, domainerrors.ErrElectionClosed):
		return "election_closed"
	default:
		return "error"
	}
}
