package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"voteverse/contexts/election/voting-coordinator/domain/entities"
	domainerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	"voteverse/contexts/election/voting-coordinator/ports"
	"voteverse/internal/platform/kv"
	"voteverse/internal/shared/outbox"
)

type snapshot struct {
	districts   []string
	candidates  map[string][]entities.Candidate
	voters      []entities.Voter
	voterIndex  map[string]int
	published   bool
	publishedAt *time.Time
}

type candidateDoc struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
	Votes  int    `json:"votes"`
	Winner bool   `json:"winner"`
}

type voterDoc struct {
	ID       string `json:"id"`
	Phone    string `json:"phone,omitempty"`
	Name     string `json:"name"`
	District string `json:"district"`
	HasVoted bool   `json:"hasVoted"`
}

func candidateDocFromEntity(c entities.Candidate) candidateDoc {
	return candidateDoc{ID: c.ID, Name: c.Name, Image: c.Image, Votes: c.Votes, Winner: c.Winner}
}

func voterDocFromEntity(v entities.Voter) voterDoc {
	return voterDoc{ID: v.ID, Phone: v.Phone, Name: v.Name, District: v.District, HasVoted: v.HasVoted}
}

func fromSeed(seed ports.ElectionSeed) snapshot {
	state := snapshot{
		candidates: make(map[string][]entities.Candidate),
		voterIndex: make(map[string]int),
	}
	known := map[string]bool{}
	addDistrict := func(name string) {
		if name != "" && !known[name] {
			known[name] = true
			state.districts = append(state.districts, name)
		}
	}
	for _, district := range seed.Districts {
		addDistrict(strings.TrimSpace(district))
	}
	for _, candidate := range seed.Candidates {
		candidate.ID = strings.TrimSpace(candidate.ID)
		candidate.District = strings.TrimSpace(candidate.District)
		if candidate.ID == "" || candidate.District == "" {
			continue
		}
		addDistrict(candidate.District)
		state.candidates[candidate.District] = append(state.candidates[candidate.District], candidate)
	}
	for _, voter := range seed.Voters {
		voter.ID = strings.TrimSpace(voter.ID)
		voter.District = strings.TrimSpace(voter.District)
		if voter.ID == "" {
			continue
		}
		if _, exists := state.voterIndex[voter.ID]; exists {
			continue
		}
		state.voterIndex[voter.ID] = len(state.voters)
		state.voters = append(state.voters, voter)
	}
	return state
}

func load(ctx context.Context, backend kv.Store) (snapshot, bool, error) {
	state := snapshot{
		candidates: make(map[string][]entities.Candidate),
		voterIndex: make(map[string]int),
	}
	found := false
	err := backend.View(ctx, func(txn kv.Txn) error {
		raw, err := txn.Get(keyCandidates)
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		var candidates map[string][]candidateDoc
		if err := json.Unmarshal(raw, &candidates); err != nil {
			return fmt.Errorf("decode candidates: %w", err)
		}
		for district, docs := range candidates {
			items := make([]entities.Candidate, 0, len(docs))
			for _, doc := range docs {
				items = append(items, entities.Candidate{
					ID:       doc.ID,
					Name:     doc.Name,
					District: district,
					Image:    doc.Image,
					Votes:    doc.Votes,
					Winner:   doc.Winner,
				})
			}
			state.candidates[district] = items
		}

		if raw, err := txn.Get(keyDistricts); err == nil {
			if err := json.Unmarshal(raw, &state.districts); err != nil {
				return fmt.Errorf("decode districts: %w", err)
			}
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		listed := map[string]bool{}
		for _, district := range state.districts {
			listed[district] = true
		}
		for district := range state.candidates {
			if !listed[district] {
				state.districts = append(state.districts, district)
			}
		}

		if raw, err := txn.Get(keyVotersStatus); err == nil {
			var voters []voterDoc
			if err := json.Unmarshal(raw, &voters); err != nil {
				return fmt.Errorf("decode voters status: %w", err)
			}
			for _, doc := range voters {
				state.voterIndex[doc.ID] = len(state.voters)
				state.voters = append(state.voters, entities.Voter{
					ID:       doc.ID,
					Phone:    doc.Phone,
					Name:     doc.Name,
					District: doc.District,
					HasVoted: doc.HasVoted,
				})
			}
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}

		if raw, err := txn.Get(keyPublished); err == nil {
			state.published = string(raw) == flagTrue
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		if raw, err := txn.Get(keyPublishedAt); err == nil {
			at, err := time.Parse(time.RFC3339Nano, string(raw))
			if err != nil {
				return fmt.Errorf("decode published at: %w", err)
			}
			state.publishedAt = &at
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		return nil
	})
	return state, found, err
}

func (s snapshot) clone() snapshot {
	out := snapshot{
		districts:  append([]string(nil), s.districts...),
		candidates: make(map[string][]entities.Candidate, len(s.candidates)),
		voters:     append([]entities.Voter(nil), s.voters...),
		voterIndex: make(map[string]int, len(s.voterIndex)),
		published:  s.published,
	}
	for district, items := range s.candidates {
		out.candidates[district] = append([]entities.Candidate(nil), items...)
	}
	for id, idx := range s.voterIndex {
		out.voterIndex[id] = idx
	}
	if s.publishedAt != nil {
		at := *s.publishedAt
		out.publishedAt = &at
	}
	return out
}

func (s snapshot) resultsState() entities.ResultsState {
	state := entities.ResultsState{Published: s.published}
	if s.publishedAt != nil {
		at := *s.publishedAt
		state.PublishedAt = &at
	}
	return state
}

// electionTx mutates a private copy of the snapshot.
type electionTx struct {
	state  *snapshot
	dirty  bool
	outbox []outbox.Message
}

func (t *electionTx) ResultsState() (entities.ResultsState, error) {
	return t.state.resultsState(), nil
}

func (t *electionTx) HasDistrict(district string) (bool, error) {
	for _, name := range t.state.districts {
		if name == district {
			return true, nil
		}
	}
	return false, nil
}

func (t *electionTx) Voter(voterID string) (entities.Voter, error) {
	idx, ok := t.state.voterIndex[voterID]
	if !ok {
		return entities.Voter{}, domainerrors.ErrVoterNotFound
	}
	return t.state.voters[idx], nil
}

func (t *electionTx) Candidate(district string, candidateID string) (entities.Candidate, bool, error) {
	for _, candidate := range t.state.candidates[district] {
		if candidate.ID == candidateID {
			return candidate, true, nil
		}
	}
	return entities.Candidate{}, false, nil
}

func (t *electionTx) ApplyVote(voterID string, candidateID string) (entities.Voter, error) {
	idx, ok := t.state.voterIndex[voterID]
	if !ok {
		return entities.Voter{}, domainerrors.ErrVoterNotFound
	}
	voter := t.state.voters[idx]
	if voter.HasVoted {
		return entities.Voter{}, domainerrors.ErrAlreadyVoted
	}
	candidates := t.state.candidates[voter.District]
	for i := range candidates {
		if candidates[i].ID != candidateID {
			continue
		}
		candidates[i].Votes++
		voter.HasVoted = true
		t.state.voters[idx] = voter
		t.dirty = true
		return voter, nil
	}
	return entities.Voter{}, domainerrors.ErrCandidateNotFound
}

func (t *electionTx) SetWinner(district string, candidateID string) (bool, error) {
	candidates := t.state.candidates[district]
	found := false
	for _, candidate := range candidates {
		if candidate.ID == candidateID {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	for i := range candidates {
		candidates[i].Winner = candidates[i].ID == candidateID
	}
	t.dirty = true
	return true, nil
}

func (t *electionTx) Publish(at time.Time) (bool, error) {
	if t.state.published {
		return false, nil
	}
	at = at.UTC()
	t.state.published = true
	t.state.publishedAt = &at
	t.dirty = true
	return true, nil
}

func (t *electionTx) AssignDistrict(voterID string, district string) (entities.Voter, error) {
	if known, _ := t.HasDistrict(district); !known {
		return entities.Voter{}, domainerrors.ErrUnknownDistrict
	}
	idx, ok := t.state.voterIndex[voterID]
	if !ok {
		return entities.Voter{}, domainerrors.ErrVoterNotFound
	}
	voter := t.state.voters[idx]
	if voter.HasVoted && voter.District != district {
		return entities.Voter{}, domainerrors.ErrDistrictLocked
	}
	voter.District = district
	t.state.voters[idx] = voter
	t.dirty = true
	return voter, nil
}

func (t *electionTx) AppendOutbox(event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	t.outbox = append(t.outbox, outbox.Message{
		ID:           event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    event.OccurredAt.UTC(),
	})
	return nil
}
