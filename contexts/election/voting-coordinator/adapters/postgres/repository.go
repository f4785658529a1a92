package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"voteverse/contexts/election/voting-coordinator/domain/entities"
	domainerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	"voteverse/contexts/election/voting-coordinator/ports"
	"voteverse/internal/shared/outbox"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const stateRowID = 1

// Repository stores the election in relational tables. It runs against
// Postgres in production and against SQLite for local runs and tests.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&districtModel{},
		&candidateModel{},
		&voterModel{},
		&stateModel{},
		&outboxModel{},
	); err != nil {
		return r.logError("election_repo_migrate_failed", err)
	}
	return nil
}

// Seed writes seed when the districts table is empty. Existing rows win.
func (r *Repository) Seed(ctx context.Context, seed ports.ElectionSeed) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&districtModel{}).Count(&count).Error; err != nil {
			return r.logError("election_repo_seed_count_failed", err)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&stateModel{ID: stateRowID}).Error; err != nil {
			return r.logError("election_repo_seed_state_failed", err)
		}
		if count > 0 {
			return nil
		}

		position := 0
		seen := map[string]bool{}
		districts := make([]districtModel, 0, len(seed.Districts))
		addDistrict := func(name string) {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				return
			}
			seen[name] = true
			districts = append(districts, districtModel{Name: name, Position: position})
			position++
		}
		for _, name := range seed.Districts {
			addDistrict(name)
		}
		candidates := make([]candidateModel, 0, len(seed.Candidates))
		for i, candidate := range seed.Candidates {
			if strings.TrimSpace(candidate.ID) == "" || strings.TrimSpace(candidate.District) == "" {
				continue
			}
			addDistrict(candidate.District)
			row := candidateModelFromEntity(candidate)
			row.Position = i
			candidates = append(candidates, row)
		}
		voters := make([]voterModel, 0, len(seed.Voters))
		for i, voter := range seed.Voters {
			if strings.TrimSpace(voter.ID) == "" {
				continue
			}
			row := voterModelFromEntity(voter)
			row.Position = i
			voters = append(voters, row)
		}

		onConflict := clause.OnConflict{DoNothing: true}
		if len(districts) > 0 {
			if err := tx.Clauses(onConflict).Create(&districts).Error; err != nil {
				return r.logError("election_repo_seed_districts_failed", err)
			}
		}
		if len(candidates) > 0 {
			if err := tx.Clauses(onConflict).Create(&candidates).Error; err != nil {
				return r.logError("election_repo_seed_candidates_failed", err)
			}
		}
		if len(voters) > 0 {
			if err := tx.Clauses(onConflict).Create(&voters).Error; err != nil {
				return r.logError("election_repo_seed_voters_failed", err)
			}
		}
		r.logger.Info("election tables seeded",
			"event", "election_repo_seeded",
			"module", "election/voting-coordinator",
			"layer", "adapter",
			"districts", len(districts),
			"candidates", len(candidates),
			"voters", len(voters),
		)
		return nil
	})
}

func (r *Repository) Districts(ctx context.Context) ([]string, error) {
	var rows []districtModel
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_districts_failed", err)
	}
	items := make([]string, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Name)
	}
	return items, nil
}

func (r *Repository) CandidatesOf(ctx context.Context, district string) ([]entities.Candidate, error) {
	var rows []candidateModel
	if err := r.db.WithContext(ctx).
		Where("district = ?", strings.TrimSpace(district)).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_candidates_failed", err, "district", district)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) VotersOf(ctx context.Context, district string) ([]entities.Voter, error) {
	var rows []voterModel
	if err := r.db.WithContext(ctx).
		Where("district = ?", strings.TrimSpace(district)).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_voters_failed", err, "district", district)
	}
	items := make([]entities.Voter, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetVoter(ctx context.Context, voterID string) (entities.Voter, error) {
	return findVoter(r.db.WithContext(ctx), strings.TrimSpace(voterID), r.logError)
}

func (r *Repository) ResultsState(ctx context.Context) (entities.ResultsState, error) {
	return findState(r.db.WithContext(ctx), false, r.logError)
}

func (r *Repository) WithinTx(ctx context.Context, fn func(tx ports.ElectionTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txView{db: tx, logError: r.logError})
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ? AND status = ?", strings.TrimSpace(outboxID), outbox.StatusPending).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("election_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election/voting-coordinator",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("election repository operation failed", fields...)
	return err
}

type logErrorFunc func(event string, err error, attrs ...any) error

// txView runs ElectionTx operations on a single database transaction.
// Mutations are conditional updates so concurrent transactions on Postgres
// cannot double count a ballot even without the caller's voter lock.
type txView struct {
	db       *gorm.DB
	logError logErrorFunc
}

func (t *txView) ResultsState() (entities.ResultsState, error) {
	return findState(t.db, true, t.logError)
}

func (t *txView) HasDistrict(district string) (bool, error) {
	var count int64
	if err := t.db.Model(&districtModel{}).Where("name = ?", district).Count(&count).Error; err != nil {
		return false, t.logError("election_repo_has_district_failed", err, "district", district)
	}
	return count > 0, nil
}

func (t *txView) Voter(voterID string) (entities.Voter, error) {
	return findVoter(t.db, voterID, t.logError)
}

func (t *txView) Candidate(district string, candidateID string) (entities.Candidate, bool, error) {
	var row candidateModel
	err := t.db.
		Where("district = ? AND candidate_id = ?", district, candidateID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Candidate{}, false, nil
		}
		return entities.Candidate{}, false, t.logError("election_repo_get_candidate_failed", err,
			"district", district,
			"candidate_id", candidateID,
		)
	}
	return row.toEntity(), true, nil
}

func (t *txView) ApplyVote(voterID string, candidateID string) (entities.Voter, error) {
	voter, err := findVoter(t.db, voterID, t.logError)
	if err != nil {
		return entities.Voter{}, err
	}
	flipped := t.db.Model(&voterModel{}).
		Where("voter_id = ? AND has_voted = ?", voterID, false).
		Update("has_voted", true)
	if flipped.Error != nil {
		return entities.Voter{}, t.logError("election_repo_flip_has_voted_failed", flipped.Error, "voter_id", voterID)
	}
	if flipped.RowsAffected == 0 {
		return entities.Voter{}, domainerrors.ErrAlreadyVoted
	}
	tallied := t.db.Model(&candidateModel{}).
		Where("district = ? AND candidate_id = ?", voter.District, candidateID).
		UpdateColumn("votes", gorm.Expr("votes + ?", 1))
	if tallied.Error != nil {
		return entities.Voter{}, t.logError("election_repo_tally_vote_failed", tallied.Error,
			"district", voter.District,
			"candidate_id", candidateID,
		)
	}
	if tallied.RowsAffected == 0 {
		return entities.Voter{}, domainerrors.ErrCandidateNotFound
	}
	voter.HasVoted = true
	return voter, nil
}

func (t *txView) SetWinner(district string, candidateID string) (bool, error) {
	if _, found, err := t.Candidate(district, candidateID); err != nil || !found {
		return false, err
	}
	result := t.db.Model(&candidateModel{}).
		Where("district = ?", district).
		UpdateColumn("winner", gorm.Expr("(candidate_id = ?)", candidateID))
	if result.Error != nil {
		return false, t.logError("election_repo_set_winner_failed", result.Error,
			"district", district,
			"candidate_id", candidateID,
		)
	}
	return true, nil
}

func (t *txView) Publish(at time.Time) (bool, error) {
	result := t.db.Model(&stateModel{}).
		Where("id = ? AND published = ?", stateRowID, false).
		Updates(map[string]any{
			"published":    true,
			"published_at": at.UTC(),
		})
	if result.Error != nil {
		return false, t.logError("election_repo_publish_failed", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (t *txView) AssignDistrict(voterID string, district string) (entities.Voter, error) {
	known, err := t.HasDistrict(district)
	if err != nil {
		return entities.Voter{}, err
	}
	if !known {
		return entities.Voter{}, domainerrors.ErrUnknownDistrict
	}
	result := t.db.Model(&voterModel{}).
		Where("voter_id = ? AND (has_voted = ? OR district = ?)", voterID, false, district).
		Update("district", district)
	if result.Error != nil {
		return entities.Voter{}, t.logError("election_repo_assign_district_failed", result.Error,
			"voter_id", voterID,
			"district", district,
		)
	}
	voter, err := findVoter(t.db, voterID, t.logError)
	if err != nil {
		return entities.Voter{}, err
	}
	if result.RowsAffected == 0 && voter.District != district {
		return entities.Voter{}, domainerrors.ErrDistrictLocked
	}
	return voter, nil
}

func (t *txView) AppendOutbox(event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    event.OccurredAt.UTC(),
	}
	if err := t.db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return t.logError("election_repo_append_outbox_failed", err,
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
	}
	return nil
}

func findVoter(db *gorm.DB, voterID string, logError logErrorFunc) (entities.Voter, error) {
	var row voterModel
	err := db.Where("voter_id = ?", voterID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Voter{}, domainerrors.ErrVoterNotFound
		}
		return entities.Voter{}, logError("election_repo_get_voter_failed", err, "voter_id", voterID)
	}
	return row.toEntity(), nil
}

// findState reads the single state row. With forUpdate on Postgres the row
// stays locked until the transaction ends, which orders ballots against
// publication.
func findState(db *gorm.DB, forUpdate bool, logError logErrorFunc) (entities.ResultsState, error) {
	query := db.Where("id = ?", stateRowID)
	if forUpdate && db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row stateModel
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ResultsState{}, nil
		}
		return entities.ResultsState{}, logError("election_repo_get_state_failed", err)
	}
	state := entities.ResultsState{Published: row.Published}
	if row.PublishedAt != nil {
		at := row.PublishedAt.UTC()
		state.PublishedAt = &at
	}
	return state, nil
}

type districtModel struct {
	Name     string `gorm:"column:name;primaryKey"`
	Position int    `gorm:"column:position"`
}

func (districtModel) TableName() string {
	return "election_districts"
}

type candidateModel struct {
	District    string `gorm:"column:district;primaryKey"`
	CandidateID string `gorm:"column:candidate_id;primaryKey"`
	Name        string `gorm:"column:name"`
	Image       string `gorm:"column:image"`
	Position    int    `gorm:"column:position"`
	Votes       int    `gorm:"column:votes"`
	Winner      bool   `gorm:"column:winner"`
}

func (candidateModel) TableName() string {
	return "election_candidates"
}

func candidateModelFromEntity(c entities.Candidate) candidateModel {
	return candidateModel{
		District:    strings.TrimSpace(c.District),
		CandidateID: strings.TrimSpace(c.ID),
		Name:        c.Name,
		Image:       c.Image,
		Votes:       c.Votes,
		Winner:      c.Winner,
	}
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		ID:       m.CandidateID,
		Name:     m.Name,
		District: m.District,
		Image:    m.Image,
		Votes:    m.Votes,
		Winner:   m.Winner,
	}
}

type voterModel struct {
	VoterID  string `gorm:"column:voter_id;primaryKey"`
	Phone    string `gorm:"column:phone;index"`
	Name     string `gorm:"column:name"`
	District string `gorm:"column:district;index"`
	HasVoted bool   `gorm:"column:has_voted"`
	Position int    `gorm:"column:position"`
}

func (voterModel) TableName() string {
	return "election_voters"
}

func voterModelFromEntity(v entities.Voter) voterModel {
	return voterModel{
		VoterID:  strings.TrimSpace(v.ID),
		Phone:    strings.TrimSpace(v.Phone),
		Name:     v.Name,
		District: strings.TrimSpace(v.District),
		HasVoted: v.HasVoted,
	}
}

func (m voterModel) toEntity() entities.Voter {
	return entities.Voter{
		ID:       m.VoterID,
		Phone:    m.Phone,
		Name:     m.Name,
		District: m.District,
		HasVoted: m.HasVoted,
	}
}

type stateModel struct {
	ID          int        `gorm:"column:id;primaryKey;autoIncrement:false"`
	Published   bool       `gorm:"column:published"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (stateModel) TableName() string {
	return "election_state"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "election_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	_ ports.ElectionStore    = (*Repository)(nil)
	_ ports.OutboxRepository = (*Repository)(nil)
	_ ports.ElectionTx       = (*txView)(nil)
)
