package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ChangeRepository provides append-only persistence for the change log.
// There is deliberately no update or delete path.
type ChangeRepository struct {
	db *sqlx.DB
}

// NewChangeRepository creates a new change repository.
func NewChangeRepository(db *sqlx.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

const changeColumns = "id, schedule_id, entry_id, change_type, old_values, new_values, actor_id, reason, created_at"

func (r *ChangeRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create appends one change row using the provided executor, so the row
// commits atomically with the entry write it documents.
func (r *ChangeRepository) Create(ctx context.Context, exec sqlx.ExtContext, change *models.ScheduleChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO schedule_changes (id, schedule_id, entry_id, change_type, old_values, new_values, actor_id, reason, created_at) VALUES (:id, :schedule_id, :entry_id, :change_type, :old_values, :new_values, :actor_id, :reason, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, change); err != nil {
		return fmt.Errorf("record schedule change: %w", err)
	}
	return nil
}

// ListBySchedule returns the change history of a schedule, newest first.
func (r *ChangeRepository) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]models.ScheduleChange, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM schedule_changes WHERE schedule_id = $1 ORDER BY created_at DESC LIMIT %d`, changeColumns, limit)
	var changes []models.ScheduleChange
	if err := r.db.SelectContext(ctx, &changes, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule changes: %w", err)
	}
	return changes, nil
}

// ListByEntry returns every change recorded against one entry, oldest first.
func (r *ChangeRepository) ListByEntry(ctx context.Context, entryID string) ([]models.ScheduleChange, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_changes WHERE entry_id = $1 ORDER BY created_at ASC`, changeColumns)
	var changes []models.ScheduleChange
	if err := r.db.SelectContext(ctx, &changes, query, entryID); err != nil {
		return nil, fmt.Errorf("list entry changes: %w", err)
	}
	return changes, nil
}
