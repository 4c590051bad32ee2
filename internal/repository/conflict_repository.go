package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ConflictRepository provides persistence for the conflict ledger.
type ConflictRepository struct {
	db *sqlx.DB
}

// NewConflictRepository creates a new conflict repository.
func NewConflictRepository(db *sqlx.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

const conflictColumns = "id, schedule_id, conflict_type, entry_a_id, entry_b_id, description, resolved, resolved_by, resolved_at, created_at"

func (r *ConflictRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Record inserts one conflict row. A partial unique index on the unresolved
// ordered (conflict_type, entry_a_id, entry_b_id) triple makes this
// idempotent: recording the same pair twice while unresolved keeps the
// original row, and the caller gets its id back.
func (r *ConflictRepository) Record(ctx context.Context, exec sqlx.ExtContext, conflict *models.ScheduleConflict) error {
	if conflict.ID == "" {
		conflict.ID = uuid.NewString()
	}
	if conflict.CreatedAt.IsZero() {
		conflict.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO schedule_conflicts (id, schedule_id, conflict_type, entry_a_id, entry_b_id, description, resolved, created_at) VALUES (:id, :schedule_id, :conflict_type, :entry_a_id, :entry_b_id, :description, false, :created_at) ON CONFLICT (conflict_type, entry_a_id, entry_b_id) WHERE NOT resolved DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, conflict)
	if err != nil {
		return fmt.Errorf("record conflict: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		const lookup = `SELECT id FROM schedule_conflicts WHERE conflict_type = $1 AND entry_a_id = $2 AND entry_b_id = $3 AND NOT resolved`
		if err := sqlx.GetContext(ctx, r.exec(exec), &conflict.ID, lookup, conflict.ConflictType, conflict.EntryAID, conflict.EntryBID); err != nil {
			return fmt.Errorf("load existing conflict: %w", err)
		}
	}
	return nil
}

// FindByID loads a conflict by id.
func (r *ConflictRepository) FindByID(ctx context.Context, id string) (*models.ScheduleConflict, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_conflicts WHERE id = $1`, conflictColumns)
	var conflict models.ScheduleConflict
	if err := r.db.GetContext(ctx, &conflict, query, id); err != nil {
		return nil, err
	}
	return &conflict, nil
}

// ListUnresolved returns the open conflicts of a schedule, oldest first.
func (r *ConflictRepository) ListUnresolved(ctx context.Context, scheduleID string) ([]models.ScheduleConflict, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_conflicts WHERE schedule_id = $1 AND NOT resolved ORDER BY created_at ASC`, conflictColumns)
	var conflicts []models.ScheduleConflict
	if err := r.db.SelectContext(ctx, &conflicts, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list unresolved conflicts: %w", err)
	}
	return conflicts, nil
}

// ListBySchedule returns the full ledger of a schedule, resolved included.
func (r *ConflictRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.ScheduleConflict, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_conflicts WHERE schedule_id = $1 ORDER BY created_at ASC`, conflictColumns)
	var conflicts []models.ScheduleConflict
	if err := r.db.SelectContext(ctx, &conflicts, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return conflicts, nil
}

// Resolve closes a ledger row. Rows are never deleted.
func (r *ConflictRepository) Resolve(ctx context.Context, id, resolverID, note string) error {
	const query = `UPDATE schedule_conflicts SET resolved = true, resolved_by = $2, resolved_at = $3, description = description || $4 WHERE id = $1`
	suffix := ""
	if note != "" {
		suffix = " | resolution: " + note
	}
	if _, err := r.db.ExecContext(ctx, query, id, resolverID, time.Now().UTC(), suffix); err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	return nil
}
