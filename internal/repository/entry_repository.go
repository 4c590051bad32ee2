package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// EntryRepository provides persistence for schedule entries. All writes run
// through InTx so the conflict scan and the insert/update commit together.
type EntryRepository struct {
	db *sqlx.DB
}

// NewEntryRepository creates a new entry repository.
func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

const entryColumns = "id, schedule_id, class_id, subject_id, teacher_id, room_id, time_slot_id, active, notes, created_at, updated_at"

func (r *EntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InTx runs fn inside one transaction. Contention failures surfaced by
// Postgres are translated to the retryable concurrent-write error.
func (r *EntryRepository) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entry tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return translateWriteError(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entry tx: %w", translateWriteError(err))
	}
	return nil
}

// LockSlot serializes writers on the logical (schedule, time slot) key. The
// advisory lock is transaction-scoped: it is released at commit or rollback,
// so writers contend only for the duration of one scan+write.
func (r *EntryRepository) LockSlot(ctx context.Context, tx *sqlx.Tx, scheduleID, timeSlotID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`, scheduleID, timeSlotID); err != nil {
		return fmt.Errorf("lock slot %s/%s: %w", scheduleID, timeSlotID, err)
	}
	return nil
}

// ListActiveBySlot returns the active entries of one schedule in one slot.
// At most a handful of rows per slot, so this is a bounded lookup.
func (r *EntryRepository) ListActiveBySlot(ctx context.Context, exec sqlx.ExtContext, scheduleID, timeSlotID string) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE schedule_id = $1 AND time_slot_id = $2 AND active`, entryColumns)
	var entries []models.ScheduleEntry
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, scheduleID, timeSlotID); err != nil {
		return nil, fmt.Errorf("list entries by slot: %w", err)
	}
	return entries, nil
}

// ListActive returns the active entries of a schedule with optional filters.
func (r *EntryRepository) ListActive(ctx context.Context, scheduleID string, filter models.EntryFilter) ([]models.ScheduleEntry, error) {
	base := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE schedule_id = $1 AND active`, entryColumns)
	args := []interface{}{scheduleID}
	var conditions []string

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.TimeSlotID != "" {
		conditions = append(conditions, fmt.Sprintf("time_slot_id = $%d", len(args)+1))
		args = append(args, filter.TimeSlotID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	base += " ORDER BY created_at ASC"

	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, base, args...); err != nil {
		return nil, fmt.Errorf("list active entries: %w", err)
	}
	return entries, nil
}

// FindByID loads an entry by id, active or not.
func (r *EntryRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE id = $1`, entryColumns)
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create inserts an entry using the provided executor.
func (r *EntryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry.Active = true

	const query = `INSERT INTO schedule_entries (id, schedule_id, class_id, subject_id, teacher_id, room_id, time_slot_id, active, notes, created_at, updated_at) VALUES (:id, :schedule_id, :class_id, :subject_id, :teacher_id, :room_id, :time_slot_id, :active, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("create schedule entry: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an entry.
func (r *EntryRepository) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_entries SET class_id = :class_id, subject_id = :subject_id, teacher_id = :teacher_id, room_id = :room_id, time_slot_id = :time_slot_id, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("update schedule entry: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an entry using the provided executor. Conflict
// rows referencing it remain.
func (r *EntryRepository) Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `UPDATE schedule_entries SET active = false, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate schedule entry: %w", err)
	}
	return nil
}
