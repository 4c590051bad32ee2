package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimeSlotRepository provides persistence for the time-slot catalog.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository creates a new time-slot repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

const timeSlotColumns = "id, day_of_week, start_time, end_time, active, created_at, updated_at"

// List returns slots ordered by day and start time.
func (r *TimeSlotRepository) List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_slots WHERE 1=1`, timeSlotColumns)
	var args []interface{}
	if filter.DayOfWeek != "" {
		args = append(args, filter.DayOfWeek)
		query += fmt.Sprintf(" AND day_of_week = $%d", len(args))
	}
	if filter.ActiveOnly {
		query += " AND active"
	}
	query += ` ORDER BY array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY'], day_of_week), start_time`

	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// FindByID loads a slot by id.
func (r *TimeSlotRepository) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_slots WHERE id = $1`, timeSlotColumns)
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ExistsDuplicate reports whether an active slot with the same tuple exists.
func (r *TimeSlotRepository) ExistsDuplicate(ctx context.Context, dayOfWeek, startTime, endTime string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM time_slots WHERE day_of_week = $1 AND start_time = $2 AND end_time = $3 AND active)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, dayOfWeek, startTime, endTime); err != nil {
		return false, fmt.Errorf("check duplicate time slot: %w", err)
	}
	return exists, nil
}

// Create stores a new slot.
func (r *TimeSlotRepository) Create(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	slot.Active = true

	const query = `INSERT INTO time_slots (id, day_of_week, start_time, end_time, active, created_at, updated_at) VALUES (:id, :day_of_week, :start_time, :end_time, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create time slot: %w", translateWriteError(err))
	}
	return nil
}

// Deactivate retires a slot without touching entries that reference it.
func (r *TimeSlotRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE time_slots SET active = false, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate time slot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("deactivate time slot %s: no rows affected", id)
	}
	return nil
}
