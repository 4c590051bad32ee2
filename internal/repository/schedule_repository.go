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

// ScheduleRepository provides persistence for schedule containers.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = "id, name, type, academic_year_id, start_date, end_date, active, created_at, updated_at"

// List returns schedules with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	base := "FROM schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_date DESC LIMIT %d OFFSET %d", scheduleColumns, base, size, offset)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// FindByID loads a schedule by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE id = $1`, scheduleColumns)
	var sched models.Schedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// Create stores a new schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	schedule.Active = true

	const query = `INSERT INTO schedules (id, name, type, academic_year_id, start_date, end_date, active, created_at, updated_at) VALUES (:id, :name, :type, :academic_year_id, :start_date, :end_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update modifies a schedule record.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET name = :name, type = :type, academic_year_id = :academic_year_id, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Deactivate retires a schedule; its entries stay addressable for history.
func (r *ScheduleRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE schedules SET active = false, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate schedule: %w", err)
	}
	return nil
}
