package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TemplateRepository provides persistence for schedule templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = "id, name, description, active, created_at, updated_at"
const templateEntryColumns = "id, template_id, class_id, subject_id, teacher_id, room_id, time_slot_id, notes, created_at"

// List returns templates, optionally active only.
func (r *TemplateRepository) List(ctx context.Context, activeOnly bool) ([]models.ScheduleTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_templates`, templateColumns)
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY name ASC"

	var templates []models.ScheduleTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// FindByID loads a template by id.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.ScheduleTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_templates WHERE id = $1`, templateColumns)
	var tpl models.ScheduleTemplate
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Create stores a new template.
func (r *TemplateRepository) Create(ctx context.Context, tpl *models.ScheduleTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now
	tpl.Active = true

	const query = `INSERT INTO schedule_templates (id, name, description, active, created_at, updated_at) VALUES (:id, :name, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Deactivate retires a template.
func (r *TemplateRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE schedule_templates SET active = false, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	return nil
}

// AddEntry appends one draft entry to a template. Draft entries are not
// validated against the live uniqueness invariants.
func (r *TemplateRepository) AddEntry(ctx context.Context, entry *models.TemplateEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO template_entries (id, template_id, class_id, subject_id, teacher_id, room_id, time_slot_id, notes, created_at) VALUES (:id, :template_id, :class_id, :subject_id, :teacher_id, :room_id, :time_slot_id, :notes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("add template entry: %w", err)
	}
	return nil
}

// ListEntries returns the entries of a template in insertion order, so
// template application stays deterministic.
func (r *TemplateRepository) ListEntries(ctx context.Context, templateID string) ([]models.TemplateEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM template_entries WHERE template_id = $1 ORDER BY created_at ASC, id ASC`, templateEntryColumns)
	var entries []models.TemplateEntry
	if err := r.db.SelectContext(ctx, &entries, query, templateID); err != nil {
		return nil, fmt.Errorf("list template entries: %w", err)
	}
	return entries, nil
}
