package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type templateRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.ScheduleTemplate, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleTemplate, error)
	Create(ctx context.Context, tpl *models.ScheduleTemplate) error
	Deactivate(ctx context.Context, id string) error
	AddEntry(ctx context.Context, entry *models.TemplateEntry) error
	ListEntries(ctx context.Context, templateID string) ([]models.TemplateEntry, error)
}

// assignmentEngine is the slice of the assignment service the template
// engine replays entries through. There is no invariant bypass: every
// template row goes through the same conflict scan as a direct create.
type assignmentEngine interface {
	CreateEntry(ctx context.Context, req CreateEntryRequest, actorID *string) (*models.ScheduleEntry, []models.ScheduleConflict, error)
	ListActiveEntries(ctx context.Context, scheduleID string, filter models.EntryFilter) ([]models.ScheduleEntry, error)
}

// CreateTemplateRequest describes a new template.
type CreateTemplateRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// AddTemplateEntryRequest appends a draft entry to a template.
type AddTemplateEntryRequest struct {
	ClassID    string `json:"class_id" validate:"required"`
	SubjectID  string `json:"subject_id" validate:"required"`
	TeacherID  string `json:"teacher_id" validate:"required"`
	RoomID     string `json:"room_id" validate:"required"`
	TimeSlotID string `json:"time_slot_id" validate:"required"`
	Notes      string `json:"notes"`
}

// TemplateDetail bundles a template with its entries.
type TemplateDetail struct {
	models.ScheduleTemplate
	Entries []models.TemplateEntry `json:"entries"`
}

// TemplateService stores reusable assignment patterns and replays them into
// live schedules through the assignment engine.
type TemplateService struct {
	repo      templateRepository
	engine    assignmentEngine
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTemplateService instantiates TemplateService.
func NewTemplateService(repo templateRepository, engine assignmentEngine, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{repo: repo, engine: engine, metrics: metrics, validator: validate, logger: logger}
}

// Create stores a new empty template.
func (s *TemplateService) Create(ctx context.Context, req CreateTemplateRequest) (*models.ScheduleTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}

	tpl := models.ScheduleTemplate{Name: req.Name, Description: req.Description}
	if err := s.repo.Create(ctx, &tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	return &tpl, nil
}

// AddEntry appends one draft entry. Draft entries skip the live invariants;
// they are validated only when applied.
func (s *TemplateService) AddEntry(ctx context.Context, templateID string, req AddTemplateEntryRequest) (*models.TemplateEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template entry payload")
	}

	tpl, err := s.findTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tpl.Active {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "template is inactive")
	}

	entry := models.TemplateEntry{
		TemplateID: tpl.ID,
		ClassID:    req.ClassID,
		SubjectID:  req.SubjectID,
		TeacherID:  req.TeacherID,
		RoomID:     req.RoomID,
		TimeSlotID: req.TimeSlotID,
		Notes:      req.Notes,
	}
	if err := s.repo.AddEntry(ctx, &entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add template entry")
	}
	return &entry, nil
}

// List returns templates.
func (s *TemplateService) List(ctx context.Context, activeOnly bool) ([]models.ScheduleTemplate, error) {
	templates, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// Get returns a template with its entries.
func (s *TemplateService) Get(ctx context.Context, templateID string) (*TemplateDetail, error) {
	tpl, err := s.findTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, templateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list template entries")
	}
	return &TemplateDetail{ScheduleTemplate: *tpl, Entries: entries}, nil
}

// Deactivate retires a template.
func (s *TemplateService) Deactivate(ctx context.Context, templateID string) error {
	if _, err := s.findTemplate(ctx, templateID); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, templateID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate template")
	}
	return nil
}

// Apply replays a template into a live schedule, one entry at a time. Rows
// identical to an already-active entry are skipped; rows that collide are
// handled by the engine's policy and tallied under conflicts. Application is
// not atomic: a cancelled context stops between entries and everything
// already applied stays applied.
func (s *TemplateService) Apply(ctx context.Context, templateID, scheduleID string, actorID *string) (*models.TemplateApplication, error) {
	tpl, err := s.findTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tpl.Active {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "template is inactive")
	}

	entries, err := s.repo.ListEntries(ctx, templateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list template entries")
	}

	var timer func()
	if s.metrics != nil {
		timer = s.metrics.TemplateApplyTimer()
	}

	result := &models.TemplateApplication{TemplateID: templateID, ScheduleID: scheduleID}
	for _, row := range entries {
		if err := ctx.Err(); err != nil {
			s.logger.Info("template application cancelled",
				zap.String("template_id", templateID),
				zap.String("schedule_id", scheduleID),
				zap.Int("applied", result.Applied))
			break
		}

		dup, err := s.isDuplicate(ctx, scheduleID, row)
		if err != nil {
			return result, err
		}
		if dup {
			result.Skipped = append(result.Skipped, row.ID)
			continue
		}

		_, conflicts, err := s.engine.CreateEntry(ctx, CreateEntryRequest{
			ScheduleID: scheduleID,
			ClassID:    row.ClassID,
			SubjectID:  row.SubjectID,
			TeacherID:  row.TeacherID,
			RoomID:     row.RoomID,
			TimeSlotID: row.TimeSlotID,
			Notes:      row.Notes,
		}, actorID)
		if err != nil {
			appErr := appErrors.FromError(err)
			switch appErr.Code {
			case appErrors.ErrConflict.Code:
				// Rejecting policy: the row was not created.
				result.Conflicts = append(result.Conflicts, row.ID)
			case appErrors.ErrValidation.Code:
				result.Skipped = append(result.Skipped, row.ID)
			default:
				return result, appErr
			}
			continue
		}

		result.Applied++
		if len(conflicts) > 0 {
			result.Conflicts = append(result.Conflicts, row.ID)
		}
	}

	if timer != nil {
		timer()
	}
	return result, nil
}

// isDuplicate reports whether the target schedule already holds an active
// entry with the identical five-tuple.
func (s *TemplateService) isDuplicate(ctx context.Context, scheduleID string, row models.TemplateEntry) (bool, error) {
	existing, err := s.engine.ListActiveEntries(ctx, scheduleID, models.EntryFilter{
		ClassID:    row.ClassID,
		TimeSlotID: row.TimeSlotID,
	})
	if err != nil {
		return false, err
	}
	for _, e := range existing {
		if e.SubjectID == row.SubjectID && e.TeacherID == row.TeacherID && e.RoomID == row.RoomID {
			return true, nil
		}
	}
	return false, nil
}

func (s *TemplateService) findTemplate(ctx context.Context, id string) (*models.ScheduleTemplate, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return tpl, nil
}
