package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Deactivate(ctx context.Context, id string) error
}

// CreateScheduleRequest describes a new schedule container.
type CreateScheduleRequest struct {
	Name           string    `json:"name" validate:"required"`
	Type           string    `json:"type" validate:"required,oneof=REGULAR EXAM SPECIAL HOLIDAY"`
	AcademicYearID string    `json:"academic_year_id" validate:"required"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
}

// UpdateScheduleRequest carries partial schedule updates.
type UpdateScheduleRequest struct {
	Name      *string    `json:"name"`
	Type      *string    `json:"type" validate:"omitempty,oneof=REGULAR EXAM SPECIAL HOLIDAY"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// ScheduleService manages schedule containers.
type ScheduleService struct {
	repo      scheduleRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, validator: validate, logger: logger}
}

// List returns schedules with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return schedules, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	sched, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return sched, nil
}

// Create validates and stores a new schedule.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}

	sched := models.Schedule{
		Name:           req.Name,
		Type:           models.ScheduleType(req.Type),
		AcademicYearID: req.AcademicYearID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}
	if err := s.repo.Create(ctx, &sched); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}

	s.logger.Info("schedule created",
		zap.String("schedule_id", sched.ID),
		zap.String("type", string(sched.Type)),
		zap.String("academic_year_id", sched.AcademicYearID))
	return &sched, nil
}

// Update applies partial changes to an active schedule.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	sched, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sched.Active {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "schedule is inactive")
	}

	if req.Name != nil {
		sched.Name = *req.Name
	}
	if req.Type != nil {
		sched.Type = models.ScheduleType(*req.Type)
	}
	if req.StartDate != nil {
		sched.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		sched.EndDate = *req.EndDate
	}
	if sched.EndDate.Before(sched.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}

	if err := s.repo.Update(ctx, sched); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	return sched, nil
}

// Deactivate retires a schedule. Its entries stay readable for history but
// the engine refuses new assignments against it.
func (s *ScheduleService) Deactivate(ctx context.Context, id string) error {
	sched, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !sched.Active {
		return appErrors.Clone(appErrors.ErrStateConflict, "schedule already inactive")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate schedule")
	}
	return nil
}
