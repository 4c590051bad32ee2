package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timeSlotRepository interface {
	List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, error)
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
	ExistsDuplicate(ctx context.Context, dayOfWeek, startTime, endTime string) (bool, error)
	Create(ctx context.Context, slot *models.TimeSlot) error
	Deactivate(ctx context.Context, id string) error
}

// CreateTimeSlotRequest describes a new catalog slot.
type CreateTimeSlotRequest struct {
	DayOfWeek string `json:"day_of_week" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// TimeSlotService manages the time-slot catalog. Slots are append-only:
// once created they can only be deactivated, never edited, so entries keep
// a stable reference.
type TimeSlotService struct {
	repo      timeSlotRepository
	policy    config.SchedulingConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimeSlotService instantiates TimeSlotService.
func NewTimeSlotService(repo timeSlotRepository, policy config.SchedulingConfig, validate *validator.Validate, logger *zap.Logger) *TimeSlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeSlotService{repo: repo, policy: policy, validator: validate, logger: logger}
}

// List returns catalog slots in week order.
func (s *TimeSlotService) List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, error) {
	slots, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time slots")
	}
	return slots, nil
}

// Get returns one slot.
func (s *TimeSlotService) Get(ctx context.Context, id string) (*models.TimeSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slot")
	}
	return slot, nil
}

// Create validates and stores a new slot. Zero-length and inverted windows
// are rejected, weekend days are gated by policy, and an identical active
// tuple is treated as a duplicate.
func (s *TimeSlotService) Create(ctx context.Context, req CreateTimeSlotRequest) (*models.TimeSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot payload")
	}

	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:MM")
	}
	if !start.Before(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}

	if models.WeekendDays[req.DayOfWeek] && !s.policy.AllowWeekendClasses {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekend slots are disabled by scheduling policy")
	}

	exists, err := s.repo.ExistsDuplicate(ctx, req.DayOfWeek, req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate time slot")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an identical active time slot already exists")
	}

	slot := models.TimeSlot{
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := s.repo.Create(ctx, &slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create time slot")
	}

	s.logger.Info("time slot created",
		zap.String("time_slot_id", slot.ID),
		zap.String("day_of_week", slot.DayOfWeek),
		zap.String("start_time", slot.StartTime))
	return &slot, nil
}

// Deactivate retires a slot. Existing entries that reference it are left
// untouched; new assignments against the slot are refused by the engine.
func (s *TimeSlotService) Deactivate(ctx context.Context, id string) error {
	slot, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !slot.Active {
		return appErrors.Clone(appErrors.ErrStateConflict, "time slot already inactive")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate time slot")
	}
	return nil
}
