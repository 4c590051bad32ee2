package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type conflictRepository interface {
	Record(ctx context.Context, exec sqlx.ExtContext, conflict *models.ScheduleConflict) error
	FindByID(ctx context.Context, id string) (*models.ScheduleConflict, error)
	ListUnresolved(ctx context.Context, scheduleID string) ([]models.ScheduleConflict, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.ScheduleConflict, error)
	Resolve(ctx context.Context, id, resolverID, note string) error
}

// RecordConflictRequest describes a manually recorded conflict.
type RecordConflictRequest struct {
	ScheduleID   string              `json:"schedule_id" validate:"required"`
	ConflictType models.ConflictType `json:"conflict_type" validate:"required,oneof=ROOM TEACHER CLASS"`
	EntryAID     string              `json:"entry_a_id" validate:"required"`
	EntryBID     string              `json:"entry_b_id" validate:"required,nefield=EntryAID"`
	Description  string              `json:"description"`
}

// ResolveConflictRequest closes a ledger row.
type ResolveConflictRequest struct {
	Note string `json:"note"`
}

// ConflictService owns the conflict ledger lifecycle. Resolution never
// touches the underlying entries: callers move or deactivate entries through
// the assignment engine first, then close the ledger row explicitly.
type ConflictService struct {
	repo      conflictRepository
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConflictService instantiates ConflictService.
func NewConflictService(repo conflictRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{repo: repo, metrics: metrics, validator: validate, logger: logger}
}

// Record writes one ledger row. Recording the same unresolved ordered pair
// and type twice keeps the original row.
func (s *ConflictService) Record(ctx context.Context, req RecordConflictRequest) (*models.ScheduleConflict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict payload")
	}

	conflict := models.ScheduleConflict{
		ScheduleID:   req.ScheduleID,
		ConflictType: req.ConflictType,
		EntryAID:     req.EntryAID,
		EntryBID:     req.EntryBID,
		Description:  req.Description,
	}
	if err := s.repo.Record(ctx, nil, &conflict); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record conflict")
	}
	return &conflict, nil
}

// Resolve closes a conflict. Resolving an already-resolved row is a state
// error, so stale "resolved" flags never go unnoticed.
func (s *ConflictService) Resolve(ctx context.Context, conflictID, resolverID, note string) (*models.ScheduleConflict, error) {
	conflict, err := s.repo.FindByID(ctx, conflictID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conflict not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflict")
	}
	if conflict.Resolved {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "conflict already resolved")
	}

	if err := s.repo.Resolve(ctx, conflictID, resolverID, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve conflict")
	}
	if s.metrics != nil {
		s.metrics.ObserveConflictResolved(string(conflict.ConflictType))
	}

	resolved, err := s.repo.FindByID(ctx, conflictID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload conflict")
	}
	return resolved, nil
}

// ListUnresolved returns the open conflicts of a schedule.
func (s *ConflictService) ListUnresolved(ctx context.Context, scheduleID string) ([]models.ScheduleConflict, error) {
	conflicts, err := s.repo.ListUnresolved(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conflicts")
	}
	return conflicts, nil
}

// ListBySchedule returns the full ledger, resolved rows included.
func (s *ConflictService) ListBySchedule(ctx context.Context, scheduleID string) ([]models.ScheduleConflict, error) {
	conflicts, err := s.repo.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conflicts")
	}
	return conflicts, nil
}
