package service

import (
	"context"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type changeReader interface {
	ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]models.ScheduleChange, error)
	ListByEntry(ctx context.Context, entryID string) ([]models.ScheduleChange, error)
}

// ChangeService exposes the read side of the change log. Writes happen
// inside the assignment engine's transactions only.
type ChangeService struct {
	repo changeReader
}

// NewChangeService instantiates ChangeService.
func NewChangeService(repo changeReader) *ChangeService {
	return &ChangeService{repo: repo}
}

// ListBySchedule returns a schedule's change history, newest first.
func (s *ChangeService) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]models.ScheduleChange, error) {
	changes, err := s.repo.ListBySchedule(ctx, scheduleID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule changes")
	}
	return changes, nil
}

// ListByEntry returns the full audit trail of one entry, oldest first.
func (s *ChangeService) ListByEntry(ctx context.Context, entryID string) ([]models.ScheduleChange, error) {
	changes, err := s.repo.ListByEntry(ctx, entryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list entry changes")
	}
	return changes, nil
}
