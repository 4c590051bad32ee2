package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type scheduleRepoStub struct {
	items map[string]*models.Schedule
}

func newScheduleRepoStub() *scheduleRepoStub {
	return &scheduleRepoStub{items: map[string]*models.Schedule{}}
}

func (s *scheduleRepoStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	var out []models.Schedule
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (s *scheduleRepoStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (s *scheduleRepoStub) Create(ctx context.Context, schedule *models.Schedule) error {
	schedule.ID = fmt.Sprintf("sched-%d", len(s.items)+1)
	schedule.Active = true
	cp := *schedule
	s.items[schedule.ID] = &cp
	return nil
}

func (s *scheduleRepoStub) Update(ctx context.Context, schedule *models.Schedule) error {
	cp := *schedule
	s.items[schedule.ID] = &cp
	return nil
}

func (s *scheduleRepoStub) Deactivate(ctx context.Context, id string) error {
	s.items[id].Active = false
	return nil
}

func scheduleReq() CreateScheduleRequest {
	return CreateScheduleRequest{
		Name:           "Semester 1 2026/2027",
		Type:           "REGULAR",
		AcademicYearID: "ay-2026",
		StartDate:      time.Date(2026, 7, 13, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC),
	}
}

func TestScheduleCreate(t *testing.T) {
	svc := NewScheduleService(newScheduleRepoStub(), nil, zap.NewNop())

	sched, err := svc.Create(context.Background(), scheduleReq())
	require.NoError(t, err)
	assert.True(t, sched.Active)
	assert.Equal(t, models.ScheduleType("REGULAR"), sched.Type)
}

func TestScheduleCreateRejectsInvertedDates(t *testing.T) {
	svc := NewScheduleService(newScheduleRepoStub(), nil, zap.NewNop())

	req := scheduleReq()
	req.StartDate, req.EndDate = req.EndDate, req.StartDate
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleCreateRejectsUnknownType(t *testing.T) {
	svc := NewScheduleService(newScheduleRepoStub(), nil, zap.NewNop())

	req := scheduleReq()
	req.Type = "WEEKLY"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleUpdatePartial(t *testing.T) {
	svc := NewScheduleService(newScheduleRepoStub(), nil, zap.NewNop())
	ctx := context.Background()

	sched, err := svc.Create(ctx, scheduleReq())
	require.NoError(t, err)

	name := "Semester 1 (revised)"
	updated, err := svc.Update(ctx, sched.ID, UpdateScheduleRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, sched.Type, updated.Type)
}

func TestScheduleUpdateRejectsInvertedDates(t *testing.T) {
	svc := NewScheduleService(newScheduleRepoStub(), nil, zap.NewNop())
	ctx := context.Background()

	sched, err := svc.Create(ctx, scheduleReq())
	require.NoError(t, err)

	// Moving end_date before the existing start_date must fail even though
	// start_date itself is untouched.
	bad := sched.StartDate.AddDate(0, -1, 0)
	_, err = svc.Update(ctx, sched.ID, UpdateScheduleRequest{EndDate: &bad})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleUpdateInactive(t *testing.T) {
	svc := NewScheduleService(newScheduleRepoStub(), nil, zap.NewNop())
	ctx := context.Background()

	sched, err := svc.Create(ctx, scheduleReq())
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, sched.ID))

	name := "too late"
	_, err = svc.Update(ctx, sched.ID, UpdateScheduleRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestScheduleDeactivateTwice(t *testing.T) {
	svc := NewScheduleService(newScheduleRepoStub(), nil, zap.NewNop())
	ctx := context.Background()

	sched, err := svc.Create(ctx, scheduleReq())
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, sched.ID))
	err = svc.Deactivate(ctx, sched.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestScheduleListPagination(t *testing.T) {
	repo := newScheduleRepoStub()
	svc := NewScheduleService(repo, nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, scheduleReq())
		require.NoError(t, err)
	}

	_, pagination, err := svc.List(ctx, models.ScheduleFilter{Page: 0, PageSize: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 3, pagination.TotalCount)
}
