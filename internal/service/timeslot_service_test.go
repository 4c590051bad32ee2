package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timeSlotRepoStub struct {
	items map[string]*models.TimeSlot
}

func newTimeSlotRepoStub() *timeSlotRepoStub {
	return &timeSlotRepoStub{items: map[string]*models.TimeSlot{}}
}

func (s *timeSlotRepoStub) List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, error) {
	var out []models.TimeSlot
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *timeSlotRepoStub) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (s *timeSlotRepoStub) ExistsDuplicate(ctx context.Context, dayOfWeek, startTime, endTime string) (bool, error) {
	for _, item := range s.items {
		if item.Active && item.DayOfWeek == dayOfWeek && item.StartTime == startTime && item.EndTime == endTime {
			return true, nil
		}
	}
	return false, nil
}

func (s *timeSlotRepoStub) Create(ctx context.Context, slot *models.TimeSlot) error {
	slot.ID = fmt.Sprintf("slot-%d", len(s.items)+1)
	slot.Active = true
	cp := *slot
	s.items[slot.ID] = &cp
	return nil
}

func (s *timeSlotRepoStub) Deactivate(ctx context.Context, id string) error {
	s.items[id].Active = false
	return nil
}

func newTimeSlotService(policy config.SchedulingConfig) (*TimeSlotService, *timeSlotRepoStub) {
	repo := newTimeSlotRepoStub()
	return NewTimeSlotService(repo, policy, nil, zap.NewNop()), repo
}

func TestTimeSlotCreate(t *testing.T) {
	svc, _ := newTimeSlotService(config.SchedulingConfig{})

	slot, err := svc.Create(context.Background(), CreateTimeSlotRequest{
		DayOfWeek: "MONDAY",
		StartTime: "07:00",
		EndTime:   "07:45",
	})
	require.NoError(t, err)
	assert.True(t, slot.Active)
	assert.NotEmpty(t, slot.ID)
}

func TestTimeSlotCreateRejectsBadWindows(t *testing.T) {
	svc, _ := newTimeSlotService(config.SchedulingConfig{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateTimeSlotRequest
	}{
		{"zero length", CreateTimeSlotRequest{DayOfWeek: "MONDAY", StartTime: "07:00", EndTime: "07:00"}},
		{"inverted", CreateTimeSlotRequest{DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "07:00"}},
		{"not a clock time", CreateTimeSlotRequest{DayOfWeek: "MONDAY", StartTime: "7am", EndTime: "08:00"}},
		{"unknown day", CreateTimeSlotRequest{DayOfWeek: "FUNDAY", StartTime: "07:00", EndTime: "08:00"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestTimeSlotWeekendPolicy(t *testing.T) {
	req := CreateTimeSlotRequest{DayOfWeek: "SATURDAY", StartTime: "07:00", EndTime: "07:45"}

	blocked, _ := newTimeSlotService(config.SchedulingConfig{AllowWeekendClasses: false})
	_, err := blocked.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	allowed, _ := newTimeSlotService(config.SchedulingConfig{AllowWeekendClasses: true})
	_, err = allowed.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestTimeSlotCreateDuplicate(t *testing.T) {
	svc, _ := newTimeSlotService(config.SchedulingConfig{})
	ctx := context.Background()

	req := CreateTimeSlotRequest{DayOfWeek: "TUESDAY", StartTime: "09:00", EndTime: "09:45"}
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = svc.Create(ctx, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimeSlotDeactivateLiftsDuplicateGuard(t *testing.T) {
	svc, repo := newTimeSlotService(config.SchedulingConfig{})
	ctx := context.Background()

	req := CreateTimeSlotRequest{DayOfWeek: "TUESDAY", StartTime: "09:00", EndTime: "09:45"}
	slot, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, slot.ID))

	// The duplicate guard only considers active slots.
	_, err = svc.Create(ctx, req)
	require.NoError(t, err)
	assert.False(t, repo.items[slot.ID].Active)
}

func TestTimeSlotDeactivateTwice(t *testing.T) {
	svc, _ := newTimeSlotService(config.SchedulingConfig{})
	ctx := context.Background()

	slot, err := svc.Create(ctx, CreateTimeSlotRequest{DayOfWeek: "FRIDAY", StartTime: "10:00", EndTime: "10:45"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, slot.ID))
	err = svc.Deactivate(ctx, slot.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestTimeSlotDeactivateMissing(t *testing.T) {
	svc, _ := newTimeSlotService(config.SchedulingConfig{})

	err := svc.Deactivate(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
