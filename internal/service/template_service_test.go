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
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type templateRepoStub struct {
	templates map[string]*models.ScheduleTemplate
	entries   map[string][]models.TemplateEntry
}

func newTemplateRepoStub() *templateRepoStub {
	return &templateRepoStub{
		templates: map[string]*models.ScheduleTemplate{},
		entries:   map[string][]models.TemplateEntry{},
	}
}

func (s *templateRepoStub) List(ctx context.Context, activeOnly bool) ([]models.ScheduleTemplate, error) {
	var out []models.ScheduleTemplate
	for _, tpl := range s.templates {
		if activeOnly && !tpl.Active {
			continue
		}
		out = append(out, *tpl)
	}
	return out, nil
}

func (s *templateRepoStub) FindByID(ctx context.Context, id string) (*models.ScheduleTemplate, error) {
	tpl, ok := s.templates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *tpl
	return &cp, nil
}

func (s *templateRepoStub) Create(ctx context.Context, tpl *models.ScheduleTemplate) error {
	tpl.ID = fmt.Sprintf("tpl-%d", len(s.templates)+1)
	tpl.Active = true
	cp := *tpl
	s.templates[tpl.ID] = &cp
	return nil
}

func (s *templateRepoStub) Deactivate(ctx context.Context, id string) error {
	s.templates[id].Active = false
	return nil
}

func (s *templateRepoStub) AddEntry(ctx context.Context, entry *models.TemplateEntry) error {
	entry.ID = fmt.Sprintf("tpl-entry-%d", len(s.entries[entry.TemplateID])+1)
	s.entries[entry.TemplateID] = append(s.entries[entry.TemplateID], *entry)
	return nil
}

func (s *templateRepoStub) ListEntries(ctx context.Context, templateID string) ([]models.TemplateEntry, error) {
	return s.entries[templateID], nil
}

// engineStub stands in for the assignment engine during template replay. It
// records every create request and answers from a scripted outcome per slot.
type engineStub struct {
	created         []CreateEntryRequest
	existing        []models.ScheduleEntry
	errBySlot       map[string]error
	conflictsBySlot map[string]int
}

func (s *engineStub) CreateEntry(ctx context.Context, req CreateEntryRequest, actorID *string) (*models.ScheduleEntry, []models.ScheduleConflict, error) {
	if err := s.errBySlot[req.TimeSlotID]; err != nil {
		return nil, nil, err
	}
	s.created = append(s.created, req)
	entry := models.ScheduleEntry{
		ID:         fmt.Sprintf("entry-%d", len(s.created)),
		ScheduleID: req.ScheduleID,
		ClassID:    req.ClassID,
		SubjectID:  req.SubjectID,
		TeacherID:  req.TeacherID,
		RoomID:     req.RoomID,
		TimeSlotID: req.TimeSlotID,
		Active:     true,
	}
	var conflicts []models.ScheduleConflict
	for i := 0; i < s.conflictsBySlot[req.TimeSlotID]; i++ {
		conflicts = append(conflicts, models.ScheduleConflict{ID: fmt.Sprintf("conf-%d", i+1), EntryBID: entry.ID})
	}
	return &entry, conflicts, nil
}

func (s *engineStub) ListActiveEntries(ctx context.Context, scheduleID string, filter models.EntryFilter) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	for _, e := range s.existing {
		if e.ScheduleID != scheduleID || !e.Active {
			continue
		}
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		if filter.TimeSlotID != "" && e.TimeSlotID != filter.TimeSlotID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func seedTemplate(t *testing.T, repo *templateRepoStub, svc *TemplateService, rows ...AddTemplateEntryRequest) string {
	t.Helper()
	tpl, err := svc.Create(context.Background(), CreateTemplateRequest{Name: "Regular week"})
	require.NoError(t, err)
	for _, row := range rows {
		_, err := svc.AddEntry(context.Background(), tpl.ID, row)
		require.NoError(t, err)
	}
	return tpl.ID
}

func templateRow(class, slot string) AddTemplateEntryRequest {
	return AddTemplateEntryRequest{
		ClassID:    class,
		SubjectID:  "sub-1",
		TeacherID:  "teacher-1",
		RoomID:     "room-1",
		TimeSlotID: slot,
	}
}

func TestTemplateApplyMixedOutcomes(t *testing.T) {
	repo := newTemplateRepoStub()
	engine := &engineStub{
		existing: []models.ScheduleEntry{
			// Identical five-tuple for the class-b row, so it is skipped.
			{ID: "live-1", ScheduleID: "sched-1", ClassID: "class-b", SubjectID: "sub-1", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-2", Active: true},
		},
		conflictsBySlot: map[string]int{"slot-3": 2},
	}
	svc := NewTemplateService(repo, engine, nil, nil, zap.NewNop())

	tplID := seedTemplate(t, repo, svc,
		templateRow("class-a", "slot-1"),
		templateRow("class-b", "slot-2"),
		templateRow("class-c", "slot-3"),
	)

	result, err := svc.Apply(context.Background(), tplID, "sched-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.Len(t, result.Skipped, 1)
	assert.Len(t, result.Conflicts, 1)
	assert.Len(t, engine.created, 2, "skipped rows never reach the engine")
}

func TestTemplateApplyRejectedRowsTalliedAsConflicts(t *testing.T) {
	repo := newTemplateRepoStub()
	engine := &engineStub{
		errBySlot: map[string]error{
			"slot-1": appErrors.Clone(appErrors.ErrConflict, "entry would double-book the target slot"),
		},
	}
	svc := NewTemplateService(repo, engine, nil, nil, zap.NewNop())

	tplID := seedTemplate(t, repo, svc,
		templateRow("class-a", "slot-1"),
		templateRow("class-b", "slot-2"),
	)

	result, err := svc.Apply(context.Background(), tplID, "sched-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Len(t, result.Conflicts, 1)
	assert.Empty(t, result.Skipped)
}

func TestTemplateApplyValidationFailuresSkipped(t *testing.T) {
	repo := newTemplateRepoStub()
	engine := &engineStub{
		errBySlot: map[string]error{
			"slot-1": appErrors.Clone(appErrors.ErrValidation, "time slot is inactive"),
		},
	}
	svc := NewTemplateService(repo, engine, nil, nil, zap.NewNop())

	tplID := seedTemplate(t, repo, svc,
		templateRow("class-a", "slot-1"),
		templateRow("class-b", "slot-2"),
	)

	result, err := svc.Apply(context.Background(), tplID, "sched-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Len(t, result.Skipped, 1)
}

func TestTemplateApplyStopsOnInfraError(t *testing.T) {
	repo := newTemplateRepoStub()
	engine := &engineStub{
		errBySlot: map[string]error{
			"slot-2": appErrors.Clone(appErrors.ErrInternal, "database unavailable"),
		},
	}
	svc := NewTemplateService(repo, engine, nil, nil, zap.NewNop())

	tplID := seedTemplate(t, repo, svc,
		templateRow("class-a", "slot-1"),
		templateRow("class-b", "slot-2"),
		templateRow("class-c", "slot-3"),
	)

	result, err := svc.Apply(context.Background(), tplID, "sched-1", nil)
	require.Error(t, err)
	// Partial result is returned; the first row stays applied.
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Applied)
}

func TestTemplateApplyCancelledContextKeepsPartialWork(t *testing.T) {
	repo := newTemplateRepoStub()
	engine := &engineStub{}
	svc := NewTemplateService(repo, engine, nil, nil, zap.NewNop())

	tplID := seedTemplate(t, repo, svc,
		templateRow("class-a", "slot-1"),
		templateRow("class-b", "slot-2"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Apply(ctx, tplID, "sched-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	assert.Empty(t, engine.created)
}

func TestTemplateApplyInactiveTemplate(t *testing.T) {
	repo := newTemplateRepoStub()
	svc := NewTemplateService(repo, &engineStub{}, nil, nil, zap.NewNop())

	tplID := seedTemplate(t, repo, svc, templateRow("class-a", "slot-1"))
	require.NoError(t, svc.Deactivate(context.Background(), tplID))

	_, err := svc.Apply(context.Background(), tplID, "sched-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestTemplateGetWithEntries(t *testing.T) {
	repo := newTemplateRepoStub()
	svc := NewTemplateService(repo, &engineStub{}, nil, nil, zap.NewNop())

	tplID := seedTemplate(t, repo, svc,
		templateRow("class-a", "slot-1"),
		templateRow("class-b", "slot-2"),
	)

	detail, err := svc.Get(context.Background(), tplID)
	require.NoError(t, err)
	assert.Equal(t, tplID, detail.ID)
	assert.Len(t, detail.Entries, 2)
}

func TestTemplateAddEntryToInactiveTemplate(t *testing.T) {
	repo := newTemplateRepoStub()
	svc := NewTemplateService(repo, &engineStub{}, nil, nil, zap.NewNop())

	tplID := seedTemplate(t, repo, svc)
	require.NoError(t, svc.Deactivate(context.Background(), tplID))

	_, err := svc.AddEntry(context.Background(), tplID, templateRow("class-a", "slot-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}
