package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type entryStoreStub struct {
	entries   map[string]*models.ScheduleEntry
	nextID    int
	lockCalls int
}

func newEntryStoreStub() *entryStoreStub {
	return &entryStoreStub{entries: map[string]*models.ScheduleEntry{}}
}

func (s *entryStoreStub) seed(entry models.ScheduleEntry) {
	entry.Active = true
	cp := entry
	s.entries[entry.ID] = &cp
}

func (s *entryStoreStub) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	// Mirrors transaction semantics: a failing fn leaves the store untouched.
	snapshot := make(map[string]*models.ScheduleEntry, len(s.entries))
	for id, e := range s.entries {
		cp := *e
		snapshot[id] = &cp
	}
	if err := fn(nil); err != nil {
		s.entries = snapshot
		return err
	}
	return nil
}

func (s *entryStoreStub) LockSlot(ctx context.Context, tx *sqlx.Tx, scheduleID, timeSlotID string) error {
	s.lockCalls++
	return nil
}

func (s *entryStoreStub) ListActiveBySlot(ctx context.Context, exec sqlx.ExtContext, scheduleID, timeSlotID string) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	for _, e := range s.entries {
		if e.Active && e.ScheduleID == scheduleID && e.TimeSlotID == timeSlotID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *entryStoreStub) ListActive(ctx context.Context, scheduleID string, filter models.EntryFilter) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	for _, e := range s.entries {
		if e.Active && e.ScheduleID == scheduleID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *entryStoreStub) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (s *entryStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	s.nextID++
	entry.ID = fmt.Sprintf("entry-%d", s.nextID)
	entry.Active = true
	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

func (s *entryStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

func (s *entryStoreStub) Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.entries[id].Active = false
	return nil
}

type conflictRecorderStub struct {
	recorded []models.ScheduleConflict
}

func (s *conflictRecorderStub) Record(ctx context.Context, exec sqlx.ExtContext, conflict *models.ScheduleConflict) error {
	conflict.ID = fmt.Sprintf("conf-%d", len(s.recorded)+1)
	s.recorded = append(s.recorded, *conflict)
	return nil
}

type changeRecorderStub struct {
	changes []models.ScheduleChange
	err     error
}

func (s *changeRecorderStub) Create(ctx context.Context, exec sqlx.ExtContext, change *models.ScheduleChange) error {
	if s.err != nil {
		return s.err
	}
	s.changes = append(s.changes, *change)
	return nil
}

type scheduleReaderStub struct {
	items map[string]*models.Schedule
}

func (s *scheduleReaderStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return item, nil
}

type roomReaderStub struct {
	items map[string]*models.Room
}

func (s *roomReaderStub) FindByID(ctx context.Context, id string) (*models.Room, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return item, nil
}

type slotReaderStub struct {
	items map[string]*models.TimeSlot
}

func (s *slotReaderStub) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return item, nil
}

type notifierStub struct {
	dispatches [][]string
}

func (s *notifierStub) Dispatch(recipients []string, ntype models.NotificationType, title, message, scheduleID string, entryID *string) {
	s.dispatches = append(s.dispatches, recipients)
}

type assignmentFixture struct {
	service   *AssignmentService
	entries   *entryStoreStub
	conflicts *conflictRecorderStub
	changes   *changeRecorderStub
	schedules *scheduleReaderStub
	notify    *notifierStub
}

func newAssignmentFixture(policy config.SchedulingConfig) *assignmentFixture {
	entries := newEntryStoreStub()
	conflicts := &conflictRecorderStub{}
	changes := &changeRecorderStub{}
	notify := &notifierStub{}
	schedules := &scheduleReaderStub{items: map[string]*models.Schedule{
		"sched-1": {ID: "sched-1", Active: true},
	}}
	rooms := &roomReaderStub{items: map[string]*models.Room{
		"room-1": {ID: "room-1", Active: true},
		"room-2": {ID: "room-2", Active: true},
		"room-3": {ID: "room-3", Active: false},
	}}
	slots := &slotReaderStub{items: map[string]*models.TimeSlot{
		"slot-1": {ID: "slot-1", DayOfWeek: "MONDAY", StartTime: "07:00", EndTime: "07:45", Active: true},
		"slot-2": {ID: "slot-2", DayOfWeek: "MONDAY", StartTime: "07:45", EndTime: "08:30", Active: true},
	}}

	svc := NewAssignmentService(entries, conflicts, changes, schedules, rooms, slots, notify, nil, nil, policy, 0, validator.New(), zap.NewNop())
	return &assignmentFixture{service: svc, entries: entries, conflicts: conflicts, changes: changes, schedules: schedules, notify: notify}
}

func createReq(class, teacher, room, slot string) CreateEntryRequest {
	return CreateEntryRequest{
		ScheduleID: "sched-1",
		ClassID:    class,
		SubjectID:  "sub-1",
		TeacherID:  teacher,
		RoomID:     room,
		TimeSlotID: slot,
	}
}

func TestCreateEntryNoConflict(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{NotifyOnChanges: true})

	entry, conflicts, err := f.service.CreateEntry(context.Background(), createReq("class-a", "teacher-1", "room-1", "slot-1"), nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.True(t, entry.Active)
	assert.Equal(t, 1, f.entries.lockCalls)
	require.Len(t, f.changes.changes, 1)
	assert.Equal(t, models.ChangeCreated, f.changes.changes[0].ChangeType)
	assert.Empty(t, f.notify.dispatches)
}

func TestCreateEntryRoomConflictStillCreated(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{NotifyOnChanges: true})
	f.entries.seed(models.ScheduleEntry{ID: "existing", ScheduleID: "sched-1", ClassID: "class-a", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})

	entry, conflicts, err := f.service.CreateEntry(context.Background(), createReq("class-b", "teacher-2", "room-1", "slot-1"), nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictRoom, conflicts[0].ConflictType)
	assert.Equal(t, "existing", conflicts[0].EntryAID)
	assert.Equal(t, entry.ID, conflicts[0].EntryBID)

	// Both entries stay active under the default policy.
	assert.True(t, f.entries.entries["existing"].Active)
	assert.True(t, f.entries.entries[entry.ID].Active)

	// Both teachers and both classes are notified.
	require.Len(t, f.notify.dispatches, 1)
	assert.ElementsMatch(t, []string{"teacher-1", "teacher-2", "class-a", "class-b"}, f.notify.dispatches[0])
}

func TestCreateEntryTripleConflict(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})
	f.entries.seed(models.ScheduleEntry{ID: "existing", ScheduleID: "sched-1", ClassID: "class-a", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})

	_, conflicts, err := f.service.CreateEntry(context.Background(), createReq("class-a", "teacher-1", "room-1", "slot-1"), nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 3)

	types := map[models.ConflictType]bool{}
	for _, c := range conflicts {
		types[c.ConflictType] = true
	}
	assert.True(t, types[models.ConflictClass])
	assert.True(t, types[models.ConflictRoom])
	assert.True(t, types[models.ConflictTeacher])
}

func TestCreateEntryAdjacentSlotNoConflict(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})
	f.entries.seed(models.ScheduleEntry{ID: "existing", ScheduleID: "sched-1", ClassID: "class-a", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})

	// Same teacher and room, back-to-back slot. Identity is the slot id, so
	// no conflict is recorded.
	_, conflicts, err := f.service.CreateEntry(context.Background(), createReq("class-a", "teacher-1", "room-1", "slot-2"), nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Empty(t, f.conflicts.recorded)
}

func TestCreateEntryRejectingPolicy(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{AutoResolveConflicts: true})
	f.entries.seed(models.ScheduleEntry{ID: "existing", ScheduleID: "sched-1", ClassID: "class-a", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})

	_, _, err := f.service.CreateEntry(context.Background(), createReq("class-b", "teacher-1", "room-2", "slot-1"), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// Nothing persisted: no new entry, no ledger rows, no change records.
	assert.Len(t, f.entries.entries, 1)
	assert.Empty(t, f.conflicts.recorded)
	assert.Empty(t, f.changes.changes)
}

func TestCreateEntryRejectsUnusableReferences(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})

	_, _, err := f.service.CreateEntry(context.Background(), createReq("class-a", "teacher-1", "room-3", "slot-1"), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = f.service.CreateEntry(context.Background(), createReq("class-a", "teacher-1", "room-1", "slot-missing"), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateEntryUnknownScheduleNotFound(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})

	req := createReq("class-a", "teacher-1", "room-1", "slot-1")
	req.ScheduleID = "sched-missing"
	_, _, err := f.service.CreateEntry(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateEntryExcludesSelfAndClassifiesMove(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})
	f.entries.seed(models.ScheduleEntry{ID: "entry-1", ScheduleID: "sched-1", ClassID: "class-a", SubjectID: "sub-1", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})

	updated, conflicts, err := f.service.UpdateEntry(context.Background(), "entry-1", UpdateEntryRequest{
		ClassID:    "class-a",
		SubjectID:  "sub-1",
		TeacherID:  "teacher-1",
		RoomID:     "room-2",
		TimeSlotID: "slot-1",
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts, "an entry must not conflict with itself")
	assert.Equal(t, "room-2", updated.RoomID)
	require.Len(t, f.changes.changes, 1)
	assert.Equal(t, models.ChangeMoved, f.changes.changes[0].ChangeType)
}

func TestUpdateEntryTeacherSwapIsSubstitution(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})
	f.entries.seed(models.ScheduleEntry{ID: "entry-1", ScheduleID: "sched-1", ClassID: "class-a", SubjectID: "sub-1", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})

	_, _, err := f.service.UpdateEntry(context.Background(), "entry-1", UpdateEntryRequest{
		ClassID:    "class-a",
		SubjectID:  "sub-1",
		TeacherID:  "teacher-2",
		RoomID:     "room-1",
		TimeSlotID: "slot-1",
	}, nil)
	require.NoError(t, err)
	require.Len(t, f.changes.changes, 1)
	assert.Equal(t, models.ChangeSubstituted, f.changes.changes[0].ChangeType)
}

func TestUpdateInactiveEntryRejected(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})
	f.entries.seed(models.ScheduleEntry{ID: "entry-1", ScheduleID: "sched-1", ClassID: "class-a", SubjectID: "sub-1", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})
	f.entries.entries["entry-1"].Active = false

	_, _, err := f.service.UpdateEntry(context.Background(), "entry-1", UpdateEntryRequest{
		ClassID:    "class-a",
		SubjectID:  "sub-1",
		TeacherID:  "teacher-1",
		RoomID:     "room-1",
		TimeSlotID: "slot-1",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestDeactivateEntryTwice(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})
	f.entries.seed(models.ScheduleEntry{ID: "entry-1", ScheduleID: "sched-1", ClassID: "class-a", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})

	actor := "admin-1"
	require.NoError(t, f.service.DeactivateEntry(context.Background(), "entry-1", "class cancelled", &actor))
	require.Len(t, f.changes.changes, 1)
	assert.Equal(t, models.ChangeDeactivated, f.changes.changes[0].ChangeType)
	assert.Equal(t, "class cancelled", f.changes.changes[0].Reason)
	require.NotNil(t, f.changes.changes[0].ActorID)
	assert.Equal(t, "admin-1", *f.changes.changes[0].ActorID)

	err := f.service.DeactivateEntry(context.Background(), "entry-1", "", &actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestDeactivateEntryRollsBackOnAuditFailure(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})
	f.entries.seed(models.ScheduleEntry{ID: "entry-1", ScheduleID: "sched-1", ClassID: "class-a", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})
	f.changes.err = fmt.Errorf("change log unavailable")

	err := f.service.DeactivateEntry(context.Background(), "entry-1", "class cancelled", nil)
	require.Error(t, err)

	// The deactivation and its audit row commit together or not at all.
	assert.True(t, f.entries.entries["entry-1"].Active)
	assert.Empty(t, f.changes.changes)
}

func TestUpdateEntryOnInactiveScheduleRejected(t *testing.T) {
	f := newAssignmentFixture(config.SchedulingConfig{})
	f.entries.seed(models.ScheduleEntry{ID: "entry-1", ScheduleID: "sched-1", ClassID: "class-a", SubjectID: "sub-1", TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-1"})
	f.schedules.items["sched-1"].Active = false

	_, _, err := f.service.UpdateEntry(context.Background(), "entry-1", UpdateEntryRequest{
		ClassID:    "class-a",
		SubjectID:  "sub-1",
		TeacherID:  "teacher-2",
		RoomID:     "room-1",
		TimeSlotID: "slot-1",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.changes.changes)
}

func TestDetectCollisionsPairsAndDimensions(t *testing.T) {
	candidate := models.ScheduleEntry{ClassID: "class-a", TeacherID: "teacher-1", RoomID: "room-1"}
	existing := []models.ScheduleEntry{
		{ID: "e1", ClassID: "class-a", TeacherID: "teacher-2", RoomID: "room-2"},
		{ID: "e2", ClassID: "class-b", TeacherID: "teacher-1", RoomID: "room-1"},
	}

	collisions := detectCollisions(candidate, existing, "")
	require.Len(t, collisions, 3)
}
