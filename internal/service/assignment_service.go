package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type entryRepository interface {
	InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	LockSlot(ctx context.Context, tx *sqlx.Tx, scheduleID, timeSlotID string) error
	ListActiveBySlot(ctx context.Context, exec sqlx.ExtContext, scheduleID, timeSlotID string) ([]models.ScheduleEntry, error)
	ListActive(ctx context.Context, scheduleID string, filter models.EntryFilter) ([]models.ScheduleEntry, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error
	Update(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error
	Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type conflictRecorder interface {
	Record(ctx context.Context, exec sqlx.ExtContext, conflict *models.ScheduleConflict) error
}

type changeRecorder interface {
	Create(ctx context.Context, exec sqlx.ExtContext, change *models.ScheduleChange) error
}

type scheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
}

type roomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type timeSlotReader interface {
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
}

// notifier fans out pending notifications; dispatch never blocks the write
// path and never returns an error.
type notifier interface {
	Dispatch(recipients []string, ntype models.NotificationType, title, message, scheduleID string, entryID *string)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateEntryRequest describes the payload for creating an entry.
type CreateEntryRequest struct {
	ScheduleID string `json:"schedule_id" validate:"required"`
	ClassID    string `json:"class_id" validate:"required"`
	SubjectID  string `json:"subject_id" validate:"required"`
	TeacherID  string `json:"teacher_id" validate:"required"`
	RoomID     string `json:"room_id" validate:"required"`
	TimeSlotID string `json:"time_slot_id" validate:"required"`
	Notes      string `json:"notes"`
}

// UpdateEntryRequest rewrites the mutable fields of an entry.
type UpdateEntryRequest struct {
	ClassID    string `json:"class_id" validate:"required"`
	SubjectID  string `json:"subject_id" validate:"required"`
	TeacherID  string `json:"teacher_id" validate:"required"`
	RoomID     string `json:"room_id" validate:"required"`
	TimeSlotID string `json:"time_slot_id" validate:"required"`
	Notes      string `json:"notes"`
}

// AssignmentService is the single writer of schedule entries and the single
// producer of conflict and change records. Every create/update runs the
// three-way class/room/teacher scan against the target slot inside one
// transaction, serialized per (schedule, time slot) by an advisory lock.
type AssignmentService struct {
	entries   entryRepository
	conflicts conflictRecorder
	changes   changeRecorder
	schedules scheduleReader
	rooms     roomReader
	slots     timeSlotReader
	notify    notifier
	cache     timetableCache
	metrics   *MetricsService
	policy    config.SchedulingConfig
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService instantiates the assignment engine. The scheduling
// policy is fixed at construction.
func NewAssignmentService(
	entries entryRepository,
	conflicts conflictRecorder,
	changes changeRecorder,
	schedules scheduleReader,
	rooms roomReader,
	slots timeSlotReader,
	notify notifier,
	cache timetableCache,
	metrics *MetricsService,
	policy config.SchedulingConfig,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AssignmentService{
		entries:   entries,
		conflicts: conflicts,
		changes:   changes,
		schedules: schedules,
		rooms:     rooms,
		slots:     slots,
		notify:    notify,
		cache:     cache,
		metrics:   metrics,
		policy:    policy,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// CreateEntry assigns a class session to a slot. Under the default policy a
// colliding entry is still created and one conflict row is recorded per
// colliding pair and dimension; with AutoResolveConflicts the write is
// rejected instead and nothing is persisted.
func (s *AssignmentService) CreateEntry(ctx context.Context, req CreateEntryRequest, actorID *string) (*models.ScheduleEntry, []models.ScheduleConflict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}

	if err := s.ensureScheduleWritable(ctx, req.ScheduleID); err != nil {
		return nil, nil, err
	}
	if err := s.ensureReferencesUsable(ctx, req.RoomID, req.TimeSlotID); err != nil {
		return nil, nil, err
	}

	entry := models.ScheduleEntry{
		ScheduleID: req.ScheduleID,
		ClassID:    req.ClassID,
		SubjectID:  req.SubjectID,
		TeacherID:  req.TeacherID,
		RoomID:     req.RoomID,
		TimeSlotID: req.TimeSlotID,
		Notes:      req.Notes,
	}

	var recorded []models.ScheduleConflict
	var collisions []models.ConflictInstance
	err := s.entries.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.LockSlot(ctx, tx, entry.ScheduleID, entry.TimeSlotID); err != nil {
			return err
		}

		existing, err := s.entries.ListActiveBySlot(ctx, tx, entry.ScheduleID, entry.TimeSlotID)
		if err != nil {
			return err
		}
		collisions = detectCollisions(entry, existing, "")

		if len(collisions) > 0 && s.policy.AutoResolveConflicts {
			return s.rejectConflicts(collisions)
		}

		if err := s.entries.Create(ctx, tx, &entry); err != nil {
			return err
		}
		recorded, err = s.recordCollisions(ctx, tx, entry, collisions)
		if err != nil {
			return err
		}
		return s.recordChange(ctx, tx, entry.ScheduleID, entry.ID, models.ChangeCreated, nil, &entry, actorID, "")
	})
	if err != nil {
		return nil, nil, s.wrapEngineErr(err, "failed to create entry")
	}

	s.afterWrite(ctx, entry, recorded, collisions)
	if s.metrics != nil {
		s.metrics.ObserveEntryWrite(string(models.ChangeCreated))
	}
	return &entry, recorded, nil
}

// UpdateEntry rewrites an entry and re-runs the conflict scan against its
// target slot, excluding the entry itself.
func (s *AssignmentService) UpdateEntry(ctx context.Context, entryID string, req UpdateEntryRequest, actorID *string) (*models.ScheduleEntry, []models.ScheduleConflict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}

	current, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "entry not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entry")
	}
	if !current.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrStateConflict, "entry is inactive")
	}
	if err := s.ensureScheduleWritable(ctx, current.ScheduleID); err != nil {
		return nil, nil, err
	}

	if req.RoomID != current.RoomID || req.TimeSlotID != current.TimeSlotID {
		if err := s.ensureReferencesUsable(ctx, req.RoomID, req.TimeSlotID); err != nil {
			return nil, nil, err
		}
	}

	updated := *current
	updated.ClassID = req.ClassID
	updated.SubjectID = req.SubjectID
	updated.TeacherID = req.TeacherID
	updated.RoomID = req.RoomID
	updated.TimeSlotID = req.TimeSlotID
	updated.Notes = req.Notes

	changeType := classifyChange(*current, updated)

	var recorded []models.ScheduleConflict
	var collisions []models.ConflictInstance
	err = s.entries.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.LockSlot(ctx, tx, updated.ScheduleID, updated.TimeSlotID); err != nil {
			return err
		}

		existing, err := s.entries.ListActiveBySlot(ctx, tx, updated.ScheduleID, updated.TimeSlotID)
		if err != nil {
			return err
		}
		collisions = detectCollisions(updated, existing, updated.ID)

		if len(collisions) > 0 && s.policy.AutoResolveConflicts {
			return s.rejectConflicts(collisions)
		}

		if err := s.entries.Update(ctx, tx, &updated); err != nil {
			return err
		}
		recorded, err = s.recordCollisions(ctx, tx, updated, collisions)
		if err != nil {
			return err
		}
		return s.recordChange(ctx, tx, updated.ScheduleID, updated.ID, changeType, current, &updated, actorID, "")
	})
	if err != nil {
		return nil, nil, s.wrapEngineErr(err, "failed to update entry")
	}

	s.afterWrite(ctx, updated, recorded, collisions)
	if s.metrics != nil {
		s.metrics.ObserveEntryWrite(string(changeType))
	}
	return &updated, recorded, nil
}

// DeactivateEntry soft-deletes an entry; the audit row commits in the same
// transaction as the deactivation. Conflict rows referencing the entry stay
// open as historical record; closing them is the resolution workflow's job.
func (s *AssignmentService) DeactivateEntry(ctx context.Context, entryID, reason string, actorID *string) error {
	current, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entry")
	}
	if !current.Active {
		return appErrors.Clone(appErrors.ErrStateConflict, "entry already inactive")
	}

	err = s.entries.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.Deactivate(ctx, tx, entryID); err != nil {
			return err
		}
		return s.recordChange(ctx, tx, current.ScheduleID, current.ID, models.ChangeDeactivated, current, nil, actorID, reason)
	})
	if err != nil {
		return s.wrapEngineErr(err, "failed to deactivate entry")
	}

	s.invalidateCache(ctx, current.ScheduleID)
	if s.metrics != nil {
		s.metrics.ObserveEntryWrite(string(models.ChangeDeactivated))
	}
	return nil
}

// ListActiveEntries is the read path; no invariant enforcement, cached per
// schedule and filter when the cache is enabled.
func (s *AssignmentService) ListActiveEntries(ctx context.Context, scheduleID string, filter models.EntryFilter) ([]models.ScheduleEntry, error) {
	key := entriesCacheKey(scheduleID, filter)
	if s.cache != nil {
		var cached []models.ScheduleEntry
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	entries, err := s.entries.ListActive(ctx, scheduleID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list entries")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries, s.cacheTTL); err != nil {
			s.logger.Debug("entry cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

func (s *AssignmentService) ensureScheduleWritable(ctx context.Context, scheduleID string) error {
	sched, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if !sched.Active {
		return appErrors.Clone(appErrors.ErrValidation, "schedule is inactive")
	}
	return nil
}

func (s *AssignmentService) ensureReferencesUsable(ctx context.Context, roomID, timeSlotID string) error {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "unknown room")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if !room.Active {
		return appErrors.Clone(appErrors.ErrValidation, "room is inactive")
	}

	slot, err := s.slots.FindByID(ctx, timeSlotID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "unknown time slot")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slot")
	}
	if !slot.Active {
		return appErrors.Clone(appErrors.ErrValidation, "time slot is inactive")
	}
	return nil
}

// detectCollisions compares a candidate against the active entries of its
// slot. Conflicts require the identical slot id; wall-clock overlap between
// different slots is never considered.
func detectCollisions(candidate models.ScheduleEntry, existing []models.ScheduleEntry, excludeID string) []models.ConflictInstance {
	var collisions []models.ConflictInstance
	for _, item := range existing {
		if excludeID != "" && item.ID == excludeID {
			continue
		}
		if item.ClassID == candidate.ClassID {
			collisions = append(collisions, models.ConflictInstance{Type: models.ConflictClass, Existing: item})
		}
		if item.RoomID == candidate.RoomID {
			collisions = append(collisions, models.ConflictInstance{Type: models.ConflictRoom, Existing: item})
		}
		if item.TeacherID == candidate.TeacherID {
			collisions = append(collisions, models.ConflictInstance{Type: models.ConflictTeacher, Existing: item})
		}
	}
	return collisions
}

func (s *AssignmentService) rejectConflicts(collisions []models.ConflictInstance) error {
	domainErr := &models.ConflictError{
		Message:    "entry would double-book the target slot",
		Collisions: collisions,
	}
	return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, domainErr.Message)
}

func (s *AssignmentService) recordCollisions(ctx context.Context, tx *sqlx.Tx, entry models.ScheduleEntry, collisions []models.ConflictInstance) ([]models.ScheduleConflict, error) {
	recorded := make([]models.ScheduleConflict, 0, len(collisions))
	for _, col := range collisions {
		conflict := models.ScheduleConflict{
			ScheduleID:   entry.ScheduleID,
			ConflictType: col.Type,
			EntryAID:     col.Existing.ID,
			EntryBID:     entry.ID,
			Description: fmt.Sprintf("%s double-booked in slot %s: entry %s vs entry %s",
				strings.ToLower(string(col.Type)), entry.TimeSlotID, col.Existing.ID, entry.ID),
		}
		if err := s.conflicts.Record(ctx, tx, &conflict); err != nil {
			return nil, err
		}
		recorded = append(recorded, conflict)
		if s.metrics != nil {
			s.metrics.ObserveConflictDetected(string(col.Type))
		}
	}
	return recorded, nil
}

func (s *AssignmentService) recordChange(ctx context.Context, tx *sqlx.Tx, scheduleID, entryID string, changeType models.ChangeType, before, after *models.ScheduleEntry, actorID *string, reason string) error {
	change := models.ScheduleChange{
		ScheduleID: scheduleID,
		EntryID:    entryID,
		ChangeType: changeType,
		ActorID:    actorID,
		Reason:     reason,
	}
	if before != nil {
		change.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		change.NewValues, _ = json.Marshal(after)
	}
	return s.changes.Create(ctx, tx, &change)
}

// classifyChange picks the audit label: MOVED for slot/room moves,
// SUBSTITUTED when only the teacher changed, UPDATED otherwise.
func classifyChange(before, after models.ScheduleEntry) models.ChangeType {
	if before.TimeSlotID != after.TimeSlotID || before.RoomID != after.RoomID {
		return models.ChangeMoved
	}
	if before.TeacherID != after.TeacherID &&
		before.ClassID == after.ClassID && before.SubjectID == after.SubjectID {
		return models.ChangeSubstituted
	}
	return models.ChangeUpdated
}

// afterWrite handles the non-transactional side effects of a committed write.
func (s *AssignmentService) afterWrite(ctx context.Context, entry models.ScheduleEntry, recorded []models.ScheduleConflict, collisions []models.ConflictInstance) {
	s.invalidateCache(ctx, entry.ScheduleID)

	if len(recorded) == 0 || !s.policy.NotifyOnChanges || s.notify == nil {
		return
	}
	recipients := conflictStakeholders(entry, collisions)
	title := "Schedule conflict detected"
	message := fmt.Sprintf("%d conflict(s) recorded in slot %s of schedule %s", len(recorded), entry.TimeSlotID, entry.ScheduleID)
	entryID := entry.ID
	s.notify.Dispatch(recipients, models.NotificationConflict, title, message, entry.ScheduleID, &entryID)
}

// conflictStakeholders collects the distinct teacher and class references
// touched by the collisions, the new entry's included.
func conflictStakeholders(entry models.ScheduleEntry, collisions []models.ConflictInstance) []string {
	seen := map[string]bool{}
	var recipients []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}
	add(entry.TeacherID)
	add(entry.ClassID)
	for _, col := range collisions {
		add(col.Existing.TeacherID)
		add(col.Existing.ClassID)
	}
	return recipients
}

func (s *AssignmentService) invalidateCache(ctx context.Context, scheduleID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("timetable:entries:%s:*", scheduleID)); err != nil {
		s.logger.Debug("entry cache invalidation failed", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}

func (s *AssignmentService) wrapEngineErr(err error, fallback string) error {
	appErr := appErrors.FromError(err)
	if appErr.Code == appErrors.ErrInternal.Code && appErr.Message == appErrors.ErrInternal.Message {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
	}
	return appErr
}

func entriesCacheKey(scheduleID string, filter models.EntryFilter) string {
	return fmt.Sprintf("timetable:entries:%s:%s:%s:%s:%s",
		scheduleID, filter.ClassID, filter.TeacherID, filter.RoomID, filter.TimeSlotID)
}
