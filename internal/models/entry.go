package models

import "time"

// ScheduleEntry binds a (class, subject, teacher, room, time slot) tuple
// inside one schedule. Class, subject and teacher ids are opaque references
// owned by other services; callers are responsible for passing valid, active
// ids. Entries are soft-deactivated, never deleted, so historical conflicts
// stay attributable.
type ScheduleEntry struct {
	ID         string    `db:"id" json:"id"`
	ScheduleID string    `db:"schedule_id" json:"schedule_id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	RoomID     string    `db:"room_id" json:"room_id"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	Active     bool      `db:"active" json:"active"`
	Notes      string    `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// EntryFilter narrows ListActiveEntries.
type EntryFilter struct {
	ClassID    string
	TeacherID  string
	RoomID     string
	TimeSlotID string
}
