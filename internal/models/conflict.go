package models

import (
	"fmt"
	"time"
)

// ConflictType names the dimension two entries collide on.
type ConflictType string

const (
	ConflictRoom    ConflictType = "ROOM"
	ConflictTeacher ConflictType = "TEACHER"
	ConflictClass   ConflictType = "CLASS"
)

// ScheduleConflict is a durable ledger row for one detected colliding pair.
// Rows are written exactly once per unresolved (entry_a, entry_b, type) and
// are never deleted; the resolution workflow only flips the resolved fields.
type ScheduleConflict struct {
	ID           string       `db:"id" json:"id"`
	ScheduleID   string       `db:"schedule_id" json:"schedule_id"`
	ConflictType ConflictType `db:"conflict_type" json:"conflict_type"`
	EntryAID     string       `db:"entry_a_id" json:"entry_a_id"`
	EntryBID     string       `db:"entry_b_id" json:"entry_b_id"`
	Description  string       `db:"description" json:"description"`
	Resolved     bool         `db:"resolved" json:"resolved"`
	ResolvedBy   *string      `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time   `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// ConflictError is returned when the auto-resolve policy rejects a write. It
// carries every collision found in the target slot so the caller can report
// exactly which invariant failed against which entry.
type ConflictError struct {
	Message    string             `json:"message"`
	Collisions []ConflictInstance `json:"collisions"`
}

// ConflictInstance describes one collision against an existing entry.
type ConflictInstance struct {
	Type     ConflictType  `json:"type"`
	Existing ScheduleEntry `json:"existing"`
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%d collisions)", e.Message, len(e.Collisions))
}
