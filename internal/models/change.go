package models

import "time"

// ChangeType enumerates entry mutations recorded in the audit trail.
type ChangeType string

const (
	ChangeCreated     ChangeType = "CREATED"
	ChangeUpdated     ChangeType = "UPDATED"
	ChangeDeactivated ChangeType = "DEACTIVATED"
	ChangeMoved       ChangeType = "MOVED"
	ChangeSubstituted ChangeType = "SUBSTITUTED"
)

// ScheduleChange is one append-only audit row per entry mutation. Snapshots
// hold the serialized entry before and after the write.
type ScheduleChange struct {
	ID         string     `db:"id" json:"id"`
	ScheduleID string     `db:"schedule_id" json:"schedule_id"`
	EntryID    string     `db:"entry_id" json:"entry_id"`
	ChangeType ChangeType `db:"change_type" json:"change_type"`
	OldValues  []byte     `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte     `db:"new_values" json:"new_values,omitempty"`
	ActorID    *string    `db:"actor_id" json:"actor_id,omitempty"`
	Reason     string     `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
