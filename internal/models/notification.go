package models

import "time"

// NotificationType tags the reason a notification was produced.
type NotificationType string

const (
	NotificationConflict NotificationType = "SCHEDULE_CONFLICT"
	NotificationChange   NotificationType = "SCHEDULE_CHANGE"
)

// ScheduleNotification is a pending notification row consumed by a delivery
// worker elsewhere; this service only produces and lists them.
type ScheduleNotification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipient_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	ScheduleID  string           `db:"schedule_id" json:"schedule_id"`
	EntryID     *string          `db:"entry_id" json:"entry_id,omitempty"`
	Read        bool             `db:"read" json:"read"`
	ReadAt      *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
