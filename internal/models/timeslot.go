package models

import (
	"fmt"
	"time"
)

// Weekday names as stored in the catalog.
const (
	Monday    = "MONDAY"
	Tuesday   = "TUESDAY"
	Wednesday = "WEDNESDAY"
	Thursday  = "THURSDAY"
	Friday    = "FRIDAY"
	Saturday  = "SATURDAY"
	Sunday    = "SUNDAY"
)

// Weekdays lists valid day_of_week values in week order.
var Weekdays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekendDays marks the days gated by the weekend-classes policy.
var WeekendDays = map[string]bool{Saturday: true, Sunday: true}

// TimeSlot is a discrete (day, start, end) unit. Slots are the atomic unit of
// conflict comparison: two entries collide only when they reference the same
// slot id, never by wall-clock overlap. Once referenced a slot is only ever
// deactivated, never edited.
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	DayOfWeek string    `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the slot length. Times are stored as zero-padded "HH:MM".
func (t TimeSlot) Duration() (time.Duration, error) {
	start, err := time.Parse("15:04", t.StartTime)
	if err != nil {
		return 0, fmt.Errorf("parse start time %q: %w", t.StartTime, err)
	}
	end, err := time.Parse("15:04", t.EndTime)
	if err != nil {
		return 0, fmt.Errorf("parse end time %q: %w", t.EndTime, err)
	}
	return end.Sub(start), nil
}

// TimeSlotFilter describes query params for listing slots.
type TimeSlotFilter struct {
	DayOfWeek  string
	ActiveOnly bool
}
