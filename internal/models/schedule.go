package models

import "time"

// ScheduleType distinguishes the kinds of timetable containers.
type ScheduleType string

const (
	ScheduleRegular ScheduleType = "REGULAR"
	ScheduleExam    ScheduleType = "EXAM"
	ScheduleSpecial ScheduleType = "SPECIAL"
	ScheduleHoliday ScheduleType = "HOLIDAY"
)

// Schedule is a named, dated container of class-session assignments bound to
// an academic-year window. The academic year itself is master data owned by
// another service and referenced by id only.
type Schedule struct {
	ID             string       `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	Type           ScheduleType `db:"type" json:"type"`
	AcademicYearID string       `db:"academic_year_id" json:"academic_year_id"`
	StartDate      time.Time    `db:"start_date" json:"start_date"`
	EndDate        time.Time    `db:"end_date" json:"end_date"`
	Active         bool         `db:"active" json:"active"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	Type           string
	AcademicYearID string
	ActiveOnly     bool
	Page           int
	PageSize       int
}
