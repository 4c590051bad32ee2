package models

import "time"

// ScheduleTemplate is a reusable draft pattern of assignments. Template
// entries are not subject to the live uniqueness invariants; they are
// re-validated by the assignment engine when the template is applied.
type ScheduleTemplate struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TemplateEntry mirrors the entry five-tuple inside a template.
type TemplateEntry struct {
	ID         string    `db:"id" json:"id"`
	TemplateID string    `db:"template_id" json:"template_id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	RoomID     string    `db:"room_id" json:"room_id"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	Notes      string    `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TemplateApplication summarises one ApplyTemplate run. Application is
// deliberately not atomic across entries: applied entries stay applied even
// when later entries skip or conflict.
type TemplateApplication struct {
	TemplateID string   `json:"template_id"`
	ScheduleID string   `json:"schedule_id"`
	Applied    int      `json:"applied"`
	Skipped    []string `json:"skipped,omitempty"`
	Conflicts  []string `json:"conflicts,omitempty"`
}
