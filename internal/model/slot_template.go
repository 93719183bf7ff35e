package model

import (
	"github.com/google/uuid"
)

// MinSlotDurationMinutes is the shortest bookable slot a template may define.
const MinSlotDurationMinutes = 5

// SlotTemplate is a recurring weekly availability rule for a clinician.
type SlotTemplate struct {
	Base
	ClinicianID         uuid.UUID `db:"clinician_id" json:"clinician_id"`
	DayOfWeek           Weekday   `db:"day_of_week" json:"day_of_week"`
	StartTime           TimeOfDay `db:"start_time" json:"start_time"`
	EndTime             TimeOfDay `db:"end_time" json:"end_time"`
	SlotDurationMinutes int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	Active              bool      `db:"active" json:"active"`
}

// Valid reports whether the template can produce at least one slot:
// start before end, duration at least MinSlotDurationMinutes and no longer
// than the window.
func (t *SlotTemplate) Valid() bool {
	if !t.DayOfWeek.Valid() || !t.StartTime.Valid() || !t.EndTime.Valid() {
		return false
	}
	if t.StartTime >= t.EndTime {
		return false
	}
	if t.SlotDurationMinutes < MinSlotDurationMinutes {
		return false
	}
	return t.SlotDurationMinutes <= int(t.EndTime-t.StartTime)
}

// Overlaps reports whether both templates cover some common time on the same day.
func (t *SlotTemplate) Overlaps(other *SlotTemplate) bool {
	return t.DayOfWeek == other.DayOfWeek &&
		t.StartTime < other.EndTime && other.StartTime < t.EndTime
}

// SlotTemplateRequest is the create/update payload of a template.
type SlotTemplateRequest struct {
	DayOfWeek           Weekday    `json:"day_of_week" validate:"weekday"`
	StartTime           *TimeOfDay `json:"start_time" validate:"required,timeofday"`
	EndTime             *TimeOfDay `json:"end_time" validate:"required,timeofday"`
	SlotDurationMinutes int        `json:"slot_duration_minutes" validate:"min=5"`
	Active              *bool      `json:"active"`
}
