package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// OccupyingStatuses are the statuses that hold a slot.
var OccupyingStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusCompleted,
}

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(s)
	switch st {
	case AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("invalid appointment status %q", s)
}

// Occupies reports whether an appointment in this status holds its time.
func (s AppointmentStatus) Occupies() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted:
		return true
	case AppointmentStatusCancelled:
		return false
	default:
		return false
	}
}

type Appointment struct {
	Base
	ClinicianID     uuid.UUID         `db:"clinician_id" json:"clinician_id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	SlotID          *uuid.UUID        `db:"slot_id" json:"slot_id,omitempty"`
	AppointmentTime time.Time         `db:"appointment_time" json:"appointment_time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

type CreateAppointmentRequest struct {
	ClinicianID     uuid.UUID  `json:"clinician_id" binding:"required"`
	PatientID       uuid.UUID  `json:"patient_id" binding:"required"`
	SlotID          *uuid.UUID `json:"slot_id"`
	AppointmentTime *time.Time `json:"appointment_time"`
	Notes           string     `json:"notes" binding:"max=1000"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type AppointmentFilters struct {
	ClinicianID uuid.UUID
	Status      AppointmentStatus
	From        time.Time
	To          time.Time
}
