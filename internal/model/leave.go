package model

import (
	"time"

	"github.com/google/uuid"
)

// Leave marks a date a clinician is unavailable. An active leave suppresses
// slot generation for that date.
type Leave struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ClinicianID uuid.UUID `db:"clinician_id" json:"clinician_id"`
	Date        time.Time `db:"date" json:"date"`
	Reason      string    `db:"reason" json:"reason,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type CreateLeaveRequest struct {
	Date   string `json:"date" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}
