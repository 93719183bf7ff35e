package model

// Clinician is the schedule-holding entity slots are generated for. It is
// owned by the clinician management flows; this service only reads it.
type Clinician struct {
	Base
	Email  string `db:"email" json:"email"`
	Name   string `db:"name" json:"name"`
	Status string `db:"status" json:"status"`
}
