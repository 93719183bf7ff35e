package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot is a concrete, dated, bookable interval [StartTime, EndTime) derived
// from a template. Only the generator creates slots and only the reservation
// protocol (and cancellation) flips Available.
type Slot struct {
	Base
	ClinicianID uuid.UUID `db:"clinician_id" json:"clinician_id"`
	Date        time.Time `db:"date" json:"date"`
	StartTime   TimeOfDay `db:"start_time" json:"start_time"`
	EndTime     TimeOfDay `db:"end_time" json:"end_time"`
	Available   bool      `db:"available" json:"available"`
}

// SlotKey is the deduplication identity of a slot.
type SlotKey struct {
	ClinicianID uuid.UUID
	Date        time.Time
	StartTime   TimeOfDay
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ClinicianID, k.Date.Format(DateLayout), k.StartTime)
}

func (s *Slot) Key() SlotKey {
	return SlotKey{ClinicianID: s.ClinicianID, Date: DateOf(s.Date), StartTime: s.StartTime}
}

func (s *Slot) StartAt() time.Time { return s.StartTime.On(s.Date) }
func (s *Slot) EndAt() time.Time   { return s.EndTime.On(s.Date) }

// Contains reports whether t falls in [start, end).
func (s *Slot) Contains(t time.Time) bool {
	return !t.Before(s.StartAt()) && t.Before(s.EndAt())
}

// SlotStatus is the display status of a slot.
type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "AVAILABLE"
	SlotStatusBooked    SlotStatus = "BOOKED"
)

// SlotView is a slot annotated with its derived status.
type SlotView struct {
	ID          uuid.UUID  `json:"id"`
	ClinicianID uuid.UUID  `json:"clinician_id"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Available   bool       `json:"available"`
	Status      SlotStatus `json:"status"`
}

// NewSlotView derives the view of s. booked is the result of the live
// appointment join; a slot is shown as booked when either the join finds an
// occupying appointment or the stored flag says it is taken.
func NewSlotView(s *Slot, booked bool) SlotView {
	booked = booked || !s.Available
	status := SlotStatusAvailable
	if booked {
		status = SlotStatusBooked
	}
	return SlotView{
		ID:          s.ID,
		ClinicianID: s.ClinicianID,
		Start:       s.StartAt(),
		End:         s.EndAt(),
		Available:   !booked,
		Status:      status,
	}
}
