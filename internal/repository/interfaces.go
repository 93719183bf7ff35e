package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
)

// ErrNotFound is returned by every repository when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflicting record")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// All repository interfaces in one file
type (
	// ClinicianRepository is the read-only clinician lookup
	ClinicianRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Clinician, error)
		List(ctx context.Context) ([]*model.Clinician, error)
	}

	SlotTemplateRepository interface {
		Create(ctx context.Context, tpl *model.SlotTemplate) error
		Update(ctx context.Context, tpl *model.SlotTemplate) error
		Get(ctx context.Context, id uuid.UUID) (*model.SlotTemplate, error)
		Delete(ctx context.Context, id uuid.UUID) error
		ListByClinician(ctx context.Context, clinicianID uuid.UUID) ([]*model.SlotTemplate, error)
		ListByClinicianAndDay(ctx context.Context, clinicianID uuid.UUID, day model.Weekday) ([]*model.SlotTemplate, error)
	}

	LeaveRepository interface {
		Create(ctx context.Context, leave *model.Leave) error
		Get(ctx context.Context, id uuid.UUID) (*model.Leave, error)
		Delete(ctx context.Context, id uuid.UUID) error
		ListByClinician(ctx context.Context, clinicianID uuid.UUID, from, to time.Time) ([]*model.Leave, error)
		ExistsActive(ctx context.Context, clinicianID uuid.UUID, date time.Time) (bool, error)
	}

	// SlotWriter is the write side used by the generator, either directly or
	// inside a SlotGenerationStore transaction.
	SlotWriter interface {
		// Insert stores slot unless a slot with the same key exists. It
		// reports whether a row was created; on false the slot is left
		// untouched.
		Insert(ctx context.Context, slot *model.Slot) (bool, error)
		ListByClinicianAndDate(ctx context.Context, clinicianID uuid.UUID, date time.Time) ([]*model.Slot, error)
		SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	}

	SlotRepository interface {
		SlotWriter
		Get(ctx context.Context, id uuid.UUID) (*model.Slot, error)
		ListByClinician(ctx context.Context, clinicianID uuid.UUID) ([]*model.Slot, error)
	}

	// SlotGenerationStore runs one generation pass in a single transaction.
	SlotGenerationStore interface {
		WithSlotTx(ctx context.Context, fn func(SlotWriter) error) error
	}

	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// ListOccupying returns scheduled or completed appointments of the
		// clinician whose time lies in [from, to].
		ListOccupying(ctx context.Context, clinicianID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		HasOccupyingForSlot(ctx context.Context, slotID uuid.UUID) (bool, error)
		// OccupiedSlotIDs is the batch form of HasOccupyingForSlot.
		OccupiedSlotIDs(ctx context.Context, slotIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	}

	// BookingTx is the unit of work of the reservation protocol. Every call
	// made through one BookingTx commits or rolls back together.
	BookingTx interface {
		// GetSlotForUpdate reads the slot and holds an exclusive lock on its
		// row until the transaction ends.
		GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*model.Slot, error)
		SetSlotAvailability(ctx context.Context, id uuid.UUID, available bool) error
		CreateAppointment(ctx context.Context, apt *model.Appointment) error
		ExistsOccupyingAt(ctx context.Context, clinicianID uuid.UUID, at time.Time) (bool, error)
		// ExistsOccupyingBetween reports an occupying appointment of the
		// clinician with a time in [from, to).
		ExistsOccupyingBetween(ctx context.Context, clinicianID uuid.UUID, from, to time.Time) (bool, error)
		ListSlotsForDate(ctx context.Context, clinicianID uuid.UUID, date time.Time) ([]*model.Slot, error)
		GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		UpdateAppointmentStatus(ctx context.Context, apt *model.Appointment) error
		// EnqueueEvent records evt in the outbox; it becomes visible to the
		// relay only if the transaction commits.
		EnqueueEvent(ctx context.Context, evt *model.OutboxEvent) error
	}

	BookingStore interface {
		WithBookingTx(ctx context.Context, fn func(BookingTx) error) error
	}

	OutboxRepository interface {
		// ClaimPending returns up to limit due pending events and hides them
		// from other claimers for lease.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		// MarkFailed records a failed attempt. A nil retryAt gives up on the
		// event; otherwise it is retried from retryAt on.
		MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAt *time.Time) error
	}
)
