package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type bookingStore struct {
	*BaseRepository
}

func NewBookingStore(base BaseRepository) repository.BookingStore {
	return &bookingStore{
		BaseRepository: &base,
	}
}

// WithBookingTx runs fn in one database transaction. Row locks taken through
// the BookingTx are released on commit or rollback.
func (s *bookingStore) WithBookingTx(ctx context.Context, fn func(repository.BookingTx) error) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&bookingTx{tx: tx})
	})
}

type bookingTx struct {
	tx *sqlx.Tx
}

func (b *bookingTx) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	return getSlot(ctx, b.tx, `SELECT `+slotColumns+` FROM slots WHERE id = $1 FOR UPDATE`, id)
}

func (b *bookingTx) SetSlotAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return setSlotAvailability(ctx, b.tx, id, available)
}

func (b *bookingTx) CreateAppointment(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, clinician_id, patient_id, slot_id, appointment_time,
			status, notes, cancel_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	apt.Touch(time.Now().UTC())

	_, err := b.tx.ExecContext(ctx, query,
		apt.ID,
		apt.ClinicianID,
		apt.PatientID,
		apt.SlotID,
		apt.AppointmentTime.UTC(),
		string(apt.Status),
		apt.Notes,
		apt.CancelReason,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", translate(err))
	}
	return nil
}

func (b *bookingTx) ExistsOccupyingAt(ctx context.Context, clinicianID uuid.UUID, at time.Time) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM appointments
		WHERE clinician_id = $1 AND appointment_time = $2 AND status = ANY($3)
	)`
	var exists bool
	if err := b.tx.GetContext(ctx, &exists, query, clinicianID, at.UTC(), occupyingStatuses()); err != nil {
		return false, fmt.Errorf("failed to check clinician availability: %w", err)
	}
	return exists, nil
}

func (b *bookingTx) ExistsOccupyingBetween(ctx context.Context, clinicianID uuid.UUID, from, to time.Time) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM appointments
		WHERE clinician_id = $1 AND appointment_time >= $2 AND appointment_time < $3 AND status = ANY($4)
	)`
	var exists bool
	if err := b.tx.GetContext(ctx, &exists, query, clinicianID, from.UTC(), to.UTC(), occupyingStatuses()); err != nil {
		return false, fmt.Errorf("failed to check occupying appointments: %w", err)
	}
	return exists, nil
}

func (b *bookingTx) ListSlotsForDate(ctx context.Context, clinicianID uuid.UUID, date time.Time) ([]*model.Slot, error) {
	q := slotQueries{ext: b.tx}
	return q.ListByClinicianAndDate(ctx, clinicianID, date)
}

func (b *bookingTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return getAppointment(ctx, b.tx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
}

func (b *bookingTx) UpdateAppointmentStatus(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, cancel_reason = $2, updated_at = $3
		WHERE id = $4
	`
	apt.UpdatedAt = time.Now().UTC()

	result, err := b.tx.ExecContext(ctx, query, string(apt.Status), apt.CancelReason, apt.UpdatedAt, apt.ID)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", translate(err))
	}
	return expectOneRow(result, "appointment")
}

func (b *bookingTx) EnqueueEvent(ctx context.Context, evt *model.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, attempts, next_attempt_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := b.tx.ExecContext(ctx, query,
		evt.ID,
		evt.EventType,
		[]byte(evt.Payload),
		string(evt.Status),
		evt.Attempts,
		evt.NextAttemptAt,
		evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", evt.EventType, translate(err))
	}
	return nil
}
