package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type Service struct {
	bookings     repository.BookingStore
	appointments repository.AppointmentRepository
	clinicians   repository.ClinicianRepository
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewService(
	bookings repository.BookingStore,
	appointments repository.AppointmentRepository,
	clinicians repository.ClinicianRepository,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		bookings:     bookings,
		appointments: appointments,
		clinicians:   clinicians,
		logger:       log.WithComponent("appointment_service"),
		metrics:      m,
	}
}

// Event is the payload of booking events. Events are written to the outbox
// in the transaction that makes the change and relayed after commit.
type Event struct {
	AppointmentID   uuid.UUID               `json:"appointment_id"`
	ClinicianID     uuid.UUID               `json:"clinician_id"`
	PatientID       uuid.UUID               `json:"patient_id"`
	SlotID          *uuid.UUID              `json:"slot_id,omitempty"`
	AppointmentTime time.Time               `json:"appointment_time"`
	Status          model.AppointmentStatus `json:"status"`
}

// Book creates an appointment. With a slot id the slot is reserved and the
// appointment created in one transaction, the appointment taking the slot's
// time. Without one the appointment is created at the requested time if the
// clinician has no other appointment at that exact instant. That check is not
// serialized against concurrent requests for the same instant.
func (s *Service) Book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	started := time.Now()
	var (
		apt *model.Appointment
		err error
	)
	if req.SlotID != nil {
		apt, err = s.bookSlot(ctx, req)
	} else {
		apt, err = s.bookAt(ctx, req)
	}
	s.metrics.ObserveReservation(outcome(err), started)
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", apt.ID.String(),
		"clinician_id", apt.ClinicianID.String(),
		"appointment_time", apt.AppointmentTime.Format(time.RFC3339),
		"slot_bound", apt.SlotID != nil,
	)
	return apt, nil
}

func (s *Service) bookSlot(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.bookings.WithBookingTx(ctx, func(tx repository.BookingTx) error {
		slot, err := reserve(ctx, tx, *req.SlotID)
		if err != nil {
			return err
		}
		if req.ClinicianID != uuid.Nil && req.ClinicianID != slot.ClinicianID {
			return errors.Validation("slot does not belong to the requested clinician", nil)
		}

		slotID := slot.ID
		apt = &model.Appointment{
			ClinicianID:     slot.ClinicianID,
			PatientID:       req.PatientID,
			SlotID:          &slotID,
			AppointmentTime: slot.StartAt(),
			Status:          model.AppointmentStatusScheduled,
			Notes:           strings.TrimSpace(req.Notes),
		}
		if err := tx.CreateAppointment(ctx, apt); err != nil {
			if repository.IsConflict(err) {
				return errors.SlotAlreadyBooked(err)
			}
			return errors.Storage("create appointment", err)
		}
		return enqueue(ctx, tx, messaging.EventBookingCreated, apt)
	})
	if err != nil {
		return nil, asAppError("book slot", err)
	}
	return apt, nil
}

func (s *Service) bookAt(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if req.AppointmentTime == nil || req.AppointmentTime.IsZero() {
		return nil, errors.Validation("either slot_id or appointment_time is required", nil)
	}
	if _, err := s.clinicians.Get(ctx, req.ClinicianID); err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.NotFound("clinician", err)
		}
		return nil, errors.Storage("get clinician", err)
	}

	// appointment times are stored as clinic wall-clock values, like slots
	at := model.WallClock(*req.AppointmentTime)
	apt := &model.Appointment{
		ClinicianID:     req.ClinicianID,
		PatientID:       req.PatientID,
		AppointmentTime: at,
		Status:          model.AppointmentStatusScheduled,
		Notes:           strings.TrimSpace(req.Notes),
	}
	err := s.bookings.WithBookingTx(ctx, func(tx repository.BookingTx) error {
		busy, err := tx.ExistsOccupyingAt(ctx, req.ClinicianID, at)
		if err != nil {
			return errors.Storage("check clinician availability", err)
		}
		if busy {
			return errors.Conflict("clinician is not available at the requested time", nil)
		}
		if err := tx.CreateAppointment(ctx, apt); err != nil {
			return errors.Storage("create appointment", err)
		}
		return enqueue(ctx, tx, messaging.EventBookingCreated, apt)
	})
	if err != nil {
		return nil, asAppError("book appointment", err)
	}
	return apt, nil
}

// ReserveSlot marks the slot unavailable under a row lock and returns it.
// Only one of any number of concurrent callers for the same slot succeeds;
// the rest get a SlotAlreadyBooked error.
func (s *Service) ReserveSlot(ctx context.Context, slotID uuid.UUID) (*model.Slot, error) {
	started := time.Now()
	var slot *model.Slot
	err := s.bookings.WithBookingTx(ctx, func(tx repository.BookingTx) error {
		var err error
		slot, err = reserve(ctx, tx, slotID)
		return err
	})
	if err != nil {
		err = asAppError("reserve slot", err)
	}
	s.metrics.ObserveReservation(outcome(err), started)
	if err != nil {
		return nil, err
	}
	return slot, nil
}

func reserve(ctx context.Context, tx repository.BookingTx, slotID uuid.UUID) (*model.Slot, error) {
	slot, err := tx.GetSlotForUpdate(ctx, slotID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.NotFound("slot", err)
		}
		return nil, errors.Storage("lock slot", err)
	}
	if !slot.Available {
		return nil, errors.SlotAlreadyBooked(nil)
	}
	if err := tx.SetSlotAvailability(ctx, slot.ID, false); err != nil {
		return nil, errors.Storage("reserve slot", err)
	}
	slot.Available = false
	return slot, nil
}

// Cancel cancels a scheduled appointment and, in the same transaction, makes
// its slot bookable again. Cancelling an already cancelled appointment is a
// no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	var (
		apt      *model.Appointment
		changed  bool
		released bool
	)
	err := s.bookings.WithBookingTx(ctx, func(tx repository.BookingTx) error {
		var err error
		apt, err = lockAppointment(ctx, tx, id)
		if err != nil {
			return err
		}

		switch apt.Status {
		case model.AppointmentStatusCancelled:
			return nil
		case model.AppointmentStatusCompleted:
			return errors.Conflict("completed appointment cannot be cancelled", nil)
		case model.AppointmentStatusScheduled:
		}

		apt.Status = model.AppointmentStatusCancelled
		if reason = strings.TrimSpace(reason); reason != "" {
			apt.CancelReason = &reason
		}
		if err := tx.UpdateAppointmentStatus(ctx, apt); err != nil {
			return errors.Storage("cancel appointment", err)
		}
		changed = true

		released, err = release(ctx, tx, apt)
		if err != nil {
			return err
		}
		return enqueue(ctx, tx, messaging.EventBookingCancelled, apt)
	})
	if err != nil {
		return nil, asAppError("cancel appointment", err)
	}

	if changed {
		s.logger.Info("appointment cancelled",
			"appointment_id", apt.ID.String(),
			"slot_released", released,
		)
	}
	return apt, nil
}

// Complete marks a scheduled appointment as completed. The slot stays booked.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.bookings.WithBookingTx(ctx, func(tx repository.BookingTx) error {
		var err error
		apt, err = lockAppointment(ctx, tx, id)
		if err != nil {
			return err
		}
		switch apt.Status {
		case model.AppointmentStatusCompleted:
			return nil
		case model.AppointmentStatusCancelled:
			return errors.Conflict("cancelled appointment cannot be completed", nil)
		case model.AppointmentStatusScheduled:
		}
		apt.Status = model.AppointmentStatusCompleted
		if err := tx.UpdateAppointmentStatus(ctx, apt); err != nil {
			return errors.Storage("complete appointment", err)
		}
		return enqueue(ctx, tx, messaging.EventBookingCompleted, apt)
	})
	if err != nil {
		return nil, asAppError("complete appointment", err)
	}
	return apt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, errors.Storage("get appointment", err)
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.appointments.List(ctx, filters)
	if err != nil {
		return nil, errors.Storage("list appointments", err)
	}
	return appointments, nil
}

func lockAppointment(ctx context.Context, tx repository.BookingTx, id uuid.UUID) (*model.Appointment, error) {
	apt, err := tx.GetAppointmentForUpdate(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, errors.Storage("lock appointment", err)
	}
	return apt, nil
}

// release makes a cancelled appointment's slot bookable again. Appointments
// booked by time are matched to the slot whose window contains them. The slot
// stays booked while another occupying appointment falls inside it, and a
// slot that no longer exists is ignored.
func release(ctx context.Context, tx repository.BookingTx, apt *model.Appointment) (bool, error) {
	slotID := apt.SlotID
	if slotID == nil {
		slots, err := tx.ListSlotsForDate(ctx, apt.ClinicianID, model.DateOf(apt.AppointmentTime))
		if err != nil {
			return false, errors.Storage("list slots", err)
		}
		for _, candidate := range slots {
			if candidate.Contains(apt.AppointmentTime) {
				slotID = &candidate.ID
				break
			}
		}
		if slotID == nil {
			return false, nil
		}
	}

	slot, err := tx.GetSlotForUpdate(ctx, *slotID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Storage("lock slot", err)
	}
	busy, err := tx.ExistsOccupyingBetween(ctx, apt.ClinicianID, slot.StartAt(), slot.EndAt())
	if err != nil {
		return false, errors.Storage("check slot occupancy", err)
	}
	if busy {
		return false, nil
	}
	if err := tx.SetSlotAvailability(ctx, slot.ID, true); err != nil {
		return false, errors.Storage("release slot", err)
	}
	return true, nil
}

func enqueue(ctx context.Context, tx repository.BookingTx, eventType string, apt *model.Appointment) error {
	evt, err := model.NewOutboxEvent(eventType, Event{
		AppointmentID:   apt.ID,
		ClinicianID:     apt.ClinicianID,
		PatientID:       apt.PatientID,
		SlotID:          apt.SlotID,
		AppointmentTime: apt.AppointmentTime,
		Status:          apt.Status,
	})
	if err != nil {
		return errors.Internal(err)
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return errors.Storage("enqueue booking event", err)
	}
	return nil
}

// asAppError keeps errors raised inside the transaction and classifies the
// rest (begin and commit failures) as storage errors.
func asAppError(op string, err error) error {
	if _, ok := errors.CodeOf(err); ok {
		return err
	}
	return errors.Storage(op, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeBooked
	case errors.IsSlotAlreadyBooked(err), errors.IsConflict(err):
		return metrics.OutcomeConflict
	case errors.IsNotFound(err):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
