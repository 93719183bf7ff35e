package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.s.getAppointment(id)
}

func (r appointmentRepo) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return r.s.listAppointments(func(a model.Appointment) bool {
		if filters == nil {
			return true
		}
		if filters.ClinicianID != uuid.Nil && a.ClinicianID != filters.ClinicianID {
			return false
		}
		if filters.Status != "" && a.Status != filters.Status {
			return false
		}
		if !filters.From.IsZero() && a.AppointmentTime.Before(filters.From) {
			return false
		}
		if !filters.To.IsZero() && a.AppointmentTime.After(filters.To) {
			return false
		}
		return true
	}), nil
}

func (r appointmentRepo) ListOccupying(_ context.Context, clinicianID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	return r.s.listAppointments(func(a model.Appointment) bool {
		return a.ClinicianID == clinicianID && a.Status.Occupies() &&
			!a.AppointmentTime.Before(from) && !a.AppointmentTime.After(to)
	}), nil
}

func (r appointmentRepo) HasOccupyingForSlot(_ context.Context, slotID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.slotOccupied(slotID, uuid.Nil), nil
}

func (r appointmentRepo) OccupiedSlotIDs(_ context.Context, slotIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	occupied := make(map[uuid.UUID]bool, len(slotIDs))
	for _, id := range slotIDs {
		if r.s.slotOccupied(id, uuid.Nil) {
			occupied[id] = true
		}
	}
	return occupied, nil
}

// slotOccupied reports whether an occupying appointment other than except
// references the slot. Callers hold s.mu.
func (s *Store) slotOccupied(slotID, except uuid.UUID) bool {
	for _, a := range s.appointments {
		if a.ID != except && a.SlotID != nil && *a.SlotID == slotID && a.Status.Occupies() {
			return true
		}
	}
	return false
}

func (s *Store) getAppointment(id uuid.UUID) (*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", id, repository.ErrNotFound)
	}
	return cloneAppointment(a), nil
}

func (s *Store) listAppointments(match func(model.Appointment) bool) []*model.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Appointment
	for _, a := range s.appointments {
		if match(a) {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentTime.Before(out[j].AppointmentTime) })
	return out
}

func cloneAppointment(a model.Appointment) *model.Appointment {
	if a.SlotID != nil {
		id := *a.SlotID
		a.SlotID = &id
	}
	if a.CancelReason != nil {
		reason := *a.CancelReason
		a.CancelReason = &reason
	}
	return &a
}

type bookingStore struct{ s *Store }

func (b bookingStore) WithBookingTx(_ context.Context, fn func(repository.BookingTx) error) error {
	t := b.s.begin()
	return t.run(func() error {
		return fn(bookingTx{t})
	})
}

type bookingTx struct{ t *tx }

func (b bookingTx) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	if _, err := b.t.s.getSlot(id); err != nil {
		return nil, err
	}
	if err := b.t.lock(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to lock slot %s: %w", id, err)
	}
	return b.t.s.getSlot(id)
}

func (b bookingTx) SetSlotAvailability(_ context.Context, id uuid.UUID, available bool) error {
	return b.t.s.setSlotAvailability(b.t, id, available)
}

func (b bookingTx) CreateAppointment(_ context.Context, apt *model.Appointment) error {
	s := b.t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clinicians[apt.ClinicianID]; !ok {
		return fmt.Errorf("clinician %s: %w", apt.ClinicianID, repository.ErrNotFound)
	}
	apt.Touch(s.now())
	if apt.SlotID != nil && apt.Status.Occupies() && s.slotOccupied(*apt.SlotID, apt.ID) {
		return fmt.Errorf("slot %s already has an appointment: %w", *apt.SlotID, repository.ErrConflict)
	}
	s.appointments[apt.ID] = *cloneAppointment(*apt)
	id := apt.ID
	b.t.undo = append(b.t.undo, func() { delete(s.appointments, id) })
	return nil
}

func (b bookingTx) ExistsOccupyingAt(_ context.Context, clinicianID uuid.UUID, at time.Time) (bool, error) {
	s := b.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.appointments {
		if a.ClinicianID == clinicianID && a.Status.Occupies() && a.AppointmentTime.Equal(at) {
			return true, nil
		}
	}
	return false, nil
}

func (b bookingTx) ExistsOccupyingBetween(_ context.Context, clinicianID uuid.UUID, from, to time.Time) (bool, error) {
	s := b.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.appointments {
		if a.ClinicianID == clinicianID && a.Status.Occupies() &&
			!a.AppointmentTime.Before(from) && a.AppointmentTime.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (b bookingTx) ListSlotsForDate(_ context.Context, clinicianID uuid.UUID, date time.Time) ([]*model.Slot, error) {
	return b.t.s.listSlots(clinicianID, &date), nil
}

func (b bookingTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	if _, err := b.t.s.getAppointment(id); err != nil {
		return nil, err
	}
	if err := b.t.lock(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to lock appointment %s: %w", id, err)
	}
	return b.t.s.getAppointment(id)
}

func (b bookingTx) UpdateAppointmentStatus(_ context.Context, apt *model.Appointment) error {
	s := b.t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.appointments[apt.ID]
	if !ok {
		return fmt.Errorf("appointment %s: %w", apt.ID, repository.ErrNotFound)
	}
	if apt.SlotID != nil && apt.Status.Occupies() && !prev.Status.Occupies() && s.slotOccupied(*apt.SlotID, apt.ID) {
		return fmt.Errorf("slot %s already has an appointment: %w", *apt.SlotID, repository.ErrConflict)
	}
	next := prev
	next.Status = apt.Status
	next.CancelReason = apt.CancelReason
	next.UpdatedAt = s.now()
	apt.UpdatedAt = next.UpdatedAt
	s.appointments[apt.ID] = *cloneAppointment(next)
	b.t.undo = append(b.t.undo, func() { s.appointments[prev.ID] = prev })
	return nil
}

func (b bookingTx) EnqueueEvent(_ context.Context, evt *model.OutboxEvent) error {
	e := *evt
	e.Payload = append([]byte(nil), evt.Payload...)
	s := b.t.s
	b.t.commits = append(b.t.commits, func() {
		s.outbox[e.ID] = e
		s.outboxOrder = append(s.outboxOrder, e.ID)
	})
	return nil
}
