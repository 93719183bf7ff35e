package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type slotRepo struct{ s *Store }

func (r slotRepo) Insert(_ context.Context, slot *model.Slot) (bool, error) {
	return r.s.insertSlot(nil, slot)
}

func (r slotRepo) ListByClinicianAndDate(_ context.Context, clinicianID uuid.UUID, date time.Time) ([]*model.Slot, error) {
	return r.s.listSlots(clinicianID, &date), nil
}

func (r slotRepo) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	return r.s.setSlotAvailability(nil, id, available)
}

func (r slotRepo) Get(_ context.Context, id uuid.UUID) (*model.Slot, error) {
	return r.s.getSlot(id)
}

func (r slotRepo) ListByClinician(_ context.Context, clinicianID uuid.UUID) ([]*model.Slot, error) {
	return r.s.listSlots(clinicianID, nil), nil
}

func (r slotRepo) WithSlotTx(_ context.Context, fn func(repository.SlotWriter) error) error {
	t := r.s.begin()
	return t.run(func() error {
		return fn(slotTxWriter{t})
	})
}

type slotTxWriter struct{ t *tx }

func (w slotTxWriter) Insert(_ context.Context, slot *model.Slot) (bool, error) {
	return w.t.s.insertSlot(w.t, slot)
}

func (w slotTxWriter) ListByClinicianAndDate(_ context.Context, clinicianID uuid.UUID, date time.Time) ([]*model.Slot, error) {
	return w.t.s.listSlots(clinicianID, &date), nil
}

func (w slotTxWriter) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	return w.t.s.setSlotAvailability(w.t, id, available)
}

func (s *Store) insertSlot(t *tx, slot *model.Slot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clinicians[slot.ClinicianID]; !ok {
		return false, fmt.Errorf("clinician %s: %w", slot.ClinicianID, repository.ErrNotFound)
	}
	slot.Date = model.DateOf(slot.Date)
	key := slot.Key()
	if _, exists := s.slotKeys[key]; exists {
		return false, nil
	}
	slot.Touch(s.now())
	s.slots[slot.ID] = *slot
	s.slotKeys[key] = slot.ID
	if t != nil {
		id := slot.ID
		t.undo = append(t.undo, func() {
			delete(s.slots, id)
			delete(s.slotKeys, key)
		})
	}
	return true, nil
}

func (s *Store) getSlot(id uuid.UUID) (*model.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, fmt.Errorf("slot %s: %w", id, repository.ErrNotFound)
	}
	return &slot, nil
}

func (s *Store) listSlots(clinicianID uuid.UUID, date *time.Time) []*model.Slot {
	var day time.Time
	if date != nil {
		day = model.DateOf(*date)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Slot
	for _, slot := range s.slots {
		if slot.ClinicianID != clinicianID {
			continue
		}
		if date != nil && !slot.Date.Equal(day) {
			continue
		}
		slot := slot
		out = append(out, &slot)
	}
	return sortSlots(out)
}

func (s *Store) setSlotAvailability(t *tx, id uuid.UUID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return fmt.Errorf("slot %s: %w", id, repository.ErrNotFound)
	}
	prev := slot
	slot.Available = available
	slot.UpdatedAt = s.now()
	s.slots[id] = slot
	if t != nil {
		t.undo = append(t.undo, func() { s.slots[id] = prev })
	}
	return nil
}
