// Package memory is a process-local implementation of every repository port.
// It backs the service tests and the "memory" store driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type Store struct {
	mu           sync.RWMutex
	clinicians   map[uuid.UUID]model.Clinician
	templates    map[uuid.UUID]model.SlotTemplate
	leaves       map[uuid.UUID]model.Leave
	slots        map[uuid.UUID]model.Slot
	slotKeys     map[model.SlotKey]uuid.UUID
	appointments map[uuid.UUID]model.Appointment
	outbox       map[uuid.UUID]model.OutboxEvent
	outboxOrder  []uuid.UUID

	// rowLocks hold one single-slot semaphore per locked row. A semaphore is
	// owned by the transaction that acquired it until that transaction ends.
	rowLocks map[uuid.UUID]chan struct{}

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		clinicians:   make(map[uuid.UUID]model.Clinician),
		templates:    make(map[uuid.UUID]model.SlotTemplate),
		leaves:       make(map[uuid.UUID]model.Leave),
		slots:        make(map[uuid.UUID]model.Slot),
		slotKeys:     make(map[model.SlotKey]uuid.UUID),
		appointments: make(map[uuid.UUID]model.Appointment),
		outbox:       make(map[uuid.UUID]model.OutboxEvent),
		rowLocks:     make(map[uuid.UUID]chan struct{}),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Clinicians() repository.ClinicianRepository     { return clinicianRepo{s} }
func (s *Store) Templates() repository.SlotTemplateRepository   { return templateRepo{s} }
func (s *Store) Leaves() repository.LeaveRepository             { return leaveRepo{s} }
func (s *Store) Slots() repository.SlotRepository               { return slotRepo{s} }
func (s *Store) SlotGeneration() repository.SlotGenerationStore { return slotRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s} }
func (s *Store) Bookings() repository.BookingStore              { return bookingStore{s} }
func (s *Store) Outbox() repository.OutboxRepository            { return outboxRepo{s} }

// AddClinician registers a clinician. Clinicians are owned elsewhere; this
// is how local runs and tests seed them.
func (s *Store) AddClinician(c model.Clinician) model.Clinician {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Touch(s.now())
	if c.Status == "" {
		c.Status = "active"
	}
	s.clinicians[c.ID] = c
	return c
}

func (s *Store) lockRow(ctx context.Context, id uuid.UUID) (func(), error) {
	s.mu.Lock()
	lock, ok := s.rowLocks[id]
	if !ok {
		lock = make(chan struct{}, 1)
		s.rowLocks[id] = lock
	}
	s.mu.Unlock()

	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// tx is a unit of work over the store. Writes apply immediately and are
// reverted from the undo log on rollback. Deferred writes in commits only
// apply once the transaction succeeds.
type tx struct {
	s       *Store
	undo    []func()
	commits []func()
	unlocks []func()
	locked  map[uuid.UUID]bool
}

func (s *Store) begin() *tx {
	return &tx{s: s, locked: make(map[uuid.UUID]bool)}
}

func (t *tx) lock(ctx context.Context, id uuid.UUID) error {
	if t.locked[id] {
		return nil
	}
	unlock, err := t.s.lockRow(ctx, id)
	if err != nil {
		return err
	}
	t.locked[id] = true
	t.unlocks = append(t.unlocks, unlock)
	return nil
}

func (t *tx) end(commit bool) {
	t.s.mu.Lock()
	if commit {
		for _, apply := range t.commits {
			apply()
		}
	} else {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
	}
	t.s.mu.Unlock()
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
}

func (t *tx) run(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			t.end(false)
			panic(p)
		}
	}()
	if err = fn(); err != nil {
		t.end(false)
		return err
	}
	t.end(true)
	return nil
}

func sortSlots(slots []*model.Slot) []*model.Slot {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].StartTime < slots[j].StartTime
	})
	return slots
}
