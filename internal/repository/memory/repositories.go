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

type clinicianRepo struct{ s *Store }

func (r clinicianRepo) Get(_ context.Context, id uuid.UUID) (*model.Clinician, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clinicians[id]
	if !ok {
		return nil, fmt.Errorf("clinician %s: %w", id, repository.ErrNotFound)
	}
	return &c, nil
}

func (r clinicianRepo) List(_ context.Context) ([]*model.Clinician, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.Clinician, 0, len(r.s.clinicians))
	for _, c := range r.s.clinicians {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type templateRepo struct{ s *Store }

func (r templateRepo) Create(_ context.Context, tpl *model.SlotTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clinicians[tpl.ClinicianID]; !ok {
		return fmt.Errorf("clinician %s: %w", tpl.ClinicianID, repository.ErrNotFound)
	}
	tpl.Touch(r.s.now())
	r.s.templates[tpl.ID] = *tpl
	return nil
}

func (r templateRepo) Update(_ context.Context, tpl *model.SlotTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[tpl.ID]; !ok {
		return fmt.Errorf("slot template %s: %w", tpl.ID, repository.ErrNotFound)
	}
	tpl.UpdatedAt = r.s.now()
	r.s.templates[tpl.ID] = *tpl
	return nil
}

func (r templateRepo) Get(_ context.Context, id uuid.UUID) (*model.SlotTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tpl, ok := r.s.templates[id]
	if !ok {
		return nil, fmt.Errorf("slot template %s: %w", id, repository.ErrNotFound)
	}
	return &tpl, nil
}

func (r templateRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[id]; !ok {
		return fmt.Errorf("slot template %s: %w", id, repository.ErrNotFound)
	}
	delete(r.s.templates, id)
	return nil
}

func (r templateRepo) ListByClinician(_ context.Context, clinicianID uuid.UUID) ([]*model.SlotTemplate, error) {
	return r.list(func(t model.SlotTemplate) bool { return t.ClinicianID == clinicianID }), nil
}

func (r templateRepo) ListByClinicianAndDay(_ context.Context, clinicianID uuid.UUID, day model.Weekday) ([]*model.SlotTemplate, error) {
	return r.list(func(t model.SlotTemplate) bool {
		return t.ClinicianID == clinicianID && t.DayOfWeek == day
	}), nil
}

func (r templateRepo) list(match func(model.SlotTemplate) bool) []*model.SlotTemplate {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.SlotTemplate
	for _, t := range r.s.templates {
		if match(t) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

type leaveRepo struct{ s *Store }

func (r leaveRepo) Create(_ context.Context, leave *model.Leave) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clinicians[leave.ClinicianID]; !ok {
		return fmt.Errorf("clinician %s: %w", leave.ClinicianID, repository.ErrNotFound)
	}
	if leave.ID == uuid.Nil {
		leave.ID = uuid.New()
	}
	leave.CreatedAt = r.s.now()
	leave.Date = model.DateOf(leave.Date)
	r.s.leaves[leave.ID] = *leave
	return nil
}

func (r leaveRepo) Get(_ context.Context, id uuid.UUID) (*model.Leave, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.leaves[id]
	if !ok {
		return nil, fmt.Errorf("leave %s: %w", id, repository.ErrNotFound)
	}
	return &l, nil
}

func (r leaveRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.leaves[id]; !ok {
		return fmt.Errorf("leave %s: %w", id, repository.ErrNotFound)
	}
	delete(r.s.leaves, id)
	return nil
}

func (r leaveRepo) ListByClinician(_ context.Context, clinicianID uuid.UUID, from, to time.Time) ([]*model.Leave, error) {
	from, to = model.DateOf(from), model.DateOf(to)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Leave
	for _, l := range r.s.leaves {
		if l.ClinicianID == clinicianID && !l.Date.Before(from) && !l.Date.After(to) {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r leaveRepo) ExistsActive(_ context.Context, clinicianID uuid.UUID, date time.Time) (bool, error) {
	date = model.DateOf(date)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, l := range r.s.leaves {
		if l.ClinicianID == clinicianID && l.Active && l.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}
