package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type outboxRepo struct{ s *Store }

// ClaimPending walks events in enqueue order.
func (r outboxRepo) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	var out []*model.OutboxEvent
	for _, id := range r.s.outboxOrder {
		if limit > 0 && len(out) == limit {
			break
		}
		e := r.s.outbox[id]
		if e.Status != model.OutboxStatusPending || e.NextAttemptAt.After(now) {
			continue
		}
		e.NextAttemptAt = now.Add(lease)
		r.s.outbox[id] = e
		claimed := e
		out = append(out, &claimed)
	}
	return out, nil
}

func (r outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return fmt.Errorf("outbox event %s: %w", id, repository.ErrNotFound)
	}
	now := r.s.now()
	e.Status = model.OutboxStatusProcessed
	e.Attempts++
	e.LastError = nil
	e.ProcessedAt = &now
	r.s.outbox[id] = e
	return nil
}

func (r outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string, retryAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return fmt.Errorf("outbox event %s: %w", id, repository.ErrNotFound)
	}
	e.Attempts++
	e.LastError = &reason
	if retryAt == nil {
		e.Status = model.OutboxStatusFailed
	} else {
		e.NextAttemptAt = *retryAt
	}
	r.s.outbox[id] = e
	return nil
}

// OutboxEvents returns every committed event in enqueue order.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OutboxEvent, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		out = append(out, s.outbox[id])
	}
	return out
}
