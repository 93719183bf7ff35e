package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const outboxColumns = `id, event_type, payload, status, attempts, last_error, next_attempt_at, created_at, processed_at`

type outboxRepository struct {
	*BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{
		BaseRepository: &base,
	}
}

// ClaimPending pushes next_attempt_at of the claimed rows past the lease so a
// concurrent relay skips them. SKIP LOCKED keeps claimers from blocking each
// other.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET next_attempt_at = NOW() + make_interval(secs => $2)
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	var events []*model.OutboxEvent
	if err := r.db.SelectContext(ctx, &events, query, limit, lease.Seconds()); err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	sortOutbox(events)
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $1, processed_at = NOW(), attempts = attempts + 1, last_error = NULL
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusProcessed), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return expectOneRow(result, "outbox event")
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAt *time.Time) error {
	status := model.OutboxStatusPending
	next := time.Now().UTC()
	if retryAt == nil {
		status = model.OutboxStatusFailed
	} else {
		next = retryAt.UTC()
	}

	query := `
		UPDATE outbox_events
		SET status = $1, last_error = $2, next_attempt_at = $3, attempts = attempts + 1
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query, string(status), reason, next, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return expectOneRow(result, "outbox event")
}

// RETURNING gives no ordering guarantee.
func sortOutbox(events []*model.OutboxEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}
