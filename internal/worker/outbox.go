package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type OutboxRelayConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxAttempts bounds delivery attempts per event before it is marked failed.
	MaxAttempts int
	RetryDelay  time.Duration
	// Lease hides a claimed event from other relays while it is in flight.
	Lease time.Duration
}

// OutboxRelay publishes committed booking events. Delivery is at least once:
// an event published just before a crash is published again after its lease
// expires.
type OutboxRelay struct {
	repo      repository.OutboxRepository
	publisher messaging.Publisher
	config    OutboxRelayConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// RelaySummary reports one pass over the outbox.
type RelaySummary struct {
	Claimed   int `json:"claimed"`
	Published int `json:"published"`
	Retrying  int `json:"retrying"`
	Failed    int `json:"failed"`
}

func NewOutboxRelay(
	repo repository.OutboxRepository,
	publisher messaging.Publisher,
	config OutboxRelayConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) (*OutboxRelay, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be greater than 0")
	}
	if config.RetryDelay < 0 {
		return nil, fmt.Errorf("retry delay must not be negative")
	}
	if config.Lease <= 0 {
		config.Lease = 30 * time.Second
	}
	if publisher == nil {
		publisher = messaging.NopPublisher()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OutboxRelay{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    log.WithComponent("outbox_relay"),
		metrics:   m,
		now:       time.Now,
	}, nil
}

// Start polls the outbox until ctx is cancelled.
func (r *OutboxRelay) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.logger.Info("starting outbox relay",
		"poll_interval", r.config.PollInterval.String(),
		"batch_size", r.config.BatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down outbox relay")
			return
		case <-ticker.C:
			if _, err := r.ProcessOnce(ctx); err != nil {
				r.logger.Error(err, "failed to process outbox")
			}
		}
	}
}

// ProcessOnce claims one batch and publishes it. A failed publish is retried
// on a later pass after RetryDelay; only claim failures are returned.
func (r *OutboxRelay) ProcessOnce(ctx context.Context) (*RelaySummary, error) {
	started := time.Now()
	defer r.metrics.ObserveOutboxBatch(started)

	events, err := r.repo.ClaimPending(ctx, r.config.BatchSize, r.config.Lease)
	r.metrics.ObserveDB("claim_outbox_events", err)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}

	summary := &RelaySummary{Claimed: len(events)}
	for _, evt := range events {
		switch r.relay(ctx, evt) {
		case model.OutboxStatusProcessed:
			summary.Published++
		case model.OutboxStatusFailed:
			summary.Failed++
		default:
			summary.Retrying++
		}
	}
	if summary.Claimed > 0 {
		r.logger.Debug("outbox batch relayed",
			"claimed", summary.Claimed,
			"published", summary.Published,
			"retrying", summary.Retrying,
			"failed", summary.Failed,
		)
	}
	return summary, nil
}

// relay returns the status the event was left in.
func (r *OutboxRelay) relay(ctx context.Context, evt *model.OutboxEvent) model.OutboxStatus {
	err := r.publisher.Publish(ctx, evt.EventType, evt.Payload)
	r.metrics.ObservePublish(evt.EventType, err)

	if err == nil {
		if err := r.repo.MarkProcessed(ctx, evt.ID); err != nil {
			// the lease expires and the event is published again
			r.logger.Error(err, "failed to mark outbox event processed", "event_id", evt.ID.String())
			return model.OutboxStatusPending
		}
		return model.OutboxStatusProcessed
	}

	attempt := evt.Attempts + 1
	var retryAt *time.Time
	status := model.OutboxStatusFailed
	if attempt < r.config.MaxAttempts {
		next := r.now().UTC().Add(r.config.RetryDelay)
		retryAt = &next
		status = model.OutboxStatusPending
	}

	r.logger.Warn("failed to publish outbox event",
		"event_id", evt.ID.String(),
		"event_type", evt.EventType,
		"attempt", attempt,
		"error", err.Error(),
	)
	if status == model.OutboxStatusFailed {
		r.metrics.ObserveOutboxFailed()
	}
	if markErr := r.repo.MarkFailed(ctx, evt.ID, err.Error(), retryAt); markErr != nil {
		r.logger.Error(markErr, "failed to record outbox failure", "event_id", evt.ID.String())
		return model.OutboxStatusPending
	}
	return status
}
