package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/pkg/messaging"
)

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	messages []messaging.Message
}

func (p *flakyPublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures != 0 {
		if p.failures > 0 {
			p.failures--
		}
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, messaging.NewMessage(eventType, payload))
	return nil
}

func (p *flakyPublisher) Close() error { return nil }

func enqueueEvents(t *testing.T, store *memory.Store, types ...string) {
	t.Helper()
	err := store.Bookings().WithBookingTx(context.Background(), func(tx repository.BookingTx) error {
		for _, typ := range types {
			evt, err := model.NewOutboxEvent(typ, map[string]string{"type": typ})
			require.NoError(t, err)
			if err := tx.EnqueueEvent(context.Background(), evt); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func newRelay(t *testing.T, store *memory.Store, p messaging.Publisher, maxAttempts int) *OutboxRelay {
	t.Helper()
	r, err := NewOutboxRelay(store.Outbox(), p, OutboxRelayConfig{
		BatchSize:    10,
		PollInterval: time.Second,
		MaxAttempts:  maxAttempts,
		Lease:        time.Hour,
	}, nil, nil)
	require.NoError(t, err)
	return r
}

func TestOutboxRelayPublishesInOrder(t *testing.T) {
	store := memory.NewStore()
	enqueueEvents(t, store, messaging.EventBookingCreated, messaging.EventBookingCancelled)

	pub := &messaging.Recorder{}
	relay := newRelay(t, store, pub, 3)

	summary, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &RelaySummary{Claimed: 2, Published: 2}, summary)
	assert.Equal(t, []string{messaging.EventBookingCreated, messaging.EventBookingCancelled}, pub.Types())

	for _, e := range store.OutboxEvents() {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
		assert.Equal(t, 1, e.Attempts)
		assert.NotNil(t, e.ProcessedAt)
	}

	summary, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Claimed)
	assert.Len(t, pub.Types(), 2)
}

func TestOutboxRelayRetriesThenGivesUp(t *testing.T) {
	store := memory.NewStore()
	enqueueEvents(t, store, messaging.EventBookingCreated)

	pub := &flakyPublisher{failures: -1}
	relay := newRelay(t, store, pub, 2)
	ctx := context.Background()

	summary, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Retrying)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
	require.NotNil(t, events[0].LastError)
	assert.Equal(t, "broker unavailable", *events[0].LastError)

	summary, err = relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	events = store.OutboxEvents()
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 2, events[0].Attempts)

	summary, err = relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Claimed)
}

func TestOutboxRelayRecoversAfterTransientFailure(t *testing.T) {
	store := memory.NewStore()
	enqueueEvents(t, store, messaging.EventBookingCompleted)

	pub := &flakyPublisher{failures: 1}
	relay := newRelay(t, store, pub, 5)
	ctx := context.Background()

	_, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	summary, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Published)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, messaging.EventBookingCompleted, pub.messages[0].Type)
}

func TestOutboxRelayRejectsBadConfig(t *testing.T) {
	store := memory.NewStore()
	_, err := NewOutboxRelay(store.Outbox(), nil, OutboxRelayConfig{PollInterval: time.Second, MaxAttempts: 1}, nil, nil)
	assert.Error(t, err)
	_, err = NewOutboxRelay(store.Outbox(), nil, OutboxRelayConfig{BatchSize: 1, MaxAttempts: 1}, nil, nil)
	assert.Error(t, err)
	_, err = NewOutboxRelay(store.Outbox(), nil, OutboxRelayConfig{BatchSize: 1, PollInterval: time.Second}, nil, nil)
	assert.Error(t, err)
}

func TestOutboxRelayStopsWithContext(t *testing.T) {
	store := memory.NewStore()
	enqueueEvents(t, store, messaging.EventBookingCreated)
	pub := &messaging.Recorder{}
	relay, err := NewOutboxRelay(store.Outbox(), pub, OutboxRelayConfig{
		BatchSize:    10,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  1,
	}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pub.Types()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
