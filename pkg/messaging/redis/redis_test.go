package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/pkg/messaging"
)

type fakeClient struct {
	err       error
	calls     int
	published [][]byte
	channels  []string
}

func (f *fakeClient) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.calls++
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.channels = append(f.channels, channel)
	f.published = append(f.published, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeClient) Close() error { return nil }

func TestPublishWrapsEnvelope(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, "booking.events", nil)

	err := p.Publish(context.Background(), messaging.EventBookingCreated, map[string]string{"slot_id": "abc"})
	require.NoError(t, err)
	require.Len(t, client.published, 1)
	assert.Equal(t, []string{"booking.events"}, client.channels)

	var msg struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(client.published[0], &msg))
	assert.Equal(t, messaging.EventBookingCreated, msg.Type)
	assert.Equal(t, "abc", msg.Payload["slot_id"])
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	p := newPublisher(client, "booking.events", nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.Error(t, p.Publish(ctx, messaging.EventBookingCreated, nil))
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	err := p.Publish(ctx, messaging.EventBookingCreated, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, client.calls)
}
