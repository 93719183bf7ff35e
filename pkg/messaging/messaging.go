package messaging

import (
	"context"
	"sync"
	"time"
)

// Booking event types.
const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
	EventSlotsRegenerated = "slots.regenerated"
)

// Publisher delivers events to interested consumers outside the process.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
	Close() error
}

// Message is the envelope every event is published in.
type Message struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func NewMessage(eventType string, payload interface{}) Message {
	return Message{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}

type nopPublisher struct{}

// NopPublisher drops every event. Used when no broker is configured.
func NopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (nopPublisher) Close() error                                       { return nil }

// Recorder keeps published messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Publish(_ context.Context, eventType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, NewMessage(eventType, payload))
	return nil
}

func (r *Recorder) Close() error { return nil }

// Messages returns a copy of everything published so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Types returns the event type of every published message in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Type
	}
	return out
}
