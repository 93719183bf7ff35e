package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Slot generation metrics
	SlotsCreated       *prometheus.CounterVec
	SlotsMarkedBooked  prometheus.Counter
	GenerationLatency  prometheus.Histogram
	RegenerationRuns   *prometheus.CounterVec
	RegenerationDates  *prometheus.CounterVec
	RegenerationLength prometheus.Histogram

	// Reservation metrics
	Reservations       *prometheus.CounterVec
	ReservationLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Event publishing metrics
	EventsPublished    *prometheus.CounterVec
	OutboxLatency      prometheus.Histogram
	OutboxEventsFailed prometheus.Counter
}

// New creates and registers all application metrics against reg. A nil reg
// uses the default registerer, which is what the binaries expose on /metrics.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SlotsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slots",
			Name:      "created_total",
			Help:      "Total number of slots inserted by the generator",
		}, []string{"source"}),
		SlotsMarkedBooked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slots",
			Name:      "reconciled_booked_total",
			Help:      "Slots flipped to unavailable during appointment reconciliation",
		}),
		GenerationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "slots",
			Name:      "generation_duration_seconds",
			Help:      "Time spent generating slots for one clinician and date",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		RegenerationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "runs_total",
			Help:      "Daily regeneration runs by trigger",
		}, []string{"trigger"}),
		RegenerationDates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "dates_total",
			Help:      "Clinician-dates visited by the regeneration job by outcome",
		}, []string{"outcome"}),
		RegenerationLength: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one regeneration run",
			Buckets:   prometheus.DefBuckets,
		}),
		Reservations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "reservations_total",
			Help:      "Reservation attempts by outcome",
		}, []string{"outcome"}),
		ReservationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "reservation_duration_seconds",
			Help:      "Time spent in the reserve-and-create transaction",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Booking events handed to the broker by status",
		}, []string{"event_type", "status"}),
		OutboxLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_duration_seconds",
			Help:      "Time spent relaying one batch of outbox events",
			Buckets:   prometheus.DefBuckets,
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Outbox events abandoned after exhausting their attempts",
		}),
	}
}

// Reservation outcomes
const (
	OutcomeBooked   = "booked"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Regeneration outcomes
const (
	OutcomeGenerated       = "generated"
	OutcomeSkippedLeave    = "skipped_leave"
	OutcomeSkippedTemplate = "skipped_no_template"
	OutcomeFailed          = "failed"
)

func (m *Metrics) ObserveReservation(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(outcome).Inc()
	m.ReservationLatency.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveGeneration(created, reconciled int, started time.Time) {
	if m == nil {
		return
	}
	m.SlotsCreated.WithLabelValues("generator").Add(float64(created))
	m.SlotsMarkedBooked.Add(float64(reconciled))
	m.GenerationLatency.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveRegenerationDate(outcome string) {
	if m == nil {
		return
	}
	m.RegenerationDates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRegenerationRun(trigger string, started time.Time) {
	if m == nil {
		return
	}
	m.RegenerationRuns.WithLabelValues(trigger).Inc()
	m.RegenerationLength.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveDB(operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DatabaseOperations.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) ObservePublish(eventType string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) ObserveOutboxBatch(started time.Time) {
	if m == nil {
		return
	}
	m.OutboxLatency.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveOutboxFailed() {
	if m == nil {
		return
	}
	m.OutboxEventsFailed.Inc()
}
