package appointment

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type fixture struct {
	store     *memory.Store
	svc       *Service
	metrics   *metrics.Metrics
	clinician model.Clinician
	slot      *model.Slot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	c := store.AddClinician(model.Clinician{Name: "Dr. Moreau"})
	slot := &model.Slot{
		ClinicianID: c.ID,
		Date:        time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
		StartTime:   model.NewTimeOfDay(10, 0),
		EndTime:     model.NewTimeOfDay(10, 20),
		Available:   true,
	}
	_, err := store.Slots().Insert(context.Background(), slot)
	require.NoError(t, err)

	m := metrics.New("test", prometheus.NewRegistry())
	svc := NewService(store.Bookings(), store.Appointments(), store.Clinicians(), logger.Nop(), m)
	return &fixture{store: store, svc: svc, metrics: m, clinician: c, slot: slot}
}

// eventTypes lists the committed outbox events in order.
func (f *fixture) eventTypes() []string {
	var types []string
	for _, e := range f.store.OutboxEvents() {
		types = append(types, e.EventType)
	}
	return types
}

func (f *fixture) request() *model.CreateAppointmentRequest {
	id := f.slot.ID
	return &model.CreateAppointmentRequest{
		ClinicianID: f.clinician.ID,
		PatientID:   uuid.New(),
		SlotID:      &id,
	}
}

func TestBookSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the slot time", func(t *testing.T) {
		f := newFixture(t)
		req := f.request()
		requested := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
		req.AppointmentTime = &requested

		apt, err := f.svc.Book(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, f.slot.StartAt(), apt.AppointmentTime)
		assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
		require.NotNil(t, apt.SlotID)
		assert.Equal(t, f.slot.ID, *apt.SlotID)

		stored, err := f.store.Slots().Get(ctx, f.slot.ID)
		require.NoError(t, err)
		assert.False(t, stored.Available)
		assert.Equal(t, []string{messaging.EventBookingCreated}, f.eventTypes())
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Reservations.WithLabelValues(metrics.OutcomeBooked)))
	})

	t.Run("second booking conflicts", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, f.request())
		require.NoError(t, err)

		_, err = f.svc.Book(ctx, f.request())
		assert.True(t, apperrors.IsSlotAlreadyBooked(err))
		assert.False(t, apperrors.IsNotFound(err))
		assert.Len(t, f.eventTypes(), 1)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Reservations.WithLabelValues(metrics.OutcomeConflict)))
	})

	t.Run("unknown slot", func(t *testing.T) {
		f := newFixture(t)
		req := f.request()
		missing := uuid.New()
		req.SlotID = &missing

		_, err := f.svc.Book(ctx, req)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("clinician mismatch rolls back the reservation", func(t *testing.T) {
		f := newFixture(t)
		req := f.request()
		req.ClinicianID = uuid.New()

		_, err := f.svc.Book(ctx, req)
		assert.True(t, apperrors.IsValidation(err))

		stored, err := f.store.Slots().Get(ctx, f.slot.ID)
		require.NoError(t, err)
		assert.True(t, stored.Available)
		assert.Empty(t, f.eventTypes())
	})
}

func TestConcurrentReservationsOfOneSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const attempts = 32

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Book(ctx, f.request())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperrors.IsSlotAlreadyBooked(err):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)

	stored, err := f.store.Slots().Get(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available)

	linked, err := f.store.Appointments().List(ctx, &model.AppointmentFilters{ClinicianID: f.clinician.ID})
	require.NoError(t, err)
	assert.Len(t, linked, 1)
}

func TestReservationsOfDifferentSlotsDoNotContend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := &model.Slot{
		ClinicianID: f.clinician.ID,
		Date:        f.slot.Date,
		StartTime:   model.NewTimeOfDay(10, 20),
		EndTime:     model.NewTimeOfDay(10, 40),
		Available:   true,
	}
	_, err := f.store.Slots().Insert(ctx, other)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{f.slot.ID, other.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.svc.ReserveSlot(ctx, id)
		}(i, id)
	}
	wg.Wait()
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestReserveSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, err := f.svc.ReserveSlot(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.False(t, slot.Available)

	_, err = f.svc.ReserveSlot(ctx, f.slot.ID)
	assert.True(t, apperrors.IsSlotAlreadyBooked(err))

	_, err = f.svc.ReserveSlot(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBookAtTime(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)

	t.Run("creates an unlinked appointment", func(t *testing.T) {
		f := newFixture(t)
		apt, err := f.svc.Book(ctx, &model.CreateAppointmentRequest{
			ClinicianID:     f.clinician.ID,
			PatientID:       uuid.New(),
			AppointmentTime: &at,
		})
		require.NoError(t, err)
		assert.Nil(t, apt.SlotID)
		assert.Equal(t, at, apt.AppointmentTime)
	})

	t.Run("rejects an occupied instant", func(t *testing.T) {
		f := newFixture(t)
		req := &model.CreateAppointmentRequest{ClinicianID: f.clinician.ID, PatientID: uuid.New(), AppointmentTime: &at}
		_, err := f.svc.Book(ctx, req)
		require.NoError(t, err)

		_, err = f.svc.Book(ctx, req)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("requires a time", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, &model.CreateAppointmentRequest{ClinicianID: f.clinician.ID, PatientID: uuid.New()})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("unknown clinician", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, &model.CreateAppointmentRequest{ClinicianID: uuid.New(), PatientID: uuid.New(), AppointmentTime: &at})
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.Book(ctx, f.request())
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, apt.ID, "  patient request ")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "patient request", *cancelled.CancelReason)

	stored, err := f.store.Slots().Get(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.Available)

	again, err := f.svc.Cancel(ctx, apt.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, again.Status)

	rebooked, err := f.svc.Book(ctx, f.request())
	require.NoError(t, err)
	assert.NotEqual(t, apt.ID, rebooked.ID)
	assert.Equal(t, []string{
		messaging.EventBookingCreated,
		messaging.EventBookingCancelled,
		messaging.EventBookingCreated,
	}, f.eventTypes())
}

func TestCancelReleasesSlotOfTimedBooking(t *testing.T) {
	ctx := context.Background()

	bookAt := func(t *testing.T, f *fixture, hour, minute int) *model.Appointment {
		t.Helper()
		at := time.Date(2026, 10, 20, hour, minute, 0, 0, time.UTC)
		apt, err := f.svc.Book(ctx, &model.CreateAppointmentRequest{
			ClinicianID:     f.clinician.ID,
			PatientID:       uuid.New(),
			AppointmentTime: &at,
		})
		require.NoError(t, err)
		require.Nil(t, apt.SlotID)
		// generation marks the covering slot as taken
		require.NoError(t, f.store.Slots().SetAvailability(ctx, f.slot.ID, false))
		return apt
	}

	t.Run("frees the covering slot", func(t *testing.T) {
		f := newFixture(t)
		apt := bookAt(t, f, 10, 5)

		_, err := f.svc.Cancel(ctx, apt.ID, "")
		require.NoError(t, err)

		stored, err := f.store.Slots().Get(ctx, f.slot.ID)
		require.NoError(t, err)
		assert.True(t, stored.Available)

		_, err = f.svc.Book(ctx, f.request())
		assert.NoError(t, err)
	})

	t.Run("keeps the slot while another appointment occupies it", func(t *testing.T) {
		f := newFixture(t)
		first := bookAt(t, f, 10, 5)
		bookAt(t, f, 10, 10)

		_, err := f.svc.Cancel(ctx, first.ID, "")
		require.NoError(t, err)

		stored, err := f.store.Slots().Get(ctx, f.slot.ID)
		require.NoError(t, err)
		assert.False(t, stored.Available)
	})

	t.Run("outside every slot", func(t *testing.T) {
		f := newFixture(t)
		apt := bookAt(t, f, 15, 0)

		_, err := f.svc.Cancel(ctx, apt.ID, "")
		require.NoError(t, err)

		stored, err := f.store.Slots().Get(ctx, f.slot.ID)
		require.NoError(t, err)
		assert.False(t, stored.Available)
	})
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.Book(ctx, f.request())
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	_, err = f.svc.Cancel(ctx, apt.ID, "")
	assert.True(t, apperrors.IsConflict(err))

	stored, err := f.store.Slots().Get(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available)

	again, err := f.svc.Complete(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, again.Status)
	assert.Equal(t, []string{messaging.EventBookingCreated, messaging.EventBookingCompleted}, f.eventTypes())

	_, err = f.svc.Complete(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBookingEventPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.Book(ctx, f.request())
	require.NoError(t, err)

	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	var payload Event
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, apt.ID, payload.AppointmentID)
	assert.Equal(t, f.clinician.ID, payload.ClinicianID)
	require.NotNil(t, payload.SlotID)
	assert.Equal(t, f.slot.ID, *payload.SlotID)
	assert.Equal(t, model.AppointmentStatusScheduled, payload.Status)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.Book(ctx, f.request())
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, apt.ID, got.ID)

	_, err = f.svc.Get(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))

	list, err := f.svc.List(ctx, &model.AppointmentFilters{ClinicianID: f.clinician.ID, Status: model.AppointmentStatusScheduled})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
