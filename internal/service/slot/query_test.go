package slot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

func TestListForDate(t *testing.T) {
	ctx := context.Background()

	t.Run("generates lazily on first read", func(t *testing.T) {
		f := newFixture(t)
		f.template(t, model.Monday, model.NewTimeOfDay(9, 0), model.NewTimeOfDay(10, 0), 20, true)

		views, err := f.svc.ListForDate(ctx, f.clinician.ID, monday, ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:20", "09:40"}, starts(views))
	})

	t.Run("upcoming hides ended slots", func(t *testing.T) {
		noon := monday.Add(9*time.Hour + 30*time.Minute)
		f := newFixture(t, WithClock(func() time.Time { return noon }))
		f.template(t, model.Monday, model.NewTimeOfDay(9, 0), model.NewTimeOfDay(10, 0), 20, true)

		views, err := f.svc.ListForDate(ctx, f.clinician.ID, monday, ListOptions{Upcoming: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"09:20", "09:40"}, starts(views))
	})

	t.Run("status follows slot-linked appointments", func(t *testing.T) {
		f := newFixture(t)
		f.template(t, model.Monday, model.NewTimeOfDay(9, 0), model.NewTimeOfDay(10, 0), 30, true)
		views, err := f.svc.ListForDate(ctx, f.clinician.ID, monday, ListOptions{})
		require.NoError(t, err)
		require.Len(t, views, 2)

		slotID := views[1].ID
		require.NoError(t, f.store.Bookings().WithBookingTx(ctx, func(tx repository.BookingTx) error {
			return tx.CreateAppointment(ctx, &model.Appointment{
				ClinicianID:     f.clinician.ID,
				PatientID:       uuid.New(),
				SlotID:          &slotID,
				AppointmentTime: views[1].Start,
				Status:          model.AppointmentStatusScheduled,
			})
		}))

		views, err = f.svc.ListForDate(ctx, f.clinician.ID, monday, ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, model.SlotStatusAvailable, views[0].Status)
		assert.Equal(t, model.SlotStatusBooked, views[1].Status)
		assert.False(t, views[1].Available)

		free, err := f.svc.CountFree(ctx, f.clinician.ID, monday)
		require.NoError(t, err)
		assert.Equal(t, 1, free)
	})

	t.Run("unknown clinician", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ListForDate(ctx, uuid.New(), monday, ListOptions{})
		assert.True(t, apperrors.IsNotFound(err))
		_, err = f.svc.ListAll(ctx, uuid.New(), ListOptions{})
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestListAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.template(t, model.Monday, model.NewTimeOfDay(9, 0), model.NewTimeOfDay(10, 0), 30, true)
	f.template(t, model.Tuesday, model.NewTimeOfDay(13, 0), model.NewTimeOfDay(14, 0), 60, true)

	_, err := f.svc.GenerateForClinician(ctx, f.clinician.ID, monday)
	require.NoError(t, err)
	_, err = f.svc.GenerateForClinician(ctx, f.clinician.ID, monday.AddDate(0, 0, 1))
	require.NoError(t, err)

	views, err := f.svc.ListAll(ctx, f.clinician.ID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.True(t, views[0].Start.Before(views[2].Start))
}

func TestGenerateForAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := f.store.AddClinician(model.Clinician{Name: "Dr. Haddad"})
	f.template(t, model.Monday, model.NewTimeOfDay(9, 0), model.NewTimeOfDay(10, 0), 30, true)
	require.NoError(t, f.store.Templates().Create(ctx, &model.SlotTemplate{
		ClinicianID:         other.ID,
		DayOfWeek:           model.Monday,
		StartTime:           model.NewTimeOfDay(8, 0),
		EndTime:             model.NewTimeOfDay(9, 0),
		SlotDurationMinutes: 15,
		Active:              true,
	}))

	summary, err := f.svc.GenerateForAll(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", summary.Date)
	assert.Equal(t, 2, summary.Clinicians)
	assert.Equal(t, 6, summary.Slots)
	assert.Empty(t, summary.Failed)
}
