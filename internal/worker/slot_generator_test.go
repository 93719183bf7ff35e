package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/pkg/messaging"
)

type call struct {
	clinician uuid.UUID
	date      time.Time
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []call
	fail  func(clinicianID uuid.UUID, date time.Time) error
}

func (g *fakeGenerator) GenerateForClinician(_ context.Context, clinicianID uuid.UUID, date time.Time) ([]model.SlotView, error) {
	g.mu.Lock()
	g.calls = append(g.calls, call{clinicianID, date})
	g.mu.Unlock()
	if g.fail != nil {
		if err := g.fail(clinicianID, date); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (g *fakeGenerator) datesFor(id uuid.UUID) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, c := range g.calls {
		if c.clinician == id {
			out = append(out, c.date.Format(model.DateLayout))
		}
	}
	return out
}

// sunday is the first day of the test window.
var sunday = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func everyDay(t *testing.T, store *memory.Store, clinicianID uuid.UUID) {
	t.Helper()
	for d := model.Sunday; d <= model.Saturday; d++ {
		require.NoError(t, store.Templates().Create(context.Background(), &model.SlotTemplate{
			ClinicianID:         clinicianID,
			DayOfWeek:           d,
			StartTime:           model.NewTimeOfDay(9, 0),
			EndTime:             model.NewTimeOfDay(10, 0),
			SlotDurationMinutes: 30,
			Active:              true,
		}))
	}
}

func newWorker(t *testing.T, store *memory.Store, gen SlotGenerator) *SlotGenerationWorker {
	t.Helper()
	w, err := NewSlotGenerationWorker(store.Clinicians(), store.Templates(), store.Leaves(), gen,
		SlotGenerationConfig{DaysAhead: 7, Cron: "0 0 2 * * *"}, nil, nil)
	require.NoError(t, err)
	w.now = func() time.Time { return sunday.Add(2 * time.Hour) }
	return w
}

func TestRunOnceIsResilientToFailures(t *testing.T) {
	store := memory.NewStore()
	a := store.AddClinician(model.Clinician{Name: "A"})
	b := store.AddClinician(model.Clinician{Name: "B"})
	everyDay(t, store, a.ID)
	everyDay(t, store, b.ID)

	day3 := sunday.AddDate(0, 0, 2)
	gen := &fakeGenerator{fail: func(id uuid.UUID, date time.Time) error {
		if id == a.ID && date.Equal(day3) {
			return errors.New("storage unavailable")
		}
		if id == a.ID && date.Equal(day3.AddDate(0, 0, 1)) {
			panic("unexpected nil template")
		}
		return nil
	}}
	w := newWorker(t, store, gen)

	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Clinicians)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 12, summary.Generated)
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, a.ID, summary.Failures[0].ClinicianID)
	assert.Equal(t, "2026-10-20", summary.Failures[0].Date)

	assert.Len(t, gen.datesFor(a.ID), 7)
	assert.Equal(t, []string{
		"2026-10-18", "2026-10-19", "2026-10-20", "2026-10-21",
		"2026-10-22", "2026-10-23", "2026-10-24",
	}, gen.datesFor(b.ID))
}

func TestRunOnceSkipsLeaveAndMissingTemplates(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	c := store.AddClinician(model.Clinician{Name: "C"})
	for _, d := range []model.Weekday{model.Monday, model.Tuesday, model.Wednesday} {
		require.NoError(t, store.Templates().Create(ctx, &model.SlotTemplate{
			ClinicianID:         c.ID,
			DayOfWeek:           d,
			StartTime:           model.NewTimeOfDay(9, 0),
			EndTime:             model.NewTimeOfDay(10, 0),
			SlotDurationMinutes: 30,
			Active:              d != model.Wednesday,
		}))
	}
	require.NoError(t, store.Leaves().Create(ctx, &model.Leave{
		ClinicianID: c.ID,
		Date:        sunday.AddDate(0, 0, 2),
		Active:      true,
	}))

	gen := &fakeGenerator{}
	summary, err := newWorker(t, store, gen).RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-10-19"}, gen.datesFor(c.ID))
	assert.Equal(t, 1, summary.Generated)
	assert.Equal(t, 1, summary.SkippedLeave)
	assert.Equal(t, 5, summary.SkippedNoTemplate)
}

func TestTriggerRunsInBackground(t *testing.T) {
	store := memory.NewStore()
	c := store.AddClinician(model.Clinician{Name: "D"})
	everyDay(t, store, c.ID)

	gen := &fakeGenerator{}
	events := &messaging.Recorder{}
	w := newWorker(t, store, gen).WithPublisher(events)

	w.Trigger()
	w.Wait()

	assert.Len(t, gen.datesFor(c.ID), 7)
	assert.Equal(t, []string{messaging.EventSlotsRegenerated}, events.Types())
}

func TestNewSlotGenerationWorkerValidatesConfig(t *testing.T) {
	store := memory.NewStore()
	_, err := NewSlotGenerationWorker(store.Clinicians(), store.Templates(), store.Leaves(), &fakeGenerator{},
		SlotGenerationConfig{DaysAhead: 7, Cron: "every day"}, nil, nil)
	assert.Error(t, err)

	_, err = NewSlotGenerationWorker(store.Clinicians(), store.Templates(), store.Leaves(), &fakeGenerator{},
		SlotGenerationConfig{DaysAhead: 0, Cron: "0 0 2 * * *"}, nil, nil)
	assert.Error(t, err)
}
