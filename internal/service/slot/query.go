package slot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

// Today is the current calendar date in the clinic's timezone.
func (s *Service) Today() time.Time {
	return model.DateOf(s.now())
}

type ListOptions struct {
	// Upcoming drops slots that have already ended.
	Upcoming bool
}

// ListForDate returns the clinician's slots for date. When none exist yet the
// generator runs first.
func (s *Service) ListForDate(ctx context.Context, clinicianID uuid.UUID, date time.Time, opts ListOptions) ([]model.SlotView, error) {
	date = model.DateOf(date)
	if err := s.requireClinician(ctx, clinicianID); err != nil {
		return nil, err
	}

	slots, err := s.slots.ListByClinicianAndDate(ctx, clinicianID, date)
	if err != nil {
		return nil, errors.Storage("list slots", err)
	}

	var views []model.SlotView
	if len(slots) == 0 {
		views, err = s.GenerateForClinician(ctx, clinicianID, date)
	} else {
		views, err = s.annotate(ctx, slots)
	}
	if err != nil {
		return nil, err
	}
	return s.filter(views, opts), nil
}

// ListAll returns every stored slot of the clinician across all dates.
func (s *Service) ListAll(ctx context.Context, clinicianID uuid.UUID, opts ListOptions) ([]model.SlotView, error) {
	if err := s.requireClinician(ctx, clinicianID); err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByClinician(ctx, clinicianID)
	if err != nil {
		return nil, errors.Storage("list slots", err)
	}
	views, err := s.annotate(ctx, slots)
	if err != nil {
		return nil, err
	}
	return s.filter(views, opts), nil
}

// CountFree returns how many slots of the date can still be booked.
func (s *Service) CountFree(ctx context.Context, clinicianID uuid.UUID, date time.Time) (int, error) {
	views, err := s.ListForDate(ctx, clinicianID, date, ListOptions{Upcoming: true})
	if err != nil {
		return 0, err
	}
	free := 0
	for _, v := range views {
		if v.Status == model.SlotStatusAvailable {
			free++
		}
	}
	return free, nil
}

// BackfillSummary reports a GenerateForAll run.
type BackfillSummary struct {
	Date       string   `json:"date"`
	Clinicians int      `json:"clinicians"`
	Slots      int      `json:"slots"`
	Failed     []string `json:"failed,omitempty"`
}

// GenerateForAll runs the generator for every clinician on one date. A
// failing clinician is logged and recorded in the summary; the rest still run.
func (s *Service) GenerateForAll(ctx context.Context, date time.Time) (*BackfillSummary, error) {
	date = model.DateOf(date)
	clinicians, err := s.clinicians.List(ctx)
	if err != nil {
		return nil, errors.Storage("list clinicians", err)
	}

	summary := &BackfillSummary{Date: date.Format(model.DateLayout)}
	for _, c := range clinicians {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		views, err := s.GenerateForClinician(ctx, c.ID, date)
		if err != nil {
			s.logger.Error(err, "slot backfill failed",
				"clinician_id", c.ID.String(),
				"date", summary.Date,
			)
			summary.Failed = append(summary.Failed, c.ID.String())
			continue
		}
		summary.Clinicians++
		summary.Slots += len(views)
	}
	return summary, nil
}

// annotate derives the display status of each slot from the stored flag and
// a live lookup of occupying appointments.
func (s *Service) annotate(ctx context.Context, slots []*model.Slot) ([]model.SlotView, error) {
	ids := make([]uuid.UUID, len(slots))
	for i, slot := range slots {
		ids[i] = slot.ID
	}
	occupied, err := s.appointments.OccupiedSlotIDs(ctx, ids)
	if err != nil {
		return nil, errors.Storage("load slot occupancy", err)
	}

	views := make([]model.SlotView, len(slots))
	for i, slot := range slots {
		views[i] = model.NewSlotView(slot, occupied[slot.ID])
	}
	return views, nil
}

func (s *Service) filter(views []model.SlotView, opts ListOptions) []model.SlotView {
	if !opts.Upcoming {
		return views
	}
	now := s.now()
	out := make([]model.SlotView, 0, len(views))
	for _, v := range views {
		if v.End.After(now) {
			out = append(out, v)
		}
	}
	return out
}
