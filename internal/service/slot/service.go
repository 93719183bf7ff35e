package slot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type Service struct {
	clinicians   repository.ClinicianRepository
	templates    repository.SlotTemplateRepository
	slots        repository.SlotRepository
	appointments repository.AppointmentRepository
	leaves       repository.LeaveRepository
	generation   repository.SlotGenerationStore

	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

// WithGenerationStore runs each per-date generation pass in one transaction.
// Without it every insert commits on its own.
func WithGenerationStore(store repository.SlotGenerationStore) Option {
	return func(s *Service) { s.generation = store }
}

// WithLeaves makes the generator create nothing on dates the clinician is on leave.
func WithLeaves(leaves repository.LeaveRepository) Option {
	return func(s *Service) { s.leaves = leaves }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent("slot_service") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock behind Today and the upcoming filter. It must
// return the clinic wall-clock time as a naive UTC value (see model.WallClock).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	clinicians repository.ClinicianRepository,
	templates repository.SlotTemplateRepository,
	slots repository.SlotRepository,
	appointments repository.AppointmentRepository,
	opts ...Option,
) *Service {
	s := &Service{
		clinicians:   clinicians,
		templates:    templates,
		slots:        slots,
		appointments: appointments,
		logger:       logger.Nop(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateForClinician materializes the clinician's slots for date from the
// active templates of that weekday, then marks slots holding a scheduled or
// completed appointment as unavailable. It returns every slot of the date.
// Repeated calls converge on the same slot set.
func (s *Service) GenerateForClinician(ctx context.Context, clinicianID uuid.UUID, date time.Time) ([]model.SlotView, error) {
	started := time.Now()
	date = model.DateOf(date)

	if err := s.requireClinician(ctx, clinicianID); err != nil {
		return nil, err
	}

	templates, err := s.templates.ListByClinicianAndDay(ctx, clinicianID, model.WeekdayOf(date))
	if err != nil {
		return nil, errors.Storage("list slot templates", err)
	}
	if len(templates) == 0 {
		return []model.SlotView{}, nil
	}

	onLeave, err := s.onLeave(ctx, clinicianID, date)
	if err != nil {
		return nil, err
	}

	var created, reconciled int
	if !onLeave {
		pass := func(w repository.SlotWriter) error {
			var err error
			created, reconciled, err = s.generate(ctx, w, clinicianID, date, s.usable(templates))
			return err
		}
		if s.generation != nil {
			err = s.generation.WithSlotTx(ctx, pass)
		} else {
			err = pass(s.slots)
		}
		if err != nil {
			return nil, errors.Storage("slot generation", err)
		}
	}

	slots, err := s.slots.ListByClinicianAndDate(ctx, clinicianID, date)
	if err != nil {
		return nil, errors.Storage("list slots", err)
	}
	views, err := s.annotate(ctx, slots)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveGeneration(created, reconciled, started)
	s.logger.Debug("slots generated",
		"clinician_id", clinicianID.String(),
		"date", date.Format(model.DateLayout),
		"created", created,
		"reconciled", reconciled,
		"on_leave", onLeave,
	)
	return views, nil
}

// usable keeps active templates. Templates that break the template rules are
// logged and treated as inactive.
func (s *Service) usable(templates []*model.SlotTemplate) []*model.SlotTemplate {
	out := make([]*model.SlotTemplate, 0, len(templates))
	for _, tpl := range templates {
		if !tpl.Active {
			continue
		}
		if !tpl.Valid() {
			s.logger.Warn("skipping invalid slot template",
				"template_id", tpl.ID.String(),
				"clinician_id", tpl.ClinicianID.String(),
				"start_time", tpl.StartTime.String(),
				"end_time", tpl.EndTime.String(),
				"slot_duration_minutes", tpl.SlotDurationMinutes,
			)
			continue
		}
		out = append(out, tpl)
	}
	return out
}

func (s *Service) generate(ctx context.Context, w repository.SlotWriter, clinicianID uuid.UUID, date time.Time, templates []*model.SlotTemplate) (int, int, error) {
	existing, err := w.ListByClinicianAndDate(ctx, clinicianID, date)
	if err != nil {
		return 0, 0, err
	}
	taken := make(map[model.TimeOfDay]bool, len(existing))
	for _, slot := range existing {
		taken[slot.StartTime] = true
	}

	created := 0
	for _, tpl := range templates {
		for _, candidate := range Slice(tpl, date) {
			if taken[candidate.StartTime] {
				continue
			}
			ok, err := w.Insert(ctx, candidate)
			if err != nil {
				return created, 0, err
			}
			taken[candidate.StartTime] = true
			if ok {
				created++
			}
		}
	}

	reconciled, err := s.reconcile(ctx, w, clinicianID, date)
	return created, reconciled, err
}

// reconcile marks every available slot of the date that contains the time of
// a scheduled or completed appointment as unavailable.
func (s *Service) reconcile(ctx context.Context, w repository.SlotWriter, clinicianID uuid.UUID, date time.Time) (int, error) {
	dayEnd := date.Add(24*time.Hour - time.Millisecond)
	appointments, err := s.appointments.ListOccupying(ctx, clinicianID, date, dayEnd)
	if err != nil {
		return 0, err
	}
	if len(appointments) == 0 {
		return 0, nil
	}

	slots, err := w.ListByClinicianAndDate(ctx, clinicianID, date)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		for _, apt := range appointments {
			if !apt.Status.Occupies() || !slot.Contains(apt.AppointmentTime) {
				continue
			}
			if err := w.SetAvailability(ctx, slot.ID, false); err != nil {
				return marked, err
			}
			marked++
			break
		}
	}
	return marked, nil
}

func (s *Service) requireClinician(ctx context.Context, clinicianID uuid.UUID) error {
	if _, err := s.clinicians.Get(ctx, clinicianID); err != nil {
		if repository.IsNotFound(err) {
			return errors.NotFound("clinician", err)
		}
		return errors.Storage("get clinician", err)
	}
	return nil
}

func (s *Service) onLeave(ctx context.Context, clinicianID uuid.UUID, date time.Time) (bool, error) {
	if s.leaves == nil {
		return false, nil
	}
	onLeave, err := s.leaves.ExistsActive(ctx, clinicianID, date)
	if err != nil {
		return false, errors.Storage("check leave", err)
	}
	return onLeave, nil
}
