package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// Run triggers
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

// cronParser accepts six-field expressions with a leading seconds field.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// SlotGenerator is the generation step the worker drives.
type SlotGenerator interface {
	GenerateForClinician(ctx context.Context, clinicianID uuid.UUID, date time.Time) ([]model.SlotView, error)
}

type SlotGenerationConfig struct {
	DaysAhead int
	Cron      string
	Location  *time.Location
}

// SlotGenerationWorker keeps a rolling window of slots materialized for every
// clinician. Runs are not mutually excluded; concurrent runs are safe because
// slot insertion is idempotent.
type SlotGenerationWorker struct {
	clinicians repository.ClinicianRepository
	templates  repository.SlotTemplateRepository
	leaves     repository.LeaveRepository
	generator  SlotGenerator
	publisher  messaging.Publisher
	config     SlotGenerationConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu      sync.Mutex
	baseCtx context.Context
	running sync.WaitGroup
}

// RunFailure records one clinician-date that could not be generated.
type RunFailure struct {
	ClinicianID uuid.UUID `json:"clinician_id"`
	Date        string    `json:"date"`
	Error       string    `json:"error"`
}

type RunSummary struct {
	Trigger           string       `json:"trigger"`
	From              string       `json:"from"`
	DaysAhead         int          `json:"days_ahead"`
	Clinicians        int          `json:"clinicians"`
	Generated         int          `json:"generated"`
	SkippedLeave      int          `json:"skipped_leave"`
	SkippedNoTemplate int          `json:"skipped_no_template"`
	Failed            int          `json:"failed"`
	Failures          []RunFailure `json:"failures,omitempty"`
	Duration          string       `json:"duration"`
}

func NewSlotGenerationWorker(
	clinicians repository.ClinicianRepository,
	templates repository.SlotTemplateRepository,
	leaves repository.LeaveRepository,
	generator SlotGenerator,
	config SlotGenerationConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) (*SlotGenerationWorker, error) {
	if config.DaysAhead <= 0 {
		return nil, fmt.Errorf("days ahead must be greater than 0")
	}
	if _, err := cronParser.Parse(config.Cron); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", config.Cron, err)
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SlotGenerationWorker{
		clinicians: clinicians,
		templates:  templates,
		leaves:     leaves,
		generator:  generator,
		publisher:  messaging.NopPublisher(),
		config:     config,
		logger:     log.WithComponent("slot_generation_worker"),
		metrics:    m,
		now:        time.Now,
		baseCtx:    context.Background(),
	}, nil
}

// WithPublisher announces every finished run on the event channel.
func (w *SlotGenerationWorker) WithPublisher(p messaging.Publisher) *SlotGenerationWorker {
	w.publisher = p
	return w
}

// Start runs the cron schedule until ctx is cancelled, then waits for any
// in-flight run to finish.
func (w *SlotGenerationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	w.baseCtx = ctx
	w.mu.Unlock()

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(w.config.Location),
		cron.WithLogger(w.logger),
		cron.WithChain(cron.Recover(w.logger)),
	)
	if _, err := c.AddFunc(w.config.Cron, func() {
		w.running.Add(1)
		defer w.running.Done()
		w.run(ctx, TriggerCron)
	}); err != nil {
		return fmt.Errorf("failed to schedule slot generation: %w", err)
	}

	w.logger.Info("slot generation scheduled",
		"cron", w.config.Cron,
		"timezone", w.config.Location.String(),
		"days_ahead", w.config.DaysAhead,
	)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	w.running.Wait()
	return nil
}

// Trigger starts a run in the background and returns immediately.
func (w *SlotGenerationWorker) Trigger() {
	w.mu.Lock()
	ctx := w.baseCtx
	w.mu.Unlock()

	w.running.Add(1)
	go func() {
		defer w.running.Done()
		w.run(ctx, TriggerManual)
	}()
}

// Wait blocks until every run started so far has finished.
func (w *SlotGenerationWorker) Wait() {
	w.running.Wait()
}

// RunOnce performs one synchronous run. Failures for a single clinician-date
// are logged and counted in the summary; only a failure to enumerate
// clinicians aborts the run.
func (w *SlotGenerationWorker) RunOnce(ctx context.Context) (*RunSummary, error) {
	return w.runWith(ctx, TriggerManual)
}

func (w *SlotGenerationWorker) run(ctx context.Context, trigger string) {
	summary, err := w.runWith(ctx, trigger)
	if err != nil {
		w.logger.Error(err, "slot generation run aborted", "trigger", trigger)
		return
	}
	if err := w.publisher.Publish(ctx, messaging.EventSlotsRegenerated, summary); err != nil {
		w.logger.Warn("failed to publish run summary", "error", err.Error())
	}
}

func (w *SlotGenerationWorker) runWith(ctx context.Context, trigger string) (*RunSummary, error) {
	started := time.Now()
	today := model.DateOf(w.now().In(w.config.Location))
	summary := &RunSummary{
		Trigger:   trigger,
		From:      today.Format(model.DateLayout),
		DaysAhead: w.config.DaysAhead,
	}
	defer func() {
		summary.Duration = time.Since(started).String()
		w.metrics.ObserveRegenerationRun(trigger, started)
	}()

	clinicians, err := w.clinicians.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinicians: %w", err)
	}
	summary.Clinicians = len(clinicians)

	for _, c := range clinicians {
		for i := 0; i < w.config.DaysAhead; i++ {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			date := today.AddDate(0, 0, i)
			outcome, err := w.processDate(ctx, c.ID, date)
			w.metrics.ObserveRegenerationDate(outcome)

			switch outcome {
			case metrics.OutcomeGenerated:
				summary.Generated++
			case metrics.OutcomeSkippedLeave:
				summary.SkippedLeave++
			case metrics.OutcomeSkippedTemplate:
				summary.SkippedNoTemplate++
			case metrics.OutcomeFailed:
				summary.Failed++
				summary.Failures = append(summary.Failures, RunFailure{
					ClinicianID: c.ID,
					Date:        date.Format(model.DateLayout),
					Error:       err.Error(),
				})
				w.logger.Error(err, "slot generation failed",
					"clinician_id", c.ID.String(),
					"date", date.Format(model.DateLayout),
				)
			}
		}
	}

	w.logger.Info("slot generation run finished",
		"trigger", trigger,
		"from", summary.From,
		"clinicians", summary.Clinicians,
		"generated", summary.Generated,
		"skipped_leave", summary.SkippedLeave,
		"skipped_no_template", summary.SkippedNoTemplate,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (w *SlotGenerationWorker) processDate(ctx context.Context, clinicianID uuid.UUID, date time.Time) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = metrics.OutcomeFailed
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	onLeave, err := w.leaves.ExistsActive(ctx, clinicianID, date)
	if err != nil {
		return metrics.OutcomeFailed, fmt.Errorf("failed to check leave: %w", err)
	}
	if onLeave {
		return metrics.OutcomeSkippedLeave, nil
	}

	templates, err := w.templates.ListByClinicianAndDay(ctx, clinicianID, model.WeekdayOf(date))
	if err != nil {
		return metrics.OutcomeFailed, fmt.Errorf("failed to list templates: %w", err)
	}
	if !anyActive(templates) {
		return metrics.OutcomeSkippedTemplate, nil
	}

	if _, err := w.generator.GenerateForClinician(ctx, clinicianID, date); err != nil {
		return metrics.OutcomeFailed, err
	}
	return metrics.OutcomeGenerated, nil
}

func anyActive(templates []*model.SlotTemplate) bool {
	for _, t := range templates {
		if t.Active {
			return true
		}
	}
	return false
}
