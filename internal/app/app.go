// Package app wires configuration into stores, services and the regeneration
// worker. Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/repository/cache"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/internal/service/appointment"
	"github.com/jwalitptl/booking-api/internal/service/leave"
	"github.com/jwalitptl/booking-api/internal/service/slot"
	"github.com/jwalitptl/booking-api/internal/service/template"
	"github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/messaging/redis"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "booking"

// Stores is one persistence backend behind the repository ports.
type Stores struct {
	Clinicians   repository.ClinicianRepository
	Templates    repository.SlotTemplateRepository
	Leaves       repository.LeaveRepository
	Slots        repository.SlotRepository
	Generation   repository.SlotGenerationStore
	Appointments repository.AppointmentRepository
	Bookings     repository.BookingStore
	Outbox       repository.OutboxRepository
}

type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	DB        *sqlx.DB
	Stores    Stores
	Publisher messaging.Publisher

	Slots        *slot.Service
	Appointments *appointment.Service
	Templates    *template.Service
	Leaves       *leave.Service
	Worker       *worker.SlotGenerationWorker
	Relay        *worker.OutboxRelay
}

// NewLogger builds the service logger and points the global zerolog logger,
// used by the HTTP middleware, at the same output.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(logger.Config{
		Level:  cfg.Level,
		Output: os.Stdout,
		JSON:   cfg.JSON,
	})
	log.Logger = *l.Zerolog()
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Level))
	return l
}

// New opens the configured store and builds every service. Close releases
// what it opened.
func New(ctx context.Context, cfg *config.Config, l *logger.Logger) (*App, error) {
	loc, err := cfg.Slots.Location()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:   cfg,
		Logger:   l,
		Registry: registry,
		Metrics:  metrics.New(MetricsNamespace, registry),
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	a.Stores.Clinicians = cache.NewClinicianRepository(a.Stores.Clinicians, cfg.Cache.ClinicianTTL, cfg.Cache.CleanupInterval)

	if err := a.openPublisher(); err != nil {
		a.Close()
		return nil, err
	}

	slotOpts := []slot.Option{
		slot.WithLeaves(a.Stores.Leaves),
		slot.WithLogger(l),
		slot.WithMetrics(a.Metrics),
		slot.WithClock(func() time.Time { return model.WallClock(time.Now().In(loc)) }),
	}
	if cfg.Slots.Transactional {
		slotOpts = append(slotOpts, slot.WithGenerationStore(a.Stores.Generation))
	}
	a.Slots = slot.NewService(a.Stores.Clinicians, a.Stores.Templates, a.Stores.Slots, a.Stores.Appointments, slotOpts...)
	a.Appointments = appointment.NewService(a.Stores.Bookings, a.Stores.Appointments, a.Stores.Clinicians, l, a.Metrics)
	a.Templates = template.NewService(a.Stores.Templates, a.Stores.Clinicians, l)
	a.Leaves = leave.NewService(a.Stores.Leaves, a.Stores.Clinicians, l)

	w, err := worker.NewSlotGenerationWorker(
		a.Stores.Clinicians,
		a.Stores.Templates,
		a.Stores.Leaves,
		a.Slots,
		worker.SlotGenerationConfig{
			DaysAhead: cfg.Slots.DaysAhead,
			Cron:      cfg.Slots.Cron,
			Location:  loc,
		},
		l,
		a.Metrics,
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Worker = w.WithPublisher(a.Publisher)

	a.Relay, err = worker.NewOutboxRelay(a.Stores.Outbox, a.Publisher, worker.OutboxRelayConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		RetryDelay:   cfg.Outbox.RetryDelay,
		Lease:        cfg.Outbox.Lease,
	}, l, a.Metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Store.Driver {
	case "memory":
		store := memory.NewStore()
		for _, name := range a.Config.Store.Clinicians {
			c := store.AddClinician(model.Clinician{Name: name, Status: "active"})
			a.Logger.Info("seeded clinician", "clinician_id", c.ID.String(), "name", name)
		}
		a.Stores = Stores{
			Clinicians:   store.Clinicians(),
			Templates:    store.Templates(),
			Leaves:       store.Leaves(),
			Slots:        store.Slots(),
			Generation:   store.SlotGeneration(),
			Appointments: store.Appointments(),
			Bookings:     store.Bookings(),
			Outbox:       store.Outbox(),
		}
		a.Logger.Warn("using in-memory store, data is lost on exit")
		return nil

	case "postgres":
		db, err := postgres.NewDB(ctx, a.Config.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if a.Config.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		a.DB = db

		base := postgres.NewBaseRepository(db)
		slots := postgres.NewSlotRepository(base)
		a.Stores = Stores{
			Clinicians:   postgres.NewClinicianRepository(base),
			Templates:    postgres.NewSlotTemplateRepository(base),
			Leaves:       postgres.NewLeaveRepository(base),
			Slots:        slots,
			Generation:   slots,
			Appointments: postgres.NewAppointmentRepository(base),
			Bookings:     postgres.NewBookingStore(base),
			Outbox:       postgres.NewOutboxRepository(base),
		}
		return nil

	default:
		return fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
}

func (a *App) openPublisher() error {
	if !a.Config.Redis.Enabled {
		a.Publisher = messaging.NopPublisher()
		return nil
	}
	p, err := redis.NewPublisher(redis.Config{
		URL:          a.Config.Redis.URL,
		Channel:      a.Config.Redis.Channel,
		MaxRetries:   a.Config.Redis.MaxRetries,
		RetryBackoff: a.Config.Redis.RetryBackoff,
		PoolSize:     a.Config.Redis.PoolSize,
		MinIdleConns: a.Config.Redis.MinIdleConns,
	}, a.Logger.Zerolog())
	if err != nil {
		return fmt.Errorf("failed to create Redis publisher: %w", err)
	}
	a.Publisher = p
	return nil
}

// Close releases the publisher and the database pool.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn("failed to close publisher", "error", err.Error())
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("failed to close database", "error", err.Error())
		}
	}
}
