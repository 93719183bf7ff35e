package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/booking-api/internal/app"
	"github.com/jwalitptl/booking-api/internal/config"
	appointmentHandler "github.com/jwalitptl/booking-api/internal/handler/appointment"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	leaveHandler "github.com/jwalitptl/booking-api/internal/handler/leave"
	slotHandler "github.com/jwalitptl/booking-api/internal/handler/slot"
	templateHandler "github.com/jwalitptl/booking-api/internal/handler/template"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/router"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	l := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer a.Close()

	// Readiness pings postgres; the memory store is always ready
	var pinger health.Pinger
	if a.DB != nil {
		pinger = a.DB
	}

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Secret:    []byte(cfg.Auth.JWTSecret),
		AdminRole: cfg.Auth.AdminRole,
	})
	if !authMiddleware.Enabled() {
		log.Warn().Msg("auth.jwt_secret is empty, admin routes are unauthenticated")
	}

	r := router.NewRouter(
		authMiddleware,
		health.NewHandler(pinger),
		[]router.Handler{
			slotHandler.NewHandler(a.Slots, a.Worker),
			appointmentHandler.NewHandler(a.Appointments),
			templateHandler.NewHandler(a.Templates),
			leaveHandler.NewHandler(a.Leaves),
		},
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			Timeout:          cfg.Server.Timeout(),
			CORSConfig:       middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...),
			MetricsPrefix:    app.MetricsNamespace + "_http",
			Registry:         a.Registry,
		},
	)
	r.Setup()

	// Daily regeneration runs in-process alongside the API
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := a.Worker.Start(ctx); err != nil {
			log.Error().Err(err).Msg("slot generation worker stopped")
		}
	}()
	if cfg.Slots.RunOnStart {
		a.Worker.Trigger()
	}

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		a.Relay.Start(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("store", cfg.Store.Driver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("slot generation still running at shutdown")
	}
	<-relayDone

	log.Info().Msg("server exited properly")
}
