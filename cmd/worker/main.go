package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/booking-api/internal/app"
	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/auth"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "booking-worker",
		Short:         "Slot generation and event relay jobs for the booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yml (default: search ., ./config, /app/config)")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(generateCmd(&configPath))
	rootCmd.AddCommand(relayCmd(&configPath))
	rootCmd.AddCommand(tokenCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setup(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.NewLogger(cfg.Log))
}

func runCmd(configPath *string) *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daily slot regeneration schedule and the event relay until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			relayDone := make(chan struct{})
			go func() {
				defer close(relayDone)
				a.Relay.Start(ctx)
			}()

			if runNow || a.Config.Slots.RunOnStart {
				a.Worker.Trigger()
			}
			err = a.Worker.Start(ctx)
			<-relayDone
			return err
		},
	}
	cmd.Flags().BoolVar(&runNow, "now", false, "Also run once immediately")
	return cmd
}

func generateCmd(configPath *string) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate slots once and print the summary",
		Long: "Without --date, runs the regeneration window (today plus days_ahead). " +
			"With --date, generates that single date for every clinician.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var summary interface{}
			if date != "" {
				d, err := model.ParseDate(date)
				if err != nil {
					return err
				}
				summary, err = a.Slots.GenerateForAll(ctx, d)
				if err != nil {
					return err
				}
			} else {
				summary, err = a.Worker.RunOnce(ctx)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Single date to generate (YYYY-MM-DD)")
	return cmd
}

func relayCmd(configPath *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Publish pending booking events from the outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if !once {
				a.Relay.Start(ctx)
				return nil
			}
			summary, err := a.Relay.ProcessOnce(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Relay a single batch and print the summary")
	return cmd
}

func tokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the admin routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is empty, admin routes accept any caller")
			}
			signed, err := auth.NewJWTService([]byte(cfg.Auth.JWTSecret), "booking-worker").
				GenerateToken(subject, []string{cfg.Auth.AdminRole}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres store driver, got %q", cfg.Store.Driver)
			}
			cfg.Database.AutoMigrate = true

			a, err := app.New(cmd.Context(), cfg, app.NewLogger(cfg.Log))
			if err != nil {
				return err
			}
			a.Close()
			log.Info().Msg("database schema is up to date")
			return nil
		},
	}
}
