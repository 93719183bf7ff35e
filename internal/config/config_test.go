package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: memory\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Slots.DaysAhead)
	assert.Equal(t, "0 0 2 * * *", cfg.Slots.Cron)
	assert.True(t, cfg.Slots.Transactional)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ClinicianTTL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 10, cfg.Outbox.MaxAttempts)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
slots:
  days_ahead: 14
  cron: "0 30 1 * * *"
  timezone: Europe/Berlin
database:
  host: db.internal
`)
	t.Setenv("BOOKING_SLOTS_DAYS_AHEAD", "3")
	t.Setenv("BOOKING_DB_PORT", "6543")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Slots.DaysAhead)
	assert.Equal(t, "0 30 1 * * *", cfg.Slots.Cron)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)

	loc, err := cfg.Slots.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, "slots:\n  days_ahead: 0\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "days_ahead")

	path = writeConfig(t, "slots:\n  timezone: Mars/Olympus\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "timezone")

	path = writeConfig(t, "outbox:\n  batch_size: 0\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "outbox")

	path = writeConfig(t, "store:\n  driver: sqlite\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "store.driver")
}
