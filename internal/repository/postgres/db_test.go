package postgres

import (
	"database/sql"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/repository"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     6543,
		User:     "booking",
		Password: "p@ss word",
		Name:     "booking",
		SSLMode:  "require",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:6543", u.Host)
	assert.Equal(t, "/booking", u.Path)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss word", pass)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "10", u.Query().Get("connect_timeout"))
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.True(t, repository.IsNotFound(translate(sql.ErrNoRows)))
	assert.True(t, repository.IsConflict(translate(&pq.Error{Code: uniqueViolation})))

	other := fmt.Errorf("connection reset")
	assert.Equal(t, other, translate(other))
}

func TestPgDateAndStatuses(t *testing.T) {
	assert.Equal(t, "2026-10-19", pgDate(time.Date(2026, 10, 19, 23, 59, 0, 0, time.UTC)))
	assert.ElementsMatch(t, pq.StringArray{"scheduled", "completed"}, occupyingStatuses())
}
