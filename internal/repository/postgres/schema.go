package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema creates the tables this service owns plus a minimal clinicians table
// for standalone deployments. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS clinicians (
	id          UUID PRIMARY KEY,
	email       TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'active',
	created_at  TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS slot_templates (
	id                    UUID PRIMARY KEY,
	clinician_id          UUID NOT NULL REFERENCES clinicians(id) ON DELETE CASCADE,
	day_of_week           SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	start_time            TIME NOT NULL,
	end_time              TIME NOT NULL,
	slot_duration_minutes INTEGER NOT NULL CHECK (slot_duration_minutes >= 5),
	active                BOOLEAN NOT NULL DEFAULT TRUE,
	created_at            TIMESTAMP NOT NULL,
	updated_at            TIMESTAMP NOT NULL,
	CHECK (start_time < end_time)
);
CREATE INDEX IF NOT EXISTS idx_slot_templates_clinician_day ON slot_templates (clinician_id, day_of_week);

CREATE TABLE IF NOT EXISTS clinician_leaves (
	id           UUID PRIMARY KEY,
	clinician_id UUID NOT NULL REFERENCES clinicians(id) ON DELETE CASCADE,
	date         DATE NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clinician_leaves_clinician_date ON clinician_leaves (clinician_id, date);

CREATE TABLE IF NOT EXISTS slots (
	id           UUID PRIMARY KEY,
	clinician_id UUID NOT NULL REFERENCES clinicians(id) ON DELETE CASCADE,
	date         DATE NOT NULL,
	start_time   TIME NOT NULL,
	end_time     TIME NOT NULL,
	available    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL,
	CONSTRAINT uq_slots_clinician_date_start UNIQUE (clinician_id, date, start_time)
);

CREATE TABLE IF NOT EXISTS appointments (
	id               UUID PRIMARY KEY,
	clinician_id     UUID NOT NULL REFERENCES clinicians(id),
	patient_id       UUID NOT NULL,
	slot_id          UUID REFERENCES slots(id),
	appointment_time TIMESTAMP NOT NULL,
	status           TEXT NOT NULL,
	notes            TEXT NOT NULL DEFAULT '',
	cancel_reason    TEXT,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_appointments_clinician_time ON appointments (clinician_id, appointment_time);
CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_active_slot
	ON appointments (slot_id) WHERE slot_id IS NOT NULL AND status IN ('scheduled', 'completed');

CREATE TABLE IF NOT EXISTS outbox_events (
	id              UUID PRIMARY KEY,
	event_type      TEXT NOT NULL,
	payload         JSONB NOT NULL,
	status          TEXT NOT NULL,
	attempts        INT NOT NULL DEFAULT 0,
	last_error      TEXT,
	next_attempt_at TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	processed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_events_pending
	ON outbox_events (next_attempt_at) WHERE status = 'pending';
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
