package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const slotColumns = `id, clinician_id, date, start_time, end_time, available, created_at, updated_at`

// slotQueries runs slot statements against either the pool or an open transaction.
type slotQueries struct {
	ext sqlx.ExtContext
}

type SlotRepository struct {
	*BaseRepository
	slotQueries
}

// NewSlotRepository returns the slot repository. It also implements
// repository.SlotGenerationStore.
func NewSlotRepository(base BaseRepository) *SlotRepository {
	return &SlotRepository{
		BaseRepository: &base,
		slotQueries:    slotQueries{ext: base.GetDB()},
	}
}

var (
	_ repository.SlotRepository      = (*SlotRepository)(nil)
	_ repository.SlotGenerationStore = (*SlotRepository)(nil)
)

func (r *SlotRepository) WithSlotTx(ctx context.Context, fn func(repository.SlotWriter) error) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&slotQueries{ext: tx})
	})
}

func (r *SlotRepository) Get(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	return getSlot(ctx, r.ext, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
}

func (r *SlotRepository) ListByClinician(ctx context.Context, clinicianID uuid.UUID) ([]*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots
		WHERE clinician_id = $1
		ORDER BY date, start_time`
	var slots []*model.Slot
	if err := sqlx.SelectContext(ctx, r.ext, &slots, query, clinicianID); err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return normalizeSlots(slots), nil
}

func (q *slotQueries) Insert(ctx context.Context, slot *model.Slot) (bool, error) {
	query := `
		INSERT INTO slots (id, clinician_id, date, start_time, end_time, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (clinician_id, date, start_time) DO NOTHING
	`
	slot.Touch(time.Now().UTC())
	slot.Date = model.DateOf(slot.Date)

	result, err := q.ext.ExecContext(ctx, query,
		slot.ID,
		slot.ClinicianID,
		pgDate(slot.Date),
		slot.StartTime,
		slot.EndTime,
		slot.Available,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert slot %s: %w", slot.Key(), translate(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

func (q *slotQueries) ListByClinicianAndDate(ctx context.Context, clinicianID uuid.UUID, date time.Time) ([]*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots
		WHERE clinician_id = $1 AND date = $2
		ORDER BY start_time`
	var slots []*model.Slot
	if err := sqlx.SelectContext(ctx, q.ext, &slots, query, clinicianID, pgDate(date)); err != nil {
		return nil, fmt.Errorf("failed to list slots for date: %w", err)
	}
	return normalizeSlots(slots), nil
}

func (q *slotQueries) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return setSlotAvailability(ctx, q.ext, id, available)
}

func getSlot(ctx context.Context, ext sqlx.ExtContext, query string, args ...interface{}) (*model.Slot, error) {
	var slot model.Slot
	if err := sqlx.GetContext(ctx, ext, &slot, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", translate(err))
	}
	slot.Date = model.DateOf(slot.Date)
	return &slot, nil
}

func setSlotAvailability(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, available bool) error {
	query := `UPDATE slots SET available = $1, updated_at = $2 WHERE id = $3`
	result, err := ext.ExecContext(ctx, query, available, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update slot availability: %w", err)
	}
	return expectOneRow(result, "slot")
}

func normalizeSlots(slots []*model.Slot) []*model.Slot {
	for _, s := range slots {
		s.Date = model.DateOf(s.Date)
	}
	return slots
}
