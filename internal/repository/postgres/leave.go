package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type leaveRepository struct {
	*BaseRepository
}

func NewLeaveRepository(base BaseRepository) repository.LeaveRepository {
	return &leaveRepository{
		BaseRepository: &base,
	}
}

const leaveColumns = `id, clinician_id, date, reason, active, created_at`

func (r *leaveRepository) Create(ctx context.Context, leave *model.Leave) error {
	query := `
		INSERT INTO clinician_leaves (id, clinician_id, date, reason, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if leave.ID == uuid.Nil {
		leave.ID = uuid.New()
	}
	leave.CreatedAt = time.Now().UTC()
	leave.Date = model.DateOf(leave.Date)

	_, err := r.GetDB().ExecContext(ctx, query,
		leave.ID,
		leave.ClinicianID,
		pgDate(leave.Date),
		leave.Reason,
		leave.Active,
		leave.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create leave: %w", translate(err))
	}
	return nil
}

func (r *leaveRepository) Get(ctx context.Context, id uuid.UUID) (*model.Leave, error) {
	query := `SELECT ` + leaveColumns + ` FROM clinician_leaves WHERE id = $1`
	var leave model.Leave
	if err := r.GetDB().GetContext(ctx, &leave, query, id); err != nil {
		return nil, fmt.Errorf("failed to get leave: %w", translate(err))
	}
	leave.Date = model.DateOf(leave.Date)
	return &leave, nil
}

func (r *leaveRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.GetDB().ExecContext(ctx, `DELETE FROM clinician_leaves WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete leave: %w", err)
	}
	return expectOneRow(result, "leave")
}

func (r *leaveRepository) ListByClinician(ctx context.Context, clinicianID uuid.UUID, from, to time.Time) ([]*model.Leave, error) {
	query := `SELECT ` + leaveColumns + `
		FROM clinician_leaves
		WHERE clinician_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`
	var leaves []*model.Leave
	if err := r.GetDB().SelectContext(ctx, &leaves, query, clinicianID, pgDate(from), pgDate(to)); err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}
	for _, l := range leaves {
		l.Date = model.DateOf(l.Date)
	}
	return leaves, nil
}

func (r *leaveRepository) ExistsActive(ctx context.Context, clinicianID uuid.UUID, date time.Time) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM clinician_leaves
		WHERE clinician_id = $1 AND date = $2 AND active
	)`
	var exists bool
	if err := r.GetDB().GetContext(ctx, &exists, query, clinicianID, pgDate(date)); err != nil {
		return false, fmt.Errorf("failed to check leave: %w", err)
	}
	return exists, nil
}
