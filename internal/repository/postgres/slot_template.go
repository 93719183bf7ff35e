package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type slotTemplateRepository struct {
	*BaseRepository
}

func NewSlotTemplateRepository(base BaseRepository) repository.SlotTemplateRepository {
	return &slotTemplateRepository{
		BaseRepository: &base,
	}
}

const slotTemplateColumns = `id, clinician_id, day_of_week, start_time, end_time,
	slot_duration_minutes, active, created_at, updated_at`

func (r *slotTemplateRepository) Create(ctx context.Context, tpl *model.SlotTemplate) error {
	query := `
		INSERT INTO slot_templates (
			id, clinician_id, day_of_week, start_time, end_time,
			slot_duration_minutes, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	tpl.Touch(time.Now().UTC())

	_, err := r.GetDB().ExecContext(ctx, query,
		tpl.ID,
		tpl.ClinicianID,
		int(tpl.DayOfWeek),
		tpl.StartTime,
		tpl.EndTime,
		tpl.SlotDurationMinutes,
		tpl.Active,
		tpl.CreatedAt,
		tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot template: %w", translate(err))
	}
	return nil
}

func (r *slotTemplateRepository) Update(ctx context.Context, tpl *model.SlotTemplate) error {
	query := `
		UPDATE slot_templates
		SET day_of_week = $1, start_time = $2, end_time = $3,
			slot_duration_minutes = $4, active = $5, updated_at = $6
		WHERE id = $7
	`
	tpl.UpdatedAt = time.Now().UTC()

	result, err := r.GetDB().ExecContext(ctx, query,
		int(tpl.DayOfWeek),
		tpl.StartTime,
		tpl.EndTime,
		tpl.SlotDurationMinutes,
		tpl.Active,
		tpl.UpdatedAt,
		tpl.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update slot template: %w", translate(err))
	}
	return expectOneRow(result, "slot template")
}

func (r *slotTemplateRepository) Get(ctx context.Context, id uuid.UUID) (*model.SlotTemplate, error) {
	query := `SELECT ` + slotTemplateColumns + ` FROM slot_templates WHERE id = $1`
	var tpl model.SlotTemplate
	if err := r.GetDB().GetContext(ctx, &tpl, query, id); err != nil {
		return nil, fmt.Errorf("failed to get slot template: %w", translate(err))
	}
	return &tpl, nil
}

func (r *slotTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.GetDB().ExecContext(ctx, `DELETE FROM slot_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot template: %w", err)
	}
	return expectOneRow(result, "slot template")
}

func (r *slotTemplateRepository) ListByClinician(ctx context.Context, clinicianID uuid.UUID) ([]*model.SlotTemplate, error) {
	query := `SELECT ` + slotTemplateColumns + `
		FROM slot_templates
		WHERE clinician_id = $1
		ORDER BY day_of_week, start_time`
	var templates []*model.SlotTemplate
	if err := r.GetDB().SelectContext(ctx, &templates, query, clinicianID); err != nil {
		return nil, fmt.Errorf("failed to list slot templates: %w", err)
	}
	return templates, nil
}

func (r *slotTemplateRepository) ListByClinicianAndDay(ctx context.Context, clinicianID uuid.UUID, day model.Weekday) ([]*model.SlotTemplate, error) {
	query := `SELECT ` + slotTemplateColumns + `
		FROM slot_templates
		WHERE clinician_id = $1 AND day_of_week = $2
		ORDER BY start_time`
	var templates []*model.SlotTemplate
	if err := r.GetDB().SelectContext(ctx, &templates, query, clinicianID, int(day)); err != nil {
		return nil, fmt.Errorf("failed to list slot templates for %s: %w", day, err)
	}
	return templates, nil
}
