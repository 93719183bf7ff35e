package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type clinicianRepository struct {
	*BaseRepository
}

func NewClinicianRepository(base BaseRepository) repository.ClinicianRepository {
	return &clinicianRepository{
		BaseRepository: &base,
	}
}

const clinicianColumns = `id, email, name, status, created_at, updated_at`

func (r *clinicianRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinician, error) {
	query := `SELECT ` + clinicianColumns + ` FROM clinicians WHERE id = $1`
	var clinician model.Clinician
	if err := r.GetDB().GetContext(ctx, &clinician, query, id); err != nil {
		return nil, fmt.Errorf("failed to get clinician: %w", translate(err))
	}
	return &clinician, nil
}

func (r *clinicianRepository) List(ctx context.Context) ([]*model.Clinician, error) {
	query := `SELECT ` + clinicianColumns + ` FROM clinicians ORDER BY created_at ASC`
	var clinicians []*model.Clinician
	if err := r.GetDB().SelectContext(ctx, &clinicians, query); err != nil {
		return nil, fmt.Errorf("failed to list clinicians: %w", err)
	}
	return clinicians, nil
}
