package leave

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

// listWindow is how far either side of today List looks.
const listWindow = 1 // years

type Service struct {
	repo       repository.LeaveRepository
	clinicians repository.ClinicianRepository
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(repo repository.LeaveRepository, clinicians repository.ClinicianRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:       repo,
		clinicians: clinicians,
		logger:     log.WithComponent("leave_service"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create registers an active leave. Slots are no longer generated for that
// date; slots that already exist are left alone.
func (s *Service) Create(ctx context.Context, clinicianID uuid.UUID, date time.Time, reason string) (*model.Leave, error) {
	if date.IsZero() {
		return nil, errors.Validation("date is required", nil)
	}
	if err := s.requireClinician(ctx, clinicianID); err != nil {
		return nil, err
	}

	leave := &model.Leave{
		ClinicianID: clinicianID,
		Date:        model.DateOf(date),
		Reason:      strings.TrimSpace(reason),
		Active:      true,
	}
	if err := s.repo.Create(ctx, leave); err != nil {
		return nil, errors.Storage("create leave", err)
	}
	s.logger.Info("leave registered",
		"leave_id", leave.ID.String(),
		"clinician_id", clinicianID.String(),
		"date", leave.Date.Format(model.DateLayout),
	)
	return leave, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return errors.NotFound("leave", err)
		}
		return errors.Storage("delete leave", err)
	}
	return nil
}

// List returns the clinician's leaves from a year ago to a year ahead.
func (s *Service) List(ctx context.Context, clinicianID uuid.UUID) ([]*model.Leave, error) {
	if err := s.requireClinician(ctx, clinicianID); err != nil {
		return nil, err
	}
	today := model.DateOf(s.now())
	leaves, err := s.repo.ListByClinician(ctx, clinicianID, today.AddDate(-listWindow, 0, 0), today.AddDate(listWindow, 0, 0))
	if err != nil {
		return nil, errors.Storage("list leaves", err)
	}
	return leaves, nil
}

func (s *Service) IsOnLeave(ctx context.Context, clinicianID uuid.UUID, date time.Time) (bool, error) {
	onLeave, err := s.repo.ExistsActive(ctx, clinicianID, model.DateOf(date))
	if err != nil {
		return false, errors.Storage("check leave", err)
	}
	return onLeave, nil
}

func (s *Service) requireClinician(ctx context.Context, clinicianID uuid.UUID) error {
	if _, err := s.clinicians.Get(ctx, clinicianID); err != nil {
		if repository.IsNotFound(err) {
			return errors.NotFound("clinician", err)
		}
		return errors.Storage("get clinician", err)
	}
	return nil
}
