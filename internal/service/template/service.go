package template

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/validator"
)

// Service manages the weekly templates slots are generated from.
type Service struct {
	repo       repository.SlotTemplateRepository
	clinicians repository.ClinicianRepository
	validator  validator.Validator
	logger     *logger.Logger
}

func NewService(repo repository.SlotTemplateRepository, clinicians repository.ClinicianRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:       repo,
		clinicians: clinicians,
		validator:  validator.New(),
		logger:     log.WithComponent("template_service"),
	}
}

func (s *Service) Create(ctx context.Context, clinicianID uuid.UUID, req *model.SlotTemplateRequest) (*model.SlotTemplate, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, errors.Validation(err.Error(), err)
	}
	if err := s.requireClinician(ctx, clinicianID); err != nil {
		return nil, err
	}

	tpl := &model.SlotTemplate{ClinicianID: clinicianID, Active: true}
	apply(tpl, req)
	if err := s.check(ctx, tpl); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, errors.Storage("create slot template", err)
	}
	s.logger.Info("slot template created",
		"template_id", tpl.ID.String(),
		"clinician_id", clinicianID.String(),
		"day_of_week", tpl.DayOfWeek.String(),
	)
	return tpl, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.SlotTemplateRequest) (*model.SlotTemplate, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, errors.Validation(err.Error(), err)
	}
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	apply(tpl, req)
	if err := s.check(ctx, tpl); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, tpl); err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.NotFound("slot template", err)
		}
		return nil, errors.Storage("update slot template", err)
	}
	return tpl, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.SlotTemplate, error) {
	tpl, err := s.repo.Get(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.NotFound("slot template", err)
		}
		return nil, errors.Storage("get slot template", err)
	}
	return tpl, nil
}

func (s *Service) List(ctx context.Context, clinicianID uuid.UUID) ([]*model.SlotTemplate, error) {
	if err := s.requireClinician(ctx, clinicianID); err != nil {
		return nil, err
	}
	templates, err := s.repo.ListByClinician(ctx, clinicianID)
	if err != nil {
		return nil, errors.Storage("list slot templates", err)
	}
	return templates, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return errors.NotFound("slot template", err)
		}
		return errors.Storage("delete slot template", err)
	}
	return nil
}

func apply(tpl *model.SlotTemplate, req *model.SlotTemplateRequest) {
	tpl.DayOfWeek = req.DayOfWeek
	tpl.StartTime = *req.StartTime
	tpl.EndTime = *req.EndTime
	tpl.SlotDurationMinutes = req.SlotDurationMinutes
	if req.Active != nil {
		tpl.Active = *req.Active
	}
}

// check enforces the window rules and rejects overlap with any other
// template of the same clinician and day.
func (s *Service) check(ctx context.Context, tpl *model.SlotTemplate) error {
	if tpl.StartTime >= tpl.EndTime {
		return errors.Validation("start_time must be before end_time", nil)
	}
	if window := int(tpl.EndTime - tpl.StartTime); tpl.SlotDurationMinutes > window {
		return errors.Validation(fmt.Sprintf("slot_duration_minutes must not exceed the %d minute window", window), nil)
	}
	if !tpl.Valid() {
		return errors.Validation("invalid slot template", nil)
	}

	siblings, err := s.repo.ListByClinicianAndDay(ctx, tpl.ClinicianID, tpl.DayOfWeek)
	if err != nil {
		return errors.Storage("list slot templates", err)
	}
	for _, other := range siblings {
		if other.ID == tpl.ID {
			continue
		}
		if tpl.Overlaps(other) {
			return errors.Validation(fmt.Sprintf("template overlaps %s-%s on %s",
				other.StartTime, other.EndTime, other.DayOfWeek), nil)
		}
	}
	return nil
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
