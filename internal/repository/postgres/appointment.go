package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const appointmentColumns = `id, clinician_id, patient_id, slot_id, appointment_time,
	status, notes, cancel_reason, created_at, updated_at`

type appointmentRepository struct {
	*BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{
		BaseRepository: &base,
	}
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return getAppointment(ctx, r.GetDB(), `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filters != nil {
		if filters.ClinicianID != uuid.Nil {
			add("clinician_id = $%d", filters.ClinicianID)
		}
		if filters.Status != "" {
			add("status = $%d", string(filters.Status))
		}
		if !filters.From.IsZero() {
			add("appointment_time >= $%d", filters.From.UTC())
		}
		if !filters.To.IsZero() {
			add("appointment_time <= $%d", filters.To.UTC())
		}
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY appointment_time`

	var appointments []*model.Appointment
	if err := r.GetDB().SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return normalizeAppointments(appointments), nil
}

func (r *appointmentRepository) ListOccupying(ctx context.Context, clinicianID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE clinician_id = $1
			AND appointment_time BETWEEN $2 AND $3
			AND status = ANY($4)
		ORDER BY appointment_time`
	var appointments []*model.Appointment
	err := r.GetDB().SelectContext(ctx, &appointments, query, clinicianID, from.UTC(), to.UTC(), occupyingStatuses())
	if err != nil {
		return nil, fmt.Errorf("failed to list occupying appointments: %w", err)
	}
	return normalizeAppointments(appointments), nil
}

func (r *appointmentRepository) HasOccupyingForSlot(ctx context.Context, slotID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM appointments WHERE slot_id = $1 AND status = ANY($2)
	)`
	var exists bool
	if err := r.GetDB().GetContext(ctx, &exists, query, slotID, occupyingStatuses()); err != nil {
		return false, fmt.Errorf("failed to check slot appointments: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) OccupiedSlotIDs(ctx context.Context, slotIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	occupied := make(map[uuid.UUID]bool, len(slotIDs))
	if len(slotIDs) == 0 {
		return occupied, nil
	}
	ids := make([]string, len(slotIDs))
	for i, id := range slotIDs {
		ids[i] = id.String()
	}

	query := `SELECT DISTINCT slot_id
		FROM appointments
		WHERE slot_id = ANY($1::uuid[]) AND status = ANY($2)`
	var found []uuid.UUID
	if err := r.GetDB().SelectContext(ctx, &found, query, pq.Array(ids), occupyingStatuses()); err != nil {
		return nil, fmt.Errorf("failed to load occupied slots: %w", err)
	}
	for _, id := range found {
		occupied[id] = true
	}
	return occupied, nil
}

func getAppointment(ctx context.Context, ext sqlx.ExtContext, query string, args ...interface{}) (*model.Appointment, error) {
	var apt model.Appointment
	if err := sqlx.GetContext(ctx, ext, &apt, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", translate(err))
	}
	apt.AppointmentTime = apt.AppointmentTime.UTC()
	return &apt, nil
}

func normalizeAppointments(appointments []*model.Appointment) []*model.Appointment {
	for _, a := range appointments {
		a.AppointmentTime = a.AppointmentTime.UTC()
	}
	return appointments
}
