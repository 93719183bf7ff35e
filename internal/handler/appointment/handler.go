package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

type Service interface {
	Book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/complete", h.CompleteAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := handler.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	appointment, err := h.service.Book(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, appointment)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	appointment, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		c.Error(err)
		return
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	// the body is optional
	var req model.CancelAppointmentRequest
	if c.Request.ContentLength > 0 {
		if err := handler.BindJSON(c, &req); err != nil {
			c.Error(err)
			return
		}
	}

	appointment, err := h.service.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	appointment, err := h.service.Complete(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func parseFilters(c *gin.Context) (*model.AppointmentFilters, error) {
	filters := &model.AppointmentFilters{}

	if id := c.Query("clinician_id"); id != "" {
		clinicianID, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.BadRequest("invalid clinician_id", err)
		}
		filters.ClinicianID = clinicianID
	}

	if status := c.Query("status"); status != "" {
		parsed, err := model.ParseAppointmentStatus(status)
		if err != nil {
			return nil, errors.BadRequest(err.Error(), err)
		}
		filters.Status = parsed
	}

	from, err := handler.DateQuery(c, "from", time.Time{})
	if err != nil {
		return nil, err
	}
	filters.From = from

	to, err := handler.DateQuery(c, "to", time.Time{})
	if err != nil {
		return nil, err
	}
	if !to.IsZero() {
		// inclusive of the whole end date
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	filters.To = to

	return filters, nil
}
