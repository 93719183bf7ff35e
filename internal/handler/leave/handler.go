package leave

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
	Create(ctx context.Context, clinicianID uuid.UUID, date time.Time, reason string) (*model.Leave, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, clinicianID uuid.UUID) ([]*model.Leave, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/clinicians/:id/leaves", h.ListLeaves)
	r.POST("/clinicians/:id/leaves", h.CreateLeave)
	r.DELETE("/leaves/:id", h.DeleteLeave)
}

func (h *Handler) CreateLeave(c *gin.Context) {
	clinicianID, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	var req model.CreateLeaveRequest
	if err := handler.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		c.Error(errors.Validation("date must be YYYY-MM-DD", err))
		return
	}

	leave, err := h.service.Create(c.Request.Context(), clinicianID, date, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, leave)
}

func (h *Handler) ListLeaves(c *gin.Context) {
	clinicianID, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	leaves, err := h.service.List(c.Request.Context(), clinicianID)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, leaves)
}

func (h *Handler) DeleteLeave(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
