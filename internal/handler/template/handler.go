package template

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, clinicianID uuid.UUID, req *model.SlotTemplateRequest) (*model.SlotTemplate, error)
	Update(ctx context.Context, id uuid.UUID, req *model.SlotTemplateRequest) (*model.SlotTemplate, error)
	Get(ctx context.Context, id uuid.UUID) (*model.SlotTemplate, error)
	List(ctx context.Context, clinicianID uuid.UUID) ([]*model.SlotTemplate, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/clinicians/:id/templates", h.ListTemplates)
	r.POST("/clinicians/:id/templates", h.CreateTemplate)

	templates := r.Group("/templates")
	{
		templates.GET("/:id", h.GetTemplate)
		templates.PUT("/:id", h.UpdateTemplate)
		templates.DELETE("/:id", h.DeleteTemplate)
	}
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	clinicianID, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	var req model.SlotTemplateRequest
	if err := handler.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	tpl, err := h.service.Create(c.Request.Context(), clinicianID, &req)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, tpl)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	clinicianID, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	templates, err := h.service.List(c.Request.Context(), clinicianID)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, templates)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	tpl, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, tpl)
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	var req model.SlotTemplateRequest
	if err := handler.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	tpl, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, tpl)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
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
