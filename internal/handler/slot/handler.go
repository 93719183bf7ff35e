package slot

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/model"
	slotsvc "github.com/jwalitptl/booking-api/internal/service/slot"
	"github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

// Service is the slot surface the handler needs.
type Service interface {
	Today() time.Time
	ListForDate(ctx context.Context, clinicianID uuid.UUID, date time.Time, opts slotsvc.ListOptions) ([]model.SlotView, error)
	ListAll(ctx context.Context, clinicianID uuid.UUID, opts slotsvc.ListOptions) ([]model.SlotView, error)
	CountFree(ctx context.Context, clinicianID uuid.UUID, date time.Time) (int, error)
	GenerateForClinician(ctx context.Context, clinicianID uuid.UUID, date time.Time) ([]model.SlotView, error)
	GenerateForAll(ctx context.Context, date time.Time) (*slotsvc.BackfillSummary, error)
}

// Regenerator runs the daily regeneration job on demand.
type Regenerator interface {
	RunOnce(ctx context.Context) (*worker.RunSummary, error)
	Trigger()
}

type Handler struct {
	service     Service
	regenerator Regenerator
}

// NewHandler builds the slot handler. regenerator may be nil, in which case
// the regenerate route answers 503.
func NewHandler(service Service, regenerator Regenerator) *Handler {
	return &Handler{service: service, regenerator: regenerator}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	slots := r.Group("/slots")
	{
		slots.GET("/clinician/:id", h.ListSlots)
		slots.GET("/clinician/:id/all", h.ListAllSlots)
		slots.GET("/clinician/:id/free", h.CountFreeSlots)
		slots.POST("/clinician/:id/generate", h.GenerateSlots)
	}
}

// RegisterAdminRoutes mounts the operator routes. The caller wraps r with
// the admin guard.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	slots := r.Group("/slots")
	{
		slots.POST("/generate", h.GenerateAllSlots)
		slots.POST("/regenerate", h.Regenerate)
	}
}

func (h *Handler) ListSlots(c *gin.Context) {
	clinicianID, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	date, err := handler.DateQuery(c, "date", h.service.Today())
	if err != nil {
		c.Error(err)
		return
	}
	upcoming, err := handler.BoolQuery(c, "upcoming")
	if err != nil {
		c.Error(err)
		return
	}

	slots, err := h.service.ListForDate(c.Request.Context(), clinicianID, date, slotsvc.ListOptions{Upcoming: upcoming})
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) ListAllSlots(c *gin.Context) {
	clinicianID, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	upcoming, err := handler.BoolQuery(c, "upcoming")
	if err != nil {
		c.Error(err)
		return
	}

	slots, err := h.service.ListAll(c.Request.Context(), clinicianID, slotsvc.ListOptions{Upcoming: upcoming})
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) CountFreeSlots(c *gin.Context) {
	clinicianID, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	date, err := handler.DateQuery(c, "date", h.service.Today())
	if err != nil {
		c.Error(err)
		return
	}

	free, err := h.service.CountFree(c.Request.Context(), clinicianID, date)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"date": date.Format(model.DateLayout),
		"free": free,
	})
}

func (h *Handler) GenerateSlots(c *gin.Context) {
	clinicianID, err := handler.UUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	date, err := handler.DateQuery(c, "date", h.service.Today())
	if err != nil {
		c.Error(err)
		return
	}

	slots, err := h.service.GenerateForClinician(c.Request.Context(), clinicianID, date)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) GenerateAllSlots(c *gin.Context) {
	date, err := handler.DateQuery(c, "date", h.service.Today())
	if err != nil {
		c.Error(err)
		return
	}

	summary, err := h.service.GenerateForAll(c.Request.Context(), date)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

func (h *Handler) Regenerate(c *gin.Context) {
	if h.regenerator == nil {
		httputil.RespondWithMessage(c, http.StatusServiceUnavailable, "slot regeneration is not configured")
		return
	}
	async, err := handler.BoolQuery(c, "async")
	if err != nil {
		c.Error(err)
		return
	}

	if async {
		h.regenerator.Trigger()
		httputil.RespondWithStatus(c, http.StatusAccepted, gin.H{"triggered": true})
		return
	}

	summary, err := h.regenerator.RunOnce(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}
