package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appointmenthandler "github.com/jwalitptl/booking-api/internal/handler/appointment"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	leavehandler "github.com/jwalitptl/booking-api/internal/handler/leave"
	slothandler "github.com/jwalitptl/booking-api/internal/handler/slot"
	templatehandler "github.com/jwalitptl/booking-api/internal/handler/template"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/internal/service/appointment"
	"github.com/jwalitptl/booking-api/internal/service/leave"
	"github.com/jwalitptl/booking-api/internal/service/slot"
	"github.com/jwalitptl/booking-api/internal/service/template"
	"github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/auth"
)

const testSecret = "test-secret"

// 2026-10-19 is a Monday.
var (
	monday     = "2026-10-19"
	nextMonday = "2026-10-26"
	clock      = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	t         *testing.T
	router    *Router
	store     *memory.Store
	clinician model.Clinician
}

func newServer(t *testing.T, secret string) *server {
	t.Helper()
	store := memory.NewStore()
	clinician := store.AddClinician(model.Clinician{Name: "Dr. Okafor", Status: "active"})

	slots := slot.NewService(store.Clinicians(), store.Templates(), store.Slots(), store.Appointments(),
		slot.WithGenerationStore(store.SlotGeneration()),
		slot.WithLeaves(store.Leaves()),
		slot.WithClock(clock),
	)
	regenerator, err := worker.NewSlotGenerationWorker(store.Clinicians(), store.Templates(), store.Leaves(), slots,
		worker.SlotGenerationConfig{DaysAhead: 2, Cron: "0 0 2 * * *"}, nil, nil)
	require.NoError(t, err)

	handlers := []Handler{
		slothandler.NewHandler(slots, regenerator),
		appointmenthandler.NewHandler(appointment.NewService(store.Bookings(), store.Appointments(), store.Clinicians(), nil, nil)),
		templatehandler.NewHandler(template.NewService(store.Templates(), store.Clinicians(), nil)),
		leavehandler.NewHandler(leave.NewService(store.Leaves(), store.Clinicians(), nil)),
	}
	guard := middleware.NewAuthMiddleware(middleware.AuthConfig{Secret: []byte(secret)})
	r := NewRouter(guard, health.NewHandler(nil), handlers, RouterConfig{
		CORSConfig:    middleware.DefaultCORSConfig(),
		MetricsPrefix: "booking_test",
		Registry:      prometheus.NewRegistry(),
	})
	r.Setup()

	return &server{t: t, router: r, store: store, clinician: clinician}
}

func (s *server) do(method, path string, body interface{}, header http.Header) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.router.Engine().ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *server) createMorningTemplate() {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/clinicians/"+s.clinician.ID.String()+"/templates", map[string]interface{}{
		"day_of_week":           "monday",
		"start_time":            "09:00",
		"end_time":              "10:00",
		"slot_duration_minutes": 20,
	}, nil)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(s.t, "success", env.Status)
}

func (s *server) listSlots(date string) []model.SlotView {
	s.t.Helper()
	w, env := s.do(http.MethodGet, "/api/v1/slots/clinician/"+s.clinician.ID.String()+"?date="+date, nil, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var views []model.SlotView
	require.NoError(s.t, json.Unmarshal(env.Data, &views))
	return views
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, "")

	w, _ := s.do(http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "booking_test_requests_total")
}

func TestBookingFlow(t *testing.T) {
	s := newServer(t, "")
	s.createMorningTemplate()

	views := s.listSlots(monday)
	require.Len(t, views, 3)
	for _, v := range views {
		assert.Equal(t, model.SlotStatusAvailable, v.Status)
	}
	first := views[0]
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), first.Start)

	book := map[string]interface{}{
		"clinician_id": s.clinician.ID,
		"patient_id":   uuid.New(),
		"slot_id":      first.ID,
	}
	w, env := s.do(http.MethodPost, "/api/v1/appointments", book, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var apt model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &apt))
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, first.Start, apt.AppointmentTime)

	book["patient_id"] = uuid.New()
	w, env = s.do(http.MethodPost, "/api/v1/appointments", book, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "slot already booked", env.Message)

	views = s.listSlots(monday)
	assert.Equal(t, model.SlotStatusBooked, views[0].Status)
	assert.False(t, views[0].Available)

	w, _ = s.do(http.MethodGet, "/api/v1/appointments?clinician_id="+s.clinician.ID.String()+"&status=scheduled", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &apt))
	assert.Equal(t, model.AppointmentStatusCancelled, apt.Status)

	views = s.listSlots(monday)
	assert.Equal(t, model.SlotStatusAvailable, views[0].Status)

	w, _ = s.do(http.MethodPost, "/api/v1/appointments", book, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestLeaveSuppressesGeneration(t *testing.T) {
	s := newServer(t, "")
	s.createMorningTemplate()

	w, _ := s.do(http.MethodPost, "/api/v1/clinicians/"+s.clinician.ID.String()+"/leaves", map[string]string{
		"date":   nextMonday,
		"reason": "conference",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Empty(t, s.listSlots(nextMonday))
	assert.Len(t, s.listSlots(monday), 3)
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t, "")

	w, env := s.do(http.MethodGet, "/api/v1/slots/clinician/"+uuid.NewString()+"?date="+monday, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", env.Status)

	w, _ = s.do(http.MethodGet, "/api/v1/slots/clinician/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/slots/clinician/"+s.clinician.ID.String()+"?date=19-10-2026", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodPost, "/api/v1/clinicians/"+s.clinician.ID.String()+"/templates", map[string]interface{}{
		"day_of_week":           "monday",
		"start_time":            "12:00",
		"end_time":              "09:00",
		"slot_duration_minutes": 20,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, env.Message)

	w, _ = s.do(http.MethodPost, "/api/v1/appointments", map[string]interface{}{"clinician_id": s.clinician.ID}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func token(t *testing.T, roles ...string) http.Header {
	t.Helper()
	signed, err := auth.NewJWTService([]byte(testSecret), "booking").GenerateToken("ops", roles, time.Hour)
	require.NoError(t, err)
	return http.Header{"Authorization": []string{"Bearer " + signed}}
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t, testSecret)
	s.createMorningTemplate()

	path := "/api/v1/admin/slots/generate?date=" + monday

	w, _ := s.do(http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, path, nil, http.Header{"Authorization": []string{"Bearer garbage"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, path, nil, token(t, "receptionist"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodPost, path, nil, token(t, "admin"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary slot.BackfillSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 1, summary.Clinicians)
	assert.Equal(t, 3, summary.Slots)
	assert.Empty(t, summary.Failed)

	w, env = s.do(http.MethodPost, "/api/v1/admin/slots/regenerate", nil, token(t, "admin"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var run worker.RunSummary
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, worker.TriggerManual, run.Trigger)
	assert.Equal(t, 1, run.Clinicians)
	assert.Zero(t, run.Failed)
}

func TestAdminRoutesOpenWithoutSecret(t *testing.T) {
	s := newServer(t, "")

	w, _ := s.do(http.MethodPost, "/api/v1/admin/slots/generate?date="+monday, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
