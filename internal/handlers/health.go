package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/response"
)

type healthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

type healthHandlers struct {
	ResponseHandler response.ResponseHandler
	HealthSvc       healthService
	now             func() time.Time
}

func NewHealthHandlers(deps *Deps) *healthHandlers {
	return &healthHandlers{
		ResponseHandler: deps.ResponseHandler,
		HealthSvc:       deps.HealthSvc,
		now:             time.Now,
	}
}

func (h *healthHandlers) HealthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Health)
	r.Get("/ping", h.Ping)
	return r
}

// Health answers 503 only when no backend is reachable; a degraded gateway
// still serves.
func (h *healthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	res := h.HealthSvc.Check(r.Context())

	status := http.StatusOK
	if res.Status == dto.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	h.ResponseHandler.WriteJSON(w, r, status, res)
}

func (h *healthHandlers) Ping(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteJSON(w, r, http.StatusOK, dto.PingResponse{
		Pong:      true,
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}
