package handlers

import (
	"net/http"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/response"
	"github.com/GregMSThompson/jarvis-gateway/internal/services"
)

const serviceName = "JARVIS Voice Assistant API"

type rootHandlers struct {
	ResponseHandler response.ResponseHandler
	info            dto.ServiceInfo
}

func NewRootHandlers(deps *Deps) *rootHandlers {
	base := deps.BasePath
	endpoints := map[string]string{
		"chat":       "POST " + base + "/chat",
		"transcribe": "POST " + base + "/transcribe",
		"tts":        "POST " + base + "/tts",
		"health":     "GET " + base + "/health",
		"websocket":  "GET /ws",
	}
	if deps.Workflows != nil {
		endpoints["workflows"] = "GET " + base + "/workflows"
	}

	return &rootHandlers{
		ResponseHandler: deps.ResponseHandler,
		info: dto.ServiceInfo{
			Name:      serviceName,
			Version:   services.Version,
			Status:    "running",
			Endpoints: endpoints,
		},
	}
}

func (h *rootHandlers) Index(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteJSON(w, r, http.StatusOK, h.info)
}

func (h *rootHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteError(w, r, http.StatusNotFound, "not_found", "Route "+r.Method+" "+r.URL.Path+" not found")
}
