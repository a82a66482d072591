package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/GregMSThompson/jarvis-gateway/internal/duplex"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

type sessionHub interface {
	Attach(ctx context.Context, conn *websocket.Conn) *duplex.Session
}

type duplexHandlers struct {
	Hub      sessionHub
	upgrader websocket.Upgrader
}

func NewDuplexHandlers(deps *Deps) *duplexHandlers {
	return &duplexHandlers{
		Hub: deps.Hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(deps.AllowedOrigins),
		},
	}
}

// Connect upgrades GET /ws and hands the connection to the hub.
func (h *duplexHandlers) Connect(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	// The session outlives this request; keep only its logger.
	s := h.Hub.Attach(logger.Detach(r.Context()), conn)
	log.Info("websocket attached", "connection_id", s.ID)
}

// originChecker allows requests without an Origin header (curl, native
// apps) and any origin in the list. "*" allows everything.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		logger.FromContext(r.Context()).Warn("websocket origin rejected", "origin", origin)
		return false
	}
}
