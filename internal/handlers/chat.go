package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/jarvis-gateway/internal/dispatch"
	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/internal/response"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const (
	maxChatBody    = 10 << 20
	msgRequired    = "Message is required"
	msgChatFailure = "Failed to get response from AI"
)

type chatDispatcher interface {
	Dispatch(ctx context.Context, message, sessionID string) dispatch.Result
}

type chatHandlers struct {
	ResponseHandler response.ResponseHandler
	Dispatcher      chatDispatcher
}

func NewChatHandlers(deps *Deps) *chatHandlers {
	return &chatHandlers{
		ResponseHandler: deps.ResponseHandler,
		Dispatcher:      deps.Dispatcher,
	}
}

func (h *chatHandlers) ChatRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Chat)
	return r
}

func (h *chatHandlers) Chat(w http.ResponseWriter, r *http.Request) {
	var body dto.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.ResponseHandler.HandleError(w, r, err)
			return
		}
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError(msgRequired))
		return
	}

	message, ok := body.Message.(string)
	if !ok || strings.TrimSpace(message) == "" {
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError(msgRequired))
		return
	}

	sessionID, _ := body.SessionID.(string)
	if sessionID == "" {
		sessionID = dispatch.NewSessionID()
	}

	log, ctx := logger.With(r.Context(), "session_id", sessionID)
	log.Info("processing chat message", "message", logger.Preview(message, 50))

	res := h.Dispatcher.Dispatch(ctx, message, sessionID)
	if !res.Success {
		h.ResponseHandler.WriteJSON(w, r, http.StatusInternalServerError, dto.ChatResponse{
			Success:         false,
			Response:        res.Response,
			Intent:          string(res.Intent),
			ToolUsed:        res.ToolUsed,
			SessionID:       sessionID,
			ExecutionTimeMs: res.ExecutionTimeMs,
			Error:           msgChatFailure,
		})
		return
	}

	h.ResponseHandler.WriteJSON(w, r, http.StatusOK, dto.ChatResponse{
		Success:         true,
		Response:        res.Response,
		Intent:          string(res.Intent),
		ToolUsed:        res.ToolUsed,
		ModelUsed:       res.ModelUsed,
		SessionID:       sessionID,
		ExecutionTimeMs: res.ExecutionTimeMs,
		WorkflowID:      res.WorkflowID,
	})
}
