package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

// ErrorResponse is the failure body every endpoint shares. Response is kept
// (empty) so chat clients can read the same fields on success and failure.
type ErrorResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
}

func (h *responseHandler) WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.WriteJSON(w, r, status, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

func (h *responseHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	var (
		valErr      *errs.ValidationError
		notFound    *errs.NotFoundError
		svcErr      *errs.ExternalServiceError
		timeoutErr  *errs.TimeoutError
		tooLargeErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &valErr):
		log.Warn("validation failed", "error", valErr.Message)
		h.WriteError(w, r, http.StatusBadRequest, "invalid_input", valErr.Message)

	case errors.As(err, &tooLargeErr):
		log.Warn("request body too large", "limit", tooLargeErr.Limit)
		h.WriteError(w, r, http.StatusRequestEntityTooLarge, "too_large",
			fmt.Sprintf("Request body exceeds %d bytes", tooLargeErr.Limit))

	case errors.As(err, &notFound):
		log.Warn("resource not found", "error", notFound.Message)
		h.WriteError(w, r, http.StatusNotFound, "not_found", notFound.Message)

	case errors.As(err, &timeoutErr):
		log.Warn("external service timeout",
			"service", timeoutErr.Service,
			"budget", timeoutErr.Budget)
		h.WriteError(w, r, http.StatusGatewayTimeout, "timeout", timeoutErr.Message)

	case errors.As(err, &svcErr):
		level := slog.LevelError
		if svcErr.Transient {
			level = slog.LevelWarn
		}
		log.Log(r.Context(), level, "external service error",
			"service", svcErr.Service,
			"status", svcErr.Status,
			"transient", svcErr.Transient,
			"error", svcErr.Message)

		status := http.StatusBadGateway
		if svcErr.Transient {
			status = http.StatusServiceUnavailable
		}
		h.WriteError(w, r, status, "service_unavailable", svcErr.Message)

	default:
		log.Error("unexpected error",
			"error", err,
			"type", fmt.Sprintf("%T", err))
		h.WriteError(w, r, http.StatusInternalServerError, "internal_error",
			"Internal server error")
	}
}
