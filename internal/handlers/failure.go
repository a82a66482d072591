package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
)

// failure maps a speech error to the 400/500 split the speech endpoints use,
// keeping the backend's own wording when it has one.
func failure(err error, fallback string) (int, string) {
	var (
		valErr      *errs.ValidationError
		tooLargeErr *http.MaxBytesError
		svcErr      *errs.ExternalServiceError
		timeoutErr  *errs.TimeoutError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest, valErr.Message
	case errors.As(err, &tooLargeErr):
		return http.StatusBadRequest, fmt.Sprintf("Request body exceeds %d bytes", tooLargeErr.Limit)
	case errors.As(err, &timeoutErr):
		return http.StatusInternalServerError, timeoutErr.Message
	case errors.As(err, &svcErr):
		return http.StatusInternalServerError, svcErr.Message
	}
	return http.StatusInternalServerError, fallback
}
