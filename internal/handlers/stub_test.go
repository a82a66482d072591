package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/GregMSThompson/jarvis-gateway/internal/response"
	"github.com/GregMSThompson/jarvis-gateway/pkg/helpers"
)

// stubResponseHandler records what a handler asked for and writes it as JSON.
type stubResponseHandler struct {
	status int
	body   any

	handleErrorCalled bool
	handleError       error
	errorCode         string
}

func (s *stubResponseHandler) WriteJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	s.status = status
	s.body = body
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *stubResponseHandler) WriteSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	s.WriteJSON(w, r, status, map[string]any{"success": true, "data": data})
}

func (s *stubResponseHandler) WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.errorCode = code
	s.WriteJSON(w, r, status, response.ErrorResponse{Error: message, Code: code})
}

func (s *stubResponseHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	s.handleErrorCalled = true
	s.handleError = err
	w.WriteHeader(http.StatusInternalServerError)
}

func newRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(helpers.TestCtx())
}
