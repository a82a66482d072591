package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GregMSThompson/jarvis-gateway/internal/dispatch"
	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/internal/intent"
)

type stubDispatcher struct {
	called    bool
	message   string
	sessionID string
	res       dispatch.Result
}

func (s *stubDispatcher) Dispatch(ctx context.Context, message, sessionID string) dispatch.Result {
	s.called = true
	s.message = message
	s.sessionID = sessionID
	return s.res
}

func TestChatHandlerSuccess(t *testing.T) {
	d := &stubDispatcher{res: dispatch.Result{
		Success:         true,
		Response:        "Workflow created: abc123",
		Intent:          intent.CreateWorkflow,
		ToolUsed:        "openCode",
		ModelUsed:       "n8n",
		ExecutionTimeMs: 12,
		WorkflowID:      "abc123",
	}}
	resp := &stubResponseHandler{}
	h := NewChatHandlers(&Deps{ResponseHandler: resp, Dispatcher: d})

	rr := httptest.NewRecorder()
	h.Chat(rr, newRequest(http.MethodPost, "/api/chat", `{"message":"create workflow for mail","sessionId":"s1"}`))

	if !d.called || d.message != "create workflow for mail" || d.sessionID != "s1" {
		t.Fatalf("dispatcher called with unexpected args: %+v", d)
	}
	if resp.status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.status)
	}
	body, ok := resp.body.(dto.ChatResponse)
	if !ok {
		t.Fatalf("expected ChatResponse, got %T", resp.body)
	}
	if !body.Success || body.SessionID != "s1" || body.WorkflowID != "abc123" || body.Intent != "create-workflow" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if !strings.Contains(rr.Body.String(), `"toolUsed":"openCode"`) {
		t.Fatalf("expected camelCase toolUsed in %s", rr.Body.String())
	}
}

func TestChatHandlerGeneratesSessionID(t *testing.T) {
	d := &stubDispatcher{res: dispatch.Result{Success: true, Response: "hi"}}
	resp := &stubResponseHandler{}
	h := NewChatHandlers(&Deps{ResponseHandler: resp, Dispatcher: d})

	h.Chat(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/chat", `{"message":"hello"}`))

	if !strings.HasPrefix(d.sessionID, "session_") {
		t.Fatalf("expected generated session id, got %q", d.sessionID)
	}
	if body := resp.body.(dto.ChatResponse); body.SessionID != d.sessionID {
		t.Fatalf("response session %q != dispatched %q", body.SessionID, d.sessionID)
	}
}

func TestChatHandlerIgnoresNonStringSessionID(t *testing.T) {
	tests := []string{
		`{"message":"hello","sessionId":123}`,
		`{"message":"hello","sessionId":{"id":"s1"}}`,
		`{"message":"hello","sessionId":null}`,
	}
	for _, payload := range tests {
		t.Run(payload, func(t *testing.T) {
			d := &stubDispatcher{res: dispatch.Result{Success: true, Response: "hi"}}
			resp := &stubResponseHandler{}
			h := NewChatHandlers(&Deps{ResponseHandler: resp, Dispatcher: d})

			h.Chat(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/chat", payload))

			if resp.status != http.StatusOK {
				t.Fatalf("expected 200, got %d (err=%v)", resp.status, resp.handleError)
			}
			if d.message != "hello" || !strings.HasPrefix(d.sessionID, "session_") {
				t.Fatalf("dispatcher called with unexpected args: %+v", d)
			}
		})
	}
}

func TestChatHandlerRejectsBadMessage(t *testing.T) {
	cases := map[string]string{
		"missing":    `{"sessionId":"s1"}`,
		"empty":      `{"message":""}`,
		"blank":      `{"message":"   "}`,
		"non-string": `{"message":42}`,
		"null":       `{"message":null}`,
		"not json":   `not-json`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			d := &stubDispatcher{}
			resp := &stubResponseHandler{}
			h := NewChatHandlers(&Deps{ResponseHandler: resp, Dispatcher: d})

			h.Chat(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/chat", body))

			if d.called {
				t.Fatalf("dispatcher must not be called")
			}
			var valErr *errs.ValidationError
			if !errors.As(resp.handleError, &valErr) || valErr.Message != "Message is required" {
				t.Fatalf("expected ValidationError 'Message is required', got %v", resp.handleError)
			}
		})
	}
}

func TestChatHandlerFailure(t *testing.T) {
	d := &stubDispatcher{res: dispatch.Result{
		Success:  false,
		Response: "Request timeout. The AI is taking too long to respond.",
		Intent:   intent.Chat,
		ToolUsed: "claude",
	}}
	resp := &stubResponseHandler{}
	h := NewChatHandlers(&Deps{ResponseHandler: resp, Dispatcher: d})

	h.Chat(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/chat", `{"message":"hi","sessionId":"s9"}`))

	if resp.status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.status)
	}
	body := resp.body.(dto.ChatResponse)
	if body.Success || body.Error != "Failed to get response from AI" || body.SessionID != "s9" {
		t.Fatalf("unexpected failure body: %+v", body)
	}
	if body.Response != d.res.Response {
		t.Fatalf("failure text not passed through: %q", body.Response)
	}
}

func TestChatHandlerBodyTooLarge(t *testing.T) {
	d := &stubDispatcher{}
	resp := &stubResponseHandler{}
	h := NewChatHandlers(&Deps{ResponseHandler: resp, Dispatcher: d})

	big := `{"message":"` + strings.Repeat("a", maxChatBody) + `"}`
	h.Chat(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/chat", big))

	var tooLarge *http.MaxBytesError
	if !errors.As(resp.handleError, &tooLarge) {
		t.Fatalf("expected MaxBytesError, got %T", resp.handleError)
	}
	if d.called {
		t.Fatalf("dispatcher must not be called")
	}
}
