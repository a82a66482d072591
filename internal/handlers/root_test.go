package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
)

func TestRootDescribesService(t *testing.T) {
	resp := &stubResponseHandler{}
	h := NewRootHandlers(&Deps{ResponseHandler: resp, BasePath: "/api"})

	h.Index(httptest.NewRecorder(), newRequest(http.MethodGet, "/", ""))

	info := resp.body.(dto.ServiceInfo)
	if info.Name != "JARVIS Voice Assistant API" || info.Version != "3.0.0" || info.Status != "running" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Endpoints["chat"] != "POST /api/chat" {
		t.Fatalf("unexpected chat endpoint %q", info.Endpoints["chat"])
	}
	if _, ok := info.Endpoints["workflows"]; ok {
		t.Fatalf("workflows endpoint listed without a workflow manager")
	}
}

func TestRootListsWorkflowsWhenConfigured(t *testing.T) {
	resp := &stubResponseHandler{}
	h := NewRootHandlers(&Deps{ResponseHandler: resp, BasePath: "/api", Workflows: &stubWorkflows{}})

	h.Index(httptest.NewRecorder(), newRequest(http.MethodGet, "/", ""))

	if resp.body.(dto.ServiceInfo).Endpoints["workflows"] != "GET /api/workflows" {
		t.Fatalf("expected workflows endpoint")
	}
}

func TestNotFound(t *testing.T) {
	resp := &stubResponseHandler{}
	h := NewRootHandlers(&Deps{ResponseHandler: resp})

	rr := httptest.NewRecorder()
	h.NotFound(rr, newRequest(http.MethodGet, "/nope", ""))

	if rr.Code != http.StatusNotFound || resp.errorCode != "not_found" {
		t.Fatalf("unexpected not found response %d %q", rr.Code, resp.errorCode)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})
	cases := map[string]bool{
		"":                      true,
		"http://localhost:3000": true,
		"http://evil.example":   false,
	}
	for origin, want := range cases {
		req := newRequest(http.MethodGet, "/ws", "")
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := check(req); got != want {
			t.Fatalf("origin %q: got %v, want %v", origin, got, want)
		}
	}

	req := newRequest(http.MethodGet, "/ws", "")
	req.Header.Set("Origin", "http://anything")
	if !originChecker([]string{"*"})(req) {
		t.Fatalf("wildcard should allow any origin")
	}
}
