package n8nclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/pkg/helpers"
)

func newAPI(t *testing.T, h http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewAPIClient(helpers.TestLogger(), srv.URL+"/api/v1/", "secret-key", srv.Client())
}

func TestCreateWorkflow(t *testing.T) {
	var got dto.WorkflowDefinition
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/workflows", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get(apiKeyHeader))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"abc123","name":"Auto: x","active":false}`))
	})

	wf, err := c.CreateWorkflow(helpers.TestCtx(), dto.WorkflowDefinition{Name: "Auto: x", Settings: map[string]any{"availableInMCP": true}})
	require.NoError(t, err)

	assert.Equal(t, "abc123", wf.ID)
	assert.Equal(t, "Auto: x", got.Name)
	assert.Equal(t, true, got.Settings["availableInMCP"])
}

func TestCreateWorkflowWrappedID(t *testing.T) {
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"wrapped-1"}}`))
	})

	wf, err := c.CreateWorkflow(helpers.TestCtx(), dto.WorkflowDefinition{Name: "n"})
	require.NoError(t, err)
	assert.Equal(t, "wrapped-1", wf.ID)
	assert.Equal(t, "n", wf.Name)
}

func TestCreateWorkflowRejected(t *testing.T) {
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"invalid node"}`))
	})

	_, err := c.CreateWorkflow(helpers.TestCtx(), dto.WorkflowDefinition{Name: "n"})
	require.Error(t, err)
	assert.Equal(t, "Failed to create workflow: invalid node", err.Error())
}

func TestAPIStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusUnauthorized, "API key is invalid or expired"},
		{http.StatusForbidden, "You do not have permission for this operation"},
		{http.StatusNotFound, "Resource not found"},
		{http.StatusTooManyRequests, "Too many requests - please try again later"},
		{http.StatusInternalServerError, "Server error - please try again later"},
		{http.StatusBadRequest, "n8n API request failed: getWorkflow(w1)"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.GetWorkflow(helpers.TestCtx(), "w1")
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}

	var nf *errs.NotFoundError
	assert.True(t, errors.As(apiStatusError(404, "x"), &nf))
}

func TestActivateAndDelete(t *testing.T) {
	var calls []string
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"id":"w1","active":true}`))
	})

	require.NoError(t, c.ActivateWorkflow(helpers.TestCtx(), "w1"))
	require.NoError(t, c.DeleteWorkflow(helpers.TestCtx(), "w1"))
	assert.Equal(t, []string{"POST /api/v1/workflows/w1/activate", "DELETE /api/v1/workflows/w1"}, calls)
}

func TestListWorkflows(t *testing.T) {
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "jarvis,auto", r.URL.Query().Get("tags"))
		_, _ = w.Write([]byte(`{"data":[{"id":"1","name":"a"},{"id":"2","name":"b"}],"nextCursor":null}`))
	})

	wfs, err := c.ListWorkflows(helpers.TestCtx(), dto.WorkflowFilter{Active: helpers.Ptr(true), Tags: []string{"jarvis", "auto"}})
	require.NoError(t, err)
	require.Len(t, wfs, 2)
	assert.Equal(t, "b", wfs[1].Name)
}

func TestAPIHealthy(t *testing.T) {
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(apiKeyHeader) != "secret-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	assert.True(t, c.Healthy(helpers.TestCtx()))

	c.apiKey = "wrong"
	assert.False(t, c.Healthy(helpers.TestCtx()))
}
