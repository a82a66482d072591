package n8nclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/pkg/helpers"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const apiKeyHeader = "X-N8N-API-KEY"

// APIClient talks to the n8n public REST API (…/api/v1).
type APIClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
	log     *slog.Logger
}

func NewAPIClient(log *slog.Logger, baseURL, apiKey string, hc *http.Client) *APIClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &APIClient{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log,
	}
}

// workflowEnvelope covers both the bare workflow object n8n returns and the
// {success, id} / {data: {...}} wrappers some proxies add.
type workflowEnvelope struct {
	dto.Workflow
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e workflowEnvelope) workflow() dto.Workflow {
	if e.ID != "" {
		return e.Workflow
	}
	var inner dto.Workflow
	if len(e.Data) > 0 && json.Unmarshal(e.Data, &inner) == nil {
		return inner
	}
	return e.Workflow
}

func (c *APIClient) CreateWorkflow(ctx context.Context, def dto.WorkflowDefinition) (dto.Workflow, error) {
	var env workflowEnvelope
	if err := c.do(ctx, "createWorkflow("+def.Name+")", http.MethodPost, "workflows", nil, def, &env); err != nil {
		return dto.Workflow{}, err
	}
	if env.Success != nil && !*env.Success {
		return dto.Workflow{}, errs.NewExternalServiceError(service,
			"Failed to create workflow: "+helpers.FirstNonEmpty(env.Message, "n8n rejected the definition"), false, nil)
	}

	wf := env.workflow()
	if wf.ID == "" {
		return dto.Workflow{}, errs.NewExternalServiceError(service, "n8n did not return a workflow id", false, nil)
	}
	if wf.Name == "" {
		wf.Name = def.Name
	}
	logger.FromContext(ctx).Info("workflow created", "workflow_id", wf.ID, "name", wf.Name)
	return wf, nil
}

func (c *APIClient) ActivateWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, "activateWorkflow("+id+")", http.MethodPost, "workflows/"+url.PathEscape(id)+"/activate", nil, nil, nil)
}

func (c *APIClient) GetWorkflow(ctx context.Context, id string) (dto.Workflow, error) {
	var env workflowEnvelope
	if err := c.do(ctx, "getWorkflow("+id+")", http.MethodGet, "workflows/"+url.PathEscape(id), nil, nil, &env); err != nil {
		return dto.Workflow{}, err
	}
	return env.workflow(), nil
}

func (c *APIClient) ListWorkflows(ctx context.Context, filter dto.WorkflowFilter) ([]dto.Workflow, error) {
	q := url.Values{}
	if filter.Active != nil {
		q.Set("active", strconv.FormatBool(*filter.Active))
	}
	if len(filter.Tags) > 0 {
		q.Set("tags", strings.Join(filter.Tags, ","))
	}

	var page struct {
		Data      []dto.Workflow `json:"data"`
		Workflows []dto.Workflow `json:"workflows"`
	}
	if err := c.do(ctx, "listWorkflows()", http.MethodGet, "workflows", q, nil, &page); err != nil {
		return nil, err
	}
	if page.Data != nil {
		return page.Data, nil
	}
	return page.Workflows, nil
}

func (c *APIClient) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, "deleteWorkflow("+id+")", http.MethodDelete, "workflows/"+url.PathEscape(id), nil, nil, nil)
}

// Healthy reports whether the API accepts our key.
func (c *APIClient) Healthy(ctx context.Context) bool {
	q := url.Values{"limit": []string{"1"}}
	return c.do(ctx, "health", http.MethodGet, "workflows", q, nil, nil) == nil
}

func (c *APIClient) do(ctx context.Context, op, method, endpoint string, query url.Values, in, out any) error {
	target := c.baseURL + "/" + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("building %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errs.NewExternalServiceError(service, "Request timeout - server took too long to respond", true, err)
		}
		return errs.NewExternalServiceError(service, "n8n API request failed: "+op, true, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return errs.NewExternalServiceError(service, "n8n API request failed: "+op, true, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := apiStatusError(resp.StatusCode, op)
		logger.FromContext(ctx).Warn("n8n api error", "op", op, "status", resp.StatusCode, "body", logger.Preview(string(raw), 200))
		return err
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.NewExternalServiceError(service, "n8n API returned an unreadable response: "+op, false, err)
	}
	return nil
}

func apiStatusError(status int, op string) error {
	switch {
	case status == http.StatusUnauthorized:
		return errs.NewStatusError(service, status, "API key is invalid or expired")
	case status == http.StatusForbidden:
		return errs.NewStatusError(service, status, "You do not have permission for this operation")
	case status == http.StatusNotFound:
		return errs.NewNotFoundError("Resource not found")
	case status == http.StatusTooManyRequests:
		return errs.NewStatusError(service, status, "Too many requests - please try again later")
	case status >= 500:
		return errs.NewStatusError(service, status, "Server error - please try again later")
	}
	return errs.NewStatusError(service, status, "n8n API request failed: "+op)
}
