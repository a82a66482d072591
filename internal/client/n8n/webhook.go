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
	"strings"
	"time"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const (
	service = "n8n"

	timeoutMessage = "Request timeout. The AI is taking too long to respond."
	maxReplyBytes  = 4 << 20
)

// WebhookClient posts chat turns to the n8n conversation workflow.
type WebhookClient struct {
	http *http.Client
	url  string
	log  *slog.Logger
	now  func() time.Time
}

func NewWebhookClient(log *slog.Logger, webhookURL string, hc *http.Client) *WebhookClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &WebhookClient{
		http: hc,
		url:  webhookURL,
		log:  log,
		now:  time.Now,
	}
}

// Send delivers one message and returns the workflow's reply. The caller's
// context bounds the whole exchange.
func (c *WebhookClient) Send(ctx context.Context, message, sessionID string) (dto.N8NWebhookResponse, error) {
	var out dto.N8NWebhookResponse

	body, err := json.Marshal(dto.N8NWebhookPayload{
		Message:   message,
		SessionID: sessionID,
		Timestamp: c.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return out, fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log := logger.FromContext(ctx)
	log.Info("sending message to n8n webhook", "message", logger.Preview(message, 50))

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return out, errs.NewExternalServiceError(service, timeoutMessage, true, err)
		}
		return out, errs.NewExternalServiceError(service, "Connection error: "+transportMessage(err), true, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return out, errs.NewExternalServiceError(service, timeoutMessage, true, err)
		}
		return out, errs.NewExternalServiceError(service, "Connection error: "+err.Error(), true, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, errs.NewStatusError(service, resp.StatusCode,
			fmt.Sprintf("n8n error: %d - %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	out = parseWebhookReply(raw)
	if out.Response == "" {
		return out, errs.NewExternalServiceError(service, "n8n returned an empty response", false, nil)
	}

	log.Info("n8n response received", "model", modelOrUnknown(out.ModelUsed))
	return out, nil
}

// parseWebhookReply accepts {response, model_used}, a one-element array of
// that object (the n8n "all items" response mode), or plain text.
func parseWebhookReply(raw []byte) dto.N8NWebhookResponse {
	var single dto.N8NWebhookResponse
	if err := json.Unmarshal(raw, &single); err == nil && single.Response != "" {
		return single
	}

	var many []dto.N8NWebhookResponse
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 && many[0].Response != "" {
		return many[0]
	}

	return dto.N8NWebhookResponse{Response: strings.TrimSpace(string(raw))}
}

func modelOrUnknown(model string) string {
	if model == "" {
		return "unknown"
	}
	return model
}

// transportMessage drops the "Post \"url\": " prefix net/http adds.
func transportMessage(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err.Error()
	}
	return err.Error()
}

// Healthy reports whether the n8n instance behind the webhook answers. It
// probes the instance root, not the webhook, so no workflow runs.
func (c *WebhookClient) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instanceRoot(c.url), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		logger.FromContext(ctx).Debug("n8n health probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode == http.StatusOK
}

func instanceRoot(webhookURL string) string {
	return strings.Replace(webhookURL, "/webhook/", "/", 1)
}
