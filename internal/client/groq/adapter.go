package groqclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const service = "groq"

var ErrMissingKey = errors.New("GROQ_API_KEY environment variable is not set")

// Adapter calls the Groq OpenAI-compatible speech-to-text endpoint.
type Adapter struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	model    string
	language string
	log      *slog.Logger
}

func NewAdapter(log *slog.Logger, baseURL, apiKey, model, language string, hc *http.Client) *Adapter {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Adapter{
		http:     hc,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		language: language,
		log:      log,
	}
}

type transcription struct {
	Text string `json:"text"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Adapter) Transcribe(ctx context.Context, audio dto.AudioFile) (string, error) {
	if a.apiKey == "" {
		return "", errs.NewExternalServiceError(service, ErrMissingKey.Error(), false, ErrMissingKey)
	}

	body, contentType, err := a.multipartBody(audio)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("building transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	log := logger.FromContext(ctx)
	log.Info("transcribing audio", "filename", audio.Filename, "bytes", len(audio.Data))

	resp, err := a.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errs.NewExternalServiceError(service, "Request timeout. Transcription took too long.", true, err)
		}
		return "", errs.NewExternalServiceError(service, "Groq request failed: "+err.Error(), true, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errs.NewExternalServiceError(service, "Groq request failed: "+err.Error(), true, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		msg := fmt.Sprintf("Groq error: %d - %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", errs.NewStatusError(service, resp.StatusCode, msg)
	}

	var out transcription
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errs.NewExternalServiceError(service, "Groq returned an unreadable transcription", false, err)
	}

	log.Info("transcription complete", "text", logger.Preview(out.Text, 50))
	return out.Text, nil
}

func (a *Adapter) multipartBody(audio dto.AudioFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := audio.Filename
	if filename == "" {
		filename = "audio.webm"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/webm"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("building multipart body: %w", err)
	}

	fields := map[string]string{
		"model":           a.model,
		"language":        a.language,
		"response_format": "json",
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("building multipart body: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("building multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// Healthy lists models as a cheap authenticated round trip.
func (a *Adapter) Healthy(ctx context.Context) bool {
	if a.apiKey == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode == http.StatusOK
}
