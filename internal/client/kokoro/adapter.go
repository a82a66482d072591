package kokoroclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const (
	service       = "kokoro"
	maxAudioBytes = 32 << 20
)

type Adapter struct {
	http    *http.Client
	baseURL string
	log     *slog.Logger
}

func NewAdapter(log *slog.Logger, baseURL string, hc *http.Client) *Adapter {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Adapter{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

type synthRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// Synthesize returns MP3 audio for text.
func (a *Adapter) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	body, err := json.Marshal(synthRequest{Text: text, Voice: voice, Speed: speed})
	if err != nil {
		return nil, fmt.Errorf("encoding tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/v1/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	log := logger.FromContext(ctx)
	log.Info("synthesizing speech", "voice", voice, "text", logger.Preview(text, 50))

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errs.NewExternalServiceError(service, "Kokoro TTS error: "+err.Error(), true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, errs.NewStatusError(service, resp.StatusCode,
			fmt.Sprintf("Kokoro TTS error: Request failed with status code %d", resp.StatusCode))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, errs.NewExternalServiceError(service, "Kokoro TTS error: "+err.Error(), true, err)
	}
	if len(audio) == 0 {
		return nil, errs.NewExternalServiceError(service, "Kokoro TTS error: empty audio", false, nil)
	}

	log.Info("audio generated", "bytes", len(audio))
	return audio, nil
}

func (a *Adapter) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/v1/admin/status", nil)
	if err != nil {
		return false
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode == http.StatusOK
}
