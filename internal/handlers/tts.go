package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/internal/response"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const (
	maxTTSBody      = 1 << 20
	msgTextRequired = "Text is required"
	msgTTSFail      = "Failed to synthesize speech"
)

type speechService interface {
	Provider() string
	Synthesize(ctx context.Context, req dto.TTSRequest) ([]byte, error)
	Voices() []string
}

type ttsFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type ttsHandlers struct {
	ResponseHandler response.ResponseHandler
	SpeechSvc       speechService
}

func NewTTSHandlers(deps *Deps) *ttsHandlers {
	return &ttsHandlers{
		ResponseHandler: deps.ResponseHandler,
		SpeechSvc:       deps.SpeechSvc,
	}
}

func (h *ttsHandlers) TTSRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Synthesize)
	r.Get("/voices", h.Voices)
	return r
}

func (h *ttsHandlers) Synthesize(w http.ResponseWriter, r *http.Request) {
	var body dto.TTSRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTTSBody)).Decode(&body); err != nil {
		h.fail(w, r, errs.NewValidationError(msgTextRequired))
		return
	}

	logger.FromContext(r.Context()).Info("synthesizing speech",
		"text", logger.Preview(body.Text, 50),
		"voice", body.Voice,
		"provider", h.SpeechSvc.Provider())

	audio, err := h.SpeechSvc.Synthesize(r.Context(), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (h *ttsHandlers) Voices(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteJSON(w, r, http.StatusOK, dto.VoicesResponse{
		Success:  true,
		Provider: h.SpeechSvc.Provider(),
		Voices:   h.SpeechSvc.Voices(),
	})
}

func (h *ttsHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := failure(err, msgTTSFail)
	logger.FromContext(r.Context()).Warn("speech synthesis failed", "status", status, "error", err)
	h.ResponseHandler.WriteJSON(w, r, status, ttsFailure{Success: false, Error: message})
}
