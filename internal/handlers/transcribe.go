package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/internal/response"
	"github.com/GregMSThompson/jarvis-gateway/internal/services"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const (
	audioField        = "audio"
	multipartOverhead = 1 << 20
	msgNoAudio        = "No audio file provided"
	msgTranscribeFail = "Failed to transcribe audio"
)

type transcriptionService interface {
	Transcribe(ctx context.Context, audio dto.AudioFile) (string, error)
}

type transcribeHandlers struct {
	ResponseHandler  response.ResponseHandler
	TranscriptionSvc transcriptionService
}

func NewTranscribeHandlers(deps *Deps) *transcribeHandlers {
	return &transcribeHandlers{
		ResponseHandler:  deps.ResponseHandler,
		TranscriptionSvc: deps.TranscriptionSvc,
	}
}

func (h *transcribeHandlers) TranscribeRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Transcribe)
	return r
}

func (h *transcribeHandlers) Transcribe(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAudioBytes+multipartOverhead)
	file, header, err := r.FormFile(audioField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = errs.NewValidationError(msgNoAudio)
		}
		h.fail(w, r, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	audio := dto.AudioFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	log.Info("transcribing audio", "filename", audio.Filename, "bytes", len(data))

	text, err := h.TranscriptionSvc.Transcribe(r.Context(), audio)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.ResponseHandler.WriteJSON(w, r, http.StatusOK, dto.TranscribeResponse{Success: true, Text: text})
}

func (h *transcribeHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := failure(err, msgTranscribeFail)
	logger.FromContext(r.Context()).Warn("transcription failed", "status", status, "error", err)
	h.ResponseHandler.WriteJSON(w, r, status, dto.TranscribeResponse{Success: false, Error: message})
}
