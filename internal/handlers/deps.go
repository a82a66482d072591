package handlers

import (
	"log/slog"

	"github.com/GregMSThompson/jarvis-gateway/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler

	Dispatcher       chatDispatcher
	TranscriptionSvc transcriptionService
	SpeechSvc        speechService
	HealthSvc        healthService
	// Workflows is nil unless the n8n REST API is configured.
	Workflows workflowManager
	Hub       sessionHub

	BasePath       string
	AllowedOrigins []string
}
