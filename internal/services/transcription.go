package services

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
)

// MaxAudioBytes is the upload cap Groq accepts.
const MaxAudioBytes = 25 << 20

var allowedAudioTypes = []string{
	"audio/webm",
	"audio/mp3",
	"audio/mpeg",
	"audio/wav",
	"audio/m4a",
	"audio/mp4",
	"audio/ogg",
	"audio/flac",
}

type speechToText interface {
	Transcribe(ctx context.Context, audio dto.AudioFile) (string, error)
}

type transcriptionService struct {
	stt speechToText
}

func NewTranscriptionService(stt speechToText) *transcriptionService {
	return &transcriptionService{stt: stt}
}

func (s *transcriptionService) Transcribe(ctx context.Context, audio dto.AudioFile) (string, error) {
	if len(audio.Data) == 0 {
		return "", errs.NewValidationError("No audio file provided")
	}
	if len(audio.Data) > MaxAudioBytes {
		return "", errs.NewValidationError(fmt.Sprintf("Audio file exceeds %d MB", MaxAudioBytes>>20))
	}
	if err := ValidateAudioType(audio.ContentType); err != nil {
		return "", err
	}
	if audio.Filename == "" {
		audio.Filename = "audio.webm"
	}
	return s.stt.Transcribe(ctx, audio)
}

// ValidateAudioType checks a MIME type against the upload allowlist.
// Parameters such as "codecs=opus" are ignored.
func ValidateAudioType(contentType string) error {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	for _, allowed := range allowedAudioTypes {
		if mt == allowed {
			return nil
		}
	}
	return errs.NewValidationError(fmt.Sprintf("Invalid file type: %s. Allowed: %s",
		contentType, strings.Join(allowedAudioTypes, ", ")))
}
