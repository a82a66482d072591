package services

import (
	"context"
	"strings"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/pkg/helpers"
)

const (
	ProviderKokoro = "kokoro"
	ProviderEdge   = "edge"

	edgeNotImplemented = "Edge TTS not fully implemented. Install Kokoro or configure Edge TTS API."
)

var (
	kokoroVoices = []string{
		"af_bella", "af_heart", "af_nicole", "af_sky", "af_sarah",
		"am_adam", "am_michael", "bf_emma", "bf_alice", "bm_george",
	}
	edgeVoices = []string{
		"en-US-AriaNeural", "en-US-GuyNeural", "en-US-JennyNeural",
		"pt-BR-FranciscaNeural", "pt-BR-AntonioNeural",
	}
)

type speechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

type speechService struct {
	provider     string
	synth        speechSynthesizer
	defaultVoice string
	defaultSpeed float64
}

// NewSpeechService builds the text-to-speech service. synth may be nil for
// the edge provider, which has no backend yet.
func NewSpeechService(provider string, synth speechSynthesizer, defaultVoice string, defaultSpeed float64) *speechService {
	return &speechService{
		provider:     provider,
		synth:        synth,
		defaultVoice: defaultVoice,
		defaultSpeed: defaultSpeed,
	}
}

func (s *speechService) Provider() string { return s.provider }

// Synthesize returns MP3 bytes for req.Text.
func (s *speechService) Synthesize(ctx context.Context, req dto.TTSRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errs.NewValidationError("Text is required")
	}

	speed := helpers.ValueOr(req.Speed, s.defaultSpeed)
	if speed <= 0 {
		return nil, errs.NewValidationError("Speed must be positive")
	}
	voice := helpers.FirstNonEmpty(req.Voice, s.defaultVoice)

	if s.provider != ProviderKokoro || s.synth == nil {
		return nil, errs.NewExternalServiceError("edge-tts", edgeNotImplemented, false, nil)
	}
	return s.synth.Synthesize(ctx, req.Text, voice, speed)
}

func (s *speechService) Voices() []string {
	var src []string
	if s.provider == ProviderKokoro {
		src = kokoroVoices
	} else {
		src = edgeVoices
	}
	return append([]string(nil), src...)
}
