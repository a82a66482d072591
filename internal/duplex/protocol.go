package duplex

import "encoding/json"

// Event names on the wire.
const (
	EventConnected     = "connected"
	EventChat          = "chat"
	EventMessage       = "message"
	EventStream        = "stream"
	EventError         = "error"
	EventTranscribe    = "transcribe"
	EventTranscription = "transcription"
)

// Inbound is the type-peek for client frames.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is every server frame.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ChatPayload keeps Message untyped so a number or null gets the same
// "Message is required" answer as a missing field.
type ChatPayload struct {
	Message   any    `json:"message"`
	SessionID string `json:"sessionId"`
}

type MessagePayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    string `json:"role"`
}

type StreamPayload struct {
	ID    string `json:"id"`
	Chunk string `json:"chunk"`
	Done  bool   `json:"done"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// TranscribePayload carries base64 audio, since frames are JSON text.
type TranscribePayload struct {
	Audio     string `json:"audio"`
	MimeType  string `json:"mimeType"`
	SessionID string `json:"sessionId"`
}

type TranscriptionPayload struct {
	Text string `json:"text"`
}

func NewEvent(event string, data any) Outbound {
	return Outbound{Event: event, Data: data}
}

func NewError(message string) Outbound {
	return NewEvent(EventError, ErrorPayload{Message: message})
}
