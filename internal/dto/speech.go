package dto

type TranscribeResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

type TTSRequest struct {
	Text  string   `json:"text"`
	Voice string   `json:"voice,omitempty"`
	Speed *float64 `json:"speed,omitempty"`
}

type VoicesResponse struct {
	Success  bool     `json:"success"`
	Provider string   `json:"provider"`
	Voices   []string `json:"voices"`
}

// AudioFile is an uploaded clip handed to a speech-to-text backend.
type AudioFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
