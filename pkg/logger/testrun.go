package logger

import (
	"io"
	"log/slog"
)

// NewTestHandler drops everything. Tests that assert on log lines use
// NewCaptureHandler instead.
func NewTestHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})
}

// NewCaptureHandler writes one JSON object per record to w.
func NewCaptureHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}
