package logger

import (
	"log/slog"
	"strings"
)

// HandlerFactory builds the slog.Handler used by New for the given level.
type HandlerFactory func(level slog.Level) slog.Handler

func New(level string, handler HandlerFactory) *slog.Logger {
	h := handler(ParseLevel(level))
	return slog.New(h)
}

// ForFormat picks the handler factory for a configured log format.
// "text" is meant for local runs; anything else emits Cloud Run JSON.
func ForFormat(format string) HandlerFactory {
	if strings.EqualFold(format, "text") {
		return NewConsoleHandler
	}
	return NewCloudRunHandler
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Preview shortens free text for log lines. Counts runes, not bytes.
func Preview(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
