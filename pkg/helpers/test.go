package helpers

import (
	"context"
	"log/slog"

	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

// TestCtx returns a context carrying a discarding test logger.
func TestCtx() context.Context {
	log := slog.New(logger.NewTestHandler(slog.LevelDebug))
	return logger.ToContext(context.Background(), log)
}

// TestLogger is the logger TestCtx attaches, for constructors that take one.
func TestLogger() *slog.Logger {
	return slog.New(logger.NewTestHandler(slog.LevelDebug))
}
