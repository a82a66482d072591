package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// ToContext stores a logger in the context.
func ToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the request or session logger, or slog.Default when
// none was attached. Never nil.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// With extends the context logger and stores the result back:
//
//	log, ctx := logger.With(ctx, "session_id", sessionID)
func With(ctx context.Context, args ...any) (*slog.Logger, context.Context) {
	logger := FromContext(ctx).With(args...)
	return logger, ToContext(ctx, logger)
}

// Detach returns a background context that keeps the logger of ctx but none
// of its cancellation. Used for work that must outlive the HTTP request that
// started it.
func Detach(ctx context.Context) context.Context {
	return ToContext(context.Background(), FromContext(ctx))
}
