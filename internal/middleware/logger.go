package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

type loggerMiddleware struct {
	Log *slog.Logger
	now func() time.Time
}

func NewLoggerMiddleware(log *slog.Logger) *loggerMiddleware {
	return &loggerMiddleware{Log: log, now: time.Now}
}

// LoggerMiddleware attaches a request-scoped logger and writes one access
// line per request. It must run after chi's RequestID.
func (m *loggerMiddleware) LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimiddleware.GetReqID(r.Context())

		reqLog := m.Log.With(
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx := logger.ToContext(r.Context(), reqLog)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := m.now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				// Hijacked (websocket) or nothing written.
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			} else if status >= http.StatusBadRequest {
				level = slog.LevelWarn
			}
			reqLog.Log(ctx, level, "request completed",
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", m.now().Sub(start).Milliseconds(),
				"remote_addr", r.RemoteAddr)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}
