package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/GregMSThompson/jarvis-gateway/internal/response"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

type recoverMiddleware struct {
	ResponseHandler response.ResponseHandler
}

func NewRecoverMiddleware(rh response.ResponseHandler) *recoverMiddleware {
	return &recoverMiddleware{ResponseHandler: rh}
}

// Recover turns a handler panic into the generic 500 body. http.ErrAbortHandler
// is re-panicked so net/http can drop the connection quietly.
func (m *recoverMiddleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			logger.FromContext(r.Context()).Error("handler panic",
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()))
			m.ResponseHandler.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
