package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/GregMSThompson/jarvis-gateway/internal/handlers"
	"github.com/GregMSThompson/jarvis-gateway/internal/middleware"
)

func NewRouter(deps *handlers.Deps) chi.Router {
	r := chi.NewRouter()

	lm := middleware.NewLoggerMiddleware(deps.Log)
	rm := middleware.NewRecoverMiddleware(deps.ResponseHandler)

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(lm.LoggerMiddleware)
	r.Use(rm.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	root := handlers.NewRootHandlers(deps)
	r.Get("/", root.Index)
	r.NotFound(root.NotFound)
	if deps.Hub != nil {
		r.Get("/ws", handlers.NewDuplexHandlers(deps).Connect)
	}

	r.Route(basePath(deps.BasePath), func(api chi.Router) {
		api.Mount("/chat", handlers.NewChatHandlers(deps).ChatRoutes())
		api.Mount("/transcribe", handlers.NewTranscribeHandlers(deps).TranscribeRoutes())
		api.Mount("/tts", handlers.NewTTSHandlers(deps).TTSRoutes())
		api.Mount("/health", handlers.NewHealthHandlers(deps).HealthRoutes())
		if deps.Workflows != nil {
			api.Mount("/workflows", handlers.NewWorkflowHandlers(deps).WorkflowRoutes())
		}
	})
	return r
}

func basePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
