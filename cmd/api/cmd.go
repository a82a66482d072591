package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GregMSThompson/jarvis-gateway/internal/bootstrap"
	"github.com/GregMSThompson/jarvis-gateway/internal/config"
	"github.com/GregMSThompson/jarvis-gateway/internal/dispatch"
	"github.com/GregMSThompson/jarvis-gateway/internal/duplex"
	"github.com/GregMSThompson/jarvis-gateway/internal/handlers"
	"github.com/GregMSThompson/jarvis-gateway/internal/intent"
	"github.com/GregMSThompson/jarvis-gateway/internal/response"
	"github.com/GregMSThompson/jarvis-gateway/internal/router"
	"github.com/GregMSThompson/jarvis-gateway/internal/services"
)

const (
	chatModel   = "llama-3.1-8b-instant"
	oracleModel = "claude-opus-4.5"
	docsModel   = "glm-4.7-free"
	n8nModel    = "n8n"
)

var (
	osExit = os.Exit
	exit   = osExit
)

// exitOnError logs err and exits. os.Exit skips deferred calls, so anything
// already started (the n8n-mcp subprocess) is closed here first.
func exitOnError(message string, err error, log *slog.Logger, closers ...io.Closer) {
	if err == nil {
		return
	}
	log.Error(message, "error", err)
	for _, c := range closers {
		if cerr := c.Close(); cerr != nil {
			log.Warn("close failed", "error", cerr)
		}
	}
	exit(1)
}

type capabilities struct {
	chat, debug, docs, orchestrate, workflow dispatch.Adapter
}

// routes is the intent table: which backend answers each intent and what it
// reports as tool and model.
func routes(t config.TimeoutsConfig, c capabilities) map[intent.Intent]dispatch.Route {
	return map[intent.Intent]dispatch.Route{
		intent.Chat: {
			Adapter: c.chat, Service: "n8n", Tool: dispatch.ToolOpenCode,
			Model: chatModel, Timeout: t.Chat,
		},
		intent.Debug: {
			Adapter: c.debug, Service: "opencode-oracle", Tool: dispatch.ToolClaude,
			Model: oracleModel, Timeout: t.Debug,
		},
		intent.Docs: {
			Adapter: c.docs, Service: "opencode-librarian", Tool: dispatch.ToolOpenCode,
			Model: docsModel, Timeout: t.Docs,
		},
		intent.Orchestrate: {
			Adapter: c.orchestrate, Service: "opencode-ultrawork", Tool: dispatch.ToolOpenCode,
			Model: oracleModel, Timeout: t.Orchestrate,
		},
		intent.CreateWorkflow: {
			Adapter: c.workflow, Service: "n8n-workflow", Tool: dispatch.ToolOpenCode,
			Model: n8nModel, Timeout: t.Workflow,
		},
	}
}

func main() {
	started := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// bootstrap
	cfg, err := config.New()
	exitOnError("config failed", err, slog.Default())
	bs, err := bootstrap.Run(ctx, cfg)
	exitOnError("bootstrap failed", err, bs.Log, bs)
	defer bs.Close()

	// services
	chat := services.NewChatCapability(bs.Webhook)
	debug := services.NewDebugCapability(bs.OpenCode)
	docs := services.NewDocsCapability(bs.OpenCode)
	orchestrate := services.NewOrchestrateCapability(bs.OpenCode)

	workflow := services.NewWorkflowService(bs.N8NAPI, cfg.N8N.ActivateWorkflows)
	workflowHealth := services.HealthChecker(bs.N8NAPI)
	if bs.N8NMCP != nil {
		workflow = services.NewWorkflowService(bs.N8NMCP, cfg.N8N.ActivateWorkflows)
		workflowHealth = bs.N8NMCP
	}

	stt := services.NewTranscriptionService(bs.Groq)
	tts := services.NewSpeechService(cfg.TTS.Provider, nil, cfg.TTS.DefaultVoice, cfg.TTS.DefaultSpeed)
	ttsHealth := services.HealthChecker(services.AlwaysHealthy)
	if bs.Kokoro != nil {
		tts = services.NewSpeechService(cfg.TTS.Provider, bs.Kokoro, cfg.TTS.DefaultVoice, cfg.TTS.DefaultSpeed)
		ttsHealth = bs.Kokoro
	}

	health := services.NewHealthService(map[string]services.HealthChecker{
		"n8n":      bs.Webhook,
		"workflow": workflowHealth,
		"groq":     bs.Groq,
		"tts":      ttsHealth,
		"opencode": bs.OpenCode,
	}, started)

	// dispatcher
	d, err := dispatch.New(routes(cfg.Timeouts, capabilities{
		chat: chat, debug: debug, docs: docs, orchestrate: orchestrate, workflow: workflow,
	}))
	exitOnError("dispatcher wiring failed", err, bs.Log, bs)

	// duplex
	hub := duplex.NewHub(bs.Log, d, stt, duplex.Options{
		RouteMode: duplex.RouteMode(cfg.Duplex.RouteMode),
		Delivery:  duplex.Delivery(cfg.Duplex.Delivery),
		QueueSize: cfg.Duplex.QueueSize,
	})
	go hub.Run()

	// response handler
	rh := response.New(bs.Log)

	// dependancies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.ResponseHandler = rh
	deps.Dispatcher = d
	deps.TranscriptionSvc = stt
	deps.SpeechSvc = tts
	deps.HealthSvc = health
	deps.Hub = hub
	deps.BasePath = cfg.BasePath
	deps.AllowedOrigins = cfg.AllowedOrigins
	if cfg.N8N.WorkflowTransport == config.TransportAPI {
		deps.Workflows = bs.N8NAPI
	}

	// router
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		bs.Log.Info("server listening", "addr", srv.Addr, "base_path", cfg.BasePath)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			hub.Close()
			exitOnError("server start failed", err, bs.Log, bs)
		}
	case <-ctx.Done():
		bs.Log.Info("shutting down", "grace", cfg.ShutdownGrace)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		bs.Log.Warn("forcing shutdown", "error", err)
		_ = srv.Close()
	}
	hub.Wait()
	bs.Log.Info("server closed")
}
