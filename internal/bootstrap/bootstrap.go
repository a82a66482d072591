package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/GregMSThompson/jarvis-gateway/internal/client/groq"
	"github.com/GregMSThompson/jarvis-gateway/internal/client/kokoro"
	"github.com/GregMSThompson/jarvis-gateway/internal/client/n8n"
	"github.com/GregMSThompson/jarvis-gateway/internal/client/n8nmcp"
	"github.com/GregMSThompson/jarvis-gateway/internal/client/opencode"
	"github.com/GregMSThompson/jarvis-gateway/internal/client/secretmanager"
	"github.com/GregMSThompson/jarvis-gateway/internal/config"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

// Bootstrap owns every backend client. Fields that a configuration does not
// need stay nil.
type Bootstrap struct {
	Log           *slog.Logger
	HTTP          *http.Client
	SecretManager *secretmanagerclient.Adapter

	Webhook  *n8nclient.WebhookClient
	N8NAPI   *n8nclient.APIClient
	N8NMCP   *n8nmcpclient.Adapter
	OpenCode *opencodeclient.Runner
	Groq     *groqclient.Adapter
	Kokoro   *kokoroclient.Adapter
}

// Run resolves secrets and builds the clients. The returned Bootstrap always
// carries a logger, even on error.
func Run(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	var err error
	bs := new(Bootstrap)

	bs.Log = logger.New(cfg.LogLevel, logger.ForFormat(cfg.LogFormat))
	bs.HTTP = &http.Client{}

	if cfg.HasSecretRefs() {
		bs.SecretManager, err = InitSecretManager(ctx, bs.Log, cfg)
		if err != nil {
			return bs, err
		}
	}

	bs.Webhook = n8nclient.NewWebhookClient(bs.Log, cfg.N8N.WebhookURL, bs.HTTP)
	bs.N8NAPI = n8nclient.NewAPIClient(bs.Log, cfg.N8N.APIURL, cfg.N8N.APIKey, bs.HTTP)
	if cfg.N8N.WorkflowTransport == config.TransportMCP {
		bs.N8NMCP, err = InitN8NMCP(ctx, bs.Log, cfg)
		if err != nil {
			return bs, err
		}
	}

	bs.OpenCode = opencodeclient.NewRunner(bs.Log, cfg.OpenCode.Binary, cfg.OpenCode.MaxConcurrent)
	if !bs.OpenCode.Available() {
		bs.Log.Warn("opencode binary not found; debug, docs and orchestrate intents will fail",
			"binary", cfg.OpenCode.Binary)
	}

	bs.Groq = groqclient.NewAdapter(bs.Log, cfg.Groq.BaseURL, cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.Language, bs.HTTP)
	if cfg.TTS.Provider == config.ProviderKokoro {
		bs.Kokoro = kokoroclient.NewAdapter(bs.Log, cfg.TTS.KokoroURL, bs.HTTP)
	}

	bs.Log.Info("bootstrap complete",
		"n8n_webhook", cfg.N8N.WebhookURL,
		"workflow_transport", cfg.N8N.WorkflowTransport,
		"groq_configured", cfg.Groq.APIKey != "",
		"tts_provider", cfg.TTS.Provider)
	return bs, nil
}

// Close releases the MCP subprocess and the Secret Manager connection.
func (bs *Bootstrap) Close() error {
	var errList []error
	if bs.N8NMCP != nil {
		errList = append(errList, bs.N8NMCP.Close())
	}
	if bs.SecretManager != nil {
		errList = append(errList, bs.SecretManager.Close())
	}
	return errors.Join(errList...)
}
