package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/GregMSThompson/jarvis-gateway/internal/client/n8nmcp"
	"github.com/GregMSThompson/jarvis-gateway/internal/client/secretmanager"
	"github.com/GregMSThompson/jarvis-gateway/internal/config"
)

func InitSecretManager(ctx context.Context, log *slog.Logger, cfg *config.Config) (*secretmanagerclient.Adapter, error) {
	sm, err := secretmanagerclient.NewAdapter(ctx, log, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating secret manager client: %w", err)
	}
	if err := config.ResolveSecrets(ctx, cfg, sm); err != nil {
		_ = sm.Close()
		return nil, err
	}
	return sm, nil
}

// InitN8NMCP starts n8n-mcp with the instance coordinates it reads from its
// environment.
func InitN8NMCP(ctx context.Context, log *slog.Logger, cfg *config.Config) (*n8nmcpclient.Adapter, error) {
	env := append(os.Environ(),
		"N8N_API_URL="+cfg.N8N.APIURL,
		"N8N_API_KEY="+cfg.N8N.APIKey,
		"MCP_MODE=stdio",
		"LOG_LEVEL=error",
	)
	mcp, err := n8nmcpclient.Dial(ctx, log, cfg.N8N.MCPCommand, env, cfg.N8N.MCPArgs)
	if err != nil {
		return nil, fmt.Errorf("connecting to n8n-mcp: %w", err)
	}
	return mcp, nil
}
