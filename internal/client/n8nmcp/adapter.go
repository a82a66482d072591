package n8nmcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const (
	service            = "n8n-mcp"
	createWorkflowTool = "n8n_create_workflow"
)

// Adapter creates workflows through an n8n-mcp server instead of the REST
// API. The server process lives as long as the adapter.
type Adapter struct {
	client *client.Client
	log    *slog.Logger
}

// Dial starts the MCP server as a subprocess and runs the handshake.
func Dial(ctx context.Context, log *slog.Logger, command string, env, args []string) (*Adapter, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("starting n8n-mcp: %w", err)
	}

	a := NewAdapter(log, c)
	if err := a.Initialize(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return a, nil
}

// NewAdapter wraps a client that is already started.
func NewAdapter(log *slog.Logger, c *client.Client) *Adapter {
	return &Adapter{client: c, log: log}
}

func (a *Adapter) Initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "jarvis-gateway",
				Version: "3.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}
	res, err := a.client.Initialize(ctx, req)
	if err != nil {
		return fmt.Errorf("initializing n8n-mcp: %w", err)
	}
	a.log.Info("n8n-mcp connected", "server", res.ServerInfo.Name, "version", res.ServerInfo.Version)
	return nil
}

func (a *Adapter) Close() error {
	err := a.client.Close()
	if err != nil && a.log != nil {
		a.log.Error("n8n-mcp adapter close failed", "error", err)
	}
	return err
}

func (a *Adapter) CreateWorkflow(ctx context.Context, def dto.WorkflowDefinition) (dto.Workflow, error) {
	args, err := toArguments(def)
	if err != nil {
		return dto.Workflow{}, err
	}

	logger.FromContext(ctx).Info("calling n8n-mcp tool", "tool", createWorkflowTool, "name", def.Name)

	res, err := a.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      createWorkflowTool,
			Arguments: args,
		},
	})
	if err != nil {
		return dto.Workflow{}, errs.NewExternalServiceError(service, "n8n-MCP request failed: "+createWorkflowTool, true, err)
	}

	text := resultText(res)
	if res.IsError {
		return dto.Workflow{}, errs.NewExternalServiceError(service,
			"Failed to create workflow: "+strings.TrimSpace(text), false, nil)
	}

	wf, err := parseWorkflow(text)
	if err != nil {
		return dto.Workflow{}, errs.NewExternalServiceError(service, "n8n-MCP returned no workflow id", false, err)
	}
	if wf.Name == "" {
		wf.Name = def.Name
	}
	return wf, nil
}

// Healthy pings the MCP server.
func (a *Adapter) Healthy(ctx context.Context) bool {
	return a.client.Ping(ctx) == nil
}

func toArguments(def dto.WorkflowDefinition) (map[string]any, error) {
	b, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("encoding workflow: %w", err)
	}
	var args map[string]any
	if err := json.Unmarshal(b, &args); err != nil {
		return nil, fmt.Errorf("encoding workflow: %w", err)
	}
	return args, nil
}

func resultText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			b.WriteString(tc.Text)
		case *mcp.TextContent:
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// parseWorkflow reads the tool's JSON text. n8n-mcp answers either with
// the workflow itself or {success, data: {id, ...}}.
func parseWorkflow(text string) (dto.Workflow, error) {
	var env struct {
		dto.Workflow
		Data *dto.Workflow `json:"data"`
	}
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return dto.Workflow{}, err
	}
	if env.ID != "" {
		return env.Workflow, nil
	}
	if env.Data != nil && env.Data.ID != "" {
		return *env.Data, nil
	}
	return dto.Workflow{}, fmt.Errorf("no id in %q", logger.Preview(text, 100))
}
