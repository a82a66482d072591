package services

import (
	"context"
	"strings"

	"github.com/GregMSThompson/jarvis-gateway/internal/dispatch"
	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

type chatClient interface {
	Send(ctx context.Context, message, sessionID string) (dto.N8NWebhookResponse, error)
}

type agentRunner interface {
	RunAgent(ctx context.Context, agent, prompt string) (dto.AgentRun, error)
	RunPrompt(ctx context.Context, prompt string) (dto.AgentRun, error)
}

// chatCapability forwards the conversation to the n8n chat workflow.
type chatCapability struct {
	client chatClient
}

func NewChatCapability(client chatClient) *chatCapability {
	return &chatCapability{client: client}
}

func (c *chatCapability) Invoke(ctx context.Context, message, sessionID string) (dispatch.Reply, error) {
	resp, err := c.client.Send(ctx, message, sessionID)
	if err != nil {
		return dispatch.Reply{}, err
	}
	return dispatch.Reply{
		Success:   true,
		Response:  resp.Response,
		ModelUsed: resp.ModelUsed,
	}, nil
}

const (
	debugPrefix       = "debug:"
	docsPrefix        = "docs:"
	orchestratePrefix = "ulw:"
)

type debugCapability struct {
	runner agentRunner
	agent  string
}

func NewDebugCapability(runner agentRunner) *debugCapability {
	return &debugCapability{runner: runner, agent: "oracle"}
}

func (c *debugCapability) Invoke(ctx context.Context, message, _ string) (dispatch.Reply, error) {
	return runAgent(ctx, c.runner, c.agent, debugPrompt(message))
}

// debugPrompt frames the message for the oracle agent. An explicit
// "debug:" prefix means the user pasted an error rather than code.
func debugPrompt(message string) string {
	if rest, ok := cutPrefixFold(message, debugPrefix); ok {
		return "Debug this error and explain fix:\n\n" + rest
	}
	return "Debug this code and suggest improvements:\n\n" + message
}

type docsCapability struct {
	runner agentRunner
	agent  string
}

func NewDocsCapability(runner agentRunner) *docsCapability {
	return &docsCapability{runner: runner, agent: "librarian"}
}

func (c *docsCapability) Invoke(ctx context.Context, message, _ string) (dispatch.Reply, error) {
	query := message
	if rest, ok := cutPrefixFold(message, docsPrefix); ok {
		query = rest
	}
	return runAgent(ctx, c.runner, c.agent, query)
}

// orchestrateCapability hands the task to opencode's ultrawork mode, which
// fans out to several agents on its own.
type orchestrateCapability struct {
	runner agentRunner
}

func NewOrchestrateCapability(runner agentRunner) *orchestrateCapability {
	return &orchestrateCapability{runner: runner}
}

func (c *orchestrateCapability) Invoke(ctx context.Context, message, _ string) (dispatch.Reply, error) {
	task := message
	if rest, ok := cutPrefixFold(message, orchestratePrefix); ok {
		task = rest
	}

	logger.FromContext(ctx).Info("starting ultrawork", "task", logger.Preview(task, 50))
	run, err := c.runner.RunPrompt(ctx, orchestratePrefix+" "+task)
	if err != nil {
		return dispatch.Reply{}, err
	}
	return dispatch.Reply{Success: true, Response: run.Stdout}, nil
}

func runAgent(ctx context.Context, runner agentRunner, agent, prompt string) (dispatch.Reply, error) {
	logger.FromContext(ctx).Info("running agent", "agent", agent, "prompt", logger.Preview(prompt, 50))
	run, err := runner.RunAgent(ctx, agent, prompt)
	if err != nil {
		return dispatch.Reply{}, err
	}
	return dispatch.Reply{Success: true, Response: run.Stdout}, nil
}

// cutPrefixFold strips a case-insensitive prefix (after leading space) and
// trims what remains.
func cutPrefixFold(s, prefix string) (string, bool) {
	t := strings.TrimSpace(s)
	if len(t) < len(prefix) || !strings.EqualFold(t[:len(prefix)], prefix) {
		return s, false
	}
	return strings.TrimSpace(t[len(prefix):]), true
}
