package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/GregMSThompson/jarvis-gateway/internal/dispatch"
	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

type workflowCreator interface {
	CreateWorkflow(ctx context.Context, def dto.WorkflowDefinition) (dto.Workflow, error)
}

// Implemented by the REST client only; the MCP transport cannot activate.
type workflowActivator interface {
	ActivateWorkflow(ctx context.Context, id string) error
}

type workflowService struct {
	creator  workflowCreator
	activate bool
}

func NewWorkflowService(creator workflowCreator, activate bool) *workflowService {
	return &workflowService{creator: creator, activate: activate}
}

// Invoke turns the request into a webhook-triggered workflow skeleton on n8n.
func (s *workflowService) Invoke(ctx context.Context, message, _ string) (dispatch.Reply, error) {
	log := logger.FromContext(ctx)

	def := BuildWorkflowDefinition(message)
	wf, err := s.creator.CreateWorkflow(ctx, def)
	if err != nil {
		return dispatch.Reply{}, err
	}

	if s.activate {
		if act, ok := s.creator.(workflowActivator); ok {
			if err := act.ActivateWorkflow(ctx, wf.ID); err != nil {
				log.Warn("workflow activation failed", "workflow_id", wf.ID, "error", err)
			} else {
				log.Info("workflow activated", "workflow_id", wf.ID)
			}
		}
	}

	return dispatch.Reply{
		Success:    true,
		Response:   "Workflow created: " + wf.ID,
		WorkflowID: wf.ID,
	}, nil
}

const workflowNameRunes = 40

var nonSlug = regexp.MustCompile(`[^a-z0-9]`)

// BuildWorkflowDefinition returns a two-node workflow: a POST webhook whose
// path is derived from the name, wired to a JSON Respond to Webhook node.
func BuildWorkflowDefinition(message string) dto.WorkflowDefinition {
	desc := []rune(message)
	if len(desc) > workflowNameRunes {
		desc = desc[:workflowNameRunes]
	}
	name := "Auto: " + strings.TrimSpace(string(desc))
	slug := nonSlug.ReplaceAllString(strings.ToLower(name), "_")

	return dto.WorkflowDefinition{
		Name: name,
		Nodes: []dto.WorkflowNode{
			{
				ID:          "webhook1",
				Name:        "Webhook",
				Type:        "n8n-nodes-base.webhook",
				TypeVersion: 2.1,
				Position:    [2]int{250, 300},
				Parameters: map[string]any{
					"httpMethod":   "POST",
					"path":         slug,
					"responseMode": "responseNode",
					"options":      map[string]any{},
				},
				WebhookID: slug,
			},
			{
				ID:          "respond1",
				Name:        "Respond to Webhook",
				Type:        "n8n-nodes-base.respondToWebhook",
				TypeVersion: 1.1,
				Position:    [2]int{500, 300},
				Parameters: map[string]any{
					"respondWith":  "json",
					"responseBody": "= {\n  \"success\": true,\n  \"message\": \"Workflow created by JARVIS\"\n}",
				},
			},
		},
		Connections: dto.WorkflowConnections{
			"Webhook": {
				"main": {{{Node: "Respond to Webhook", Type: "main", Index: 0}}},
			},
		},
		Settings: map[string]any{"availableInMCP": true},
	}
}
