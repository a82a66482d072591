package dto

type N8NWebhookPayload struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
}

type N8NWebhookResponse struct {
	Response  string `json:"response"`
	ModelUsed string `json:"model_used"`
}

type WorkflowNode struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	TypeVersion float64        `json:"typeVersion"`
	Position    [2]int         `json:"position"`
	Parameters  map[string]any `json:"parameters"`
	WebhookID   string         `json:"webhookId,omitempty"`
}

type WorkflowConnection struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// WorkflowConnections maps a source node name to its outputs by type.
type WorkflowConnections map[string]map[string][][]WorkflowConnection

type WorkflowDefinition struct {
	Name        string              `json:"name"`
	Nodes       []WorkflowNode      `json:"nodes"`
	Connections WorkflowConnections `json:"connections"`
	Settings    map[string]any      `json:"settings"`
}

type Workflow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type WorkflowFilter struct {
	Active *bool
	Tags   []string
}
