package dto

// ChatRequest is the body of POST /chat. Both fields stay untyped: a
// non-string message is rejected like a missing one, and a non-string
// session id is replaced with a fresh one.
type ChatRequest struct {
	Message   any `json:"message"`
	SessionID any `json:"sessionId"`
}

type ChatResponse struct {
	Success         bool   `json:"success"`
	Response        string `json:"response"`
	Intent          string `json:"intent,omitempty"`
	ToolUsed        string `json:"toolUsed,omitempty"`
	ModelUsed       string `json:"modelUsed,omitempty"`
	SessionID       string `json:"sessionId"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	WorkflowID      string `json:"workflowId,omitempty"`
	Error           string `json:"error,omitempty"`
}
