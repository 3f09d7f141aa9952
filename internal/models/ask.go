package models

import (
	"strings"
	"time"
)

// Tool identifies a language-model backend.
type Tool string

const (
	ToolCodex  Tool = "codex"
	ToolClaude Tool = "claude"
)

// Tools lists every supported backend in resolution order.
var Tools = []Tool{ToolCodex, ToolClaude}

// ParseTool maps a wire identifier to a Tool.
func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case ToolCodex, ToolClaude:
		return Tool(s), nil
	default:
		return "", &UnsupportedToolError{Tool: s}
	}
}

// AskOptions carries per-call backend options.
type AskOptions struct {
	TimeoutMs *float64 `json:"timeoutMs,omitempty"`
}

// Timeout converts TimeoutMs into a duration; zero means "use the default".
func (o *AskOptions) Timeout() time.Duration {
	if o == nil || o.TimeoutMs == nil || *o.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(*o.TimeoutMs * float64(time.Millisecond))
}

// AskRequest is a validated ask call.
type AskRequest struct {
	Tool           Tool        `json:"tool"`
	Model          string      `json:"model"`
	UserInput      string      `json:"userInput"`
	DesignContext  string      `json:"designContext,omitempty"`
	ConversationID string      `json:"conversationId,omitempty"`
	Options        *AskOptions `json:"options,omitempty"`
}

// Validate checks the invariants the transport layer guarantees.
func (r AskRequest) Validate() error {
	if _, err := ParseTool(string(r.Tool)); err != nil {
		return err
	}
	if r.Model == "" {
		return &InvalidRequestError{Reason: "`model` is required."}
	}
	if strings.TrimSpace(r.UserInput) == "" {
		return &InvalidRequestError{Reason: "`userInput` is required."}
	}
	return nil
}

// AskResult is returned to the caller after one ask cycle.
type AskResult struct {
	Content        string         `json:"content"`
	ConversationID string         `json:"conversationId"`
	Raw            map[string]any `json:"raw"`
}
