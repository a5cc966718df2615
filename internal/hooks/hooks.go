// Package hooks intercepts the agent pipeline at four points: outbound
// model requests, inbound stream chunks, and either side of every tool
// call. Hooks are isolated: a failing, panicking, or slow hook is logged
// and skipped, never breaking the pipeline.
package hooks

import (
	"context"
	"encoding/json"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Point names a hook interception point.
type Point string

const (
	// PreSend hooks may rewrite the outbound model request (privacy
	// redaction, prompt shaping).
	PreSend Point = "pre_send"
	// PostReceive hooks observe inbound chunks; they cannot modify them.
	PostReceive Point = "post_receive"
	// PreTool hooks run before each tool call.
	PreTool Point = "pre_tool"
	// PostTool hooks run after each tool call.
	PostTool Point = "post_tool"
)

// Priority orders hooks within a point; lower runs first.
type Priority int

const (
	PriorityHigh   Priority = 10
	PriorityNormal Priority = 50
	PriorityLow    Priority = 90
)

// Request is the outbound model request a PreSend hook can rewrite.
type Request struct {
	AgentID     string             `json:"agent_id"`
	SessionID   string             `json:"session_id"`
	Channel     models.ChannelType `json:"channel"`
	Messages    []models.Message   `json:"messages"`
	Tools       []ToolSchema       `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

// ToolSchema mirrors the schema triple exposed to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Clone deep-copies the request so a hook can rewrite it freely.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	out.Messages = make([]models.Message, len(r.Messages))
	copy(out.Messages, r.Messages)
	out.Tools = make([]ToolSchema, len(r.Tools))
	copy(out.Tools, r.Tools)
	return &out
}

// ToolContext is the shared record a tool hook observes. PreTool hooks
// see Args; PostTool hooks additionally see Result and Error.
type ToolContext struct {
	Tool      string             `json:"tool"`
	Args      map[string]any     `json:"args"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	AgentID   string             `json:"agent_id"`
	SessionID string             `json:"session_id"`
	Channel   models.ChannelType `json:"channel"`
}

// PreSendFunc transforms an outbound request. Returning nil keeps the
// prior request.
type PreSendFunc func(ctx context.Context, req *Request) (*Request, error)

// PostReceiveFunc observes one inbound chunk.
type PostReceiveFunc func(ctx context.Context, chunk models.StreamChunk)

// ToolFunc observes (and for PreTool, may annotate) a tool call.
type ToolFunc func(ctx context.Context, tc *ToolContext) error
