package provider

import (
	"context"
	"encoding/json"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/stream"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicDefaultTokens  = 4096
)

// Anthropic speaks the Anthropic messages API over its SSE dialect.
type Anthropic struct {
	httpBackend
}

var _ Provider = (*Anthropic)(nil)

// NewAnthropic creates an Anthropic-shaped provider.
func NewAnthropic(cfg Config) *Anthropic {
	if cfg.Name == "" {
		cfg.Name = "anthropic"
	}
	return &Anthropic{httpBackend: newHTTPBackend(cfg, anthropicDefaultBaseURL)}
}

// IsAvailable reports whether the provider is configured with credentials.
func (p *Anthropic) IsAvailable(context.Context) bool {
	return p.apiKey != ""
}

// Chat starts a streaming messages call.
func (p *Anthropic) Chat(ctx context.Context, messages []models.Message, opts ChatOptions) (<-chan models.StreamChunk, error) {
	model := opts.Model
	if model == "" {
		model = p.model
	}

	req := anthropicRequest{
		Model:     model,
		Stream:    true,
		MaxTokens: opts.MaxTokens,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = anthropicDefaultTokens
	}
	if opts.Temperature > 0 {
		t := opts.Temperature
		req.Temperature = &t
	}
	for _, tool := range opts.Tools {
		req.Tools = append(req.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}
	req.System, req.Messages = anthropicMessages(messages)

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
	return p.doStream(ctx, "/messages", headers, req, stream.DialectAnthropic)
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// anthropicMessages converts transcript messages to the wire shape: system
// content is hoisted to the top-level system field, tool results become
// tool_result blocks on user messages (consecutive results share one), and
// assistant tool calls become tool_use blocks.
func anthropicMessages(messages []models.Message) (system string, out []anthropicMessage) {
	var systemParts []string

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}

		case models.RoleUser:
			out = append(out, anthropicMessage{
				Role:    "user",
				Content: []anthropicBlock{{Type: "text", Text: msg.Content}},
			})

		case models.RoleAssistant:
			var blocks []anthropicBlock
			if msg.Content != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Input
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropicBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
			if len(blocks) > 0 {
				out = append(out, anthropicMessage{Role: "assistant", Content: blocks})
			}

		case models.RoleTool:
			block := anthropicBlock{Type: "tool_result", ToolUseID: msg.ToolCallID, Content: msg.Content}
			if n := len(out); n > 0 && out[n-1].Role == "user" && len(out[n-1].Content) > 0 && out[n-1].Content[0].Type == "tool_result" {
				out[n-1].Content = append(out[n-1].Content, block)
			} else {
				out = append(out, anthropicMessage{Role: "user", Content: []anthropicBlock{block}})
			}
		}
	}

	system = joinParts(systemParts)
	return system, out
}

func joinParts(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n\n" + p
	}
	return out
}
