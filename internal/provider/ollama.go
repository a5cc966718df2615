package provider

import (
	"context"
	"encoding/json"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/stream"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

const ollamaDefaultBaseURL = "http://localhost:11434"

// Ollama speaks the local Ollama chat API over NDJSON.
type Ollama struct {
	httpBackend
}

var _ Provider = (*Ollama)(nil)

// NewOllama creates an Ollama-shaped provider.
func NewOllama(cfg Config) *Ollama {
	if cfg.Name == "" {
		cfg.Name = "ollama"
	}
	return &Ollama{httpBackend: newHTTPBackend(cfg, ollamaDefaultBaseURL)}
}

// IsAvailable reports whether the provider is configured. The local daemon
// needs no credentials; reachability failures surface as transport errors
// and advance the chain.
func (p *Ollama) IsAvailable(context.Context) bool {
	return p.baseURL != ""
}

// Chat starts a streaming chat call.
func (p *Ollama) Chat(ctx context.Context, messages []models.Message, opts ChatOptions) (<-chan models.StreamChunk, error) {
	model := opts.Model
	if model == "" {
		model = p.model
	}

	req := ollamaRequest{
		Model:    model,
		Messages: ollamaMessages(messages),
		Stream:   true,
	}
	options := map[string]any{}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if len(options) > 0 {
		req.Options = options
	}
	for _, tool := range opts.Tools {
		ot := ollamaTool{Type: "function"}
		ot.Function.Name = tool.Name
		ot.Function.Description = tool.Description
		ot.Function.Parameters = tool.Parameters
		req.Tools = append(req.Tools, ot)
	}

	return p.doStream(ctx, "/api/chat", nil, req, stream.DialectOllama)
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

// ollamaMessages converts transcript messages to the wire shape.
func ollamaMessages(messages []models.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		m := ollamaMessage{Role: string(msg.Role), Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			var call ollamaToolCall
			call.Function.Name = tc.Name
			call.Function.Arguments = tc.Input
			m.ToolCalls = append(m.ToolCalls, call)
		}
		out = append(out, m)
	}
	return out
}
