package provider

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/stream"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAI speaks the chat-completions API over its SSE dialect. Any
// OpenAI-compatible endpoint works by overriding BaseURL.
type OpenAI struct {
	httpBackend
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI-shaped provider.
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	return &OpenAI{httpBackend: newHTTPBackend(cfg, openAIDefaultBaseURL)}
}

// IsAvailable reports whether the provider is configured with credentials.
func (p *OpenAI) IsAvailable(context.Context) bool {
	return p.apiKey != ""
}

// Chat starts a streaming chat-completions call.
func (p *OpenAI) Chat(ctx context.Context, messages []models.Message, opts ChatOptions) (<-chan models.StreamChunk, error) {
	model := opts.Model
	if model == "" {
		model = p.model
	}

	req := openai.ChatCompletionRequest{
		Model:         model,
		Messages:      openAIMessages(messages),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}
	for _, tool := range opts.Tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	return p.doStream(ctx, "/chat/completions", headers, req, stream.DialectOpenAI)
}

// openAIMessages converts transcript messages to the wire shape.
func openAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		switch msg.Role {
		case models.RoleAssistant:
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
		case models.RoleTool:
			m.ToolCallID = msg.ToolCallID
			m.Name = msg.Name
		}
		out = append(out, m)
	}
	return out
}
