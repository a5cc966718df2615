package stream

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// openToolCall is a tool call that has been started but not yet closed.
type openToolCall struct {
	id   string
	name string
	args strings.Builder
}

// openAIMachine decodes OpenAI-shaped SSE events: deltas arrive under
// choices[0].delta, tool calls as indexed fragments, and termination as a
// finish_reason followed by the [DONE] sentinel.
type openAIMachine struct {
	logger      *slog.Logger
	cur         *openToolCall
	usage       *models.Usage
	stopEmitted bool
}

func newOpenAIMachine(logger *slog.Logger) *openAIMachine {
	return &openAIMachine{logger: logger}
}

func (m *openAIMachine) event(_, data string, emit emitFn) bool {
	var resp openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		m.logger.Debug("skipping malformed stream event", "dialect", DialectOpenAI, "error", err)
		return true
	}

	if resp.Usage != nil {
		m.usage = &models.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	if len(resp.Choices) == 0 {
		return true
	}
	choice := resp.Choices[0]

	if choice.Delta.Content != "" {
		if !emit(models.StreamChunk{Type: models.ChunkTextDelta, Text: choice.Delta.Content}) {
			return false
		}
	}

	for _, tc := range choice.Delta.ToolCalls {
		if tc.Function.Name != "" {
			// A named entry starts a new call; any open call is complete.
			if !m.closeCurrent(emit, false) {
				return false
			}
			id := tc.ID
			if id == "" {
				id = uuid.NewString()
			}
			m.cur = &openToolCall{id: id, name: tc.Function.Name}
			if !emit(models.StreamChunk{
				Type:     models.ChunkToolUseStart,
				ToolCall: &models.ToolCallDelta{ID: id, Name: tc.Function.Name},
			}) {
				return false
			}
			if tc.Function.Arguments == "" {
				continue
			}
		}
		if tc.Function.Arguments == "" {
			continue
		}
		if m.cur == nil {
			m.logger.Debug("dropping tool arguments with no open call", "dialect", DialectOpenAI)
			continue
		}
		m.cur.args.WriteString(tc.Function.Arguments)
		if !emit(models.StreamChunk{
			Type:     models.ChunkToolUseDelta,
			ToolCall: &models.ToolCallDelta{ID: m.cur.id, Args: tc.Function.Arguments},
		}) {
			return false
		}
	}

	switch choice.FinishReason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return m.closeCurrent(emit, false)
	case openai.FinishReasonStop, openai.FinishReasonLength, openai.FinishReasonContentFilter:
		if !m.closeCurrent(emit, false) {
			return false
		}
		return m.emitStop(emit, string(choice.FinishReason))
	}
	return true
}

func (m *openAIMachine) finish(emit emitFn, emitStop bool) bool {
	if !m.closeCurrent(emit, true) {
		return false
	}
	if emitStop {
		return m.emitStop(emit, "stop")
	}
	return true
}

// closeCurrent emits tool_use_end for the open call, if any. With repair
// set, the accumulated argument JSON is completed by the recovery rule
// before it is emitted; this is only for force-closes at end of input.
func (m *openAIMachine) closeCurrent(emit emitFn, repair bool) bool {
	if m.cur == nil {
		return true
	}
	args := m.cur.args.String()
	if repair {
		args = string(RepairJSON(args))
	} else if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	chunk := models.StreamChunk{
		Type:     models.ChunkToolUseEnd,
		ToolCall: &models.ToolCallDelta{ID: m.cur.id, Name: m.cur.name, Args: args},
	}
	m.cur = nil
	return emit(chunk)
}

func (m *openAIMachine) emitStop(emit emitFn, reason string) bool {
	if m.stopEmitted {
		return true
	}
	m.stopEmitted = true
	return emit(models.StreamChunk{Type: models.ChunkMessageStop, StopReason: reason, Usage: m.usage})
}
