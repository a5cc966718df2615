package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// anthropicEvent is the envelope shared by all Anthropic-shaped SSE events.
// The payload type field is authoritative; the SSE event name is ignored.
type anthropicEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	Message *struct {
		Usage *anthropicUsage `json:"usage"`
	} `json:"message"`

	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`

	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`

	Usage *anthropicUsage `json:"usage"`

	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicMachine decodes Anthropic-shaped SSE events: content blocks are
// opened, grown, and closed by indexed content_block_* events, and the
// message terminates via message_delta stop reasons or message_stop.
type anthropicMachine struct {
	logger      *slog.Logger
	blocks      map[int]*openToolCall
	usage       models.Usage
	haveUsage   bool
	stopReason  string
	stopEmitted bool
}

func newAnthropicMachine(logger *slog.Logger) *anthropicMachine {
	return &anthropicMachine{logger: logger, blocks: make(map[int]*openToolCall)}
}

func (m *anthropicMachine) event(_, data string, emit emitFn) bool {
	var ev anthropicEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		m.logger.Debug("skipping malformed stream event", "dialect", DialectAnthropic, "error", err)
		return true
	}

	switch ev.Type {
	case "message_start":
		if ev.Message != nil && ev.Message.Usage != nil {
			m.usage.InputTokens = ev.Message.Usage.InputTokens
			m.haveUsage = true
		}

	case "content_block_start":
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			m.blocks[ev.Index] = &openToolCall{id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
			return emit(models.StreamChunk{
				Type:     models.ChunkToolUseStart,
				ToolCall: &models.ToolCallDelta{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name},
			})
		}

	case "content_block_delta":
		if ev.Delta == nil {
			return true
		}
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text != "" {
				return emit(models.StreamChunk{Type: models.ChunkTextDelta, Text: ev.Delta.Text})
			}
		case "input_json_delta":
			call := m.blocks[ev.Index]
			if call == nil || ev.Delta.PartialJSON == "" {
				return true
			}
			call.args.WriteString(ev.Delta.PartialJSON)
			return emit(models.StreamChunk{
				Type:     models.ChunkToolUseDelta,
				ToolCall: &models.ToolCallDelta{ID: call.id, Args: ev.Delta.PartialJSON},
			})
		}

	case "content_block_stop":
		if call := m.blocks[ev.Index]; call != nil {
			delete(m.blocks, ev.Index)
			return m.closeCall(call, emit, false)
		}

	case "message_delta":
		if ev.Usage != nil {
			m.usage.OutputTokens = ev.Usage.OutputTokens
			m.haveUsage = true
		}
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			m.stopReason = ev.Delta.StopReason
			// end_turn and stop_sequence close the message here; tool_use
			// waits for the explicit message_stop event.
			if ev.Delta.StopReason == "end_turn" || ev.Delta.StopReason == "stop_sequence" {
				return m.emitStop(emit, ev.Delta.StopReason)
			}
		}

	case "message_stop":
		reason := m.stopReason
		if reason == "" {
			reason = "end_turn"
		}
		return m.emitStop(emit, reason)

	case "error":
		msg := "upstream error"
		if ev.Error != nil {
			msg = fmt.Sprintf("upstream %s: %s", ev.Error.Type, ev.Error.Message)
		}
		emit(models.StreamChunk{Err: fmt.Errorf("%s", msg)})
		return false

	case "ping":
		// Keepalive, ignored.
	}
	return true
}

func (m *anthropicMachine) finish(emit emitFn, emitStop bool) bool {
	// Force-close any open tool calls in index order.
	indexes := make([]int, 0, len(m.blocks))
	for i := range m.blocks {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		call := m.blocks[i]
		delete(m.blocks, i)
		if !m.closeCall(call, emit, true) {
			return false
		}
	}
	if emitStop {
		return m.emitStop(emit, "end_turn")
	}
	return true
}

func (m *anthropicMachine) closeCall(call *openToolCall, emit emitFn, repair bool) bool {
	args := call.args.String()
	if repair {
		args = string(RepairJSON(args))
	} else if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	return emit(models.StreamChunk{
		Type:     models.ChunkToolUseEnd,
		ToolCall: &models.ToolCallDelta{ID: call.id, Name: call.name, Args: args},
	})
}

func (m *anthropicMachine) emitStop(emit emitFn, reason string) bool {
	if m.stopEmitted {
		return true
	}
	m.stopEmitted = true
	chunk := models.StreamChunk{Type: models.ChunkMessageStop, StopReason: reason}
	if m.haveUsage {
		usage := m.usage
		chunk.Usage = &usage
	}
	return emit(chunk)
}
