package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// ollamaChunk is one NDJSON line of an Ollama-shaped chat stream.
type ollamaChunk struct {
	Message struct {
		Content   string `json:"content"`
		ToolCalls []struct {
			Function struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// decodeNDJSON handles the Ollama dialect: one JSON object per line. Tool
// calls arrive fully formed, so each one yields a tool_use_start and
// tool_use_end back to back; done=true terminates the stream.
func (d *Decoder) decodeNDJSON(r io.Reader, emit emitFn) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialBufSize), maxBufSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ollamaChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			d.logger.Debug("skipping malformed stream event", "dialect", DialectOllama, "error", err)
			continue
		}

		if chunk.Message.Content != "" {
			if !emit(models.StreamChunk{Type: models.ChunkTextDelta, Text: chunk.Message.Content}) {
				return nil
			}
		}

		for _, tc := range chunk.Message.ToolCalls {
			args := "{}"
			if len(tc.Function.Arguments) > 0 {
				args = string(tc.Function.Arguments)
			}
			id := uuid.NewString()
			if !emit(models.StreamChunk{
				Type:     models.ChunkToolUseStart,
				ToolCall: &models.ToolCallDelta{ID: id, Name: tc.Function.Name},
			}) {
				return nil
			}
			if !emit(models.StreamChunk{
				Type:     models.ChunkToolUseEnd,
				ToolCall: &models.ToolCallDelta{ID: id, Name: tc.Function.Name, Args: args},
			}) {
				return nil
			}
		}

		if chunk.Done {
			stop := models.StreamChunk{Type: models.ChunkMessageStop, StopReason: chunk.DoneReason}
			if stop.StopReason == "" {
				stop.StopReason = "stop"
			}
			if chunk.PromptEvalCount > 0 || chunk.EvalCount > 0 {
				stop.Usage = &models.Usage{InputTokens: chunk.PromptEvalCount, OutputTokens: chunk.EvalCount}
			}
			emit(stop)
			return nil
		}
	}
	return scanner.Err()
}
