package models

// ChunkType identifies the kind of a canonical stream chunk.
type ChunkType string

// The five canonical chunk tags. Every wire dialect (OpenAI SSE, Anthropic
// SSE, Ollama NDJSON) is decoded into these before anything downstream sees
// it.
const (
	ChunkTextDelta    ChunkType = "text_delta"
	ChunkToolUseStart ChunkType = "tool_use_start"
	ChunkToolUseDelta ChunkType = "tool_use_delta"
	ChunkToolUseEnd   ChunkType = "tool_use_end"
	ChunkMessageStop  ChunkType = "message_stop"
)

// StreamChunk is the provider-independent unit of streamed model output.
//
// A chunk with Err set is not part of the canonical sequence: it reports
// that the byte source itself failed, and the stream is over. Producers
// close the channel immediately after delivering it.
type StreamChunk struct {
	Type ChunkType `json:"type"`

	// Text carries the delta for ChunkTextDelta.
	Text string `json:"text,omitempty"`

	// ToolCall is set for the three tool_use_* chunk types.
	ToolCall *ToolCallDelta `json:"tool_call,omitempty"`

	// Usage is set when the upstream reports token accounting, typically
	// on ChunkMessageStop.
	Usage *Usage `json:"usage,omitempty"`

	// StopReason is set on ChunkMessageStop when the upstream reports one
	// ("end_turn", "stop", "tool_calls", ...).
	StopReason string `json:"stop_reason,omitempty"`

	Err error `json:"-"`
}

// ToolCallDelta carries tool-call progress through the stream.
//
// ChunkToolUseStart sets ID and Name. ChunkToolUseDelta carries an Args
// fragment (a piece of the argument JSON, not necessarily valid on its
// own). ChunkToolUseEnd carries the complete argument JSON for the call,
// repaired if the stream ended before the arguments were closed.
type ToolCallDelta struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Args string `json:"args,omitempty"`
}

// Usage reports token consumption for a completed model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
