// Package models defines the core data types shared across the openclaw runtime.
package models

import (
	"encoding/json"
	"time"
)

// ChannelType identifies a messaging surface.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelConsole  ChannelType = "console"
	ChannelCron     ChannelType = "cron"
	ChannelAPI      ChannelType = "api"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single entry in a session transcript. Messages are immutable
// once created.
//
// Tool-call requests made by the model are carried in ToolCalls on an
// assistant message; the corresponding outputs come back as separate
// messages with Role RoleTool, ToolCallID referencing the request, and Name
// set to the tool name.
type Message struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id,omitempty"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ToolCall represents a model's request to execute a tool. Input is the
// complete argument object as accumulated from the stream.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ChannelMessage is an inbound message normalized from a channel adapter,
// before it is routed to an agent.
type ChannelMessage struct {
	Channel   ChannelType    `json:"channel"`
	Sender    string         `json:"sender"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// QueueKey returns the ordering key for the message: replies for the same
// (channel, sender) pair are processed strictly in arrival order.
func (m ChannelMessage) QueueKey() string {
	return string(m.Channel) + ":" + m.Sender
}

// RoutedMessage is a channel message bound to the agent that will handle
// it, queued for the turn processor.
type RoutedMessage struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id"`
	Message    ChannelMessage `json:"message"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}
