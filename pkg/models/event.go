package models

import "time"

// EventType classifies an event log entry.
type EventType string

const (
	EventToolExecution EventType = "tool_execution"
	EventFallback      EventType = "fallback"
	EventForge         EventType = "forge_event"
	EventError         EventType = "error"
	EventSystem        EventType = "system"
)

// ForgeEventType is the type discriminator carried by forge_event entries.
type ForgeEventType string

const (
	ForgeGapDetected    ForgeEventType = "gap_detected"
	ForgeBuildStarted   ForgeEventType = "build_started"
	ForgeBuildCompleted ForgeEventType = "build_completed"
	ForgeTestPassed     ForgeEventType = "test_passed"
	ForgeTestFailed     ForgeEventType = "test_failed"
	ForgePromoted       ForgeEventType = "promoted"
	ForgeQuarantined    ForgeEventType = "quarantined"
)

// EventLogEntry is one append-only record of operational activity: a tool
// execution, a provider fallback, a forge event, an error, or a system
// occurrence.
//
// Args and Result hold arbitrary JSON-representable values; the log store
// serializes them losslessly. Timestamp is UTC.
type EventLogEntry struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	Tool       string      `json:"tool,omitempty"`
	Args       any         `json:"args,omitempty"`
	Result     any         `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms,omitempty"`
	AgentID    string      `json:"agent_id,omitempty"`
	SessionID  string      `json:"session_id,omitempty"`
	Channel    ChannelType `json:"channel,omitempty"`
	Success    bool        `json:"success"`
	Tags       []string    `json:"tags,omitempty"`
}
