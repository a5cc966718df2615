package models

import "time"

// Session is a conversation thread for a single (channel, sender) pair.
// It is created on the first message from that pair and archived after it
// has been idle beyond a threshold; an archived session is never mutated.
type Session struct {
	ID           string      `json:"id"`
	AgentID      string      `json:"agent_id"`
	Channel      ChannelType `json:"channel"`
	Sender       string      `json:"sender"`
	Messages     []Message   `json:"messages"`
	StartedAt    time.Time   `json:"started_at"`
	LastActivity time.Time   `json:"last_activity"`
	Archived     bool        `json:"archived,omitempty"`
}

// Key returns the lookup key for the session's (channel, sender) pair.
func (s *Session) Key() string {
	return string(s.Channel) + ":" + s.Sender
}

// Append adds a message to the transcript and advances LastActivity.
// Message timestamps are non-decreasing within a session; Append clamps a
// stale timestamp up to the previous message's.
func (s *Session) Append(msg Message) {
	if n := len(s.Messages); n > 0 && msg.CreatedAt.Before(s.Messages[n-1].CreatedAt) {
		msg.CreatedAt = s.Messages[n-1].CreatedAt
	}
	s.Messages = append(s.Messages, msg)
	if msg.CreatedAt.After(s.LastActivity) {
		s.LastActivity = msg.CreatedAt
	}
}
