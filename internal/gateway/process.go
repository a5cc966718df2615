package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/agent"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// process handles one routed message end to end: session acquisition,
// turn execution, reply delivery. Runs on the router's drainer.
func (g *Gateway) process(ctx context.Context, agentCfg models.AgentConfig, routed models.RoutedMessage) {
	msg := routed.Message
	session := g.sessions.Acquire(msg.Channel, msg.Sender, agentCfg.ID)
	defer g.sessions.Release(session)

	userMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   msg.Content,
		Metadata:  msg.Metadata,
		CreatedAt: msg.Timestamp,
	}

	adapter := g.adapters[msg.Channel]

	// The console streams deltas as they arrive; other surfaces get the
	// complete reply in one send.
	var emit agent.EmitFunc
	streaming := adapter != nil && msg.Channel == models.ChannelConsole
	if streaming {
		emit = func(delta string) {
			if err := adapter.Send(ctx, msg.Sender, delta); err != nil {
				g.logger.Warn("send failed", "channel", msg.Channel, "error", err)
			}
		}
	}

	res := g.engine.RunTurn(ctx, agentCfg, session, userMsg, emit)
	g.requests.Record(msg.Content, res.State == agent.StateDone)

	switch {
	case streaming:
		if err := adapter.Send(ctx, msg.Sender, "\n"); err != nil {
			g.logger.Warn("send failed", "channel", msg.Channel, "error", err)
		}
	case adapter != nil:
		// Failure text is already part of the final transcript message;
		// deliver whatever the turn produced.
		text := finalText(session)
		if text == "" {
			return
		}
		if err := adapter.Send(ctx, msg.Sender, text); err != nil {
			g.logger.Warn("send failed", "channel", msg.Channel, "error", err)
		}
	default:
		// No adapter for this surface (cron tasks, tests): the reply only
		// lives in the transcript.
		g.logger.Info("reply without adapter",
			"channel", msg.Channel,
			"sender", msg.Sender,
			"state", res.State)
	}
}

// finalText returns the content of the session's last assistant message.
func finalText(session *models.Session) string {
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if session.Messages[i].Role == models.RoleAssistant {
			return session.Messages[i].Content
		}
	}
	return ""
}

// maxRecordedRequests bounds the request history kept for gap detection.
const maxRecordedRequests = 200

// requestLog is the in-memory user-request history feeding the forge
// sweep. Oldest entries fall off first.
type requestLog struct {
	mu      sync.Mutex
	entries []models.UserRequest
}

func newRequestLog() *requestLog {
	return &requestLog{}
}

// Record appends one request outcome.
func (r *requestLog) Record(content string, handled bool) {
	if content == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, models.UserRequest{Content: content, Handled: handled})
	if n := len(r.entries); n > maxRecordedRequests {
		r.entries = r.entries[n-maxRecordedRequests:]
	}
}

// Requests returns a snapshot of the recorded history.
func (r *requestLog) Requests(context.Context) []models.UserRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.UserRequest, len(r.entries))
	copy(out, r.entries)
	return out
}
