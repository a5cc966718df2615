package hooks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

func TestPreSendRewriteChains(t *testing.T) {
	m := NewManager()
	m.RegisterPreSend(func(_ context.Context, req *Request) (*Request, error) {
		out := req.Clone()
		for i := range out.Messages {
			out.Messages[i].Content = strings.ReplaceAll(out.Messages[i].Content, "secret", "[redacted]")
		}
		return out, nil
	}, WithName("privacy"))
	m.RegisterPreSend(func(_ context.Context, req *Request) (*Request, error) {
		out := req.Clone()
		out.MaxTokens = 512
		return out, nil
	}, WithName("caps"))

	req := &Request{Messages: []models.Message{{Role: models.RoleUser, Content: "my secret plan"}}}
	got := m.RunPreSend(context.Background(), req)
	if got.Messages[0].Content != "my [redacted] plan" {
		t.Errorf("content = %q", got.Messages[0].Content)
	}
	if got.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d", got.MaxTokens)
	}
	if req.Messages[0].Content != "my secret plan" {
		t.Error("original request mutated")
	}
}

func TestPreSendFailureKeepsPriorRequest(t *testing.T) {
	m := NewManager()
	m.RegisterPreSend(func(context.Context, *Request) (*Request, error) {
		return nil, errors.New("broken hook")
	})
	m.RegisterPreSend(func(context.Context, *Request) (*Request, error) {
		panic("worse hook")
	})

	req := &Request{AgentID: "main"}
	got := m.RunPreSend(context.Background(), req)
	if got != req {
		t.Error("failing hooks replaced the request")
	}
}

func TestPreSendNilReturnKeepsPrior(t *testing.T) {
	m := NewManager()
	m.RegisterPreSend(func(context.Context, *Request) (*Request, error) {
		return nil, nil
	})
	req := &Request{AgentID: "main"}
	if got := m.RunPreSend(context.Background(), req); got != req {
		t.Error("nil return replaced the request")
	}
}

func TestHookTimeoutIsSkipped(t *testing.T) {
	m := NewManager(WithTimeout(20 * time.Millisecond))
	m.RegisterPreSend(func(ctx context.Context, _ *Request) (*Request, error) {
		<-ctx.Done()
		return &Request{AgentID: "late"}, nil
	})

	start := time.Now()
	got := m.RunPreSend(context.Background(), &Request{AgentID: "main"})
	if time.Since(start) > time.Second {
		t.Fatal("RunPreSend blocked past the hook timeout")
	}
	if got.AgentID != "main" {
		t.Errorf("AgentID = %q, want prior request kept", got.AgentID)
	}
}

func TestPriorityOrdersChain(t *testing.T) {
	m := NewManager()
	var order []string
	m.RegisterPreTool(func(context.Context, *ToolContext) error {
		order = append(order, "late")
		return nil
	}, WithPriority(PriorityLow))
	m.RegisterPreTool(func(context.Context, *ToolContext) error {
		order = append(order, "early")
		return nil
	}, WithPriority(PriorityHigh))

	m.RunPreTool(context.Background(), &ToolContext{Tool: "clock"})
	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Errorf("order = %v", order)
	}
}

func TestToolHookErrorDoesNotStopChain(t *testing.T) {
	m := NewManager()
	var ran bool
	m.RegisterPostTool(func(context.Context, *ToolContext) error {
		return errors.New("observer broke")
	}, WithPriority(PriorityHigh))
	m.RegisterPostTool(func(context.Context, *ToolContext) error {
		ran = true
		return nil
	})

	m.RunPostTool(context.Background(), &ToolContext{Tool: "clock", Result: "12:00"})
	if !ran {
		t.Error("later hook did not run after earlier failure")
	}
}

func TestPostReceiveObserves(t *testing.T) {
	m := NewManager()
	var seen []models.ChunkType
	m.RegisterPostReceive(func(_ context.Context, chunk models.StreamChunk) {
		seen = append(seen, chunk.Type)
	})

	m.RunPostReceive(context.Background(), models.StreamChunk{Type: models.ChunkTextDelta, Text: "hi"})
	m.RunPostReceive(context.Background(), models.StreamChunk{Type: models.ChunkMessageStop})
	if len(seen) != 2 || seen[0] != models.ChunkTextDelta || seen[1] != models.ChunkMessageStop {
		t.Errorf("seen = %v", seen)
	}
}

func TestUnregister(t *testing.T) {
	m := NewManager()
	var calls int
	id := m.RegisterPreTool(func(context.Context, *ToolContext) error {
		calls++
		return nil
	})

	m.RunPreTool(context.Background(), &ToolContext{})
	if !m.Unregister(id) {
		t.Fatal("Unregister returned false for a live id")
	}
	m.RunPreTool(context.Background(), &ToolContext{})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if m.Unregister(id) {
		t.Error("Unregister returned true twice")
	}
}
