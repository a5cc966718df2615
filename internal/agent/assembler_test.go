package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/tools"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

type stubSchemas struct {
	allow []string
}

func (s *stubSchemas) Schemas(allow []string) []tools.Schema {
	s.allow = allow
	return []tools.Schema{{Name: "clock", Parameters: json.RawMessage(`{"type":"object"}`)}}
}

type stubFacts struct {
	facts []string
}

func (s *stubFacts) Facts(context.Context, models.ChannelType, string) []string {
	return s.facts
}

func testSession(msgs ...models.Message) *models.Session {
	s := &models.Session{ID: "s1", Channel: models.ChannelConsole, Sender: "tester"}
	for _, m := range msgs {
		s.Append(m)
	}
	return s
}

func TestAssembleOrdering(t *testing.T) {
	schemas := &stubSchemas{}
	a := NewAssembler(schemas,
		WithGlobalPrompt("Be concise."),
		WithFacts(&stubFacts{facts: []string{"prefers dark mode"}}),
	)
	agent := models.AgentConfig{ID: "main", Identity: "You are openclaw.", Tools: []string{"clock"}}
	session := testSession(
		models.Message{ID: "u1", Role: models.RoleUser, Content: "hi", CreatedAt: time.Now()},
	)

	prompt := a.Assemble(context.Background(), agent, session)
	if len(prompt.Messages) != 3 {
		t.Fatalf("messages = %d, want system, facts, history", len(prompt.Messages))
	}
	if prompt.Messages[0].Role != models.RoleSystem || !strings.Contains(prompt.Messages[0].Content, "You are openclaw.") {
		t.Errorf("system message = %+v", prompt.Messages[0])
	}
	if !strings.Contains(prompt.Messages[0].Content, "Be concise.") {
		t.Errorf("global prompt missing: %q", prompt.Messages[0].Content)
	}
	if !strings.Contains(prompt.Messages[1].Content, "prefers dark mode") {
		t.Errorf("facts message = %q", prompt.Messages[1].Content)
	}
	if prompt.Messages[2].ID != "u1" {
		t.Errorf("history not last: %+v", prompt.Messages[2])
	}
	if len(prompt.Tools) != 1 || prompt.Tools[0].Name != "clock" {
		t.Errorf("tools = %+v", prompt.Tools)
	}
	if len(schemas.allow) != 1 || schemas.allow[0] != "clock" {
		t.Errorf("allow-list not forwarded: %v", schemas.allow)
	}
	if prompt.Compacted {
		t.Error("small prompt reported compacted")
	}
}

func TestAssembleCompactsWhenOverBudget(t *testing.T) {
	a := NewAssembler(&stubSchemas{}, WithReserveFloor(64))
	agent := models.AgentConfig{ID: "main", ContextWindow: 128}

	big := strings.Repeat("word ", 100)
	session := testSession(
		models.Message{ID: "a", Role: models.RoleUser, Content: big, CreatedAt: time.Now()},
		models.Message{ID: "b", Role: models.RoleAssistant, Content: big, CreatedAt: time.Now()},
		models.Message{ID: "c", Role: models.RoleUser, Content: big, CreatedAt: time.Now()},
		models.Message{ID: "d", Role: models.RoleUser, Content: "latest", CreatedAt: time.Now()},
	)

	prompt := a.Assemble(context.Background(), agent, session)
	if !prompt.Compacted {
		t.Fatal("oversized history not compacted")
	}
	last := prompt.Messages[len(prompt.Messages)-1]
	if last.ID != "d" {
		t.Errorf("latest message lost: %+v", last)
	}
	found := false
	for _, m := range prompt.Messages {
		if strings.HasPrefix(m.Content, SummaryMarker) {
			found = true
		}
	}
	if !found {
		t.Error("no summary message in compacted prompt")
	}
	if len(session.Messages) != 4 {
		t.Error("session transcript mutated by assembly")
	}
}

func TestAssembleNoWindowNeverCompacts(t *testing.T) {
	a := NewAssembler(&stubSchemas{})
	agent := models.AgentConfig{ID: "main"}
	session := testSession(
		models.Message{ID: "a", Role: models.RoleUser, Content: strings.Repeat("x", 100000), CreatedAt: time.Now()},
	)
	if prompt := a.Assemble(context.Background(), agent, session); prompt.Compacted {
		t.Error("compacted with no context window configured")
	}
}

func TestEstimateTokens(t *testing.T) {
	msgs := []models.Message{
		{Content: "abcd"},     // 1
		{Content: "abcde"},    // 2
		{Content: ""},         // 0
		{Content: "abcdefgh"}, // 2
	}
	if got := EstimateTokens(msgs); got != 5 {
		t.Errorf("EstimateTokens = %d, want 5", got)
	}
}
