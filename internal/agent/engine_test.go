package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/hooks"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/provider"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/tools"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// scriptedChain replays one prepared chunk script per Execute call and
// records what it was asked.
type scriptedChain struct {
	scripts [][]models.StreamChunk
	calls   []provider.ChatOptions
	sent    [][]models.Message
	err     error
}

func (c *scriptedChain) Execute(_ context.Context, messages []models.Message, opts provider.ChatOptions) (*provider.Result, error) {
	c.calls = append(c.calls, opts)
	c.sent = append(c.sent, messages)
	if c.err != nil {
		return nil, c.err
	}
	var script []models.StreamChunk
	if len(c.scripts) > 0 {
		script = c.scripts[0]
		c.scripts = c.scripts[1:]
	}
	ch := make(chan models.StreamChunk, len(script))
	for _, chunk := range script {
		ch <- chunk
	}
	close(ch)
	return &provider.Result{Chunks: ch, Provider: "fake", Model: "fake-1"}, nil
}

type scriptedTools struct {
	results map[string]tools.Result
	calls   []string
}

func (s *scriptedTools) Execute(_ context.Context, name string, _ map[string]any, _ tools.CallMeta) tools.Result {
	s.calls = append(s.calls, name)
	if r, ok := s.results[name]; ok {
		return r
	}
	return tools.Result{Success: true, Result: "ok"}
}

type memRecorder struct {
	entries []models.EventLogEntry
}

func (r *memRecorder) Insert(_ context.Context, e models.EventLogEntry) (models.EventLogEntry, error) {
	r.entries = append(r.entries, e)
	return e, nil
}

func textScript(parts ...string) []models.StreamChunk {
	var out []models.StreamChunk
	for _, p := range parts {
		out = append(out, models.StreamChunk{Type: models.ChunkTextDelta, Text: p})
	}
	return append(out, models.StreamChunk{Type: models.ChunkMessageStop, StopReason: "end_turn"})
}

func toolScript(id, name, args string) []models.StreamChunk {
	return []models.StreamChunk{
		{Type: models.ChunkToolUseStart, ToolCall: &models.ToolCallDelta{ID: id, Name: name}},
		{Type: models.ChunkToolUseEnd, ToolCall: &models.ToolCallDelta{ID: id, Name: name, Args: args}},
		{Type: models.ChunkMessageStop, StopReason: "tool_calls"},
	}
}

func newTestEngine(chain Chain, runner ToolRunner, opts ...EngineOption) *Engine {
	resolver := func(models.AgentConfig) (Chain, error) { return chain, nil }
	return NewEngine(NewAssembler(&stubSchemas{}), resolver, runner, hooks.NewManager(), opts...)
}

func TestRunTurnTextOnly(t *testing.T) {
	chain := &scriptedChain{scripts: [][]models.StreamChunk{textScript("Hello", ", world")}}
	engine := newTestEngine(chain, &scriptedTools{})
	session := testSession()

	var streamed strings.Builder
	res := engine.RunTurn(context.Background(), models.AgentConfig{ID: "main"}, session,
		models.Message{Role: models.RoleUser, Content: "hi"},
		func(delta string) { streamed.WriteString(delta) })

	if res.State != StateDone || res.Err != nil {
		t.Fatalf("state = %v err = %v", res.State, res.Err)
	}
	if res.Text != "Hello, world" || streamed.String() != "Hello, world" {
		t.Errorf("text = %q streamed = %q", res.Text, streamed.String())
	}
	// user + assistant
	if len(session.Messages) != 2 {
		t.Fatalf("session has %d messages", len(session.Messages))
	}
	last := session.Messages[1]
	if last.Role != models.RoleAssistant || last.Content != "Hello, world" {
		t.Errorf("final message = %+v", last)
	}
}

func TestRunTurnToolRoundTrip(t *testing.T) {
	chain := &scriptedChain{scripts: [][]models.StreamChunk{
		toolScript("call_1", "clock", `{"timezone":"UTC"}`),
		textScript("It is noon."),
	}}
	runner := &scriptedTools{results: map[string]tools.Result{
		"clock": {Success: true, Result: map[string]any{"time": "12:00"}},
	}}
	engine := newTestEngine(chain, runner)
	session := testSession()

	res := engine.RunTurn(context.Background(), models.AgentConfig{ID: "main"}, session,
		models.Message{Role: models.RoleUser, Content: "what time is it"}, nil)

	if res.State != StateDone {
		t.Fatalf("state = %v err = %v", res.State, res.Err)
	}
	if res.ToolRound != 1 {
		t.Errorf("ToolRound = %d, want 1", res.ToolRound)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "clock" {
		t.Errorf("tool calls = %v", runner.calls)
	}

	// user, assistant(tool_calls), tool, assistant(final)
	if len(session.Messages) != 4 {
		t.Fatalf("session has %d messages: %+v", len(session.Messages), session.Messages)
	}
	req := session.Messages[1]
	if len(req.ToolCalls) != 1 || req.ToolCalls[0].ID != "call_1" {
		t.Errorf("tool request message = %+v", req)
	}
	toolMsg := session.Messages[2]
	if toolMsg.Role != models.RoleTool || toolMsg.ToolCallID != "call_1" || toolMsg.Name != "clock" {
		t.Errorf("tool result message = %+v", toolMsg)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(toolMsg.Content), &payload); err != nil || payload["time"] != "12:00" {
		t.Errorf("tool result content = %q", toolMsg.Content)
	}

	// The second model call must include the tool exchange.
	if len(chain.sent) != 2 {
		t.Fatalf("chain called %d times", len(chain.sent))
	}
	second := chain.sent[1]
	if second[len(second)-1].Role != models.RoleTool {
		t.Errorf("second call does not end with the tool result: %+v", second[len(second)-1])
	}
}

func TestRunTurnToolFailureFeedsErrorBack(t *testing.T) {
	chain := &scriptedChain{scripts: [][]models.StreamChunk{
		toolScript("call_1", "shell_exec", `{"command":"boom"}`),
		textScript("That command failed."),
	}}
	runner := &scriptedTools{results: map[string]tools.Result{
		"shell_exec": {Success: false, Error: "exit status 1"},
	}}
	engine := newTestEngine(chain, runner)
	session := testSession()

	res := engine.RunTurn(context.Background(), models.AgentConfig{ID: "main"}, session,
		models.Message{Role: models.RoleUser, Content: "run boom"}, nil)
	if res.State != StateDone {
		t.Fatalf("state = %v err = %v", res.State, res.Err)
	}
	toolMsg := session.Messages[2]
	if toolMsg.Content != "exit status 1" {
		t.Errorf("tool error content = %q", toolMsg.Content)
	}
	if success, _ := toolMsg.Metadata["success"].(bool); success {
		t.Error("failed tool marked successful")
	}
}

func TestRunTurnToolLoopBound(t *testing.T) {
	// Every call asks for another tool; the engine must give up.
	chain := &scriptedChain{}
	for i := 0; i < 10; i++ {
		chain.scripts = append(chain.scripts, toolScript("call", "clock", `{}`))
	}
	rec := &memRecorder{}
	engine := newTestEngine(chain, &scriptedTools{}, WithToolLoopLimit(3), WithRecorder(rec))
	session := testSession()

	res := engine.RunTurn(context.Background(), models.AgentConfig{ID: "main"}, session,
		models.Message{Role: models.RoleUser, Content: "loop"}, nil)

	if res.State != StateError || !errors.Is(res.Err, ErrToolLoop) {
		t.Fatalf("state = %v err = %v", res.State, res.Err)
	}
	if len(chain.calls) != 3 {
		t.Errorf("chain called %d times, want 3", len(chain.calls))
	}
	last := session.Messages[len(session.Messages)-1]
	if last.Role != models.RoleAssistant || last.Content == "" {
		t.Errorf("no final assistant message after loop abort: %+v", last)
	}
	if len(rec.entries) != 1 || rec.entries[0].Type != models.EventError {
		t.Errorf("error not recorded: %+v", rec.entries)
	}
}

func TestRunTurnChainFailure(t *testing.T) {
	chain := &scriptedChain{err: errors.New("all providers down")}
	rec := &memRecorder{}
	engine := newTestEngine(chain, &scriptedTools{}, WithRecorder(rec))
	session := testSession()

	res := engine.RunTurn(context.Background(), models.AgentConfig{ID: "main"}, session,
		models.Message{Role: models.RoleUser, Content: "hi"}, nil)

	if res.State != StateError || res.Err == nil {
		t.Fatalf("state = %v err = %v", res.State, res.Err)
	}
	last := session.Messages[len(session.Messages)-1]
	if last.Role != models.RoleAssistant {
		t.Errorf("no failure message appended: %+v", last)
	}
	if strings.Contains(last.Content, "all providers down") {
		t.Errorf("internal error leaked to the user: %q", last.Content)
	}
}

func TestRunTurnCancellationKeepsPartialText(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chain := &chainCancelMid{cancel: cancel}
	engine := newTestEngine(chain, &scriptedTools{})
	session := testSession()

	var streamed strings.Builder
	res := engine.RunTurn(ctx, models.AgentConfig{ID: "main"}, session,
		models.Message{Role: models.RoleUser, Content: "hi"},
		func(delta string) { streamed.WriteString(delta) })

	if res.State != StateError || !errors.Is(res.Err, ErrCancelled) {
		t.Fatalf("state = %v err = %v", res.State, res.Err)
	}
	if !strings.Contains(streamed.String(), "partial") {
		t.Errorf("partial text retracted: %q", streamed.String())
	}
}

// chainCancelMid emits one text delta, cancels the turn context, then
// fails the stream the way a dropped connection does.
type chainCancelMid struct {
	cancel context.CancelFunc
}

func (c *chainCancelMid) Execute(context.Context, []models.Message, provider.ChatOptions) (*provider.Result, error) {
	ch := make(chan models.StreamChunk, 2)
	ch <- models.StreamChunk{Type: models.ChunkTextDelta, Text: "partial"}
	c.cancel()
	ch <- models.StreamChunk{Err: context.Canceled}
	close(ch)
	return &provider.Result{Chunks: ch}, nil
}

// failingProvider refuses every Chat call with the given HTTP status.
type failingProvider struct {
	name   string
	status int
}

func (p *failingProvider) Name() string                     { return p.name }
func (p *failingProvider) Priority() int                    { return 0 }
func (p *failingProvider) IsAvailable(context.Context) bool { return true }
func (p *failingProvider) Chat(context.Context, []models.Message, provider.ChatOptions) (<-chan models.StreamChunk, error) {
	return nil, &provider.Error{Provider: p.name, Status: p.status, Message: "upstream error"}
}

// streamingProvider answers every Chat call with a fixed chunk script.
type streamingProvider struct {
	name   string
	script []models.StreamChunk
}

func (p *streamingProvider) Name() string                     { return p.name }
func (p *streamingProvider) Priority() int                    { return 0 }
func (p *streamingProvider) IsAvailable(context.Context) bool { return true }
func (p *streamingProvider) Chat(context.Context, []models.Message, provider.ChatOptions) (<-chan models.StreamChunk, error) {
	ch := make(chan models.StreamChunk, len(p.script))
	for _, chunk := range p.script {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func TestRunTurnRecordsProviderFailover(t *testing.T) {
	chain := provider.NewChain("main", []provider.ChainEntry{
		{Provider: &failingProvider{name: "alpha", status: 500}},
		{Provider: &streamingProvider{name: "beta", script: textScript("ok")}},
	})
	rec := &memRecorder{}
	engine := newTestEngine(chain, &scriptedTools{}, WithRecorder(rec))
	session := testSession()

	res := engine.RunTurn(context.Background(), models.AgentConfig{ID: "main"}, session,
		models.Message{Role: models.RoleUser, Content: "hi"}, nil)
	if res.State != StateDone || res.Text != "ok" {
		t.Fatalf("state = %v text = %q err = %v", res.State, res.Text, res.Err)
	}

	var fallbacks []models.EventLogEntry
	for _, e := range rec.entries {
		if e.Type == models.EventFallback {
			fallbacks = append(fallbacks, e)
		}
	}
	if len(fallbacks) != 1 {
		t.Fatalf("fallback entries = %d, want 1: %+v", len(fallbacks), rec.entries)
	}
	args, ok := fallbacks[0].Args.(map[string]any)
	if !ok {
		t.Fatalf("fallback args = %#v", fallbacks[0].Args)
	}
	if args["failed_provider"] != "alpha" || args["succeeded_provider"] != "beta" {
		t.Errorf("fallback args = %v", args)
	}
	attempts, ok := fallbacks[0].Result.([]provider.Attempt)
	if !ok || len(attempts) != 2 {
		t.Fatalf("attempt history = %#v", fallbacks[0].Result)
	}
	if attempts[0].Success || !attempts[1].Success {
		t.Errorf("attempts = %+v", attempts)
	}
}

func TestRunTurnFirstTryLogsNoFallback(t *testing.T) {
	chain := provider.NewChain("main", []provider.ChainEntry{
		{Provider: &streamingProvider{name: "alpha", script: textScript("hi")}},
	})
	rec := &memRecorder{}
	engine := newTestEngine(chain, &scriptedTools{}, WithRecorder(rec))

	res := engine.RunTurn(context.Background(), models.AgentConfig{ID: "main"}, testSession(),
		models.Message{Role: models.RoleUser, Content: "hi"}, nil)
	if res.State != StateDone {
		t.Fatalf("state = %v err = %v", res.State, res.Err)
	}
	for _, e := range rec.entries {
		if e.Type == models.EventFallback {
			t.Errorf("clean turn logged a fallback: %+v", e)
		}
	}
}

func TestRunTurnChainExhaustionRecordsAttempts(t *testing.T) {
	chain := provider.NewChain("main", []provider.ChainEntry{
		{Provider: &failingProvider{name: "alpha", status: 500}},
	})
	rec := &memRecorder{}
	engine := newTestEngine(chain, &scriptedTools{}, WithRecorder(rec))

	res := engine.RunTurn(context.Background(), models.AgentConfig{ID: "main"}, testSession(),
		models.Message{Role: models.RoleUser, Content: "hi"}, nil)
	if res.State != StateError {
		t.Fatalf("state = %v err = %v", res.State, res.Err)
	}
	if len(rec.entries) != 1 || rec.entries[0].Type != models.EventError {
		t.Fatalf("entries = %+v", rec.entries)
	}
	attempts, ok := rec.entries[0].Args.([]provider.Attempt)
	if !ok || len(attempts) != 1 || attempts[0].Provider != "alpha" {
		t.Errorf("attempt history = %#v", rec.entries[0].Args)
	}
}

func TestRunTurnPreSendHookRewrites(t *testing.T) {
	chain := &scriptedChain{scripts: [][]models.StreamChunk{textScript("ok")}}
	mgr := hooks.NewManager()
	mgr.RegisterPreSend(func(_ context.Context, req *hooks.Request) (*hooks.Request, error) {
		out := req.Clone()
		out.MaxTokens = 256
		return out, nil
	})
	resolver := func(models.AgentConfig) (Chain, error) { return chain, nil }
	engine := NewEngine(NewAssembler(&stubSchemas{}), resolver, &scriptedTools{}, mgr)

	engine.RunTurn(context.Background(), models.AgentConfig{ID: "main", MaxTokens: 4096}, testSession(),
		models.Message{Role: models.RoleUser, Content: "hi"}, nil)

	if len(chain.calls) != 1 || chain.calls[0].MaxTokens != 256 {
		t.Errorf("hook rewrite not applied: %+v", chain.calls)
	}
}

func TestTurnObserver(t *testing.T) {
	chain := &scriptedChain{scripts: [][]models.StreamChunk{textScript("ok")}}
	var outcome State
	var dur time.Duration
	engine := newTestEngine(chain, &scriptedTools{}, WithTurnObserver(func(s State, d time.Duration) {
		outcome, dur = s, d
	}))

	engine.RunTurn(context.Background(), models.AgentConfig{ID: "main"}, testSession(),
		models.Message{Role: models.RoleUser, Content: "hi"}, nil)
	if outcome != StateDone || dur < 0 {
		t.Errorf("observer got %v %v", outcome, dur)
	}
}
