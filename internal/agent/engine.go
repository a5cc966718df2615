package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/hooks"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/provider"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/tools"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// State names a phase of the turn state machine.
type State string

const (
	StateIdle      State = "idle"
	StateAssemble  State = "assemble"
	StateCall      State = "call"
	StateStreaming State = "streaming"
	StateTool      State = "tool"
	StateDone      State = "done"
	StateError     State = "error"
)

// DefaultToolLoopLimit bounds consecutive tool rounds within one turn.
const DefaultToolLoopLimit = 16

// ErrToolLoop reports a turn that exceeded the tool loop bound.
var ErrToolLoop = errors.New("tool loop limit exceeded")

// ErrCancelled reports a turn aborted by its context.
var ErrCancelled = errors.New("turn cancelled")

// Chain starts a streaming model call with failover. Satisfied by
// *provider.Chain.
type Chain interface {
	Execute(ctx context.Context, messages []models.Message, opts provider.ChatOptions) (*provider.Result, error)
}

// ChainResolver returns the provider chain serving an agent.
type ChainResolver func(agent models.AgentConfig) (Chain, error)

// ToolRunner executes one tool call. Satisfied by *tools.Executor.
type ToolRunner interface {
	Execute(ctx context.Context, name string, args map[string]any, meta tools.CallMeta) tools.Result
}

// Recorder appends engine events to the operational log.
type Recorder interface {
	Insert(ctx context.Context, entry models.EventLogEntry) (models.EventLogEntry, error)
}

// Engine drives one user turn through assemble, model call, streaming,
// and tool rounds until a terminal stop.
type Engine struct {
	assembler *Assembler
	chains    ChainResolver
	toolRun   ToolRunner
	hooks     *hooks.Manager
	recorder  Recorder
	logger    *slog.Logger
	loopLimit int
	onTurn    func(outcome State, d time.Duration)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRecorder sets the event-log sink.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger.With("component", "agent") }
}

// WithToolLoopLimit overrides the per-turn tool round bound.
func WithToolLoopLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.loopLimit = n
		}
	}
}

// WithTurnObserver registers a callback fired once per finished turn.
func WithTurnObserver(fn func(outcome State, d time.Duration)) EngineOption {
	return func(e *Engine) { e.onTurn = fn }
}

// NewEngine wires the turn engine.
func NewEngine(assembler *Assembler, chains ChainResolver, toolRun ToolRunner, hookMgr *hooks.Manager, opts ...EngineOption) *Engine {
	e := &Engine{
		assembler: assembler,
		chains:    chains,
		toolRun:   toolRun,
		hooks:     hookMgr,
		logger:    slog.Default().With("component", "agent"),
		loopLimit: DefaultToolLoopLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	State     State
	Text      string
	ToolRound int
	Err       error
}

// EmitFunc receives assistant text as it streams. The engine never
// retracts text already emitted, even when the turn later fails.
type EmitFunc func(delta string)

// RunTurn appends the user message to the session and drives the
// model/tool loop to a terminal state. The session always stays
// consistent: every terminal path appends a final assistant message.
func (e *Engine) RunTurn(ctx context.Context, agent models.AgentConfig, session *models.Session, userMsg models.Message, emit EmitFunc) *TurnResult {
	start := time.Now()
	if emit == nil {
		emit = func(string) {}
	}
	res := e.runTurn(ctx, agent, session, userMsg, emit)
	if e.onTurn != nil {
		e.onTurn(res.State, time.Since(start))
	}
	return res
}

func (e *Engine) runTurn(ctx context.Context, agent models.AgentConfig, session *models.Session, userMsg models.Message, emit EmitFunc) *TurnResult {
	userMsg.SessionID = session.ID
	if userMsg.CreatedAt.IsZero() {
		userMsg.CreatedAt = time.Now()
	}
	session.Append(userMsg)

	chain, err := e.chains(agent)
	if err != nil {
		return e.fail(ctx, agent, session, emit, "", fmt.Errorf("no provider chain: %w", err))
	}

	for round := 0; ; round++ {
		if round >= e.loopLimit {
			return e.fail(ctx, agent, session, emit, turnFailureText(ErrToolLoop), ErrToolLoop)
		}

		// ASSEMBLE
		prompt := e.assembler.Assemble(ctx, agent, session)
		req := e.hooks.RunPreSend(ctx, &hooks.Request{
			AgentID:     agent.ID,
			SessionID:   session.ID,
			Channel:     session.Channel,
			Messages:    prompt.Messages,
			Tools:       toHookSchemas(prompt.Tools),
			MaxTokens:   agent.MaxTokens,
			Temperature: agent.Temperature,
		})

		// CALL
		result, err := chain.Execute(ctx, req.Messages, provider.ChatOptions{
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			Tools:       toProviderSchemas(req.Tools),
			SessionID:   session.ID,
			Channel:     session.Channel,
		})
		if err != nil {
			return e.fail(ctx, agent, session, emit, turnFailureText(err), err)
		}
		e.recordFallback(ctx, agent, session, result)

		// STREAMING
		text, calls, streamErr := e.consume(ctx, result.Chunks, emit)
		if streamErr != nil {
			if ctx.Err() != nil {
				streamErr = ErrCancelled
			}
			return e.fail(ctx, agent, session, emit, turnFailureText(streamErr), streamErr)
		}

		if len(calls) == 0 {
			// DONE
			session.Append(assistantMessage(session.ID, text, nil))
			return &TurnResult{State: StateDone, Text: text, ToolRound: round}
		}

		// TOOL: record the request, run each call, feed results back.
		session.Append(assistantMessage(session.ID, text, calls))
		for _, call := range calls {
			if ctx.Err() != nil {
				return e.fail(ctx, agent, session, emit, turnFailureText(ErrCancelled), ErrCancelled)
			}
			session.Append(e.runTool(ctx, agent, session, call))
		}
	}
}

// consume drains one model stream: text is forwarded as it arrives, tool
// calls are collected for the tool phase, and every chunk is shown to the
// post-receive observers.
func (e *Engine) consume(ctx context.Context, chunks <-chan models.StreamChunk, emit EmitFunc) (string, []models.ToolCall, error) {
	var text []byte
	var calls []models.ToolCall

	for chunk := range chunks {
		if chunk.Err != nil {
			return string(text), calls, chunk.Err
		}
		e.hooks.RunPostReceive(ctx, chunk)

		switch chunk.Type {
		case models.ChunkTextDelta:
			text = append(text, chunk.Text...)
			emit(chunk.Text)
		case models.ChunkToolUseEnd:
			calls = append(calls, models.ToolCall{
				ID:    chunk.ToolCall.ID,
				Name:  chunk.ToolCall.Name,
				Input: json.RawMessage(chunk.ToolCall.Args),
			})
		case models.ChunkMessageStop:
			// Terminal; the channel closes right after.
		}
	}
	if ctx.Err() != nil {
		return string(text), calls, ctx.Err()
	}
	return string(text), calls, nil
}

// recordFallback appends a fallback entry when the chain switched
// providers before one answered. First-try turns log nothing.
func (e *Engine) recordFallback(ctx context.Context, agent models.AgentConfig, session *models.Session, result *provider.Result) {
	if e.recorder == nil || len(result.Attempts) < 2 {
		return
	}
	var failed *provider.Attempt
	for i := range result.Attempts {
		if !result.Attempts[i].Success {
			failed = &result.Attempts[i]
		}
	}
	if failed == nil {
		return
	}
	entry := models.EventLogEntry{
		Type: models.EventFallback,
		Args: map[string]any{
			"failed_provider":    failed.Provider,
			"succeeded_provider": result.Provider,
			"reason":             failed.Reason,
		},
		Result:    result.Attempts,
		AgentID:   agent.ID,
		SessionID: session.ID,
		Channel:   session.Channel,
		Success:   true,
		Tags:      []string{failed.Provider, result.Provider},
	}
	if _, err := e.recorder.Insert(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("event log append failed", "error", err)
	}
}

// runTool executes one call wrapped in the pre/post tool hooks and
// returns the tool-role message carrying its result.
func (e *Engine) runTool(ctx context.Context, agent models.AgentConfig, session *models.Session, call models.ToolCall) models.Message {
	args := map[string]any{}
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &args); err != nil {
			e.logger.Debug("tool call input not an object", "tool", call.Name, "error", err)
		}
	}

	tc := &hooks.ToolContext{
		Tool:      call.Name,
		Args:      args,
		AgentID:   agent.ID,
		SessionID: session.ID,
		Channel:   session.Channel,
	}
	e.hooks.RunPreTool(ctx, tc)

	res := e.toolRun.Execute(ctx, call.Name, tc.Args, tools.CallMeta{
		AgentID:   agent.ID,
		SessionID: session.ID,
		Channel:   session.Channel,
	})

	tc.Result = res.Result
	tc.Error = res.Error
	e.hooks.RunPostTool(ctx, tc)

	content := res.Error
	if res.Success {
		if data, err := json.Marshal(res.Result); err == nil {
			content = string(data)
		} else {
			content = fmt.Sprintf("%v", res.Result)
		}
	}
	return models.Message{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		Role:       models.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
		Metadata:   map[string]any{"success": res.Success},
		CreatedAt:  time.Now(),
	}
}

// fail terminates the turn in StateError. The failure message, when
// non-empty, is appended (and emitted) as the final assistant message so
// the session stays consistent; partial text already streamed stands.
func (e *Engine) fail(ctx context.Context, agent models.AgentConfig, session *models.Session, emit EmitFunc, message string, cause error) *TurnResult {
	e.logger.Warn("turn failed", "agent", agent.ID, "session", session.ID, "error", cause)
	if e.recorder != nil {
		entry := models.EventLogEntry{
			Type:      models.EventError,
			Tool:      "turn",
			Error:     cause.Error(),
			AgentID:   agent.ID,
			SessionID: session.ID,
			Channel:   session.Channel,
		}
		var chainErr *provider.ChainError
		if errors.As(cause, &chainErr) {
			entry.Args = chainErr.Attempts
		}
		if _, err := e.recorder.Insert(context.WithoutCancel(ctx), entry); err != nil {
			e.logger.Warn("event log append failed", "error", err)
		}
	}
	if message != "" {
		emit(message)
		session.Append(assistantMessage(session.ID, message, nil))
	}
	return &TurnResult{State: StateError, Err: cause}
}

// turnFailureText is what the user sees when a turn dies. Short, no
// stack traces.
func turnFailureText(err error) string {
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "(cancelled)"
	case errors.Is(err, ErrToolLoop):
		return "I got stuck in a tool loop and stopped. Please try rephrasing your request."
	default:
		return "Sorry, I ran into a problem handling that. Please try again."
	}
}

func assistantMessage(sessionID, content string, calls []models.ToolCall) models.Message {
	return models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   content,
		ToolCalls: calls,
		CreatedAt: time.Now(),
	}
}

func toHookSchemas(in []tools.Schema) []hooks.ToolSchema {
	out := make([]hooks.ToolSchema, len(in))
	for i, s := range in {
		out[i] = hooks.ToolSchema{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
	}
	return out
}

func toProviderSchemas(in []hooks.ToolSchema) []provider.ToolSchema {
	out := make([]provider.ToolSchema, len(in))
	for i, s := range in {
		out[i] = provider.ToolSchema{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
	}
	return out
}
