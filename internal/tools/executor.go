package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

const (
	// DefaultTimeout bounds a foreground tool call.
	DefaultTimeout = 30 * time.Minute

	// SandboxTimeout is the hard cap for sandboxed (forged-skill) tools,
	// applied regardless of the tool's declared timeout.
	SandboxTimeout = 15 * time.Second
)

// Recorder receives one event-log entry per tool call.
type Recorder interface {
	Insert(ctx context.Context, entry models.EventLogEntry) (models.EventLogEntry, error)
}

// Result is the outcome of one tool call. Failures are textual: handler
// errors, panics, and timeouts all land in Error with Success false.
type Result struct {
	Success    bool   `json:"success"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// CallMeta identifies the conversation a call belongs to, for the event
// log.
type CallMeta struct {
	AgentID   string
	SessionID string
	Channel   models.ChannelType
}

// Executor runs named tools with validation, timeouts, and capture. It
// never retries; retry policy belongs to callers.
type Executor struct {
	registry   *Registry
	recorder   Recorder
	logger     *slog.Logger
	timeout    time.Duration
	onExecuted func(tool string, success bool, d time.Duration)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRecorder sets the event-log sink.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger.With("component", "tools") }
}

// WithDefaultTimeout overrides the foreground per-call timeout.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithExecutedFunc registers an observer called after every execution.
func WithExecutedFunc(fn func(tool string, success bool, d time.Duration)) ExecutorOption {
	return func(e *Executor) { e.onExecuted = fn }
}

// NewExecutor creates an executor over the registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		logger:   slog.Default().With("component", "tools"),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the named tool. Arguments are validated against the tool's
// schema before the handler runs; sandboxed tools are capped at
// SandboxTimeout. Exactly one tool_execution entry is appended per call,
// success or not.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any, meta CallMeta) Result {
	start := time.Now()

	tool, release, ok := e.registry.acquire(name)
	if !ok {
		res := Result{Error: fmt.Sprintf("unknown tool: %s", name)}
		e.record(ctx, name, args, res, meta, start)
		return res
	}
	defer release()

	validated, err := validateArgs(tool, args)
	if err != nil {
		res := Result{Error: err.Error(), DurationMS: time.Since(start).Milliseconds()}
		e.record(ctx, name, args, res, meta, start)
		return res
	}

	timeout := e.timeout
	if tool.Timeout > 0 {
		timeout = tool.Timeout
	}
	if tool.Sandboxed && timeout > SandboxTimeout {
		timeout = SandboxTimeout
	}

	res := e.run(ctx, tool, validated, timeout)
	res.DurationMS = time.Since(start).Milliseconds()
	e.record(ctx, name, args, res, meta, start)

	if e.onExecuted != nil {
		e.onExecuted(name, res.Success, time.Since(start))
	}
	return res
}

type handlerResult struct {
	value any
	err   error
}

// run executes the handler under the call timeout with panic capture.
func (e *Executor) run(ctx context.Context, tool Tool, args map[string]any, timeout time.Duration) Result {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- handlerResult{err: fmt.Errorf("tool panic: %v", p)}
			}
		}()
		value, err := tool.Handler(callCtx, args)
		done <- handlerResult{value: value, err: err}
	}()

	select {
	case hr := <-done:
		if hr.err != nil {
			// Partial output a handler produced before failing (shell
			// capture, truncated fetches) stays attached to the result.
			return Result{Error: hr.err.Error(), Result: hr.value}
		}
		return Result{Success: true, Result: hr.value}
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Result{Error: fmt.Sprintf("tool %s timed out after %s", tool.Name, timeout)}
		}
		return Result{Error: fmt.Sprintf("tool %s canceled", tool.Name)}
	}
}

func (e *Executor) record(ctx context.Context, name string, args map[string]any, res Result, meta CallMeta, start time.Time) {
	if e.recorder == nil {
		return
	}
	entry := models.EventLogEntry{
		Type:       models.EventToolExecution,
		Timestamp:  start,
		Tool:       name,
		Args:       args,
		Result:     res.Result,
		Error:      res.Error,
		DurationMS: res.DurationMS,
		AgentID:    meta.AgentID,
		SessionID:  meta.SessionID,
		Channel:    meta.Channel,
		Success:    res.Success,
	}
	// Recording must outlive a canceled call.
	if _, err := e.recorder.Insert(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("event log append failed", "tool", name, "error", err)
	}
}
