package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Scheduler fires registered tasks when their schedules come due. Each
// task runs in its own goroutine; a task whose previous run is still in
// flight when its timer fires is skipped, never queued.
type Scheduler struct {
	logger       *slog.Logger
	dispatcher   Dispatcher
	recorder     Recorder
	now          func() time.Time
	tickInterval time.Duration

	mu      sync.Mutex
	tasks   map[string]*Task
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger.With("component", "cron") }
}

// WithDispatcher sets the sink for handler-produced messages.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Scheduler) { s.dispatcher = d }
}

// WithRecorder sets the event-log sink for task lifecycle events.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTickInterval overrides the due-check interval.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:       slog.Default().With("component", "cron"),
		now:          time.Now,
		tickInterval: time.Second,
		tasks:        make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a task and computes its first run. Re-adding an id
// replaces the previous task.
func (s *Scheduler) Add(id, name string, schedule Schedule, handler Handler) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("task id required")
	}
	if handler == nil {
		return fmt.Errorf("task %s: handler required", id)
	}
	next, err := schedule.Next(s.now())
	if err != nil {
		return fmt.Errorf("task %s: %w", id, err)
	}
	s.mu.Lock()
	s.tasks[id] = &Task{ID: id, Name: name, Schedule: schedule, Handler: handler, NextRun: next}
	s.mu.Unlock()
	return nil
}

// Remove drops a task. An in-flight run finishes.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

// Tasks returns a snapshot of registered tasks.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// Start begins the due-check loop. Calling Start on a started scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runDue(ctx)
			}
		}
	}()
}

// Stop halts future firings, then waits for the loop and any in-flight
// handlers to finish. Handlers are not cancelled mid-run. Stop on a
// stopped scheduler still waits for stragglers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.started = false
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// RunDue fires every due task once. Exposed for tests and manual runs.
func (s *Scheduler) RunDue(ctx context.Context) int {
	return s.runDue(ctx)
}

func (s *Scheduler) runDue(ctx context.Context) int {
	now := s.now()
	fired := 0

	s.mu.Lock()
	var due []*Task
	for _, t := range s.tasks {
		if t.NextRun.IsZero() || now.Before(t.NextRun) {
			continue
		}
		if t.Running {
			s.logger.Info("task still running, skipping firing", "task", t.ID)
			// Push the timer forward so the skip is not retried every tick.
			if next, err := t.Schedule.Next(now); err == nil {
				t.NextRun = next
			}
			continue
		}
		t.Running = true
		t.LastRun = now
		due = append(due, t)
	}
	s.mu.Unlock()

	for _, t := range due {
		fired++
		s.wg.Add(1)
		go func(t *Task) {
			defer s.wg.Done()
			s.fire(ctx, t, now)
		}(t)
	}
	return fired
}

// fire runs one task to completion and reschedules it.
func (s *Scheduler) fire(ctx context.Context, t *Task, fireAt time.Time) {
	tc := &TaskContext{
		TaskID: t.ID,
		Name:   t.Name,
		FireAt: fireAt,
		execute: func(msg models.ChannelMessage) error {
			s.record(ctx, t, "task:execute", models.EventLogEntry{
				Success: true,
				Args:    map[string]any{"channel": string(msg.Channel), "sender": msg.Sender, "content": msg.Content},
			})
			if s.dispatcher == nil {
				return fmt.Errorf("no dispatcher configured")
			}
			return s.dispatcher.Dispatch(msg)
		},
	}

	err := s.safeRun(ctx, t, tc)

	s.mu.Lock()
	t.Running = false
	if err != nil {
		t.LastError = err.Error()
	} else {
		t.LastError = ""
	}
	if next, nerr := t.Schedule.Next(s.now()); nerr == nil {
		t.NextRun = next
	} else {
		t.NextRun = time.Time{}
		t.LastError = nerr.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("task failed", "task", t.ID, "error", err)
		s.record(ctx, t, "task:error", models.EventLogEntry{Error: err.Error()})
		return
	}
	s.record(ctx, t, "task:completed", models.EventLogEntry{Success: true})
}

// safeRun invokes the handler with panic containment, so a bad task
// cannot take down the scheduler.
func (s *Scheduler) safeRun(ctx context.Context, t *Task, tc *TaskContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return t.Handler(ctx, tc)
}

func (s *Scheduler) record(ctx context.Context, t *Task, event string, entry models.EventLogEntry) {
	if s.recorder == nil {
		return
	}
	entry.Type = models.EventSystem
	entry.Tool = t.ID
	entry.Tags = append(entry.Tags, event)
	if _, err := s.recorder.Insert(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("event log append failed", "task", t.ID, "error", err)
	}
}
