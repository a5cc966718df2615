package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []models.EventLogEntry
}

func (m *memRecorder) Insert(_ context.Context, e models.EventLogEntry) (models.EventLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memRecorder) tagged(tag string) []models.EventLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EventLogEntry
	for _, e := range m.entries {
		for _, t := range e.Tags {
			if t == tag {
				out = append(out, e)
			}
		}
	}
	return out
}

type memDispatcher struct {
	mu   sync.Mutex
	msgs []models.ChannelMessage
}

func (m *memDispatcher) Dispatch(msg models.ChannelMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func mustInterval(t *testing.T, d time.Duration) Schedule {
	t.Helper()
	s, err := Interval(d)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAddValidates(t *testing.T) {
	s := NewScheduler()
	if err := s.Add("", "x", mustInterval(t, time.Minute), func(context.Context, *TaskContext) error { return nil }); err == nil {
		t.Error("empty id accepted")
	}
	if err := s.Add("t1", "x", mustInterval(t, time.Minute), nil); err == nil {
		t.Error("nil handler accepted")
	}
	if err := s.Add("t1", "x", mustInterval(t, time.Minute), func(context.Context, *TaskContext) error { return nil }); err != nil {
		t.Errorf("valid task rejected: %v", err)
	}
	if got := len(s.Tasks()); got != 1 {
		t.Errorf("tasks = %d, want 1", got)
	}
}

func TestRunDueFiresAndReschedules(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	var mu sync.Mutex
	s := NewScheduler(WithNow(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}))

	ran := make(chan struct{}, 8)
	if err := s.Add("brief", "morning briefing", mustInterval(t, time.Minute), func(context.Context, *TaskContext) error {
		ran <- struct{}{}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if fired := s.RunDue(context.Background()); fired != 0 {
		t.Errorf("fired before due: %d", fired)
	}

	mu.Lock()
	clock = now.Add(61 * time.Second)
	mu.Unlock()
	if fired := s.RunDue(context.Background()); fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
	s.Stop()

	tasks := s.Tasks()
	if tasks[0].NextRun.IsZero() || !tasks[0].NextRun.After(now.Add(61*time.Second)) {
		t.Errorf("NextRun not recomputed: %v", tasks[0].NextRun)
	}
	if !tasks[0].LastRun.Equal(now.Add(61 * time.Second)) {
		t.Errorf("LastRun = %v", tasks[0].LastRun)
	}
}

func TestOverlappingFiringIsSkipped(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now.Add(2 * time.Minute)
	var mu sync.Mutex
	rec := &memRecorder{}
	s := NewScheduler(WithRecorder(rec), WithNow(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}))

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	runs := 0
	if err := s.Add("slow", "slow task", mustInterval(t, time.Minute), func(context.Context, *TaskContext) error {
		mu.Lock()
		runs++
		mu.Unlock()
		started <- struct{}{}
		<-release
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	// Make it due immediately.
	s.mu.Lock()
	s.tasks["slow"].NextRun = now
	s.mu.Unlock()

	if fired := s.RunDue(context.Background()); fired != 1 {
		t.Fatalf("fired = %d", fired)
	}
	<-started

	// Still running: the next due check must skip, not queue.
	mu.Lock()
	clock = clock.Add(2 * time.Minute)
	mu.Unlock()
	if fired := s.RunDue(context.Background()); fired != 0 {
		t.Errorf("overlapping firing not skipped: %d", fired)
	}
	close(release)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	if got := rec.tagged("task:completed"); len(got) != 1 {
		t.Errorf("completed events = %d, want 1", len(got))
	}
}

func TestHandlerErrorEmitsTaskError(t *testing.T) {
	rec := &memRecorder{}
	s := NewScheduler(WithRecorder(rec), WithNow(fixedClock(time.Now())))
	if err := s.Add("bad", "bad task", mustInterval(t, time.Minute), func(context.Context, *TaskContext) error {
		return errors.New("handler blew up")
	}); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.tasks["bad"].NextRun = time.Now().Add(-time.Second)
	s.mu.Unlock()

	s.RunDue(context.Background())
	s.Stop()

	got := rec.tagged("task:error")
	if len(got) != 1 || got[0].Error != "handler blew up" {
		t.Fatalf("task:error events = %+v", got)
	}
	if got[0].Tool != "bad" {
		t.Errorf("Tool = %q", got[0].Tool)
	}
	tasks := s.Tasks()
	if tasks[0].LastError != "handler blew up" {
		t.Errorf("LastError = %q", tasks[0].LastError)
	}
	if tasks[0].Running {
		t.Error("task stuck in running state after error")
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	rec := &memRecorder{}
	s := NewScheduler(WithRecorder(rec), WithNow(fixedClock(time.Now())))
	if err := s.Add("panicky", "", mustInterval(t, time.Minute), func(context.Context, *TaskContext) error {
		panic("boom")
	}); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.tasks["panicky"].NextRun = time.Now().Add(-time.Second)
	s.mu.Unlock()

	s.RunDue(context.Background())
	s.Stop()

	got := rec.tagged("task:error")
	if len(got) != 1 {
		t.Fatalf("task:error events = %d", len(got))
	}
	if tasks := s.Tasks(); tasks[0].Running {
		t.Error("task stuck in running state after panic")
	}
}

func TestTaskExecuteDispatches(t *testing.T) {
	rec := &memRecorder{}
	disp := &memDispatcher{}
	s := NewScheduler(WithRecorder(rec), WithDispatcher(disp), WithNow(fixedClock(time.Now())))
	if err := s.Add("brief", "briefing", mustInterval(t, time.Minute), func(_ context.Context, tc *TaskContext) error {
		return tc.Execute(models.ChannelMessage{
			Channel: models.ChannelCron,
			Sender:  "scheduler",
			Content: "good morning",
		})
	}); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.tasks["brief"].NextRun = time.Now().Add(-time.Second)
	s.mu.Unlock()

	s.RunDue(context.Background())
	s.Stop()

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.msgs) != 1 || disp.msgs[0].Content != "good morning" {
		t.Fatalf("dispatched = %+v", disp.msgs)
	}
	if got := rec.tagged("task:execute"); len(got) != 1 {
		t.Errorf("task:execute events = %d", len(got))
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s := NewScheduler(WithTickInterval(5 * time.Millisecond))
	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop()
	s.Stop()
}
