// Package cron runs named scheduled tasks on cron or interval schedules
// with at-most-one concurrent execution per task.
package cron

import (
	"context"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Handler is the body of a scheduled task. Outside work (a message for
// an agent, say) is requested through the TaskContext rather than done
// in place, so it flows through the normal routing path.
type Handler func(ctx context.Context, tc *TaskContext) error

// TaskContext is passed to a handler for one firing.
type TaskContext struct {
	TaskID string
	Name   string
	FireAt time.Time

	execute func(msg models.ChannelMessage) error
}

// Execute requests outside work: the message is recorded and handed to
// the scheduler's dispatcher (typically the channel router).
func (tc *TaskContext) Execute(msg models.ChannelMessage) error {
	if tc.execute == nil {
		return nil
	}
	return tc.execute(msg)
}

// Task is one named scheduled task.
type Task struct {
	ID       string
	Name     string
	Schedule Schedule
	Handler  Handler

	// Mutable scheduling state, guarded by the scheduler's lock.
	NextRun   time.Time
	LastRun   time.Time
	LastError string
	Running   bool
}

// Dispatcher receives messages produced by task handlers. Satisfied by
// *router.Router.
type Dispatcher interface {
	Dispatch(msg models.ChannelMessage) error
}

// Recorder appends task lifecycle events to the operational log.
type Recorder interface {
	Insert(ctx context.Context, entry models.EventLogEntry) (models.EventLogEntry, error)
}
