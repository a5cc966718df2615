// Package router resolves inbound channel messages to agents and feeds
// them through a bounded in-memory queue to a single turn processor.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// DefaultQueueDepth caps the routed-message queue. On overflow the oldest
// message is dropped in favor of the new one.
const DefaultQueueDepth = 256

// BindingSource resolves a channel message to the agent that should
// handle it. It is consulted on every message, so binding changes take
// effect without a restart.
type BindingSource interface {
	Resolve(msg models.ChannelMessage) (models.AgentConfig, error)
}

// BindingFunc adapts a function to BindingSource.
type BindingFunc func(msg models.ChannelMessage) (models.AgentConfig, error)

func (f BindingFunc) Resolve(msg models.ChannelMessage) (models.AgentConfig, error) {
	return f(msg)
}

// Processor handles one routed message. The router calls it from a
// single goroutine, so processing order is the queue order.
type Processor interface {
	Process(ctx context.Context, agent models.AgentConfig, msg models.RoutedMessage)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, agent models.AgentConfig, msg models.RoutedMessage)

func (f ProcessorFunc) Process(ctx context.Context, agent models.AgentConfig, msg models.RoutedMessage) {
	f(ctx, agent, msg)
}

// Recorder appends router events to the operational log.
type Recorder interface {
	Insert(ctx context.Context, entry models.EventLogEntry) (models.EventLogEntry, error)
}

// Router is the channel-to-agent dispatcher. Dispatch is safe for
// concurrent use; draining is serialized so messages for the same
// (channel, sender) pair are processed strictly in arrival order.
type Router struct {
	bindings  BindingSource
	processor Processor
	recorder  Recorder
	logger    *slog.Logger
	depth     int

	onRouted  func(channel models.ChannelType)
	onDropped func(channel models.ChannelType)

	mu       sync.Mutex
	queue    []queued
	draining bool
	closed   bool
	idle     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

type queued struct {
	agent models.AgentConfig
	msg   models.RoutedMessage
}

// Option configures a Router.
type Option func(*Router)

// WithQueueDepth overrides the queue cap.
func WithQueueDepth(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.depth = n
		}
	}
}

// WithRecorder sets the event-log sink for drops.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) { r.recorder = rec }
}

// WithLogger sets the router's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger.With("component", "router") }
}

// WithCounters registers per-channel observers for routed and dropped
// messages.
func WithCounters(routed, dropped func(channel models.ChannelType)) Option {
	return func(r *Router) {
		r.onRouted = routed
		r.onDropped = dropped
	}
}

// New creates a router over the binding source and processor.
func New(bindings BindingSource, processor Processor, opts ...Option) *Router {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		bindings:  bindings,
		processor: processor,
		logger:    slog.Default().With("component", "router"),
		depth:     DefaultQueueDepth,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch resolves the message to an agent and enqueues it. When the
// queue is full the oldest entry is dropped, recorded, and the new
// message takes its place.
func (r *Router) Dispatch(msg models.ChannelMessage) error {
	agent, err := r.bindings.Resolve(msg)
	if err != nil {
		return fmt.Errorf("resolve agent for %s: %w", msg.QueueKey(), err)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	routed := models.RoutedMessage{
		ID:         uuid.NewString(),
		AgentID:    agent.ID,
		Message:    msg,
		EnqueuedAt: time.Now(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("router closed")
	}
	var dropped *queued
	if len(r.queue) >= r.depth {
		d := r.queue[0]
		dropped = &d
		r.queue = r.queue[1:]
	}
	r.queue = append(r.queue, queued{agent: agent, msg: routed})
	start := !r.draining
	if start {
		r.draining = true
		r.idle.Add(1)
	}
	r.mu.Unlock()

	if r.onRouted != nil {
		r.onRouted(msg.Channel)
	}
	if dropped != nil {
		r.recordDrop(dropped.msg)
	}
	if start {
		go r.drain()
	}
	return nil
}

// drain pops messages until the queue is empty. Only one drainer runs at
// a time; the draining flag flips back under the same lock that sees the
// queue empty, so no enqueue can be stranded.
func (r *Router) drain() {
	defer r.idle.Done()
	for {
		r.mu.Lock()
		if len(r.queue) == 0 || r.closed {
			r.draining = false
			r.mu.Unlock()
			return
		}
		item := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.process(item)
	}
}

func (r *Router) process(item queued) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("processor panicked", "agent", item.agent.ID, "panic", rec)
		}
	}()
	r.processor.Process(r.ctx, item.agent, item.msg)
}

func (r *Router) recordDrop(msg models.RoutedMessage) {
	waited := time.Since(msg.EnqueuedAt)
	r.logger.Warn("queue full, dropped oldest message",
		"channel", msg.Message.Channel, "sender", msg.Message.Sender, "waited", waited)
	if r.onDropped != nil {
		r.onDropped(msg.Message.Channel)
	}
	if r.recorder == nil {
		return
	}
	entry := models.EventLogEntry{
		Type:    models.EventSystem,
		Tool:    "router",
		Error:   "queue overflow: oldest message dropped",
		AgentID: msg.AgentID,
		Channel: msg.Message.Channel,
		Tags:    []string{"queue_overflow"},
	}
	if _, err := r.recorder.Insert(r.ctx, entry); err != nil {
		r.logger.Warn("event log append failed", "error", err)
	}
}

// QueueLen reports the current queue depth.
func (r *Router) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Close stops accepting messages, cancels in-flight processing, and
// waits for the drainer to exit.
func (r *Router) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.idle.Wait()
}
