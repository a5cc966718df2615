package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// DefaultHookTimeout bounds a single hook invocation.
const DefaultHookTimeout = 5 * time.Second

// registration is one registered hook.
type registration struct {
	id       string
	name     string
	point    Point
	priority Priority

	preSend     PreSendFunc
	postReceive PostReceiveFunc
	tool        ToolFunc
}

// Manager holds the hook chains and dispatches through them in priority
// order.
type Manager struct {
	mu      sync.RWMutex
	byPoint map[Point][]*registration
	byID    map[string]*registration
	timeout time.Duration
	logger  *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout overrides the per-hook timeout.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger.With("component", "hooks") }
}

// NewManager creates an empty hook manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		byPoint: make(map[Point][]*registration),
		byID:    make(map[string]*registration),
		timeout: DefaultHookTimeout,
		logger:  slog.Default().With("component", "hooks"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterOption configures one registration.
type RegisterOption func(*registration)

// WithPriority sets the hook's priority (lower runs first).
func WithPriority(p Priority) RegisterOption {
	return func(r *registration) { r.priority = p }
}

// WithName names the hook for logs.
func WithName(name string) RegisterOption {
	return func(r *registration) { r.name = name }
}

// RegisterPreSend adds a request-rewriting hook. Returns the
// registration id.
func (m *Manager) RegisterPreSend(fn PreSendFunc, opts ...RegisterOption) string {
	return m.register(&registration{point: PreSend, preSend: fn}, opts)
}

// RegisterPostReceive adds a chunk observer.
func (m *Manager) RegisterPostReceive(fn PostReceiveFunc, opts ...RegisterOption) string {
	return m.register(&registration{point: PostReceive, postReceive: fn}, opts)
}

// RegisterPreTool adds a hook running before every tool call.
func (m *Manager) RegisterPreTool(fn ToolFunc, opts ...RegisterOption) string {
	return m.register(&registration{point: PreTool, tool: fn}, opts)
}

// RegisterPostTool adds a hook running after every tool call.
func (m *Manager) RegisterPostTool(fn ToolFunc, opts ...RegisterOption) string {
	return m.register(&registration{point: PostTool, tool: fn}, opts)
}

func (m *Manager) register(reg *registration, opts []RegisterOption) string {
	reg.id = uuid.NewString()
	reg.priority = PriorityNormal
	for _, opt := range opts {
		opt(reg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPoint[reg.point] = append(m.byPoint[reg.point], reg)
	sort.SliceStable(m.byPoint[reg.point], func(i, j int) bool {
		return m.byPoint[reg.point][i].priority < m.byPoint[reg.point][j].priority
	})
	m.byID[reg.id] = reg

	m.logger.Debug("hook registered", "id", reg.id, "point", reg.point, "name", reg.name, "priority", reg.priority)
	return reg.id
}

// Unregister removes a hook by registration id.
func (m *Manager) Unregister(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.byID[id]
	if !ok {
		return false
	}
	delete(m.byID, id)
	chain := m.byPoint[reg.point]
	for i, r := range chain {
		if r.id == id {
			m.byPoint[reg.point] = append(chain[:i], chain[i+1:]...)
			break
		}
	}
	return true
}

func (m *Manager) chain(point Point) []*registration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chain := m.byPoint[point]
	out := make([]*registration, len(chain))
	copy(out, chain)
	return out
}

// RunPreSend passes the request through the pre-send chain. Each hook's
// non-nil return replaces the request for the next hook; a hook that
// fails, panics, or times out is skipped and the prior request stands.
func (m *Manager) RunPreSend(ctx context.Context, req *Request) *Request {
	for _, reg := range m.chain(PreSend) {
		next, err := m.callPreSend(ctx, reg, req)
		if err != nil {
			m.logger.Warn("pre-send hook skipped", "hook", reg.name, "id", reg.id, "error", err)
			continue
		}
		if next != nil {
			req = next
		}
	}
	return req
}

// RunPostReceive shows one chunk to every observer.
func (m *Manager) RunPostReceive(ctx context.Context, chunk models.StreamChunk) {
	for _, reg := range m.chain(PostReceive) {
		if err := m.callPostReceive(ctx, reg, chunk); err != nil {
			m.logger.Warn("post-receive hook skipped", "hook", reg.name, "id", reg.id, "error", err)
		}
	}
}

// RunPreTool runs the pre-tool chain.
func (m *Manager) RunPreTool(ctx context.Context, tc *ToolContext) {
	m.runToolChain(ctx, PreTool, tc)
}

// RunPostTool runs the post-tool chain.
func (m *Manager) RunPostTool(ctx context.Context, tc *ToolContext) {
	m.runToolChain(ctx, PostTool, tc)
}

func (m *Manager) runToolChain(ctx context.Context, point Point, tc *ToolContext) {
	for _, reg := range m.chain(point) {
		if err := m.callTool(ctx, reg, tc); err != nil {
			m.logger.Warn("tool hook skipped", "point", point, "hook", reg.name, "id", reg.id, "error", err)
		}
	}
}

func (m *Manager) callPreSend(ctx context.Context, reg *registration, req *Request) (next *Request, err error) {
	return runIsolated(ctx, m.timeout, func(ctx context.Context) (*Request, error) {
		return reg.preSend(ctx, req)
	})
}

func (m *Manager) callPostReceive(ctx context.Context, reg *registration, chunk models.StreamChunk) error {
	_, err := runIsolated(ctx, m.timeout, func(ctx context.Context) (struct{}, error) {
		reg.postReceive(ctx, chunk)
		return struct{}{}, nil
	})
	return err
}

func (m *Manager) callTool(ctx context.Context, reg *registration, tc *ToolContext) error {
	_, err := runIsolated(ctx, m.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, reg.tool(ctx, tc)
	})
	return err
}

type isolatedResult[T any] struct {
	value T
	err   error
}

// runIsolated runs one hook with panic recovery and the hook timeout. A
// hook that overruns is abandoned; its eventual result is discarded.
func runIsolated[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan isolatedResult[T], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				var zero T
				done <- isolatedResult[T]{value: zero, err: fmt.Errorf("hook panic: %v", p)}
			}
		}()
		value, err := fn(hookCtx)
		done <- isolatedResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-hookCtx.Done():
		var zero T
		return zero, fmt.Errorf("hook timed out after %s", timeout)
	}
}
