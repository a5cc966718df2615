// Package tools is the execution substrate for everything an agent can
// invoke: built-in operations and skill-provided tools, trusted or
// sandboxed, each run with schema validation, a timeout, and one event-log
// record per call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Handler executes a tool with validated arguments. The context carries
// the per-call timeout; handlers that ignore cancellation are bounded by
// the executor's wall-clock limit.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is one callable operation.
type Tool struct {
	Name        string
	Description string

	// Parameters is the JSON-Schema document declared arguments must
	// satisfy. Nil means the tool takes no (or free-form) arguments.
	Parameters json.RawMessage

	// Timeout overrides the executor's default per-call timeout.
	Timeout time.Duration

	// Sandboxed marks tools from forged skills: their calls run under the
	// sandbox cap regardless of Timeout.
	Sandboxed bool

	Handler Handler
}

// registration pairs a tool with its in-flight reference count. Removal
// waits for the count to drain so a running call never loses its tool.
type registration struct {
	tool Tool
	refs sync.WaitGroup
}

// Registry owns the set of registered tools. Reads are concurrent;
// registration and removal take the exclusive lock.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registration
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registration)}
}

// Register adds a tool. A duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = &registration{tool: t}
	return nil
}

// Replace registers a tool, overwriting any previous registration with the
// same name. Calls in flight against the old registration finish against
// it.
func (r *Registry) Replace(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = &registration{tool: t}
	return nil
}

// Remove unregisters a tool and blocks until in-flight calls against it
// complete.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	reg, ok := r.tools[name]
	if ok {
		delete(r.tools, name)
	}
	r.mu.Unlock()
	if ok {
		reg.refs.Wait()
	}
}

// acquire looks up a tool and takes a reference on it. The returned
// release must be called when the call completes.
func (r *Registry) acquire(name string) (Tool, func(), bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	if !ok {
		return Tool{}, nil, false
	}
	reg.refs.Add(1)
	return reg.tool, func() { reg.refs.Done() }, true
}

// Get returns a tool by name without taking a reference.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	if !ok {
		return Tool{}, false
	}
	return reg.tool, true
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the (name, description, parameters) triples for the
// tools the allow-list permits, sorted by name. An empty allow-list
// permits everything.
func (r *Registry) Schemas(allow []string) []Schema {
	allowed := func(string) bool { return true }
	if len(allow) > 0 {
		set := make(map[string]bool, len(allow))
		for _, name := range allow {
			set[name] = true
		}
		allowed = func(name string) bool { return set[name] }
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.tools))
	for name, reg := range r.tools {
		if !allowed(name) {
			continue
		}
		params := reg.tool.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object"}`)
		}
		out = append(out, Schema{
			Name:        name,
			Description: reg.tool.Description,
			Parameters:  params,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schema is the model-facing description of one tool.
type Schema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
