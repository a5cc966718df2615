package skills

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// snapshot is the immutable skill set a reader observes. Writers build a
// new one and swap it in; readers never see a half-updated registry.
type snapshot struct {
	byName map[string]Skill
}

// Registry owns the live skill set. Reads are lock-free against the
// current snapshot; writes serialize through a mutex, rebuild, and swap.
type Registry struct {
	loader *Loader
	logger *slog.Logger

	writeMu sync.Mutex
	current atomic.Pointer[snapshot]

	onSwap []func([]Skill)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry's logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger.With("component", "skills") }
}

// NewRegistry creates an empty registry backed by the loader.
func NewRegistry(loader *Loader, opts ...RegistryOption) *Registry {
	r := &Registry{loader: loader, logger: slog.Default().With("component", "skills")}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(&snapshot{byName: map[string]Skill{}})
	return r
}

// OnSwap registers a callback invoked with the full skill list after
// every snapshot swap. Used to rebind executable tools.
func (r *Registry) OnSwap(fn func([]Skill)) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.onSwap = append(r.onSwap, fn)
}

// Refresh reloads from disk and swaps the snapshot.
func (r *Registry) Refresh() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	loaded, err := r.loader.Load()
	if err != nil {
		return fmt.Errorf("refresh skills: %w", err)
	}
	byName := make(map[string]Skill, len(loaded))
	for _, skill := range loaded {
		byName[skill.Name] = skill
	}
	r.swap(byName)
	r.logger.Info("skills refreshed", "count", len(byName))
	return nil
}

// Get returns a skill by name from the current snapshot.
func (r *Registry) Get(name string) (Skill, bool) {
	skill, ok := r.current.Load().byName[name]
	return skill, ok
}

// All returns every skill, sorted by name.
func (r *Registry) All() []Skill {
	byName := r.current.Load().byName
	out := make([]Skill, 0, len(byName))
	for _, skill := range byName {
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Enabled returns every enabled skill, sorted by name.
func (r *Registry) Enabled() []Skill {
	all := r.All()
	out := all[:0]
	for _, skill := range all {
		if skill.Enabled {
			out = append(out, skill)
		}
	}
	return out
}

// HasEnabled reports whether an enabled skill with the name exists.
func (r *Registry) HasEnabled(name string) bool {
	skill, ok := r.Get(name)
	return ok && skill.Enabled
}

// SetEnabled flips a skill's enabled flag in a new snapshot.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load().byName
	skill, ok := old[name]
	if !ok {
		return fmt.Errorf("unknown skill %q", name)
	}
	skill.Enabled = enabled

	byName := make(map[string]Skill, len(old))
	for k, v := range old {
		byName[k] = v
	}
	byName[name] = skill
	r.swap(byName)
	return nil
}

func (r *Registry) swap(byName map[string]Skill) {
	r.current.Store(&snapshot{byName: byName})
	if len(r.onSwap) == 0 {
		return
	}
	all := make([]Skill, 0, len(byName))
	for _, skill := range byName {
		all = append(all, skill)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	for _, fn := range r.onSwap {
		fn(all)
	}
}
