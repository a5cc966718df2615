package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Registry holds the named providers available for chain construction.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Registering a duplicate name is an error.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("provider has no name")
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildChain resolves "provider/model" references into a chain, in the
// given order. An unknown provider name fails the whole build so a config
// typo cannot silently drop a fallback.
func (r *Registry) BuildChain(name string, refs []string, opts ...ChainOption) (*Chain, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("chain %q has no model references", name)
	}

	entries := make([]ChainEntry, 0, len(refs))
	for _, ref := range refs {
		providerName, model := models.SplitModelRef(ref)
		p, ok := r.Get(providerName)
		if !ok {
			return nil, fmt.Errorf("chain %q references unknown provider %q", name, providerName)
		}
		entries = append(entries, ChainEntry{Provider: p, Model: model})
	}
	return NewChain(name, entries, opts...), nil
}
