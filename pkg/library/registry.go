package library

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a provider from raw configuration values.
type Factory func(config map[string]any) (Provider, error)

// Registry maps provider names to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named provider factory. Registering the same name twice
// is a programming error and panics.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("library: provider %q registered twice", name))
	}
	r.factories[name] = factory
}

// New constructs a registered provider by name.
func (r *Registry) New(name string, config map[string]any) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("library: unknown provider %q", name)
	}
	return factory(config)
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default is the process-wide registry used by provider packages that
// register themselves at init time.
var Default = NewRegistry()
