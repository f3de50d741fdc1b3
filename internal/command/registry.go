package command

import (
	"sort"
	"sync"

	"github.com/crushshell/crush/internal/crusherr"
)

// Registry holds registered descriptors, keyed by their fully-qualified
// path. It is a standalone table: internal/builtin does not use it, since its
// lazy namespace loaders declare their descriptors through scope.Loader.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Descriptor)}
}

// Register adds d, failing if its path is already registered.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[d.Path]; exists {
		return crusherr.New(crusherr.InternalError, "command %q already registered", d.Path)
	}
	r.entries[d.Path] = d
	return nil
}

// Lookup retrieves a descriptor by path.
func (r *Registry) Lookup(path string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[path]
	return d, ok
}

// Names returns every registered path, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
