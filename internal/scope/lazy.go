package scope

import (
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/value"
)

// Loader is the builder handed to a namespace's loader closure the first
// time the namespace is touched. Without it, every builtin module would
// have to be loaded on shell startup.
type Loader struct {
	mapping *value.OrderedMap[value.Value]
	self    *Scope
}

// Declare adds name to the namespace under construction. Fails on a
// duplicate within the same load.
func (l *Loader) Declare(name string, v value.Value) error {
	if l.mapping.Has(name) {
		return crusherr.New(crusherr.CompileError, "tried to declare variable %q, but it already exists", name)
	}
	l.mapping.Set(name, v)
	return nil
}

// CreateNamespace creates a nested lazy namespace and declares it into the
// namespace currently being loaded.
func (l *Loader) CreateNamespace(name, description string, loader func(*Loader) error) (*Scope, error) {
	ns := newLazyNamespace(l.self, name, description, loader)
	if err := l.Declare(name, value.Scope{Handle: ns}); err != nil {
		return nil, err
	}
	return ns, nil
}

// CreateNamespace creates a lazily-loaded child namespace of s and declares
// it into s.
func (s *Scope) CreateNamespace(name, description string, loader func(*Loader) error) (*Scope, error) {
	ns := newLazyNamespace(s, name, description, loader)
	if err := s.Declare(name, value.Scope{Handle: ns}); err != nil {
		return nil, err
	}
	return ns, nil
}

func newLazyNamespace(parent *Scope, name, description string, loader func(*Loader) error) *Scope {
	return &Scope{
		mapping:      value.NewOrderedMap[value.Value](),
		callingScope: parent,
		scopeType:    Namespace,
		name:         name,
		description:  description,
		isLoaded:     false,
		loader:       loader,
	}
}

// ensureLoaded is the lazy load protocol: the first
// caller that observes is_loaded=false claims loading by swapping the
// loader out and running it; other readers that raced simply observe the
// loaded state. Cycles among lazy namespaces are detected at load time; on
// detection the load fails and the namespace is poisoned.
func (s *Scope) ensureLoaded() error {
	s.mu.Lock()
	if s.isLoaded {
		s.mu.Unlock()
		return nil
	}
	if s.poisoned {
		s.mu.Unlock()
		return crusherr.New(crusherr.InternalError, "namespace %q failed to load", s.name)
	}
	if s.loading {
		s.mu.Unlock()
		return crusherr.New(crusherr.InternalError, "cycle detected while loading namespace %q", s.name)
	}
	s.loading = true
	loader := s.loader
	s.loader = nil
	parent := s.callingScope
	s.mu.Unlock()

	loaderBuilder := &Loader{mapping: value.NewOrderedMap[value.Value](), self: s}
	err := loader(loaderBuilder)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.poisoned = true
		return crusherr.Wrap(crusherr.InternalError, err, "loading namespace %q", s.name)
	}
	for _, k := range loaderBuilder.mapping.Keys() {
		v, _ := loaderBuilder.mapping.Get(k)
		s.mapping.Set(k, v)
	}
	s.isLoaded = true
	s.isReadonly = true
	_ = parent
	return nil
}
