package scope

import (
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/value"
)

// Declare inserts name if absent and the scope is not readonly; rejects
// reserved names.
func (s *Scope) Declare(name string, v value.Value) error {
	if isReserved(name) {
		return errReserved
	}
	return s.declare(name, v, false)
}

// DeclarePrivileged is the privileged variant used by the type system's
// method-table installation: it may declare reserved names.
func (s *Scope) DeclarePrivileged(name string, v value.Value) error {
	return s.declare(name, v, true)
}

func (s *Scope) declare(name string, v value.Value, privileged bool) error {
	if !privileged && isReserved(name) {
		return errReserved
	}
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isReadonly {
		return crusherr.New(crusherr.CompileError, "scope is readonly")
	}
	if s.mapping.Has(name) {
		return crusherr.New(crusherr.CompileError, "variable %q already exists", name)
	}
	s.mapping.Set(name, v)
	return nil
}

// Redeclare inserts or overwrites name, ignoring any existing value's type.
func (s *Scope) Redeclare(name string, v value.Value) error {
	if isReserved(name) {
		return errReserved
	}
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isReadonly {
		return crusherr.New(crusherr.CompileError, "scope is readonly")
	}
	s.mapping.Set(name, v)
	return nil
}

// Unset removes name from this scope's local mapping, if present, clearing
// the way for a Set call with a different type.
func (s *Scope) Unset(name string) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isReadonly {
		return crusherr.New(crusherr.CompileError, "scope is readonly")
	}
	s.mapping.Delete(name)
	return nil
}

// Set searches upward through parentScope for name and overwrites it; the
// new value's type must equal the existing value's type (no implicit
// widening), or Unset must be called first.
func (s *Scope) Set(name string, v value.Value) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	s.mu.Lock()
	if existing, ok := s.mapping.Get(name); ok {
		readonly := s.isReadonly
		s.mu.Unlock()
		if readonly {
			return crusherr.New(crusherr.CompileError, "scope is readonly")
		}
		if !existing.Type().Equal(v.Type()) {
			return crusherr.New(crusherr.TypeError, "cannot set %q: expected %s, got %s", name, existing.Type(), v.Type())
		}
		s.mu.Lock()
		s.mapping.Set(name, v)
		s.mu.Unlock()
		return nil
	}
	parent := s.parentScope
	s.mu.Unlock()
	if parent == nil {
		return crusherr.New(crusherr.CompileError, "no such variable %q", name)
	}
	return parent.Set(name, v)
}

// Get implements the lookup order: local mapping, then each
// entry of uses in reverse insertion order (recursive get), then
// parentScope.Get. A thread holds at most one scope lock at a time — every
// recursive call below happens after the current lock is released.
func (s *Scope) Get(name string) (value.Value, bool) {
	if err := s.ensureLoaded(); err != nil {
		return nil, false
	}
	s.mu.Lock()
	if v, ok := s.mapping.Get(name); ok {
		s.mu.Unlock()
		return v, true
	}
	uses := append([]*Scope(nil), s.uses...)
	parent := s.parentScope
	s.mu.Unlock()

	for i := len(uses) - 1; i >= 0; i-- {
		if v, ok := uses[i].Get(name); ok {
			return v, true
		}
	}
	if parent != nil {
		return parent.Get(name)
	}
	return nil, false
}

// GetAbsolute walks a dotted/colon path from this scope (normally the root),
// resolving each segment via Get then value.FieldLookup, loading lazy
// namespaces as it crosses into them. Used to resolve
// qualified names such as global:types:string:len.
func (s *Scope) GetAbsolute(path []string) (value.Value, error) {
	if len(path) == 0 {
		return nil, crusherr.New(crusherr.CompileError, "empty path")
	}
	v, ok := s.Get(path[0])
	if !ok {
		return nil, crusherr.New(crusherr.CompileError, "no such name %q", path[0])
	}
	for _, seg := range path[1:] {
		fv, found, err := value.FieldLookup(v, seg)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, crusherr.New(crusherr.CompileError, "no such name %q", seg)
		}
		v = fv
	}
	return v, nil
}

// Use appends scope to uses: its declarations become visible as part of
// this scope's lookup, after the local mapping and before parentScope.
// Adding a use can only add lookup results, never remove or change one.
func (s *Scope) Use(other *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uses = append(s.uses, other)
}

// Unuse removes other from uses, if present.
func (s *Scope) Unuse(other *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.uses {
		if u == other {
			s.uses = append(s.uses[:i], s.uses[i+1:]...)
			return
		}
	}
}
