// Package scope implements the Crush scope model: a shared, lockable
// environment used both for lexical name resolution and as the call stack,
// with closures, loops, break/continue/return, and lazy-loaded namespaces.
package scope

import (
	"strings"
	"sync"

	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/value"
)

// Type says what kind of frame a scope is.
type Type int

const (
	Loop Type = iota
	Closure
	Conditional
	Namespace
	Block
)

func (t Type) String() string {
	switch t {
	case Loop:
		return "loop"
	case Closure:
		return "closure"
	case Conditional:
		return "conditional"
	case Namespace:
		return "namespace"
	case Block:
		return "block"
	default:
		return "scope"
	}
}

// reservedPrefix is the double-underscore prefix reserved for the type
// system's method-table installation.
const reservedPrefix = "__"

// Scope is a shared, lockable environment record. Scope values are always
// used by pointer; Go's garbage collector handles the reference-counted
// sharing a scope graph with cycles needs.
type Scope struct {
	mu sync.Mutex

	mapping *value.OrderedMap[value.Value]

	parentScope  *Scope // lexical parent, used for name resolution
	callingScope *Scope // dynamic parent, used for jumps and stack traces
	uses         []*Scope

	scopeType   Type
	isStopped   bool
	isReadonly  bool
	returnValue value.Value
	hasReturn   bool

	name        string
	description string

	isLoaded bool
	poisoned bool
	loading  bool
	loader   func(*Loader) error

	global any // process-wide state stashed on the root scope; see SetGlobal/Global
}

// CreateRoot creates the root namespace scope: "the root of all namespaces;
// all namespaces directly or indirectly inherit from this one".
func CreateRoot() *Scope {
	return &Scope{
		mapping:     value.NewOrderedMap[value.Value](),
		scopeType:   Namespace,
		name:        "global",
		description: "the root of all namespaces",
		isLoaded:    true,
	}
}

// Create builds a detached scope of the given type, used for temporary or
// root-adjacent scopes that have no parent/calling scope of their own.
func Create(scopeType Type, isStopped, isReadonly bool) *Scope {
	return &Scope{
		mapping:    value.NewOrderedMap[value.Value](),
		scopeType:  scopeType,
		isStopped:  isStopped,
		isReadonly: isReadonly,
		isLoaded:   true,
	}
}

// CreateChild creates a child scope whose lexical parent is s and whose
// dynamic (calling) parent is caller — they differ for closures invoked
// from a scope other than the one that declared them.
//
// A Namespace scope never gets a parentScope here: namespaces do not
// inherit names.
func (s *Scope) CreateChild(caller *Scope, scopeType Type) *Scope {
	child := &Scope{
		mapping:      value.NewOrderedMap[value.Value](),
		callingScope: caller,
		scopeType:    scopeType,
		isLoaded:     true,
	}
	if scopeType != Namespace {
		child.parentScope = s
	}
	return child
}

// Detach nils the parent/calling links, breaking any reference cycle a
// closure captured by its own declaring scope would otherwise form. Package
// exec does not call it; it is there for callers that sever links explicitly.
func (s *Scope) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parentScope = nil
	s.callingScope = nil
	s.uses = nil
}

// Describe implements value.ScopeHandle.
func (s *Scope) Describe() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.describeLocked()
}

func (s *Scope) describeLocked() string {
	if s.name != "" {
		return s.scopeType.String() + ": " + s.name
	}
	return s.scopeType.String()
}

// Names returns the local mapping's keys in declaration order, for
// ScopeReader (stream.ScopeEnumerator). Triggers a lazy load first.
func (s *Scope) Names() []string {
	if err := s.ensureLoaded(); err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping.Keys()
}

// SetGlobal stashes the process-wide state (internal/command.GlobalState) on
// s, typically the root scope. Stored as `any` since package scope cannot
// import package command (command already imports scope).
func (s *Scope) SetGlobal(g any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = g
}

// Global retrieves the process-wide state stashed by SetGlobal, walking up
// the lexical and then dynamic parent chain until it finds one.
func (s *Scope) Global() any {
	cur := s
	for cur != nil {
		cur.mu.Lock()
		g := cur.global
		parent, caller := cur.parentScope, cur.callingScope
		cur.mu.Unlock()
		if g != nil {
			return g
		}
		if parent != nil {
			cur = parent
		} else {
			cur = caller
		}
	}
	return nil
}

func isReserved(name string) bool { return strings.HasPrefix(name, reservedPrefix) }

var errReserved = crusherr.New(crusherr.CompileError, "names beginning with '__' are reserved")
