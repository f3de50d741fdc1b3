package value

import (
	"sort"
	"sync"

	"github.com/crushshell/crush/internal/crusherr"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// methodTables holds the per-Kind static method table (name -> Callable)
// that backs field lookup on non-Struct/Scope values and method dispatch
// (v:method) everywhere.
//
// Populated by RegisterMethod, normally called from package command/builtin
// init()s — kept here, rather than in package command, so a bare value.Value
// can resolve v:method without importing command (command imports value).
var methodTables = struct {
	mu     sync.RWMutex
	byKind map[Kind]map[string]Callable
}{byKind: make(map[Kind]map[string]Callable)}

// RegisterMethod installs fn as the handler for name on every value of kind.
// Panics on duplicate registration — a programming error, not a runtime one.
func RegisterMethod(kind Kind, name string, fn Callable) {
	methodTables.mu.Lock()
	defer methodTables.mu.Unlock()
	m, ok := methodTables.byKind[kind]
	if !ok {
		m = make(map[string]Callable)
		methodTables.byKind[kind] = m
	}
	if _, exists := m[name]; exists {
		panic("value: duplicate method registration " + kind.String() + ":" + name)
	}
	m[name] = fn
}

func lookupMethod(kind Kind, name string) (Callable, bool) {
	methodTables.mu.RLock()
	defer methodTables.mu.RUnlock()
	m, ok := methodTables.byKind[kind]
	if !ok {
		return nil, false
	}
	fn, ok := m[name]
	return fn, ok
}

func methodNames(kind Kind) []string {
	methodTables.mu.RLock()
	defer methodTables.mu.RUnlock()
	m := methodTables.byKind[kind]
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FieldLookup resolves a field reference on a value:
//  1. if v is a Struct, consult its fields then walk the prototype chain;
//  2. if v is a Scope, consult its declarations (full lookup semantics);
//  3. otherwise consult the method table of type_of(v).
func FieldLookup(v Value, name string) (Value, bool, error) {
	switch x := v.(type) {
	case Struct:
		if fv, ok := x.Get(name); ok {
			return fv, true, nil
		}
		return nil, false, suggestionError(name, x.Fields())
	case Scope:
		if sv, ok := x.Handle.Get(name); ok {
			return sv, true, nil
		}
		return nil, false, crusherr.New(crusherr.CompileError, "no such name %q in scope", name)
	default:
		if fn, ok := lookupMethod(v.Type().Kind, name); ok {
			return Command{Callable: fn}, true, nil
		}
		return nil, false, suggestionError(name, methodNames(v.Type().Kind))
	}
}

// suggestionError builds a CompileError for an unresolved name, appending a
// fuzzy "did you mean" suggestion when one of the candidates is close.
func suggestionError(name string, candidates []string) error {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := fuzzy.LevenshteinDistance(name, c)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	if best != "" && bestDist <= 2 && bestDist >= 0 {
		return crusherr.New(crusherr.CompileError, "unknown field %q, did you mean %q?", name, best)
	}
	return crusherr.New(crusherr.CompileError, "unknown field %q", name)
}

// Bind attaches a receiver: if v is a Command, returns a copy with
// bound_this = receiver; else returns v unchanged. Used to implement
// receiver:method.
func Bind(v Value, receiver Value) Value {
	if c, ok := v.(Command); ok {
		return Command{Callable: c.Callable.Bind(receiver)}
	}
	return v
}
