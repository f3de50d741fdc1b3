package command

import (
	"github.com/crushshell/crush/internal/ast"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/value"
)

// BoundArgs is the result of internal/exec's argument binding pass: every
// declared parameter already resolved to a concrete value.Value (defaults
// applied, splats collected), keyed by parameter name plus the two sink slots.
type BoundArgs struct {
	values  map[string]value.Value
	unnamed value.List
	named   value.Dict
}

// NewBoundArgs creates an empty BoundArgs, with empty (not nil) splat sinks
// so a command that declares `@rest`/`@@opts` but receives nothing still
// sees a valid, empty List/Dict rather than a zero value.
func NewBoundArgs() *BoundArgs {
	return &BoundArgs{
		values:  make(map[string]value.Value),
		unnamed: value.NewList(value.Any, nil),
		named:   value.NewDict(value.TypeString, value.Any),
	}
}

// Set records the resolved value for a plain named/positional parameter.
func (b *BoundArgs) Set(name string, v value.Value) { b.values[name] = v }

// Get retrieves a plain parameter's resolved value.
func (b *BoundArgs) Get(name string) (value.Value, bool) {
	v, ok := b.values[name]
	return v, ok
}

// SetUnnamed records the collected positional-splat sink list.
func (b *BoundArgs) SetUnnamed(l value.List) { b.unnamed = l }

// SetNamed records the collected dict-splat sink dict.
func (b *BoundArgs) SetNamed(d value.Dict) { b.named = d }

// UnnamedList returns the collected positional-splat sink list, for builtins
// like list:of and select that need to inspect leftover positional arguments
// directly rather than through an ast.Parameter.
func (b *BoundArgs) UnnamedList() value.List { return b.unnamed }

// NamedDict returns the collected dict-splat sink dict, for builtins like
// control:for that bind an arbitrary caller-chosen argument name (the loop
// variable) rather than a fixed parameter name.
func (b *BoundArgs) NamedDict() value.Dict { return b.named }

// Resolve looks a closure parameter's bound value up by its ast.Parameter
// description.
func (b *BoundArgs) Resolve(p ast.Parameter) (value.Value, error) {
	switch {
	case p.Unnamed:
		return b.unnamed, nil
	case p.Named:
		return b.named, nil
	default:
		if v, ok := b.values[p.Name]; ok {
			return v, nil
		}
		return nil, crusherr.New(crusherr.ArgumentError, "missing argument %q", p.Name)
	}
}
