// Package command is the command contract: a uniform description of every
// callable thing in the shell — builtins, closures, and bound methods —
// plus a standalone Registry of descriptors keyed by path. The Descriptor
// is the single source of truth
// for binding, validation, and documentation.
package command

import (
	"fmt"
	"strings"

	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/stream"
	"github.com/crushshell/crush/internal/value"
)

// ArgumentDescription is a command's per-parameter metadata: name, type,
// unnamed/named sink markers, allowed values, and a human description used
// for help text and completion.
type ArgumentDescription struct {
	Name          string
	Type          value.Type
	Required      bool
	Default       value.Value
	Unnamed       bool // sink for positional splat arguments (@list)
	Named         bool // sink for dict-splat arguments (@@dict)
	AllowedValues []value.Value
	Description   string
}

// Context is what a command body receives when invoked:
// the calling scope, the already-bound arguments, optional input/output
// streams for pipeline stages, and the process-wide GlobalState.
type Context struct {
	Scope  *scope.Scope
	Args   *BoundArgs
	Input  stream.Readable // nil for the first stage of a pipeline
	Output *stream.Sender  // nil for a command that returns a plain value
	Global *GlobalState
	This   value.Value // the receiver bound by Bind, for `receiver:method(...)` calls
}

// Func is a builtin command body.
type Func func(ctx *Context) (value.Value, error)

// Descriptor is the command descriptor: name, argument
// descriptions, and a callable body. It implements value.Callable so it can
// sit directly in a method table or a scope mapping.
type Descriptor struct {
	Path        string
	Summary     string
	CanBlock    bool
	Arguments   []ArgumentDescription
	fn          Func
	boundThis   value.Value
	hasBoundVal bool
}

// Type implements value.Value: a Descriptor is itself invocable data.
func (d *Descriptor) Type() value.Type { return value.TypeCommand }

// Bind returns a copy of d with This recorded, for method-call syntax
// (`3:add(4)` binds This=3 before Run sees Args).
func (d *Descriptor) Bind(this value.Value) value.Callable {
	bound := *d
	bound.boundThis = this
	bound.hasBoundVal = true
	return &bound
}

// Signature renders a human-readable prototype for help text and error
// messages.
func (d *Descriptor) Signature() string {
	var b strings.Builder
	b.WriteString(d.Path)
	b.WriteString("(")
	for i, a := range d.Arguments {
		if i > 0 {
			b.WriteString(", ")
		}
		if a.Unnamed {
			b.WriteString("@" + a.Name)
		} else if a.Named {
			b.WriteString("@@" + a.Name)
		} else if !a.Required {
			b.WriteString(a.Name + "?")
		} else {
			b.WriteString(a.Name)
		}
	}
	b.WriteString(")")
	return b.String()
}

// This returns the value bound via Bind, if any.
func (d *Descriptor) This() (value.Value, bool) { return d.boundThis, d.hasBoundVal }

// Run invokes the command body directly (used by internal/exec once
// arguments are bound). internal/exec consults CanBlock before calling
// this: a blocking command is run on a dedicated worker goroutine, not
// inline — that decision lives there, not in this package.
func (d *Descriptor) Run(ctx *Context) (value.Value, error) {
	if d.fn == nil {
		return nil, crusherr.New(crusherr.InternalError, "command %q has no implementation", d.Path)
	}
	return d.fn(ctx)
}

func (d *Descriptor) String() string { return fmt.Sprintf("command %s", d.Path) }
