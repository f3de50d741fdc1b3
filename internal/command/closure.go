package command

import (
	"fmt"

	"github.com/crushshell/crush/internal/ast"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/plan"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/stream"
	"github.com/crushshell/crush/internal/value"
)

// Runner executes a lowered job list against a scope, wiring input/output
// streams exactly as internal/exec would for a top-level pipeline. It is
// installed by internal/exec at process startup (see SetRunner) — command
// cannot import exec directly, since exec imports command to dispatch
// Descriptors, so the dependency is inverted through this hook (the same
// database/sql driver-registration shape core/decorator/registry.go uses).
type Runner func(callScope *scope.Scope, jobs []plan.Job, input stream.Readable, output *stream.Sender) (value.Value, error)

var runner Runner

// SetRunner installs the job runner. Called exactly once, by internal/exec's
// package initialization, before any closure is invoked.
func SetRunner(r Runner) { runner = r }

// Closure is a command built from a closure literal: a captured lexical
// scope plus a parameter list and body, re-entering internal/exec on every
// call.
type Closure struct {
	Name      string
	Params    []ast.Parameter
	Body      *plan.Plan
	Captured  *scope.Scope
	boundThis value.Value
	hasBound  bool
}

// NewClosure records the closure's name, parameters, body and captured
// scope. Its synthetic schema (one ArgumentDescription per declared
// parameter, `@rest`/`@@opts` as Unnamed/Named sinks) is derived from Params
// on demand by ParamList and Signature.
func NewClosure(name string, params []ast.Parameter, body *plan.Plan, captured *scope.Scope) *Closure {
	return &Closure{Name: name, Params: params, Body: body, Captured: captured}
}

// Type implements value.Value.
func (c *Closure) Type() value.Type { return value.TypeCommand }

// Bind records This for method-call syntax on a closure value (rare, but
// symmetric with Descriptor.Bind).
func (c *Closure) Bind(this value.Value) value.Callable {
	bound := *c
	bound.boundThis = this
	bound.hasBound = true
	return &bound
}

// Signature renders the closure's synthetic prototype.
func (c *Closure) Signature() string {
	sig := &Descriptor{Path: c.Name, Arguments: c.descriptorArgs()}
	return sig.Signature()
}

// ParamList returns the closure's synthetic argument descriptions, used by
// internal/exec's binder the same way it uses a Descriptor's Arguments.
func (c *Closure) ParamList() []ArgumentDescription { return c.descriptorArgs() }

func (c *Closure) descriptorArgs() []ArgumentDescription {
	args := make([]ArgumentDescription, 0, len(c.Params))
	for _, p := range c.Params {
		a := ArgumentDescription{Name: p.Name, Required: p.Default == nil && !p.Unnamed && !p.Named}
		if p.Unnamed {
			a.Unnamed = true
			a.Required = false
		}
		if p.Named {
			a.Named = true
			a.Required = false
		}
		args = append(args, a)
	}
	return args
}

// Invoke runs the closure body against bound arguments: a fresh Closure-type
// scope is created (lexical parent = Captured, calling parent = caller),
// each parameter declared into it, then the body job list runs through the
// installed Runner.
func (c *Closure) Invoke(caller *scope.Scope, bound *BoundArgs, input stream.Readable, output *stream.Sender) (value.Value, error) {
	return c.invoke(caller, bound, nil, input, output)
}

// InvokeWithBindings runs the closure body exactly as Invoke does, but also
// declares each entry of bindings into the call's own fresh scope before
// running it. This is how the implicit per-iteration/per-row name a
// zero-parameter body closure never declared gets into scope: `for x = iter
// { B }` binds the loop variable this way instead of reaching into B's
// lexical parent (which would leak the binding past the loop, and couldn't
// be rebound every iteration without an explicit Unset).
// `where`/`select`/`each` use it the same way to bind a row's fields or a
// bare loop value.
func (c *Closure) InvokeWithBindings(caller *scope.Scope, bindings map[string]value.Value, input stream.Readable, output *stream.Sender) (value.Value, error) {
	return c.invoke(caller, NewBoundArgs(), bindings, input, output)
}

func (c *Closure) invoke(caller *scope.Scope, bound *BoundArgs, bindings map[string]value.Value, input stream.Readable, output *stream.Sender) (value.Value, error) {
	if runner == nil {
		return nil, crusherr.New(crusherr.InternalError, "no job runner installed")
	}
	callScope := c.Captured.CreateChild(caller, scope.Closure)
	if c.hasBound {
		if err := callScope.Declare("this", c.boundThis); err != nil {
			return nil, err
		}
	}
	for _, p := range c.Params {
		v, err := bound.Resolve(p)
		if err != nil {
			return nil, err
		}
		if err := callScope.Declare(p.Name, v); err != nil {
			return nil, err
		}
	}
	for name, v := range bindings {
		if err := callScope.Declare(name, v); err != nil {
			return nil, err
		}
	}
	result, err := runner(callScope, c.Body.Jobs, input, output)
	if err != nil {
		return nil, err
	}
	if rv, ok := callScope.TakeReturnValue(); ok {
		return rv, nil
	}
	return result, nil
}

func (c *Closure) String() string { return fmt.Sprintf("closure %s", c.Signature()) }
