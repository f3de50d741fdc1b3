// Package exec is the pipeline runtime: it walks a
// lowered internal/plan.Plan against an internal/scope.Scope, resolving
// callees, binding arguments, wiring internal/stream channels between
// pipeline stages, and reporting the first stage failure through a single
// error sink.
//
// Each pipeline stage runs on its own goroutine over a bounded typed
// channel; stage supervision uses golang.org/x/sync/errgroup so a single
// Wait both joins every stage and surfaces the first stage error. Worker
// panics are recovered at the stage boundary and converted to
// crusherr.InternalError.
package exec

import (
	"strings"

	"github.com/crushshell/crush/internal/ast"
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/plan"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/stream"
	"github.com/crushshell/crush/internal/value"
)

func init() {
	// Closures re-enter the pipeline runtime; command cannot import exec
	// (exec imports command), so the dependency is inverted through this
	// hook, installed once at package load.
	command.SetRunner(runJobsAsRunner)
}

func runJobsAsRunner(callScope *scope.Scope, jobs []plan.Job, input stream.Readable, output *stream.Sender) (value.Value, error) {
	return RunJobs(callScope, jobs, input, output, globalOf(callScope))
}

// globalOf recovers the process-wide GlobalState stashed on the root scope
// (cmd/crush calls scope.SetGlobal once at startup). Closures re-enter the
// runtime through command.SetRunner's inverted hook, which carries no
// GlobalState parameter of its own, so it is threaded back in by walking the
// scope chain instead of being passed explicitly.
func globalOf(s *scope.Scope) *command.GlobalState {
	g, _ := s.Global().(*command.GlobalState)
	return g
}

// RunProgram runs every job of p against root in order, returning the last
// job's result.
func RunProgram(root *scope.Scope, p *plan.Plan, global *command.GlobalState) (value.Value, error) {
	return RunJobs(root, p.Jobs, nil, nil, global)
}

// RunJobs runs jobs in sequence against callScope. Only the last job is
// wired to input/output; the rest are run for effect with no external
// stream endpoints.
func RunJobs(callScope *scope.Scope, jobs []plan.Job, input stream.Readable, output *stream.Sender, global *command.GlobalState) (value.Value, error) {
	var result value.Value = value.Empty{}
	for i, j := range jobs {
		var in stream.Readable
		var out *stream.Sender
		if i == len(jobs)-1 {
			in, out = input, output
		}
		v, err := RunJob(callScope, j, in, out, global)
		if err != nil {
			return nil, err
		}
		result = v
		if callScope.IsStopped() {
			break
		}
	}
	return result, nil
}

// RunJob runs one pipeline. A single-invocation job runs inline (unless
// the resolved command declares CanBlock, which gets it a dedicated worker
// — see runOnWorker); a multi-stage job is wired through internal/stream
// channels and supervised by an errgroup (see pipeline.go).
func RunJob(callScope *scope.Scope, j plan.Job, input stream.Readable, output *stream.Sender, global *command.GlobalState) (value.Value, error) {
	if len(j.Invocations) == 0 {
		return value.Empty{}, nil
	}
	if len(j.Invocations) == 1 {
		return runInvocation(callScope, j.Invocations[0], input, output, global)
	}
	return runPipeline(callScope, j.Invocations, input, output, global)
}

// runInvocation resolves the callee, binds arguments, and either performs
// an assignment or runs a
// resolved command.Callable.
func runInvocation(callScope *scope.Scope, inv plan.Invocation, input stream.Readable, output *stream.Sender, global *command.GlobalState) (value.Value, error) {
	if asn, ok := inv.Callee.(ast.Assignment); ok {
		return runAssignment(callScope, asn)
	}

	calleeVal, err := evalExpr(callScope, inv.Callee)
	if err != nil {
		return nil, err
	}
	cmdVal, ok := calleeVal.(value.Command)
	if !ok {
		if len(inv.Args) == 0 {
			// Not every invocation is a command call: a closure-literal
			// body with no trailing arguments (e.g. the condition thunk
			// package plan wraps `if`/`while` conditions in) is just an
			// expression whose value is the job's result.
			return calleeVal, nil
		}
		return nil, crusherr.New(crusherr.TypeError, "value of type %s is not a command", calleeVal.Type())
	}

	switch callable := cmdVal.Callable.(type) {
	case *command.Descriptor:
		params := callable.Arguments
		bound, err := BindArguments(callScope, params, inv.Args)
		if err != nil {
			return nil, crusherr.Wrap(crusherr.ArgumentError, err, "binding arguments for %s", callable.Path)
		}
		this, _ := callable.This()
		ctx := &command.Context{Scope: callScope, Args: bound, Input: input, Output: output, Global: global, This: this}
		if callable.CanBlock {
			return runOnWorker(callable, ctx)
		}
		return callable.Run(ctx)
	case *command.Closure:
		params := callable.ParamList()
		for i, p := range callable.Params {
			if p.Default != nil && !p.Unnamed && !p.Named {
				dv, err := evalExpr(callable.Captured, p.Default)
				if err != nil {
					return nil, err
				}
				params[i].Default = dv
			}
		}
		bound, err := BindArguments(callScope, params, inv.Args)
		if err != nil {
			return nil, crusherr.Wrap(crusherr.ArgumentError, err, "binding arguments for closure")
		}
		return callable.Invoke(callScope, bound, input, output)
	default:
		return nil, crusherr.New(crusherr.InternalError, "unrecognized callable %T", callable)
	}
}

// runAssignment implements the assignment forms:
//   - `a = v` on an identifier overwrites an existing binding (type must
//     match);
//   - `a := v` declares a new one, legal only for an identifier target;
//   - `c[k] = v` is the subscript form, equivalent to `c:__setitem__ k v`;
//   - `c.name = v` / `c:name = v` is the member form, equivalent to
//     `c:__setattr__ "name" v`.
//
// The subscript/member forms are dispatched directly against the
// container's mutator rather than through the method-table/Callable path,
// since `__setitem__`/`__setattr__` are reserved names with no independent
// user-facing binding — the same effect is
// produced without the extra indirection of registering and invoking a
// Descriptor for it.
func runAssignment(callScope *scope.Scope, asn ast.Assignment) (value.Value, error) {
	v, err := evalExpr(callScope, asn.Value)
	if err != nil {
		return nil, err
	}
	switch target := asn.Target.(type) {
	case ast.Identifier:
		switch asn.Op {
		case ast.AssignDeclare:
			if err := callScope.Declare(target.Name, v); err != nil {
				return nil, err
			}
		default:
			if err := callScope.Set(target.Name, v); err != nil {
				return nil, err
			}
		}
		return v, nil
	case ast.GetItem:
		if asn.Op == ast.AssignDeclare {
			return nil, crusherr.New(crusherr.CompileError, ":= requires an identifier target")
		}
		container, err := evalExpr(callScope, target.Target)
		if err != nil {
			return nil, err
		}
		idx, err := evalExpr(callScope, target.Index)
		if err != nil {
			return nil, err
		}
		if err := assignItem(container, idx, v); err != nil {
			return nil, err
		}
		return v, nil
	case ast.GetAttr:
		if asn.Op == ast.AssignDeclare {
			return nil, crusherr.New(crusherr.CompileError, ":= requires an identifier target")
		}
		container, err := evalExpr(callScope, target.Target)
		if err != nil {
			return nil, err
		}
		if err := assignAttr(container, target.Name, v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, crusherr.New(crusherr.CompileError, "invalid assignment target")
	}
}

// assignItem implements `c[k] = v` for
// the subscriptable container kinds.
func assignItem(container, idx, v value.Value) error {
	switch c := container.(type) {
	case value.List:
		i, ok := idx.(value.Int)
		if !ok {
			return crusherr.New(crusherr.TypeError, "list index must be an integer")
		}
		n := int(i.V.Int64())
		if !c.Set(n, v) {
			return crusherr.New(crusherr.DataError, "list index %d out of range", n)
		}
		return nil
	case value.Dict:
		return c.Set(idx, v)
	default:
		return crusherr.New(crusherr.TypeError, "value of type %s does not support item assignment", container.Type())
	}
}

// assignAttr implements `c.name = v` / `c:name = v` for Struct, the one
// container with named mutable fields.
func assignAttr(container value.Value, name string, v value.Value) error {
	s, ok := container.(value.Struct)
	if !ok {
		return crusherr.New(crusherr.TypeError, "value of type %s does not support attribute assignment", container.Type())
	}
	s.Set(name, v)
	return nil
}

// resolveName splits a colon-qualified identifier and walks it from
// callScope: `global:string:len` resolves
// `global`, then `string`, then `len` via field lookup.
func resolveName(callScope *scope.Scope, name string) (value.Value, error) {
	return callScope.GetAbsolute(strings.Split(name, ":"))
}

// runOnWorker executes a CanBlock command on its own goroutine and joins it:
// a command that waits on I/O or a subprocess always gets a dedicated worker
// rather than running inline on the invoking thread, and a panic inside it
// poisons only this invocation.
func runOnWorker(d *command.Descriptor, ctx *command.Context) (value.Value, error) {
	type outcome struct {
		v   value.Value
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: crusherr.New(crusherr.InternalError, "worker panicked: %v", r)}
			}
		}()
		v, err := d.Run(ctx)
		done <- outcome{v: v, err: err}
	}()
	o := <-done
	return o.v, o.err
}
