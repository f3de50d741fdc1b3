package builtin

import (
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// closureArg resolves a bound Command-typed argument to its underlying
// *command.Closure, the shape every control form's cond/then/else/body
// argument takes (package plan only ever lowers a `{ ... }` block into an
// ast.Closure, never a bare Descriptor, in control-form position).
func closureArg(args *command.BoundArgs, name string) (*command.Closure, error) {
	v, ok := args.Get(name)
	if !ok {
		return nil, crusherr.New(crusherr.ArgumentError, "missing argument %q", name)
	}
	return asClosure(v)
}

func asClosure(v value.Value) (*command.Closure, error) {
	cmd, ok := v.(value.Command)
	if !ok {
		return nil, crusherr.New(crusherr.TypeError, "expected a block, got %s", v.Type())
	}
	cl, ok := cmd.Callable.(*command.Closure)
	if !ok {
		return nil, crusherr.New(crusherr.TypeError, "expected a block")
	}
	return cl, nil
}

// evalCond invokes a zero-arg condition thunk and requires a Bool result.
func evalCond(caller *scope.Scope, cond *command.Closure) (bool, error) {
	v, err := cond.InvokeWithBindings(caller, nil, nil, nil)
	if err != nil {
		return false, err
	}
	b, ok := v.(value.Bool)
	if !ok {
		return false, crusherr.New(crusherr.TypeError, "condition must be a bool, got %s", v.Type())
	}
	return bool(b), nil
}

func registerControl(l *scope.Loader) error {
	ifCmd := command.NewDescriptor("global:control:if").
		Summary("runs then if cond is true, else if given").
		Param("cond").OfType(value.TypeCommand).Done().
		Param("then").OfType(value.TypeCommand).Done().
		Param("else").OfType(value.TypeCommand).Optional(value.Empty{}).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			cond, err := closureArg(ctx.Args, "cond")
			if err != nil {
				return nil, err
			}
			ok, err := evalCond(ctx.Scope, cond)
			if err != nil {
				return nil, err
			}
			if ok {
				then, err := closureArg(ctx.Args, "then")
				if err != nil {
					return nil, err
				}
				return then.InvokeWithBindings(ctx.Scope, nil, ctx.Input, ctx.Output)
			}
			elseVal, _ := ctx.Args.Get("else")
			if _, empty := elseVal.(value.Empty); empty {
				return value.Empty{}, nil
			}
			els, err := asClosure(elseVal)
			if err != nil {
				return nil, err
			}
			return els.InvokeWithBindings(ctx.Scope, nil, ctx.Input, ctx.Output)
		}).Build()

	whileCmd := command.NewDescriptor("global:control:while").
		Summary("runs body while cond is true").
		Param("cond").OfType(value.TypeCommand).Done().
		Param("body").OfType(value.TypeCommand).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			cond, err := closureArg(ctx.Args, "cond")
			if err != nil {
				return nil, err
			}
			body, err := closureArg(ctx.Args, "body")
			if err != nil {
				return nil, err
			}
			loopScope := ctx.Scope.CreateChild(ctx.Scope, scope.Loop)
			for {
				ok, err := evalCond(loopScope, cond)
				if err != nil {
					return nil, err
				}
				if !ok {
					break
				}
				if _, err := body.InvokeWithBindings(loopScope, nil, nil, nil); err != nil {
					return nil, err
				}
				if loopScope.IsStopped() {
					break
				}
			}
			return value.Empty{}, nil
		}).Build()

	loopCmd := command.NewDescriptor("global:control:loop").
		Summary("runs body forever, until break/return/exit").
		Param("body").OfType(value.TypeCommand).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			body, err := closureArg(ctx.Args, "body")
			if err != nil {
				return nil, err
			}
			loopScope := ctx.Scope.CreateChild(ctx.Scope, scope.Loop)
			for {
				if _, err := body.InvokeWithBindings(loopScope, nil, nil, nil); err != nil {
					return nil, err
				}
				if loopScope.IsStopped() {
					break
				}
			}
			return value.Empty{}, nil
		}).Build()

	forCmd := command.NewDescriptor("global:control:for").
		Summary("runs body once per row of iter, binding it to the loop variable's name").
		Param("iter").Named().Done().
		Param("body").OfType(value.TypeCommand).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			entries := ctx.Args.NamedDict().Entries()
			if len(entries) != 1 {
				return nil, crusherr.New(crusherr.ArgumentError, "for requires exactly one 'x = iter' binding")
			}
			varName, ok := entries[0].Key.(value.Str)
			if !ok {
				return nil, crusherr.New(crusherr.InternalError, "for's loop variable name must be a string")
			}
			body, err := closureArg(ctx.Args, "body")
			if err != nil {
				return nil, err
			}
			readable, err := asReadable(entries[0].Val)
			if err != nil {
				return nil, err
			}
			// A break/return/exit (or a failing body) leaves the iterated
			// stream partially read; dropping it unblocks its producer so
			// no goroutine is left sending rows nobody will receive.
			defer dropReadable(readable)
			cols := readable.Types()
			loopScope := ctx.Scope.CreateChild(ctx.Scope, scope.Loop)
			for {
				row, ok, err := readable.Read()
				if err != nil {
					return nil, err
				}
				if !ok {
					break
				}
				bindings := map[string]value.Value{string(varName): rowToValue(cols, row)}
				if _, err := body.InvokeWithBindings(loopScope, bindings, nil, nil); err != nil {
					return nil, err
				}
				if loopScope.IsStopped() {
					break
				}
			}
			return value.Empty{}, nil
		}).Build()

	breakCmd := command.NewDescriptor("global:control:break").
		Summary("exits the innermost enclosing loop").
		Run(func(ctx *command.Context) (value.Value, error) {
			return value.Empty{}, ctx.Scope.DoBreak()
		}).Build()

	continueCmd := command.NewDescriptor("global:control:continue").
		Summary("moves to the next iteration of the innermost enclosing loop").
		Run(func(ctx *command.Context) (value.Value, error) {
			return value.Empty{}, ctx.Scope.DoContinue()
		}).Build()

	returnCmd := command.NewDescriptor("global:control:return").
		Summary("returns from the innermost enclosing closure").
		Param("value").OfType(value.Any).Optional(value.Empty{}).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			v, _ := ctx.Args.Get("value")
			if v == nil {
				v = value.Empty{}
			}
			return value.Empty{}, ctx.Scope.DoReturn(v)
		}).Build()

	exitCmd := command.NewDescriptor("global:control:exit").
		Summary("requests shell termination with an exit status").
		Param("status").OfType(value.TypeInteger).Optional(value.NewInt(0)).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			status, _ := ctx.Args.Get("status")
			code := 0
			if i, ok := status.(value.Int); ok {
				code = int(i.V.Int64())
			}
			if ctx.Global != nil {
				ctx.Global.RequestExit(code)
			}
			return value.Empty{}, ctx.Scope.DoExit()
		}).Build()

	for _, d := range []*command.Descriptor{ifCmd, whileCmd, loopCmd, forCmd, breakCmd, continueCmd, returnCmd, exitCmd} {
		name := d.Path[len("global:control:"):]
		if err := l.Declare(name, value.Command{Callable: d}); err != nil {
			return err
		}
	}
	return nil
}
