package builtin

import (
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// registerCond installs global:cond:{and,or}, the functions `and`/`or`
// desugar to. Unlike `if`/
// `while`'s condition thunks, both operands are ordinary eagerly-evaluated
// arguments here — plan.lowerFuncOp passes them as positional arguments,
// which internal/exec evaluates before the call the same way as any other
// function argument, so there is no short-
// circuit: `false and boom()` still calls boom().
func registerCond(l *scope.Loader) error {
	defs := map[string]func(a, b bool) bool{
		"and": func(a, b bool) bool { return a && b },
		"or":  func(a, b bool) bool { return a || b },
	}
	for name, fn := range defs {
		fn := fn
		desc := command.NewDescriptor("global:cond:" + name).
			Summary("boolean " + name).
			Param("a").OfType(value.TypeBool).Done().
			Param("b").OfType(value.TypeBool).Done().
			Run(func(ctx *command.Context) (value.Value, error) {
				a, ok := argVal(ctx.Args, "a").(value.Bool)
				if !ok {
					return nil, crusherr.New(crusherr.TypeError, "operand must be a bool")
				}
				b, ok := argVal(ctx.Args, "b").(value.Bool)
				if !ok {
					return nil, crusherr.New(crusherr.TypeError, "operand must be a bool")
				}
				return value.Bool(fn(bool(a), bool(b))), nil
			}).Build()
		if err := l.Declare(name, value.Command{Callable: desc}); err != nil {
			return err
		}
	}
	return nil
}
