package builtin

import (
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// registerComp installs global:comp:{lt,lte,gt,gte,eq,neq}, the functions
// `< <= > >= == !=` desugar to.
// eq/neq use value.Eq, which also implements Glob/Regex-vs-String pattern
// matching; the four ordering comparisons use value.Compare, which returns
// ErrUnordered across variants instead of silently coercing.
func registerComp(l *scope.Loader) error {
	type def struct {
		name string
		run  command.Func
	}
	defs := []def{
		{"lt", compareCmd(func(c int) bool { return c < 0 })},
		{"lte", compareCmd(func(c int) bool { return c <= 0 })},
		{"gt", compareCmd(func(c int) bool { return c > 0 })},
		{"gte", compareCmd(func(c int) bool { return c >= 0 })},
		{"eq", func(ctx *command.Context) (value.Value, error) {
			a, b := argVal(ctx.Args, "a"), argVal(ctx.Args, "b")
			eq, err := value.Eq(a, b)
			return value.Bool(eq), err
		}},
		{"neq", func(ctx *command.Context) (value.Value, error) {
			a, b := argVal(ctx.Args, "a"), argVal(ctx.Args, "b")
			eq, err := value.Eq(a, b)
			return value.Bool(!eq), err
		}},
	}
	for _, d := range defs {
		desc := command.NewDescriptor("global:comp:" + d.name).
			Summary("compares two operands").
			Param("a").OfType(value.Any).Done().
			Param("b").OfType(value.Any).Done().
			Run(d.run).Build()
		if err := l.Declare(d.name, value.Command{Callable: desc}); err != nil {
			return err
		}
	}
	return nil
}

func compareCmd(accept func(cmp int) bool) command.Func {
	return func(ctx *command.Context) (value.Value, error) {
		a, b := argVal(ctx.Args, "a"), argVal(ctx.Args, "b")
		c, err := value.Compare(a, b)
		if err != nil {
			return nil, err
		}
		return value.Bool(accept(c)), nil
	}
}
