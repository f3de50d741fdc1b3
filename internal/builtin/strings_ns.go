package builtin

import (
	"strings"

	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// registerStringAddMethod installs Str "add", the method `+` desugars to on
// a Str left operand: string concatenation. The right
// operand is rendered via value.Render first, so `"n=" + 3` works the same
// way the printer and string:join already treat any value as renderable.
func registerStringAddMethod() {
	addCmd := command.NewDescriptor("__str:add").
		Summary("string concatenation").
		Param("other").OfType(value.Any).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			lhs, ok := ctx.This.(value.Str)
			if !ok {
				return nil, crusherr.New(crusherr.TypeError, "expected a string receiver")
			}
			rhs, err := value.Render(argVal(ctx.Args, "other"))
			if err != nil {
				return nil, err
			}
			return value.Str(string(lhs) + rhs), nil
		}).Build()
	value.RegisterMethod(value.KindString, "add", addCmd)
}

func mustStr(v value.Value) (string, error) {
	s, ok := v.(value.Str)
	if !ok {
		return "", crusherr.New(crusherr.TypeError, "expected a string, got %s", v.Type())
	}
	return string(s), nil
}

// registerString installs global:string:{len,upper,lower,trim,contains,
// split,join,replace}, the seed string-manipulation library.
func registerString(l *scope.Loader) error {
	lenCmd := command.NewDescriptor("global:string:len").
		Summary("length in bytes").
		Param("s").OfType(value.TypeString).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			s, err := mustStr(argVal(ctx.Args, "s"))
			if err != nil {
				return nil, err
			}
			return value.NewInt(int64(len(s))), nil
		}).Build()

	upperCmd := command.NewDescriptor("global:string:upper").
		Summary("uppercases a string").
		Param("s").OfType(value.TypeString).Done().
		Run(stringTransform(strings.ToUpper)).Build()

	lowerCmd := command.NewDescriptor("global:string:lower").
		Summary("lowercases a string").
		Param("s").OfType(value.TypeString).Done().
		Run(stringTransform(strings.ToLower)).Build()

	trimCmd := command.NewDescriptor("global:string:trim").
		Summary("trims leading/trailing whitespace").
		Param("s").OfType(value.TypeString).Done().
		Run(stringTransform(strings.TrimSpace)).Build()

	containsCmd := command.NewDescriptor("global:string:contains").
		Summary("reports whether s contains substr").
		Param("s").OfType(value.TypeString).Done().
		Param("substr").OfType(value.TypeString).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			s, err := mustStr(argVal(ctx.Args, "s"))
			if err != nil {
				return nil, err
			}
			sub, err := mustStr(argVal(ctx.Args, "substr"))
			if err != nil {
				return nil, err
			}
			return value.Bool(strings.Contains(s, sub)), nil
		}).Build()

	splitCmd := command.NewDescriptor("global:string:split").
		Summary("splits s on sep into a list of strings").
		Param("s").OfType(value.TypeString).Done().
		Param("sep").OfType(value.TypeString).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			s, err := mustStr(argVal(ctx.Args, "s"))
			if err != nil {
				return nil, err
			}
			sep, err := mustStr(argVal(ctx.Args, "sep"))
			if err != nil {
				return nil, err
			}
			parts := strings.Split(s, sep)
			items := make([]value.Value, len(parts))
			for i, p := range parts {
				items[i] = value.Str(p)
			}
			return value.NewList(value.TypeString, items), nil
		}).Build()

	joinCmd := command.NewDescriptor("global:string:join").
		Summary("joins a list's rendered elements with sep").
		Param("items").OfType(value.Any).Done().
		Param("sep").OfType(value.TypeString).Optional(value.Str("")).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			list, ok := argVal(ctx.Args, "items").(value.List)
			if !ok {
				return nil, crusherr.New(crusherr.TypeError, "join requires a list")
			}
			sep, err := mustStr(argVal(ctx.Args, "sep"))
			if err != nil {
				return nil, err
			}
			parts := make([]string, 0, list.Len())
			for _, it := range list.Items() {
				rendered, err := value.Render(it)
				if err != nil {
					return nil, err
				}
				parts = append(parts, rendered)
			}
			return value.Str(strings.Join(parts, sep)), nil
		}).Build()

	replaceCmd := command.NewDescriptor("global:string:replace").
		Summary("replaces every occurrence of old with new").
		Param("s").OfType(value.TypeString).Done().
		Param("old").OfType(value.TypeString).Done().
		Param("new").OfType(value.TypeString).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			s, err := mustStr(argVal(ctx.Args, "s"))
			if err != nil {
				return nil, err
			}
			old, err := mustStr(argVal(ctx.Args, "old"))
			if err != nil {
				return nil, err
			}
			repl, err := mustStr(argVal(ctx.Args, "new"))
			if err != nil {
				return nil, err
			}
			return value.Str(strings.ReplaceAll(s, old, repl)), nil
		}).Build()

	for _, d := range []*command.Descriptor{lenCmd, upperCmd, lowerCmd, trimCmd, containsCmd, splitCmd, joinCmd, replaceCmd} {
		name := d.Path[len("global:string:"):]
		if err := l.Declare(name, value.Command{Callable: d}); err != nil {
			return err
		}
	}
	return nil
}

func stringTransform(fn func(string) string) command.Func {
	return func(ctx *command.Context) (value.Value, error) {
		s, err := mustStr(argVal(ctx.Args, "s"))
		if err != nil {
			return nil, err
		}
		return value.Str(fn(s)), nil
	}
}
