package builtin

import (
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/value"
)

// registerMatchMethods installs Regex/Glob "match"/"not_match", the methods
// `=~ !~` desugar to on the right operand. Both delegate to value.Eq, which already defines
// Glob/Regex-vs-String equality as a pattern match — reusing
// it here keeps `x =~ pattern` and `x == pattern` (where pattern is a Glob
// or Regex literal) consistent by construction instead of duplicating the
// matching logic.
func registerMatchMethods() {
	matchCmd := command.NewDescriptor("__match:match").
		Summary("pattern match").
		Param("target").OfType(value.Any).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			ok, err := value.Eq(ctx.This, argVal(ctx.Args, "target"))
			return value.Bool(ok), err
		}).Build()

	notMatchCmd := command.NewDescriptor("__match:not_match").
		Summary("negated pattern match").
		Param("target").OfType(value.Any).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			ok, err := value.Eq(ctx.This, argVal(ctx.Args, "target"))
			return value.Bool(!ok), err
		}).Build()

	for _, kind := range []value.Kind{value.KindGlob, value.KindRegex} {
		value.RegisterMethod(kind, "match", matchCmd)
		value.RegisterMethod(kind, "not_match", notMatchCmd)
	}
}
