package builtin

import (
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// registerVar installs global:var:{set,let,unset}, the explicit-invocation
// counterparts of the `a = v` / `a := v` assignment forms internal/exec's
// runAssignment already lowers straight through to: a script
// that wants to set or declare a variable by a name it computed at runtime,
// rather than one it can write literally on the left of `=`, calls these
// directly.
func registerVar(l *scope.Loader) error {
	setCmd := command.NewDescriptor("global:var:set").
		Summary("overwrites an existing variable, walking up the scope chain to find it").
		Param("name").OfType(value.TypeString).Done().
		Param("value").OfType(value.Any).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			name, v, err := nameValueArgs(ctx.Args)
			if err != nil {
				return nil, err
			}
			if err := ctx.Scope.Set(name, v); err != nil {
				return nil, err
			}
			return v, nil
		}).Build()

	letCmd := command.NewDescriptor("global:var:let").
		Summary("declares a new variable in the calling scope").
		Param("name").OfType(value.TypeString).Done().
		Param("value").OfType(value.Any).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			name, v, err := nameValueArgs(ctx.Args)
			if err != nil {
				return nil, err
			}
			if err := ctx.Scope.Declare(name, v); err != nil {
				return nil, err
			}
			return v, nil
		}).Build()

	unsetCmd := command.NewDescriptor("global:var:unset").
		Summary("removes a variable from the calling scope's local mapping").
		Param("name").OfType(value.TypeString).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			name, ok := ctx.Args.Get("name")
			if !ok {
				return nil, nil
			}
			s, ok := name.(value.Str)
			if !ok {
				return nil, nil
			}
			if err := ctx.Scope.Unset(string(s)); err != nil {
				return nil, err
			}
			return value.Empty{}, nil
		}).Build()

	for _, d := range []*command.Descriptor{setCmd, letCmd, unsetCmd} {
		name := d.Path[len("global:var:"):]
		if err := l.Declare(name, value.Command{Callable: d}); err != nil {
			return err
		}
	}
	return nil
}

func nameValueArgs(args *command.BoundArgs) (string, value.Value, error) {
	nameVal, _ := args.Get("name")
	v, _ := args.Get("value")
	name, ok := nameVal.(value.Str)
	if !ok {
		return "", nil, crusherr.New(crusherr.TypeError, "name must be a string, got %s", nameVal.Type())
	}
	return string(name), v, nil
}
