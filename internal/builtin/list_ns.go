package builtin

import (
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// registerList installs global:list:{of,len,append}. `of` builds a list
// from its unnamed-splat sink, the shape `list:of 5 2 9 1 7` lowers to.
func registerList(l *scope.Loader) error {
	ofCmd := command.NewDescriptor("global:list:of").
		Summary("builds a list from its arguments").
		Param("items").Unnamed().Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			items := ctx.Args.UnnamedList().Items()
			return value.NewList(commonElementType(items), items), nil
		}).Build()

	lenCmd := command.NewDescriptor("global:list:len").
		Summary("number of elements").
		Param("l").OfType(value.Any).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			list, ok := argVal(ctx.Args, "l").(value.List)
			if !ok {
				return nil, crusherr.New(crusherr.TypeError, "len requires a list")
			}
			return value.NewInt(int64(list.Len())), nil
		}).Build()

	appendCmd := command.NewDescriptor("global:list:append").
		Summary("appends item to l, mutating it in place").
		Param("l").OfType(value.Any).Done().
		Param("item").OfType(value.Any).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			list, ok := argVal(ctx.Args, "l").(value.List)
			if !ok {
				return nil, crusherr.New(crusherr.TypeError, "append requires a list")
			}
			list.Append(argVal(ctx.Args, "item"))
			return list, nil
		}).Build()

	for _, d := range []*command.Descriptor{ofCmd, lenCmd, appendCmd} {
		name := d.Path[len("global:list:"):]
		if err := l.Declare(name, value.Command{Callable: d}); err != nil {
			return err
		}
	}
	return nil
}

// commonElementType reports the shared element type of items if every item
// has the exact same type, else value.Any. list:of doesn't require callers
// to pre-declare an element type, so this is a best-effort narrowing rather
// than a validated constraint.
func commonElementType(items []value.Value) value.Type {
	if len(items) == 0 {
		return value.Any
	}
	t := items[0].Type()
	for _, it := range items[1:] {
		if !it.Type().Equal(t) {
			return value.Any
		}
	}
	return t
}
