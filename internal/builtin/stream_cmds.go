package builtin

import (
	"sort"

	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// registerStreamCommands declares the bare top-level stream-transform verbs
// a pipeline composes directly with no namespace qualifier: these are
// declared straight into the root scope rather than a lazy sub-namespace,
// the same way `global` itself is a name any script can reach unqualified.
func registerStreamCommands(root *scope.Scope) error {
	cmds := []*command.Descriptor{
		seqCmd(), sortCmd(), headCmd(), whereCmd(), selectCmd(), eachCmd(), errorCmd(), materializedCmd(),
	}
	for _, d := range cmds {
		if err := root.Declare(d.Path, value.Command{Callable: d}); err != nil {
			return err
		}
	}
	return nil
}

// seqCmd produces the integers 1..n as a stream.
func seqCmd() *command.Descriptor {
	return command.NewDescriptor("seq").
		Summary("produces a stream of integers from 1 to n").
		Param("n").OfType(value.TypeInteger).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			n, ok := argVal(ctx.Args, "n").(value.Int)
			if !ok {
				return nil, crusherr.New(crusherr.TypeError, "seq requires an integer")
			}
			limit := n.V.Int64()
			return produceStream(ctx, valueColumn(), func(send func(value.Row) error) error {
				for i := int64(1); i <= limit; i++ {
					if err := send(value.Row{value.NewInt(i)}); err != nil {
						return err
					}
				}
				return nil
			})
		}).Build()
}

// errorCmd raises a DataError carrying message, the way `error "boom"`
// fails a job mid-pipeline.
func errorCmd() *command.Descriptor {
	return command.NewDescriptor("error").
		Summary("fails the current job with message").
		Param("message").OfType(value.TypeString).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			msg, err := mustStr(argVal(ctx.Args, "message"))
			if err != nil {
				return nil, err
			}
			return nil, crusherr.New(crusherr.DataError, "%s", msg)
		}).Build()
}

// materializedCmd runs body and forces its result into an owned value via
// value.Materialize: a TableStream becomes a Table, a BinaryStream becomes
// Binary, and containers are materialized recursively.
func materializedCmd() *command.Descriptor {
	return command.NewDescriptor("materialized").
		Summary("runs body and forces its result into an owned value").
		Param("body").OfType(value.TypeCommand).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			body, err := closureArg(ctx.Args, "body")
			if err != nil {
				return nil, err
			}
			v, err := body.InvokeWithBindings(ctx.Scope, nil, nil, nil)
			if err != nil {
				return nil, err
			}
			return value.Materialize(v)
		}).Build()
}

// whereCmd filters ctx.Input by a condition closure, forwarding rows for
// which it returns true.
func whereCmd() *command.Descriptor {
	return command.NewDescriptor("where").
		Summary("filters a stream, keeping rows cond accepts").
		Param("cond").OfType(value.TypeCommand).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			cond, err := closureArg(ctx.Args, "cond")
			if err != nil {
				return nil, err
			}
			cols := ctx.Input.Types()
			return produceStream(ctx, valueColumn(), func(send func(value.Row) error) error {
				for {
					row, ok, err := ctx.Input.Read()
					if err != nil {
						return err
					}
					if !ok {
						return nil
					}
					result, err := invokeRow(cond, ctx.Scope, cols, row)
					if err != nil {
						return err
					}
					keep, ok := result.(value.Bool)
					if !ok {
						return crusherr.New(crusherr.TypeError, "where's condition must return a bool, got %s", result.Type())
					}
					if bool(keep) {
						if err := send(value.Row{rowToValue(cols, row)}); err != nil {
							return err
						}
					}
				}
			})
		}).Build()
}

// eachCmd applies body to every row of ctx.Input, forwarding whatever it
// returns in its place. An error from body propagates after already-sent
// rows have been observed downstream.
func eachCmd() *command.Descriptor {
	return command.NewDescriptor("each").
		Summary("maps a stream through body").
		Param("body").OfType(value.TypeCommand).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			body, err := closureArg(ctx.Args, "body")
			if err != nil {
				return nil, err
			}
			cols := ctx.Input.Types()
			return produceStream(ctx, valueColumn(), func(send func(value.Row) error) error {
				for {
					row, ok, err := ctx.Input.Read()
					if err != nil {
						return err
					}
					if !ok {
						return nil
					}
					result, err := invokeRow(body, ctx.Scope, cols, row)
					if err != nil {
						return err
					}
					if err := send(value.Row{result}); err != nil {
						return err
					}
				}
			})
		}).Build()
}

// selectCmd projects a struct stream down to the named fields, in the order
// requested.
func selectCmd() *command.Descriptor {
	return command.NewDescriptor("select").
		Summary("projects a struct stream onto the named fields").
		Param("fields").Unnamed().Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			fieldVals := ctx.Args.UnnamedList().Items()
			fields := make([]string, len(fieldVals))
			for i, f := range fieldVals {
				s, err := mustStr(f)
				if err != nil {
					return nil, err
				}
				fields[i] = s
			}
			cols := ctx.Input.Types()
			return produceStream(ctx, valueColumn(), func(send func(value.Row) error) error {
				for {
					row, ok, err := ctx.Input.Read()
					if err != nil {
						return err
					}
					if !ok {
						return nil
					}
					rv := rowToValue(cols, row)
					src, ok := rv.(value.Struct)
					if !ok {
						return crusherr.New(crusherr.TypeError, "select requires a struct row, got %s", rv.Type())
					}
					projected := value.NewStruct(nil)
					for _, f := range fields {
						fv, found := src.Get(f)
						if !found {
							return crusherr.New(crusherr.DataError, "no such field %q", f)
						}
						projected.Set(f, fv)
					}
					if err := send(value.Row{projected}); err != nil {
						return err
					}
				}
			})
		}).Build()
}

// headCmd forwards at most n rows of ctx.Input, then stops reading.
// internal/exec/pipeline.go's per-stage deferred receiver Drop signals the
// upstream sender that nobody is listening anymore once this returns.
func headCmd() *command.Descriptor {
	return command.NewDescriptor("head").
		Summary("keeps only the first n rows").
		Param("n").OfType(value.TypeInteger).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			n, ok := argVal(ctx.Args, "n").(value.Int)
			if !ok {
				return nil, crusherr.New(crusherr.TypeError, "head requires an integer")
			}
			limit := n.V.Int64()
			cols := ctx.Input.Types()
			return produceStream(ctx, valueColumn(), func(send func(value.Row) error) error {
				var taken int64
				for taken < limit {
					row, ok, err := ctx.Input.Read()
					if err != nil {
						return err
					}
					if !ok {
						return nil
					}
					if err := send(value.Row{rowToValue(cols, row)}); err != nil {
						return err
					}
					taken++
				}
				return nil
			})
		}).Build()
}

// sortCmd reads ctx.Input to completion, orders it ascending by
// value.Compare, then re-emits it.
func sortCmd() *command.Descriptor {
	return command.NewDescriptor("sort").
		Summary("reads a stream to completion and re-emits it in ascending order").
		Run(func(ctx *command.Context) (value.Value, error) {
			cols := ctx.Input.Types()
			return produceStream(ctx, valueColumn(), func(send func(value.Row) error) error {
				var items []value.Value
				for {
					row, ok, err := ctx.Input.Read()
					if err != nil {
						return err
					}
					if !ok {
						break
					}
					items = append(items, rowToValue(cols, row))
				}
				var sortErr error
				sort.SliceStable(items, func(i, j int) bool {
					if sortErr != nil {
						return false
					}
					c, err := value.Compare(items[i], items[j])
					if err != nil {
						sortErr = err
						return false
					}
					return c < 0
				})
				if sortErr != nil {
					return sortErr
				}
				for _, it := range items {
					if err := send(value.Row{it}); err != nil {
						return err
					}
				}
				return nil
			})
		}).Build()
}
