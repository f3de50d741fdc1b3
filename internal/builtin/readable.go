package builtin

import (
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/stream"
	"github.com/crushshell/crush/internal/value"
)

// argVal fetches a bound argument that was declared Required, so a missing
// value here would mean internal/exec's binder let an invalid call through
// rather than something this builtin needs to defend against itself.
func argVal(args *command.BoundArgs, name string) value.Value {
	v, _ := args.Get(name)
	return v
}

// valueColumn is the one-column header every stream-producing/transforming
// builtin uses, matching internal/exec/pipeline.go's pipeColumn convention
// for connector streams whose declared output_type is Unknown: a row is
// always a single "value" cell, scalar or Struct, never a fixed
// multi-column shape. This lets a producer built here wire directly into a
// pipeline stage regardless of its neighbor's own column shape.
func valueColumn() []value.ColumnType {
	return []value.ColumnType{{Name: "value", Element: value.Any}}
}

// handleReader adapts a value.StreamHandle (what a TableStream/BinaryStream
// carries) to stream.Readable, the shape every builtin that walks a stream
// source consumes.
type handleReader struct{ h value.StreamHandle }

func (r handleReader) Read() (value.Row, bool, error) { return r.h.Recv() }
func (r handleReader) Types() []value.ColumnType      { return r.h.Columns() }

// Drop forwards to the underlying receive end when it has one (a live
// *stream.Receiver does; a replayed Table does not), so a consumer that
// stops early can unblock the stream's producer.
func (r handleReader) Drop() {
	if dr, ok := r.h.(interface{ Drop() }); ok {
		dr.Drop()
	}
}

// dropReadable signals r's producer, if any, that nobody will read further
// rows. In-memory readers (Table, List, Dict, Scope) have no producer and
// need no signal.
func dropReadable(r stream.Readable) {
	if dr, ok := r.(interface{ Drop() }); ok {
		dr.Drop()
	}
}

// asReadable builds a stream.Readable over any of the stream-shaped
// container kinds: TableStream (directly), Table, List, Dict,
// Scope. Used by `each`/`where`/`select`/`for`/`sort`/`head` to accept
// whichever of these a caller passes as its stream argument.
func asReadable(v value.Value) (stream.Readable, error) {
	switch t := v.(type) {
	case value.TableStream:
		if err := t.MarkConsumed(); err != nil {
			return nil, err
		}
		return handleReader{h: t.Handle()}, nil
	case value.Table:
		return stream.NewTableReader(t), nil
	case value.List:
		return stream.NewListReader("value", t), nil
	case value.Dict:
		return stream.NewDictReader(t), nil
	case value.Scope:
		enum, ok := t.Handle.(stream.ScopeEnumerator)
		if !ok {
			return nil, crusherr.New(crusherr.TypeError, "scope value cannot be enumerated")
		}
		return stream.NewScopeReader(enum), nil
	default:
		return nil, crusherr.New(crusherr.TypeError, "value of type %s is not a stream source", v.Type())
	}
}

// rowToValue turns one row into the value a consuming closure sees: a
// single-column row is unwrapped to its lone cell, a multi-column row
// becomes a value.Struct keyed by column name.
func rowToValue(cols []value.ColumnType, row value.Row) value.Value {
	if len(cols) == 1 {
		return row[0]
	}
	s := value.NewStruct(nil)
	for i, c := range cols {
		s.Set(c.Name, row[i])
	}
	return s
}

// produceStream unifies how a stream-source/stream-transform command
// behaves whether it is wired directly into a pipeline stage (ctx.Output !=
// nil, so internal/exec's runPipeline already runs this command's Run on its
// own goroutine — see internal/exec/pipeline.go) or invoked standalone
// (ctx.Output == nil: this spawns its own goroutine over a fresh
// stream.New() pipe and returns a value.TableStream immediately).
func produceStream(ctx *command.Context, cols []value.ColumnType, produce func(send func(value.Row) error) error) (value.Value, error) {
	if ctx.Output != nil {
		if err := produce(ctx.Output.Send); err != nil {
			return nil, err
		}
		return value.Empty{}, nil
	}

	sender, receiver := stream.New(cols, stream.DefaultCapacity)
	input := ctx.Input
	go func() {
		err := produce(sender.Send)
		if input != nil {
			// Unblocks an upstream stage still sending rows this command
			// will never read (head stops early, a body failed mid-stream).
			dropReadable(input)
		}
		// Fail (rather than a clean Close) hands a produce error to whoever
		// drains the returned stream, instead of losing it on this goroutine.
		sender.Fail(err)
	}()
	return value.NewTableStream(receiver), nil
}

// rowBindings expands a row into the set of names a body closure with no
// declared parameters of its own sees directly (e.g. `where { $status ==
// "Running" }`): a multi-column row's fields are bound by their column
// name, a single-column row's lone cell is bound by its column name.
func rowBindings(cols []value.ColumnType, row value.Row) map[string]value.Value {
	bindings := make(map[string]value.Value, len(cols))
	for i, c := range cols {
		bindings[c.Name] = row[i]
	}
	return bindings
}

// invokeRow runs a row-consuming closure (the body of `where`/`each`/
// `select`) against one row: if the closure declares a parameter, that
// parameter is bound positionally to the whole row value (scenario: `each {
// |r| ... }`); otherwise the row's own fields are bound by name, letting a
// zero-parameter body reference them directly (scenario: `where { $status
// == "Running" }`). Grounded on command.Closure.InvokeWithBindings's own doc
// comment, which names exactly this split.
func invokeRow(cl *command.Closure, caller *scope.Scope, cols []value.ColumnType, row value.Row) (value.Value, error) {
	if len(cl.Params) > 0 {
		bound := command.NewBoundArgs()
		bound.Set(cl.Params[0].Name, rowToValue(cols, row))
		return cl.Invoke(caller, bound, nil, nil)
	}
	return cl.InvokeWithBindings(caller, rowBindings(cols, row), nil, nil)
}
