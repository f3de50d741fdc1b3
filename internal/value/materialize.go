package value

import (
	"io"

	"github.com/crushshell/crush/internal/crusherr"
)

// Materialize forces any non-materialized stream subgraph: TableStream ->
// Table, BinaryStream -> Binary, recursing into containers.
// It always produces a fully-owned, hashable-where-possible value. Fails if
// a consumed stream is materialized twice (the "materialization idempotence"
// property only holds for values with no stream
// leaves; a stream leaf is consumed on first materialization).
func Materialize(v Value) (Value, error) {
	switch x := v.(type) {
	case TableStream:
		if err := x.MarkConsumed(); err != nil {
			return nil, err
		}
		cols := x.handle.Columns()
		var rows []Row
		for {
			row, ok, err := x.handle.Recv()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			rows = append(rows, row)
		}
		return Table{Columns: cols, Rows: rows}, nil
	case BinaryStream:
		if err := x.MarkConsumed(); err != nil {
			return nil, err
		}
		data, err := io.ReadAll(x.Handle)
		if err != nil {
			return nil, crusherr.Wrap(crusherr.IOError, err, "reading binary stream")
		}
		_ = x.Handle.Close()
		return Binary{Bytes: data}, nil
	case List:
		items := x.Items()
		out := make([]Value, len(items))
		for i, it := range items {
			mv, err := Materialize(it)
			if err != nil {
				return nil, err
			}
			out[i] = mv
		}
		return NewList(x.data.element, out), nil
	case Dict:
		out := NewDict(x.data.key, x.data.val)
		for _, e := range x.Entries() {
			mv, err := Materialize(e.Val)
			if err != nil {
				return nil, err
			}
			if err := out.Set(e.Key, mv); err != nil {
				return nil, err
			}
		}
		return out, nil
	case Struct:
		out := NewStruct(x.data.parent)
		for _, name := range x.Fields() {
			fv, _ := x.Get(name)
			mv, err := Materialize(fv)
			if err != nil {
				return nil, err
			}
			out.Set(name, mv)
		}
		return out, nil
	case Table:
		out := make([]Row, len(x.Rows))
		for i, r := range x.Rows {
			nr := make(Row, len(r))
			for j, c := range r {
				mv, err := Materialize(c)
				if err != nil {
					return nil, err
				}
				nr[j] = mv
			}
			out[i] = nr
		}
		return Table{Columns: x.Columns, Rows: out}, nil
	default:
		return v, nil
	}
}
