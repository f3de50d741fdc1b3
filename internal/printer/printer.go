// Package printer is the terminal-agnostic sink: it consumes the tail value
// of a program (possibly a stream) and renders it with back-pressure-
// respecting formatting — a TableStream prints as a column-aligned table as
// rows arrive, a BinaryStream copies through verbatim, and anything else
// falls back to the canonical rendering of internal/value.
package printer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/value"
)

// flushEvery is the streamed-table row-count flush threshold.
const flushEvery = 49

// Print writes v to w.
func Print(w io.Writer, v value.Value) error {
	switch x := v.(type) {
	case value.TableStream:
		return printTableStream(w, x, 0)
	case value.BinaryStream:
		return printBinaryStream(w, x)
	default:
		s, err := value.Render(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, s)
		return err
	}
}

func printBinaryStream(w io.Writer, b value.BinaryStream) error {
	if err := b.MarkConsumed(); err != nil {
		return err
	}
	if _, err := io.Copy(w, b.Handle); err != nil {
		return crusherr.Wrap(crusherr.IOError, err, "copying binary stream to stdout")
	}
	return b.Handle.Close()
}

// printTableStream prints rows as they arrive, flushing
// every flushEvery rows or immediately when any cell is itself a
// stream/table (nested tables are indented and printed recursively).
// indent is the current nesting depth in tab stops.
func printTableStream(w io.Writer, t value.TableStream, indent int) error {
	if err := t.MarkConsumed(); err != nil {
		return err
	}
	handle := t.Handle()
	cols := handle.Columns()

	buf := bufio.NewWriter(w)
	tw := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	writeHeader(tw, cols, indent)

	count := 0
	for {
		row, ok, err := handle.Recv()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		nested, err := rowHasNested(row)
		if err != nil {
			return err
		}
		if err := writeRow(tw, row, indent); err != nil {
			return err
		}
		count++
		if nested || count%flushEvery == 0 {
			if err := tw.Flush(); err != nil {
				return err
			}
			if err := buf.Flush(); err != nil {
				return err
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return buf.Flush()
}

func rowHasNested(row value.Row) (bool, error) {
	for _, c := range row {
		switch c.(type) {
		case value.Table, value.TableStream:
			return true, nil
		}
	}
	return false, nil
}

func writeHeader(tw *tabwriter.Writer, cols []value.ColumnType, indent int) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	fmt.Fprintln(tw, pad(indent)+strings.Join(names, "\t"))
}

func writeRow(tw *tabwriter.Writer, row value.Row, indent int) error {
	cells := make([]string, len(row))
	for i, c := range row {
		switch v := c.(type) {
		case value.Table:
			var sb strings.Builder
			if err := printTableInline(&sb, v, indent+1); err != nil {
				return err
			}
			cells[i] = sb.String()
		case value.TableStream:
			var sb strings.Builder
			if err := printTableStream(&sb, v, indent+1); err != nil {
				return err
			}
			cells[i] = sb.String()
		default:
			s, err := value.Render(c)
			if err != nil {
				return err
			}
			cells[i] = s
		}
	}
	_, err := fmt.Fprintln(tw, pad(indent)+strings.Join(cells, "\t"))
	return err
}

// printTableInline renders an already-materialized Table the same way a
// TableStream prints, without consuming anything (a Table has no
// consume-once restriction).
func printTableInline(w io.Writer, t value.Table, indent int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeHeader(tw, t.Columns, indent)
	for _, row := range t.Rows {
		if err := writeRow(tw, row, indent); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func pad(indent int) string {
	if indent <= 0 {
		return ""
	}
	return strings.Repeat("\t", indent)
}
