package stream

import (
	"github.com/crushshell/crush/internal/value"
)

// Readable is the common read contract: "Readable = {read() -> Row | EOF,
// types()}", implemented by every stream-shaped source a
// command can iterate.
type Readable interface {
	Read() (row value.Row, ok bool, err error)
	Types() []value.ColumnType
}

// Read implements Readable for *Receiver.
func (r *Receiver) Read() (value.Row, bool, error) { return r.Recv() }

// Types implements Readable for *Receiver.
func (r *Receiver) Types() []value.ColumnType { return r.Columns() }

// TableReader adapts a materialized value.Table into a Readable.
type TableReader struct {
	cols []value.ColumnType
	rows []value.Row
	pos  int
}

func NewTableReader(t value.Table) *TableReader {
	return &TableReader{cols: t.Columns, rows: t.Rows}
}

func (t *TableReader) Read() (value.Row, bool, error) {
	if t.pos >= len(t.rows) {
		return nil, false, nil
	}
	row := t.rows[t.pos]
	t.pos++
	return row, true, nil
}

func (t *TableReader) Types() []value.ColumnType { return t.cols }

// ListReader synthesizes a one-column stream over a value.List's elements.
type ListReader struct {
	col   value.ColumnType
	items []value.Value
	pos   int
}

func NewListReader(columnName string, l value.List) *ListReader {
	elemType := value.Any
	if t := l.Type(); t.Element != nil {
		elemType = *t.Element
	}
	return &ListReader{
		col:   value.ColumnType{Name: columnName, Element: elemType},
		items: l.Items(),
	}
}

func (r *ListReader) Read() (value.Row, bool, error) {
	if r.pos >= len(r.items) {
		return nil, false, nil
	}
	v := r.items[r.pos]
	r.pos++
	return value.Row{v}, true, nil
}

func (r *ListReader) Types() []value.ColumnType { return []value.ColumnType{r.col} }

// DictReader synthesizes a two-column (key, value) stream over a
// value.Dict's entries.
type DictReader struct {
	cols    []value.ColumnType
	entries []struct{ Key, Val value.Value }
	pos     int
}

func NewDictReader(d value.Dict) *DictReader {
	t := d.Type()
	keyType, valType := value.Any, value.Any
	if t.Key != nil {
		keyType = *t.Key
	}
	if t.Element != nil {
		valType = *t.Element
	}
	return &DictReader{
		cols: []value.ColumnType{
			{Name: "key", Element: keyType},
			{Name: "value", Element: valType},
		},
		entries: d.Entries(),
	}
}

func (r *DictReader) Read() (value.Row, bool, error) {
	if r.pos >= len(r.entries) {
		return nil, false, nil
	}
	e := r.entries[r.pos]
	r.pos++
	return value.Row{e.Key, e.Val}, true, nil
}

func (r *DictReader) Types() []value.ColumnType { return r.cols }

// ScopeEnumerator is the subset of a scope a ScopeReader needs to walk its
// local declarations; implemented by package scope's *Scope alongside the
// narrower value.ScopeHandle.
type ScopeEnumerator interface {
	Names() []string
	Get(name string) (value.Value, bool)
}

// ScopeReader synthesizes a (name, value) stream over a scope's local
// declarations.
type ScopeReader struct {
	cols  []value.ColumnType
	names []string
	scope ScopeEnumerator
	pos   int
}

func NewScopeReader(s ScopeEnumerator) *ScopeReader {
	return &ScopeReader{
		cols: []value.ColumnType{
			{Name: "name", Element: value.TypeString},
			{Name: "value", Element: value.Any},
		},
		names: s.Names(),
		scope: s,
	}
}

func (r *ScopeReader) Read() (value.Row, bool, error) {
	if r.pos >= len(r.names) {
		return nil, false, nil
	}
	name := r.names[r.pos]
	r.pos++
	v, _ := r.scope.Get(name)
	return value.Row{value.Str(name), v}, true, nil
}

func (r *ScopeReader) Types() []value.ColumnType { return r.cols }
