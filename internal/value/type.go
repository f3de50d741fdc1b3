package value

import (
	"fmt"
	"strings"
)

// Kind is the tag of a Value variant, always recoverable at runtime. Go has no
// native sum type, so Value is an interface with one concrete struct per Kind
// and Kind is how callers switch on variant without a type assertion chain.
type Kind int

const (
	KindEmpty Kind = iota
	KindBool
	KindInteger
	KindFloat
	KindString
	KindDuration
	KindTime
	KindField
	KindGlob
	KindRegex
	KindFile
	KindBinary
	KindBinaryStream
	KindList
	KindDict
	KindStruct
	KindTable
	KindTableStream
	KindCommand
	KindScope
	KindType
	// KindAny only ever appears inside a Type descriptor (the universal
	// supertype); no Value ever reports KindAny from Type().
	KindAny
)

var kindNames = [...]string{
	KindEmpty:        "empty",
	KindBool:         "bool",
	KindInteger:      "integer",
	KindFloat:        "float",
	KindString:       "string",
	KindDuration:     "duration",
	KindTime:         "time",
	KindField:        "field",
	KindGlob:         "glob",
	KindRegex:        "regex",
	KindFile:         "file",
	KindBinary:       "binary",
	KindBinaryStream: "binary_stream",
	KindList:         "list",
	KindDict:         "dict",
	KindStruct:       "struct",
	KindTable:        "table",
	KindTableStream:  "table_stream",
	KindCommand:      "command",
	KindScope:        "scope",
	KindType:         "type",
	KindAny:          "any",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Hashable reports whether values of this Kind are hashable:
// scalars, Field, Glob, Regex, File, Duration, Binary, Struct. List, Dict,
// Table, TableStream, BinaryStream, Scope, Command, Float are not.
func (k Kind) Hashable() bool {
	switch k {
	case KindList, KindDict, KindTable, KindTableStream, KindBinaryStream,
		KindScope, KindCommand, KindFloat:
		return false
	default:
		return true
	}
}

// FormatHint is a rendering/parsing hint attached to a ColumnType, used by
// the printer and by commands that know a column holds e.g. a byte count or
// a percentage even though its element type is a plain Integer or Float.
type FormatHint int

const (
	FormatNone FormatHint = iota
	FormatBytes
	FormatPercentage
	FormatDuration
)

// ColumnType names and types one column of a Table/TableStream header.
type ColumnType struct {
	Name    string
	Element Type
	Format  FormatHint
}

// Type is the type descriptor that mirrors Value's variants. Composite types
// are parameterized: List(element), Dict(key, value), Table([col]),
// TableStream([col]).
type Type struct {
	Kind    Kind
	Element *Type        // List element type; Dict value type
	Key     *Type        // Dict key type
	Columns []ColumnType // Table / TableStream header
}

// Any is the universal supertype: assignable from every value, used when
// heterogeneous data must flow through a single channel.
var Any = Type{Kind: KindAny}

func simple(k Kind) Type { return Type{Kind: k} }

var (
	TypeEmpty        = simple(KindEmpty)
	TypeBool         = simple(KindBool)
	TypeInteger      = simple(KindInteger)
	TypeFloat        = simple(KindFloat)
	TypeString       = simple(KindString)
	TypeDuration     = simple(KindDuration)
	TypeTime         = simple(KindTime)
	TypeField        = simple(KindField)
	TypeGlob         = simple(KindGlob)
	TypeRegex        = simple(KindRegex)
	TypeFile         = simple(KindFile)
	TypeBinary       = simple(KindBinary)
	TypeBinaryStream = simple(KindBinaryStream)
	TypeCommand      = simple(KindCommand)
	TypeScope        = simple(KindScope)
	TypeType         = simple(KindType)
)

// ListType builds a List(element) type descriptor.
func ListType(element Type) Type {
	e := element
	return Type{Kind: KindList, Element: &e}
}

// DictType builds a Dict(key, value) type descriptor.
func DictType(key, val Type) Type {
	k, v := key, val
	return Type{Kind: KindDict, Key: &k, Element: &v}
}

// TableType builds a Table([col]) type descriptor.
func TableType(cols []ColumnType) Type {
	return Type{Kind: KindTable, Columns: cols}
}

// TableStreamType builds a TableStream([col]) type descriptor.
func TableStreamType(cols []ColumnType) Type {
	return Type{Kind: KindTableStream, Columns: cols}
}

func (t Type) String() string {
	switch t.Kind {
	case KindList:
		return fmt.Sprintf("list<%s>", t.Element.String())
	case KindDict:
		return fmt.Sprintf("dict<%s, %s>", t.Key.String(), t.Element.String())
	case KindTable, KindTableStream:
		parts := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			parts[i] = fmt.Sprintf("%s: %s", c.Name, c.Element.String())
		}
		name := "table"
		if t.Kind == KindTableStream {
			name = "table_stream"
		}
		return fmt.Sprintf("%s<%s>", name, strings.Join(parts, ", "))
	default:
		return t.Kind.String()
	}
}

// Equal reports whether two type descriptors denote the same type,
// structurally (not assignment-compatibility — see CompatibleWith).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		return t.Element.Equal(*o.Element)
	case KindDict:
		return t.Key.Equal(*o.Key) && t.Element.Equal(*o.Element)
	case KindTable, KindTableStream:
		if len(t.Columns) != len(o.Columns) {
			return false
		}
		for i := range t.Columns {
			if t.Columns[i].Name != o.Columns[i].Name || !t.Columns[i].Element.Equal(o.Columns[i].Element) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// CompatibleWith is the assignment compatibility rule: v
// (of type vt) is compatible with declared type t iff t = Any, t = vt, or t
// is a List/Dict/Table(Stream) whose elements are recursively compatible.
//
// This checks two *type descriptors* for structural compatibility (used both
// for a concrete value's type and, recursively, for nested column/element
// types) rather than inspecting a live value, so it also serves stream
// header validation without materializing rows.
func CompatibleWith(vt, t Type) bool {
	if t.Kind == KindAny {
		return true
	}
	if vt.Kind == KindAny {
		// An already-Any-typed container is only compatible with a
		// precisely-Any declared type; callers that need a concrete type
		// must cast first. Handled by the t.Kind==KindAny case above.
		return false
	}
	if vt.Kind != t.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		return CompatibleWith(*vt.Element, *t.Element)
	case KindDict:
		return CompatibleWith(*vt.Key, *t.Key) && CompatibleWith(*vt.Element, *t.Element)
	case KindTable, KindTableStream:
		if len(vt.Columns) != len(t.Columns) {
			return false
		}
		for i := range vt.Columns {
			if vt.Columns[i].Name != t.Columns[i].Name || !CompatibleWith(vt.Columns[i].Element, t.Columns[i].Element) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
