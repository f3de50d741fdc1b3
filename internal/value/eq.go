package value

import (
	"fmt"
	"math"
	"path/filepath"
)

// Eq is value equality: structural for scalars/containers;
// File compares by canonicalized path; Glob vs. String and Regex vs. String
// are pattern matches (not equality) except when both operands are Glob (or
// both Regex); cross-variant pairs otherwise are simply not equal.
func Eq(a, b Value) (bool, error) {
	switch x := a.(type) {
	case Glob:
		if s, ok := b.(Str); ok {
			return globMatch(x.Pattern, string(s)), nil
		}
	case Regex:
		if s, ok := b.(Str); ok {
			return x.Compiled.MatchString(string(s)), nil
		}
	}
	switch y := b.(type) {
	case Glob:
		if s, ok := a.(Str); ok {
			return globMatch(y.Pattern, string(s)), nil
		}
	case Regex:
		if s, ok := a.(Str); ok {
			return y.Compiled.MatchString(string(s)), nil
		}
	}
	if a.Type().Kind != b.Type().Kind {
		return false, nil
	}
	switch x := a.(type) {
	case Empty:
		return true, nil
	case Bool:
		return x == b.(Bool), nil
	case Int:
		return x.V.Cmp(b.(Int).V) == 0, nil
	case Float:
		y := b.(Float)
		if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) {
			return false, nil
		}
		return x == y, nil
	case Str:
		return x == b.(Str), nil
	case Duration:
		return x == b.(Duration), nil
	case Time:
		return x.V.Equal(b.(Time).V), nil
	case Field:
		return equalSlice(x.Path, b.(Field).Path), nil
	case Glob:
		return x.Pattern == b.(Glob).Pattern, nil
	case Regex:
		return x.Source == b.(Regex).Source, nil
	case File:
		return canonicalPath(x.Path) == canonicalPath(b.(File).Path), nil
	case Binary:
		return equalSlice(x.Bytes, b.(Binary).Bytes), nil
	case Struct:
		return structEq(x, b.(Struct))
	case List:
		return listEq(x, b.(List))
	case Dict:
		return dictEq(x, b.(Dict))
	case Table:
		return tableEq(x, b.(Table))
	default:
		// Command, Scope, TableStream, BinaryStream, Type: identity only.
		return fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b), nil
	}
}

func equalSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func canonicalPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(p)
}

func structEq(a, b Struct) (bool, error) {
	af, bf := a.Fields(), b.Fields()
	if len(af) != len(bf) {
		return false, nil
	}
	for _, name := range af {
		av, _ := a.Get(name)
		bv, ok := b.Get(name)
		if !ok {
			return false, nil
		}
		eq, err := Eq(av, bv)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func listEq(a, b List) (bool, error) {
	ai, bi := a.Items(), b.Items()
	if len(ai) != len(bi) {
		return false, nil
	}
	for i := range ai {
		eq, err := Eq(ai[i], bi[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func dictEq(a, b Dict) (bool, error) {
	ae, be := a.Entries(), b.Entries()
	if len(ae) != len(be) {
		return false, nil
	}
	for _, e := range ae {
		bv, ok, err := b.Get(e.Key)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		eq, err := Eq(e.Val, bv)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func tableEq(a, b Table) (bool, error) {
	if len(a.Rows) != len(b.Rows) || len(a.Columns) != len(b.Columns) {
		return false, nil
	}
	for i := range a.Columns {
		if a.Columns[i].Name != b.Columns[i].Name {
			return false, nil
		}
	}
	for i := range a.Rows {
		if len(a.Rows[i]) != len(b.Rows[i]) {
			return false, nil
		}
		for j := range a.Rows[i] {
			eq, err := Eq(a.Rows[i][j], b.Rows[i][j])
			if err != nil || !eq {
				return false, err
			}
		}
	}
	return true, nil
}

// globMatch matches a shell-style glob pattern against a literal string, the
// "Glob vs. String is pattern match" rule.
func globMatch(pattern, s string) bool {
	ok, err := filepath.Match(pattern, s)
	return err == nil && ok
}

// Compare is value ordering: total within a given variant for
// comparable variants; cross-variant comparison is undefined (ErrUnordered),
// as is any comparison involving NaN.
func Compare(a, b Value) (int, error) {
	if a.Type().Kind != b.Type().Kind {
		return 0, ErrUnordered
	}
	switch x := a.(type) {
	case Int:
		return x.V.Cmp(b.(Int).V), nil
	case Float:
		y := b.(Float)
		if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) {
			return 0, ErrUnordered
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	case Str:
		y := b.(Str)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	case Duration:
		y := b.(Duration)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	case Time:
		y := b.(Time)
		switch {
		case x.V.Before(y.V):
			return -1, nil
		case x.V.After(y.V):
			return 1, nil
		default:
			return 0, nil
		}
	case Bool:
		y := b.(Bool)
		if x == y {
			return 0, nil
		}
		if !x && y {
			return -1, nil
		}
		return 1, nil
	default:
		return 0, ErrUnordered
	}
}

// Hashable reports whether v's runtime value can be used as a dict key.
func Hashable(v Value) bool { return v.Type().Kind.Hashable() }

// HashKey computes a canonical string hash key for use as a Dict/uniq key.
// Only hashable kinds are accepted.
func HashKey(v Value) (string, error) {
	if !Hashable(v) {
		return "", fmt.Errorf("value of type %s is not hashable", v.Type())
	}
	s, err := Render(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", v.Type().Kind, s), nil
}
