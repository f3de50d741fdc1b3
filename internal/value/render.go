package value

import (
	"fmt"
	"strings"
	"time"
)

// Render produces the canonical one-line rendering of v. This is user-visible
// and must be exact: string:join, JSON/CSV serialization (external), and the
// printer (package printer) all depend on it being stable.
func Render(v Value) (string, error) {
	switch x := v.(type) {
	case Empty:
		return "", nil
	case Bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case Int:
		return x.V.String(), nil
	case Float:
		return fmt.Sprintf("%v", float64(x)), nil
	case Str:
		return string(x), nil
	case Duration:
		return RenderDuration(time.Duration(x)), nil
	case Time:
		return x.V.Format("2006-01-02 15:04:05 -0700"), nil
	case Field:
		return "^" + strings.Join(x.Path, ":"), nil
	case Glob:
		return x.Pattern, nil
	case Regex:
		return fmt.Sprintf("re%q", x.Source), nil
	case File:
		return x.Path, nil
	case Binary:
		return fmt.Sprintf("<binary: %d bytes>", len(x.Bytes)), nil
	case List:
		return renderList(x)
	case Dict:
		return renderDict(x)
	case Struct:
		return renderStruct(x)
	case Table:
		return renderTable(x)
	case TypeValue:
		return x.T.String(), nil
	default:
		return fmt.Sprintf("<%s>", v.Type()), nil
	}
}

func renderList(l List) (string, error) {
	items := l.Items()
	parts := make([]string, len(items))
	for i, it := range items {
		s, err := Render(it)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

func renderDict(d Dict) (string, error) {
	entries := d.Entries()
	parts := make([]string, len(entries))
	for i, e := range entries {
		ks, err := Render(e.Key)
		if err != nil {
			return "", err
		}
		vs, err := Render(e.Val)
		if err != nil {
			return "", err
		}
		parts[i] = ks + ": " + vs
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

func renderStruct(s Struct) (string, error) {
	names := s.Fields()
	parts := make([]string, len(names))
	for i, name := range names {
		v, _ := s.Get(name)
		vs, err := Render(v)
		if err != nil {
			return "", err
		}
		parts[i] = name + "=" + vs
	}
	return "<" + strings.Join(parts, ", ") + ">", nil
}

func renderTable(t Table) (string, error) {
	rows := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, c := range row {
			s, err := Render(c)
			if err != nil {
				return "", err
			}
			cells[j] = s
		}
		rows[i] = "[" + strings.Join(cells, ", ") + "]"
	}
	return "[" + strings.Join(rows, ", ") + "]", nil
}

// RenderDuration formats a duration with the smallest-unit human form
// of the canonical rendering: "0", "0.000001", "0.001", "1", "1:01",
// "1:00:01", "3d0:00:01", "10y0d0:00:01". Years are 365 days; days are
// 86400 seconds. Sub-second portions render as decimals.
func RenderDuration(d time.Duration) string {
	neg := d < 0
	if neg {
		d = -d
	}
	const (
		day  = 24 * time.Hour
		year = 365 * day
	)
	years := d / year
	d -= years * year
	days := d / day
	d -= days * day
	hours := d / time.Hour
	d -= hours * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	secNanos := d
	secs := float64(secNanos) / float64(time.Second)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	switch {
	case years > 0:
		fmt.Fprintf(&b, "%dy%dd%s", years, days, hms(hours, mins, secs, true))
	case days > 0:
		fmt.Fprintf(&b, "%dd%s", days, hms(hours, mins, secs, true))
	case hours > 0:
		fmt.Fprintf(&b, "%s", hms(hours, mins, secs, true))
	case mins > 0:
		fmt.Fprintf(&b, "%d:%s", mins, secField(secs, true))
	default:
		b.WriteString(secField(secs, false))
	}
	return b.String()
}

func hms(hours, mins time.Duration, secs float64, pad bool) string {
	return fmt.Sprintf("%d:%02d:%s", hours, mins, secField(secs, true))
}

func secField(secs float64, pad bool) string {
	whole := int64(secs)
	frac := secs - float64(whole)
	var s string
	if frac > 1e-9 {
		s = strings.TrimRight(fmt.Sprintf("%.6f", secs), "0")
		s = strings.TrimRight(s, ".")
	} else {
		s = fmt.Sprintf("%d", whole)
	}
	if pad {
		// Zero-pad the integer part to two digits, preserving any
		// fractional suffix (e.g. "01", "01.5").
		parts := strings.SplitN(s, ".", 2)
		intPart := parts[0]
		if len(intPart) < 2 {
			intPart = strings.Repeat("0", 2-len(intPart)) + intPart
		}
		if len(parts) == 2 {
			s = intPart + "." + parts[1]
		} else {
			s = intPart
		}
	}
	return s
}
