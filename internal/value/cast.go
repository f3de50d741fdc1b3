package value

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/crushshell/crush/internal/crusherr"
)

// Cast converts v to target:
//   - same type -> identity
//   - Integer <-> Bool (0/false)
//   - Float -> Integer truncates
//   - any -> String via canonical rendering (§6.4)
//   - String -> {File, Glob, Regex, Integer, Float, Bool, Duration} by parsing
//   - all other combinations fail
func Cast(v Value, target Type) (Value, error) {
	if v.Type().Equal(target) {
		return v, nil
	}
	switch target.Kind {
	case KindString:
		s, err := Render(v)
		if err != nil {
			return nil, err
		}
		return Str(s), nil
	case KindBool:
		switch x := v.(type) {
		case Bool:
			return x, nil
		case Int:
			return Bool(x.V.Sign() != 0), nil
		case Str:
			switch strings.TrimSpace(string(x)) {
			case "true":
				return Bool(true), nil
			case "false":
				return Bool(false), nil
			}
			return nil, crusherr.New(crusherr.TypeError, "cannot parse %q as bool", string(x))
		}
	case KindInteger:
		switch x := v.(type) {
		case Bool:
			if x {
				return NewInt(1), nil
			}
			return NewInt(0), nil
		case Float:
			bi, _ := big.NewFloat(float64(x)).Int(nil)
			return Int{V: bi}, nil
		case Str:
			bi, ok := new(big.Int).SetString(strings.TrimSpace(string(x)), 10)
			if !ok {
				return nil, crusherr.New(crusherr.TypeError, "cannot parse %q as integer", string(x))
			}
			return Int{V: bi}, nil
		}
	case KindFloat:
		switch x := v.(type) {
		case Int:
			f := new(big.Float).SetInt(x.V)
			out, _ := f.Float64()
			return Float(out), nil
		case Str:
			f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
			if err != nil {
				return nil, crusherr.New(crusherr.TypeError, "cannot parse %q as float", string(x))
			}
			return Float(f), nil
		}
	case KindFile:
		if s, ok := v.(Str); ok {
			return File{Path: string(s)}, nil
		}
	case KindGlob:
		if s, ok := v.(Str); ok {
			return Glob{Pattern: string(s)}, nil
		}
	case KindRegex:
		if s, ok := v.(Str); ok {
			re, err := regexp.Compile(string(s))
			if err != nil {
				return nil, crusherr.Wrap(crusherr.TypeError, err, "invalid regex %q", string(s))
			}
			return Regex{Source: string(s), Compiled: re}, nil
		}
	case KindDuration:
		if s, ok := v.(Str); ok {
			d, err := parseDuration(string(s))
			if err != nil {
				return nil, err
			}
			return d, nil
		}
	}
	return nil, crusherr.New(crusherr.TypeError, "cannot cast %s to %s", v.Type(), target)
}

// parseDuration parses the canonical rendering format produced by
// RenderDuration: "0", "0.000001", "1:01", "1:00:01",
// "3d0:00:01", "10y0d0:00:01", optionally "-" prefixed.
func parseDuration(s string) (Duration, error) {
	orig := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var years, days int64
	if i := strings.Index(s, "y"); i >= 0 {
		n, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0, crusherr.New(crusherr.TypeError, "invalid duration %q", orig)
		}
		years = n
		s = s[i+1:]
	}
	if i := strings.Index(s, "d"); i >= 0 {
		n, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0, crusherr.New(crusherr.TypeError, "invalid duration %q", orig)
		}
		days = n
		s = s[i+1:]
	}
	parts := strings.Split(s, ":")
	var hours, mins int64
	var secPart string
	switch len(parts) {
	case 1:
		secPart = parts[0]
	case 2:
		mins, _ = strconv.ParseInt(parts[0], 10, 64)
		secPart = parts[1]
	case 3:
		hours, _ = strconv.ParseInt(parts[0], 10, 64)
		mins, _ = strconv.ParseInt(parts[1], 10, 64)
		secPart = parts[2]
	default:
		return 0, crusherr.New(crusherr.TypeError, "invalid duration %q", orig)
	}
	secFloat, err := strconv.ParseFloat(secPart, 64)
	if err != nil {
		return 0, crusherr.New(crusherr.TypeError, "invalid duration %q", orig)
	}
	total := time.Duration(years)*365*24*time.Hour +
		time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(mins)*time.Minute +
		time.Duration(secFloat*float64(time.Second))
	if neg {
		total = -total
	}
	return Duration(total), nil
}
