package value_test

import (
	"testing"
	"time"

	"github.com/crushshell/crush/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The canonical duration forms are user-visible and must be exact: the
// printer, string:join, and external serializers all rely on them.
func TestRenderDurationCanonicalForms(t *testing.T) {
	const (
		sec  = time.Second
		min  = time.Minute
		hour = time.Hour
		day  = 24 * hour
		year = 365 * day
	)
	cases := map[time.Duration]string{
		0:                       "0",
		time.Microsecond:        "0.000001",
		time.Millisecond:        "0.001",
		sec:                     "1",
		min + sec:               "1:01",
		hour + sec:              "1:00:01",
		3*day + sec:             "3d0:00:01",
		10*year + sec:           "10y0d0:00:01",
		-(min + sec):            "-1:01",
		90 * sec:                "1:30",
		2*hour + 30*min + 5*sec: "2:30:05",
	}
	for d, want := range cases {
		assert.Equal(t, want, value.RenderDuration(d), "duration %v", d)
	}
}

func TestDurationRoundTripsExactly(t *testing.T) {
	const day = 24 * time.Hour
	for _, d := range []time.Duration{
		0,
		time.Second,
		time.Minute + time.Second,
		time.Hour + time.Second,
		3*day + time.Second,
		10*365*day + time.Second,
		-(time.Minute + time.Second),
	} {
		v := value.Duration(d)
		s, err := value.Cast(v, value.TypeString)
		require.NoError(t, err)
		back, err := value.Cast(s, value.TypeDuration)
		require.NoError(t, err)
		assert.Equal(t, v, back, "duration %v rendered as %v", d, s)
	}
}

func TestRenderTimeIncludesOffset(t *testing.T) {
	loc := time.FixedZone("X", 2*60*60)
	v := value.Time{V: time.Date(2024, 5, 17, 9, 30, 0, 0, loc)}
	s, err := value.Render(v)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-17 09:30:00 +0200", s)
}

func TestRenderFieldAndRegexForms(t *testing.T) {
	s, err := value.Render(value.Field{Path: []string{"user", "name"}})
	require.NoError(t, err)
	assert.Equal(t, "^user:name", s)

	s, err = value.Render(value.Regex{Source: "a+b"})
	require.NoError(t, err)
	assert.Equal(t, `re"a+b"`, s)
}

func TestRenderContainersOneLine(t *testing.T) {
	l := value.NewList(value.TypeInteger, []value.Value{value.NewInt(1), value.NewInt(2)})
	s, err := value.Render(l)
	require.NoError(t, err)
	assert.Equal(t, "[1, 2]", s)

	d := value.NewDict(value.TypeString, value.TypeInteger)
	require.NoError(t, d.Set(value.Str("a"), value.NewInt(1)))
	s, err = value.Render(d)
	require.NoError(t, err)
	assert.Equal(t, "{a: 1}", s)

	st := value.NewStruct(nil)
	st.Set("x", value.NewInt(1))
	st.Set("y", value.Str("two"))
	s, err = value.Render(st)
	require.NoError(t, err)
	assert.Equal(t, "<x=1, y=two>", s)
}
