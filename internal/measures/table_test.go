package measures

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func repeatDate(t *testing.T, s string, n int) []time.Time {
	d := date(t, s)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = d
	}
	return out
}

// assertFloats compares two slices treating NaN as equal to NaN
func assertFloats(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want null, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "index %d", i)
	}
}

func nan() float64 { return math.NaN() }

func TestTableColumns(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddDates(DateColumn, repeatDate(t, "2021-01-01", 3)))
	require.NoError(t, tbl.AddText("sex", []string{"F", "M", ""}))
	require.NoError(t, tbl.AddNumeric("event", []float64{1, 2, nan()}))

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{DateColumn, "sex", "event"}, tbl.Columns())

	t.Run("replacing keeps position", func(t *testing.T) {
		c := tbl.Clone()
		require.NoError(t, c.AddText(DateColumn, []string{"a", "b", "c"}))
		assert.Equal(t, []string{DateColumn, "sex", "event"}, c.Columns())
		kind, ok := c.Kind(DateColumn)
		require.True(t, ok)
		assert.Equal(t, KindText, kind)

		// the original is untouched
		kind, _ = tbl.Kind(DateColumn)
		assert.Equal(t, KindDate, kind)
	})

	t.Run("length mismatch", func(t *testing.T) {
		err := tbl.Clone().AddNumeric("population", []float64{1})
		var dve *DataValidationError
		require.ErrorAs(t, err, &dve)
		assert.Equal(t, "population", dve.Column)
	})

	t.Run("wrong kind", func(t *testing.T) {
		_, err := tbl.Numeric("sex")
		var dve *DataValidationError
		require.ErrorAs(t, err, &dve)
		assert.Contains(t, err.Error(), "expected numeric column")
	})

	t.Run("labels render nulls as empty", func(t *testing.T) {
		labels, err := tbl.Labels("event")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", ""}, labels)
		assert.Nil(t, tbl.Value("event", 2))
		assert.Equal(t, 2.0, tbl.Value("event", 1))
		assert.Equal(t, "2021-01-01", tbl.Value(DateColumn, 0))
	})

	t.Run("drop", func(t *testing.T) {
		d := tbl.Drop("sex", "absent")
		assert.Equal(t, []string{DateColumn, "event"}, d.Columns())
		assert.Equal(t, 3, d.Len())
		assert.True(t, tbl.Has("sex"))
	})
}

func TestCoerceNumeric(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddText("imd", []string{"1", " 2.5 ", ""}))
	require.NoError(t, tbl.AddText("bad", []string{"1", "x", "3"}))

	got, err := tbl.CoerceNumeric("imd")
	require.NoError(t, err)
	assertFloats(t, []float64{1, 2.5, nan()}, got)

	_, err = tbl.CoerceNumeric("bad")
	var dve *DataValidationError
	require.ErrorAs(t, err, &dve)
	assert.Equal(t, "x", dve.Value)

	_, err = tbl.CoerceNumeric("missing")
	require.ErrorAs(t, err, &dve)
	assert.Equal(t, "missing", dve.Column)
}

func TestPeriodsAndConcat(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddDates(DateColumn, []time.Time{
		date(t, "2021-02-01"), date(t, "2021-01-01"), date(t, "2021-02-01"),
	}))
	require.NoError(t, tbl.AddNumeric("event", []float64{1, 2, 3}))

	periods, rows, err := tbl.Periods()
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(t, "2021-02-01"), date(t, "2021-01-01")}, periods)
	assert.Equal(t, [][]int{{0, 2}, {1}}, rows)

	joined, err := Concat(tbl.Take(rows[0]), tbl.Take(rows[1]))
	require.NoError(t, err)
	events, err := joined.Numeric("event")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 2}, events)

	other := NewTable()
	require.NoError(t, other.AddText("event", []string{"a"}))
	require.NoError(t, other.AddDates(DateColumn, repeatDate(t, "2021-01-01", 1)))
	_, err = Concat(tbl, other)
	assert.Error(t, err)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1"},
		{0, "0"},
		{2.5, "2.5"},
		{0.001, "0.001"},
		{nan(), ""},
		{-3, "-3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in))
	}
}
