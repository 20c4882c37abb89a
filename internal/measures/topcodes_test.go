package measures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codelistTable(t *testing.T, codes, terms []string) *Table {
	tbl := NewTable()
	require.NoError(t, tbl.AddText("code", codes))
	require.NoError(t, tbl.AddText("term", terms))
	return tbl
}

func eventTable(t *testing.T, codes []string, events []float64) *Table {
	tbl := NewTable()
	require.NoError(t, tbl.AddDates(DateColumn, repeatDate(t, "2021-01-01", len(codes))))
	require.NoError(t, tbl.AddText(EventCodeColumn, codes))
	require.NoError(t, tbl.AddNumeric(EventColumn, events))
	return tbl
}

func TestNewCodelist(t *testing.T) {
	cl, err := NewCodelist(codelistTable(t, []string{"123.0", "XaB1", ""}, []string{"Review", "Medication", "blank"}), "code", "term")
	require.NoError(t, err)
	assert.Equal(t, 2, cl.Len())

	term, ok := cl.Lookup("123")
	assert.True(t, ok)
	assert.Equal(t, "Review", term)

	_, ok = cl.Lookup("xab1")
	assert.False(t, ok, "lookup is exact")

	t.Run("duplicates rejected", func(t *testing.T) {
		_, err := NewCodelist(codelistTable(t, []string{"1", "1.0"}, []string{"a", "b"}), "code", "term")
		var dve *DataValidationError
		require.ErrorAs(t, err, &dve)
		assert.Equal(t, "1", dve.Value)
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := NewCodelist(codelistTable(t, []string{"1"}, []string{"a"}), "snomed", "term")
		var dve *DataValidationError
		require.ErrorAs(t, err, &dve)
	})
}

func TestNormalizeCode(t *testing.T) {
	tests := map[string]string{
		"123.0":   "123",
		" 42 ":    "42",
		"1e3":     "1000",
		"12.5":    "12.5",
		"XaB1.":   "XaB1.",
		"Y1234":   "Y1234",
		"":        "",
		"007":     "007",
		"1234.00": "1234",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeCode(in), in)
	}
}

func TestTopCodes(t *testing.T) {
	cl, err := NewCodelist(codelistTable(t,
		[]string{"A", "B", "C", "D", "E", "F"},
		[]string{"alpha", "beta", "gamma", "delta", "epsilon", "phi"}), "code", "term")
	require.NoError(t, err)

	events := eventTable(t,
		[]string{"A", "B", "C", "D", "E", "F", "A", "B"},
		[]float64{1000, 500, 3000, 200, 100, 50, 1000, nan()})

	result, err := TopCodes(events, cl, 0)
	require.NoError(t, err)
	assert.Empty(t, result.Missing)

	out := result.Table
	assert.Equal(t, []string{CodeColumn, EventsThousands, DescriptionColumn}, out.Columns())
	require.Equal(t, DefaultTopN, out.Len())

	codes, _ := out.Text(CodeColumn)
	assert.Equal(t, []string{"C", "A", "B", "D", "E"}, codes)
	thousands, _ := out.Numeric(EventsThousands)
	assert.Equal(t, []float64{3, 2, 0.5, 0.2, 0.1}, thousands)
	terms, _ := out.Text(DescriptionColumn)
	assert.Equal(t, []string{"gamma", "alpha", "beta", "delta", "epsilon"}, terms)
}

func TestTopCodesTies(t *testing.T) {
	cl, err := NewCodelist(codelistTable(t,
		[]string{"100", "20", "3", "B", "A"},
		[]string{"hundred", "twenty", "three", "b", "a"}), "code", "term")
	require.NoError(t, err)

	events := eventTable(t,
		[]string{"100", "20", "3", "B", "A", "100"},
		[]float64{5, 10, 10, 10, 10, 5})

	result, err := TopCodes(events, cl, 10)
	require.NoError(t, err)

	codes, _ := result.Table.Text(CodeColumn)
	assert.Equal(t, []string{"3", "20", "100", "A", "B"}, codes, "ties ordered by code, numerically when both are numbers")

	thousands, _ := result.Table.Numeric(EventsThousands)
	for i := 1; i < len(thousands); i++ {
		assert.GreaterOrEqual(t, thousands[i-1], thousands[i])
	}
}

func TestTopCodesMissingCode(t *testing.T) {
	cl, err := NewCodelist(codelistTable(t, []string{"A"}, []string{"alpha"}), "code", "term")
	require.NoError(t, err)

	events := eventTable(t, []string{"A", "Z"}, []float64{10, 20})
	result, err := TopCodes(events, cl, 5)
	require.NoError(t, err, "a missing code is not a call error")

	require.Len(t, result.Missing, 1)
	assert.Equal(t, "Z", result.Missing[0].Code)
	assert.Contains(t, result.Missing[0].Error(), "Z")

	terms, _ := result.Table.Text(DescriptionColumn)
	assert.Equal(t, []string{"", "alpha"}, terms)
}

func TestTopCodesNumericCodes(t *testing.T) {
	cl, err := NewCodelist(codelistTable(t, []string{"123"}, []string{"Review"}), "code", "term")
	require.NoError(t, err)

	tbl := NewTable()
	require.NoError(t, tbl.AddNumeric(EventCodeColumn, []float64{123, 123}))
	require.NoError(t, tbl.AddNumeric(EventColumn, []float64{1500, 500}))

	result, err := TopCodes(tbl, cl, 1)
	require.NoError(t, err)
	assert.Empty(t, result.Missing)
	assert.Equal(t, "123", result.Table.Cell(CodeColumn, 0))
	assert.Equal(t, "2", result.Table.Cell(EventsThousands, 0))
}

func TestTopCodesErrors(t *testing.T) {
	cl, err := NewCodelist(codelistTable(t, []string{"A"}, []string{"alpha"}), "code", "term")
	require.NoError(t, err)
	var dve *DataValidationError

	_, err = TopCodes(eventTable(t, []string{"A"}, []float64{1}).Drop(EventColumn), cl, 5)
	require.ErrorAs(t, err, &dve)
	assert.Equal(t, EventColumn, dve.Column)

	_, err = TopCodes(eventTable(t, []string{"A"}, []float64{1}), cl, -1)
	require.ErrorAs(t, err, &dve)

	_, err = TopCodes(eventTable(t, []string{"A"}, []float64{1}), nil, 5)
	require.ErrorAs(t, err, &dve)
}
