package measures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imdFixture(t *testing.T) *Table {
	tbl := NewTable()
	require.NoError(t, tbl.AddNumeric(IMDColumn, []float64{1, 2, 3, 4, 5, 1, 2, 3, 4, 5}))
	require.NoError(t, tbl.AddNumeric("event", []float64{0, 1, 1, 0, 1, 0, 1, 1, 0, 1}))
	require.NoError(t, tbl.AddNumeric(PopulationColumn, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}))
	require.NoError(t, tbl.AddNumeric(ValueColumn, []float64{0, 1, 1, 0, 1, 0, 1, 1, 0, 1}))
	require.NoError(t, tbl.AddDates(DateColumn, append(repeatDate(t, "2019-01-01", 5), repeatDate(t, "2019-02-01", 5)...)))
	return tbl
}

func TestQuintileEdges(t *testing.T) {
	edges := QuintileEdges([]float64{1, 2, 3, 4, 5, 1, 2, 3, 4, 5})
	assertFloats(t, []float64{1, 1.8, 2.6, 3.4, 4.2, 5}, edges)

	t.Run("duplicate edges dropped", func(t *testing.T) {
		edges := QuintileEdges([]float64{1, 1, 1, 1, 1, 1, 1, 1, 2, 3})
		assertFloats(t, []float64{1, 1.2, 3}, edges)

		codes := AssignQuintiles([]float64{1, 1.5, 3}, edges)
		assert.Equal(t, []int{0, 1, 1}, codes)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, QuintileEdges(nil))
	})
}

func TestAssignQuintiles(t *testing.T) {
	edges := []float64{1, 1.8, 2.6, 3.4, 4.2, 5}
	codes := AssignQuintiles([]float64{1, 1.8, 1.9, 5, nan(), 3.4}, edges)
	assert.Equal(t, []int{0, 0, 1, 4, -1, 2}, codes)
}

func TestGroupByDeprivation(t *testing.T) {
	out, err := GroupByDeprivation(imdFixture(t), "event", ValueColumn)
	require.NoError(t, err)

	assert.Equal(t, []string{IMDColumn, "event", PopulationColumn, ValueColumn, DateColumn}, out.Columns())
	require.Equal(t, 10, out.Len())

	labels, err := out.Labels(IMDColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Most deprived", "2", "3", "4", "Least deprived",
		"Most deprived", "2", "3", "4", "Least deprived",
	}, labels)

	events, _ := out.Numeric("event")
	assert.Equal(t, []float64{0, 1, 1, 0, 1, 0, 1, 1, 0, 1}, events)
	population, _ := out.Numeric(PopulationColumn)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, population)
	values, _ := out.Numeric(ValueColumn)
	assertFloats(t, []float64{0, 1, 1, 0, 1, 0, 1, 1, 0, 1}, values)

	dates, _ := out.Labels(DateColumn)
	assert.Equal(t, "2019-01-01", dates[0])
	assert.Equal(t, "2019-02-01", dates[9])
}

func TestGroupByDeprivationAggregates(t *testing.T) {
	tbl := NewTable()
	// ten distinct ranks give two rows per quintile in a single period
	require.NoError(t, tbl.AddText(IMDColumn, []string{"10", "1", "2", "3", "4", "5", "6", "7", "8", "9", ""}))
	require.NoError(t, tbl.AddNumeric("event", []float64{1, 1, 2, 3, 4, 5, 6, 7, 8, 9, 100}))
	require.NoError(t, tbl.AddNumeric(PopulationColumn, []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10}))
	require.NoError(t, tbl.AddNumeric(RateColumn, []float64{2, 4, 6, nan(), 1, 1, 1, 1, 1, 3, 100}))
	require.NoError(t, tbl.AddDates(DateColumn, repeatDate(t, "2020-01-01", 11)))

	out, err := GroupByDeprivation(tbl, "event", RateColumn)
	require.NoError(t, err)
	require.Equal(t, 5, out.Len())

	events, _ := out.Numeric("event")
	assert.Equal(t, []float64{3, 7, 11, 15, 10}, events, "null imd row is excluded")
	population, _ := out.Numeric(PopulationColumn)
	assert.Equal(t, []float64{20, 20, 20, 20, 20}, population)
	rates, _ := out.Numeric(RateColumn)
	assertFloats(t, []float64{5, 1, 1, 1, 2.5}, rates)
}

func TestGroupByDeprivationEmptyGroups(t *testing.T) {
	tbl := NewTable()
	ones := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	require.NoError(t, tbl.AddNumeric(IMDColumn, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 10}))
	require.NoError(t, tbl.AddNumeric("event", ones))
	require.NoError(t, tbl.AddNumeric(PopulationColumn, ones))
	require.NoError(t, tbl.AddNumeric(RateColumn, ones))
	require.NoError(t, tbl.AddDates(DateColumn, append(repeatDate(t, "2020-02-01", 10), date(t, "2020-01-01"))))

	out, err := GroupByDeprivation(tbl, "event", RateColumn)
	require.NoError(t, err)
	require.Equal(t, 10, out.Len(), "every date and quintile combination is present")

	dates, _ := out.Labels(DateColumn)
	assert.Equal(t, "2020-01-01", dates[0], "dates are ascending")

	events, _ := out.Numeric("event")
	rates, _ := out.Numeric(RateColumn)
	assert.Equal(t, 0.0, events[0])
	assert.True(t, IsNull(rates[0]), "mean of an empty group is null")
	assert.Equal(t, 1.0, events[4])
}

func TestGroupByDeprivationErrors(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddText(IMDColumn, []string{"1", "high"}))
	require.NoError(t, tbl.AddNumeric("event", []float64{1, 1}))
	require.NoError(t, tbl.AddNumeric(PopulationColumn, []float64{1, 1}))
	require.NoError(t, tbl.AddNumeric(RateColumn, []float64{1, 1}))
	require.NoError(t, tbl.AddDates(DateColumn, repeatDate(t, "2020-01-01", 2)))

	var dve *DataValidationError
	_, err := GroupByDeprivation(tbl, "event", RateColumn)
	require.ErrorAs(t, err, &dve)
	assert.Equal(t, IMDColumn, dve.Column)

	valid := tbl.Clone()
	require.NoError(t, valid.AddNumeric(IMDColumn, []float64{1, 2}))
	_, err = GroupByDeprivation(valid.Drop(PopulationColumn), "event", RateColumn)
	require.ErrorAs(t, err, &dve)
	assert.Equal(t, PopulationColumn, dve.Column)
}

func TestQuintileString(t *testing.T) {
	assert.Equal(t, "Most deprived", MostDeprived.String())
	assert.Equal(t, "3", Quintile3.String())
	assert.Equal(t, "Least deprived", LeastDeprived.String())
	assert.Equal(t, "unknown", Quintile(7).String())
}
