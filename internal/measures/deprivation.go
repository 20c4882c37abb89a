package measures

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Quintile is a deprivation quintile. The zero value is the most deprived.
type Quintile int

const (
	MostDeprived Quintile = iota
	Quintile2
	Quintile3
	Quintile4
	LeastDeprived
)

// QuintileLabels are the ordered labels of the deprivation quintiles
var QuintileLabels = []string{"Most deprived", "2", "3", "4", "Least deprived"}

// String returns the label of the quintile
func (q Quintile) String() string {
	if q < MostDeprived || q > LeastDeprived {
		return "unknown"
	}
	return QuintileLabels[q]
}

// QuintileEdges returns the equal-frequency bin edges for values, with
// duplicate edges removed. Values must not contain nulls.
func QuintileEdges(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	edges := make([]float64, 0, len(QuintileLabels)+1)
	for i := 0; i <= len(QuintileLabels); i++ {
		e := quantile(sorted, float64(i)/float64(len(QuintileLabels)))
		if len(edges) > 0 && e == edges[len(edges)-1] {
			continue
		}
		edges = append(edges, e)
	}
	return edges
}

// AssignQuintiles bins each value using edges: the first bin is closed on
// both sides and the rest are open on the left. Nulls get -1.
func AssignQuintiles(values []float64, edges []float64) []int {
	bins := len(edges) - 1
	if bins < 1 {
		bins = 1
	}
	codes := make([]int, len(values))
	for i, v := range values {
		if IsNull(v) {
			codes[i] = -1
			continue
		}
		codes[i] = bins - 1
		for b := 0; b < bins && b+1 < len(edges); b++ {
			if v <= edges[b+1] {
				codes[i] = b
				break
			}
		}
	}
	return codes
}

// GroupByDeprivation bins the imd column into quintiles and aggregates per
// (date, quintile): mean of rateColumn, sums of diseaseColumn and population.
// Rows with a null imd are left out. Every combination of an observed date and
// an available quintile appears in the output, ordered by date then quintile.
// Output columns are imd, disease, population, rate, date.
func GroupByDeprivation(t *Table, diseaseColumn, rateColumn string) (*Table, error) {
	imd, err := t.CoerceNumeric(IMDColumn)
	if err != nil {
		return nil, fmt.Errorf("group by deprivation: %w", err)
	}
	disease, err := t.CoerceNumeric(diseaseColumn)
	if err != nil {
		return nil, fmt.Errorf("group by deprivation: %w", err)
	}
	population, err := t.CoerceNumeric(PopulationColumn)
	if err != nil {
		return nil, fmt.Errorf("group by deprivation: %w", err)
	}
	rates, err := t.CoerceNumeric(rateColumn)
	if err != nil {
		return nil, fmt.Errorf("group by deprivation: %w", err)
	}
	dates, err := t.Dates(DateColumn)
	if err != nil {
		return nil, fmt.Errorf("group by deprivation: %w", err)
	}

	var present []float64
	for _, v := range imd {
		if !IsNull(v) {
			present = append(present, v)
		}
	}
	edges := QuintileEdges(present)
	codes := AssignQuintiles(imd, edges)
	bins := len(edges) - 1
	if bins < 1 {
		bins = 1
	}

	type cell struct {
		rateSum    float64
		rateCount  int
		disease    float64
		population float64
	}
	groups := make(map[time.Time][]cell)
	var periods []time.Time
	for i, code := range codes {
		if code < 0 {
			continue
		}
		g, ok := groups[dates[i]]
		if !ok {
			g = make([]cell, bins)
			groups[dates[i]] = g
			periods = append(periods, dates[i])
		}
		if !IsNull(rates[i]) {
			g[code].rateSum += rates[i]
			g[code].rateCount++
		}
		if !IsNull(disease[i]) {
			g[code].disease += disease[i]
		}
		if !IsNull(population[i]) {
			g[code].population += population[i]
		}
	}
	sort.Slice(periods, func(a, b int) bool { return periods[a].Before(periods[b]) })

	n := len(periods) * bins
	outCodes := make([]int, 0, n)
	outDisease := make([]float64, 0, n)
	outPopulation := make([]float64, 0, n)
	outRate := make([]float64, 0, n)
	outDates := make([]time.Time, 0, n)
	for _, p := range periods {
		for b, c := range groups[p] {
			outCodes = append(outCodes, b)
			outDisease = append(outDisease, c.disease)
			outPopulation = append(outPopulation, c.population)
			if c.rateCount == 0 {
				outRate = append(outRate, Null())
			} else {
				outRate = append(outRate, c.rateSum/float64(c.rateCount))
			}
			outDates = append(outDates, p)
		}
	}

	out := NewTable()
	if err := out.AddCategory(IMDColumn, QuintileLabels, outCodes); err != nil {
		return nil, err
	}
	if err := out.AddNumeric(diseaseColumn, outDisease); err != nil {
		return nil, err
	}
	if diseaseColumn != PopulationColumn {
		if err := out.AddNumeric(PopulationColumn, outPopulation); err != nil {
			return nil, err
		}
	}
	if rateColumn != diseaseColumn && rateColumn != PopulationColumn {
		if err := out.AddNumeric(rateColumn, outRate); err != nil {
			return nil, err
		}
	}
	if err := out.AddDates(DateColumn, outDates); err != nil {
		return nil, err
	}
	return out, nil
}

// quantile returns the value at the given fraction of a sorted slice,
// interpolating linearly between neighbouring order statistics
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	index := q * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
