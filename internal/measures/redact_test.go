package measures

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countsTable(t *testing.T, dates []time.Time, num, den []float64) *Table {
	tbl := NewTable()
	require.NoError(t, tbl.AddDates(DateColumn, dates))
	require.NoError(t, tbl.AddNumeric("event", num))
	require.NoError(t, tbl.AddNumeric("population", den))
	out, err := CalculateRate(tbl, "event", "population", DefaultRatePer)
	require.NoError(t, err)
	return out
}

func redactOpts(scope RedactionScope) RedactionOptions {
	return RedactionOptions{
		Threshold:   DefaultRedactionThreshold,
		Numerator:   "event",
		Denominator: "population",
		Rate:        RateColumn,
		Scope:       scope,
	}
}

func TestRedactSmallNumbers(t *testing.T) {
	twoPeriods := append(repeatDate(t, "2021-01-01", 2), repeatDate(t, "2021-02-01", 2)...)

	tests := []struct {
		name      string
		scope     RedactionScope
		num       []float64
		den       []float64
		wantNum   []float64
		wantDen   []float64
		wantRates []bool // true where the rate stays visible
	}{
		{
			name:      "nothing small",
			scope:     ScopePeriod,
			num:       []float64{10, 20, 30, 40},
			den:       []float64{100, 100, 100, 100},
			wantNum:   []float64{10, 20, 30, 40},
			wantDen:   []float64{100, 100, 100, 100},
			wantRates: []bool{true, true, true, true},
		},
		{
			name:      "cascade empties both periods",
			scope:     ScopePeriod,
			num:       []float64{1, 6, 3, 7},
			den:       []float64{100, 100, 100, 100},
			wantNum:   []float64{nan(), nan(), nan(), nan()},
			wantDen:   []float64{100, 100, 100, 100},
			wantRates: []bool{false, false, false, false},
		},
		{
			name:      "cascade takes the smallest remaining value",
			scope:     ScopePeriod,
			num:       []float64{2, 9, 4, 20},
			den:       []float64{100, 100, 100, 100},
			wantNum:   []float64{nan(), nan(), nan(), nan()},
			wantDen:   []float64{100, 100, 100, 100},
			wantRates: []bool{false, false, false, false},
		},
		{
			name:      "only small values redacted when they already exceed threshold",
			scope:     ScopePeriod,
			num:       []float64{3, 5, 50, 60},
			den:       []float64{100, 200, 300, 400},
			wantNum:   []float64{nan(), nan(), 50, 60},
			wantDen:   []float64{100, 200, 300, 400},
			wantRates: []bool{false, false, true, true},
		},
		{
			name:      "zero mass leaves zeros visible",
			scope:     ScopePeriod,
			num:       []float64{0, 10, 0, 0},
			den:       []float64{100, 100, 100, 100},
			wantNum:   []float64{0, 10, 0, 0},
			wantDen:   []float64{100, 100, 100, 100},
			wantRates: []bool{true, true, true, true},
		},
		{
			name:      "denominator redacted independently",
			scope:     ScopePeriod,
			num:       []float64{10, 10, 10, 10},
			den:       []float64{4, 30, 100, 100},
			wantNum:   []float64{10, 10, 10, 10},
			wantDen:   []float64{nan(), nan(), 100, 100},
			wantRates: []bool{false, false, true, true},
		},
		{
			name:      "table scope",
			scope:     ScopeTable,
			num:       []float64{1, 6, 3, 7},
			den:       []float64{100, 100, 100, 100},
			wantNum:   []float64{nan(), nan(), nan(), 7},
			wantDen:   []float64{100, 100, 100, 100},
			wantRates: []bool{false, false, false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := countsTable(t, twoPeriods, tt.num, tt.den)
			out, summary, err := RedactSmallNumbers(in, redactOpts(tt.scope))
			require.NoError(t, err)
			require.NotNil(t, summary)

			num, _ := out.Numeric("event")
			den, _ := out.Numeric("population")
			rates, _ := out.Numeric(RateColumn)
			assertFloats(t, tt.wantNum, num)
			assertFloats(t, tt.wantDen, den)
			for i, visible := range tt.wantRates {
				assert.Equal(t, visible, !IsNull(rates[i]), "rate %d", i)
			}

			before, _ := in.Numeric("event")
			assert.Equal(t, tt.num, before, "input must not be mutated")
		})
	}
}

func TestRedactionSummary(t *testing.T) {
	dates := append(repeatDate(t, "2021-01-01", 2), repeatDate(t, "2021-02-01", 2)...)
	in := countsTable(t, dates, []float64{1, 6, 3, 7}, []float64{100, 100, 100, 100})

	_, summary, err := RedactSmallNumbers(in, redactOpts(ScopePeriod))
	require.NoError(t, err)

	require.Len(t, summary.Columns, 2)
	numerator := summary.Columns[0]
	assert.Equal(t, "event", numerator.Column)
	assert.Equal(t, 2, numerator.PeriodsRedacted)
	assert.Equal(t, 4, numerator.CellsRedacted)
	assert.Equal(t, 17.0, numerator.Suppressed)
	assert.Equal(t, 0, summary.Columns[1].CellsRedacted)
	assert.Equal(t, 4, summary.RatesNulled)
	assert.Equal(t, 4, summary.CellsRedacted())
	assert.Equal(t, ScopePeriod, summary.Scope)
}

func TestRedactPeriodOrder(t *testing.T) {
	dates := []time.Time{date(t, "2021-03-01"), date(t, "2021-01-01"), date(t, "2021-03-01")}
	in := countsTable(t, dates, []float64{10, 20, 30}, []float64{100, 100, 100})

	out, _, err := RedactSmallNumbers(in, redactOpts(ScopePeriod))
	require.NoError(t, err)

	num, _ := out.Numeric("event")
	assert.Equal(t, []float64{10, 30, 20}, num, "periods in order of first appearance")
	labels, _ := out.Labels(DateColumn)
	assert.Equal(t, []string{"2021-03-01", "2021-03-01", "2021-01-01"}, labels)
}

func TestRedactExhausted(t *testing.T) {
	in := countsTable(t, repeatDate(t, "2021-01-01", 2), []float64{1, 2}, []float64{100, 100})

	_, _, err := RedactSmallNumbers(in, redactOpts(ScopePeriod))
	var exhausted *RedactionExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "event", exhausted.Column)
	assert.Equal(t, date(t, "2021-01-01"), exhausted.Period)
	assert.Equal(t, 3.0, exhausted.Suppressed)
	assert.Contains(t, err.Error(), "2021-01-01")
}

func TestRedactValidation(t *testing.T) {
	in := countsTable(t, repeatDate(t, "2021-01-01", 1), []float64{10}, []float64{100})
	var dve *DataValidationError

	opts := redactOpts(RedactionScope("practice"))
	_, _, err := RedactSmallNumbers(in, opts)
	require.ErrorAs(t, err, &dve)

	opts = redactOpts(ScopePeriod)
	opts.Rate = "value"
	_, _, err = RedactSmallNumbers(in, opts)
	require.ErrorAs(t, err, &dve)
	assert.Equal(t, "value", dve.Column)

	_, _, err = RedactSmallNumbers(in.Drop(DateColumn), redactOpts(ScopePeriod))
	require.ErrorAs(t, err, &dve)

	_, _, err = RedactSmallNumbers(in.Drop(DateColumn), redactOpts(ScopeTable))
	assert.NoError(t, err, "table scope does not need dates")
}

// TestRedactionInvariants checks on generated tables that a rate is visible
// only when both counts are, and that every redacted column/period carries a
// suppressed mass above the threshold.
func TestRedactionInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	periods := []string{"2021-01-01", "2021-02-01", "2021-03-01"}

	for iter := 0; iter < 200; iter++ {
		var dates []time.Time
		var num, den []float64
		for _, p := range periods {
			rows := 2 + rng.Intn(6)
			for i := 0; i < rows; i++ {
				dates = append(dates, date(t, p))
				n := float64(rng.Intn(15))
				num = append(num, n)
				den = append(den, n+float64(rng.Intn(40)))
			}
		}
		in := countsTable(t, dates, num, den)
		out, _, err := RedactSmallNumbers(in, redactOpts(ScopePeriod))
		if err != nil {
			var exhausted *RedactionExhaustedError
			require.ErrorAs(t, err, &exhausted)
			continue
		}

		outNum, _ := out.Numeric("event")
		outDen, _ := out.Numeric("population")
		rates, _ := out.Numeric(RateColumn)
		for i := range rates {
			if IsNull(outNum[i]) || IsNull(outDen[i]) {
				assert.True(t, IsNull(rates[i]))
			}
		}

		// rows keep their order because the periods were generated in order
		for _, col := range []struct{ before, after []float64 }{{num, outNum}, {den, outDen}} {
			_, rowsByPeriod, err := in.Periods()
			require.NoError(t, err)
			for _, rows := range rowsByPeriod {
				var mass float64
				redacted := false
				for _, r := range rows {
					if IsNull(col.after[r]) {
						redacted = true
						mass += col.before[r]
					} else {
						assert.Equal(t, col.before[r], col.after[r])
					}
				}
				if redacted {
					assert.Greater(t, mass, float64(DefaultRedactionThreshold))
				}
			}
		}
	}
}
