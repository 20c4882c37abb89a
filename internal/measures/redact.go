package measures

import (
	"fmt"
	"time"
)

// RedactionScope selects the partition the suppression cascade runs over
type RedactionScope string

const (
	// ScopePeriod runs the cascade separately for every date
	ScopePeriod RedactionScope = "period"
	// ScopeTable runs the cascade once over the whole table
	ScopeTable RedactionScope = "table"
)

// DefaultRedactionThreshold is the small-number threshold used by default
const DefaultRedactionThreshold = 5

// Valid reports whether the scope is known
func (s RedactionScope) Valid() bool {
	return s == ScopePeriod || s == ScopeTable
}

// RedactionOptions configures RedactSmallNumbers
type RedactionOptions struct {
	Threshold   int
	Numerator   string
	Denominator string
	Rate        string
	Scope       RedactionScope
}

// ColumnRedaction describes what happened to one count column
type ColumnRedaction struct {
	Column          string  `json:"column"`
	PeriodsRedacted int     `json:"periods_redacted"`
	CellsRedacted   int     `json:"cells_redacted"`
	Suppressed      float64 `json:"suppressed"`
}

// RedactionSummary is returned alongside a redacted table
type RedactionSummary struct {
	Threshold   int               `json:"threshold"`
	Scope       RedactionScope    `json:"scope"`
	Columns     []ColumnRedaction `json:"columns"`
	RatesNulled int               `json:"rates_nulled"`
}

// CellsRedacted returns the number of count cells nulled across columns
func (s *RedactionSummary) CellsRedacted() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, c := range s.Columns {
		total += c.CellsRedacted
	}
	return total
}

// RedactSmallNumbers applies small-number suppression to the numerator and
// denominator columns independently, then nulls the rate wherever either
// count is null. Within each partition the sum of values at or below the
// threshold is the suppressed mass; when it is positive every such value is
// nulled and the smallest remaining values follow until the mass exceeds the
// threshold. Partitions are emitted in order of first appearance.
func RedactSmallNumbers(t *Table, opts RedactionOptions) (*Table, *RedactionSummary, error) {
	if opts.Scope == "" {
		opts.Scope = ScopePeriod
	}
	if !opts.Scope.Valid() {
		return nil, nil, &DataValidationError{Message: fmt.Sprintf("unknown redaction scope %q", opts.Scope)}
	}
	if opts.Threshold < 0 {
		return nil, nil, &DataValidationError{Message: "redaction threshold must not be negative", Value: opts.Threshold}
	}
	num, err := t.CoerceNumeric(opts.Numerator)
	if err != nil {
		return nil, nil, fmt.Errorf("redact: %w", err)
	}
	den, err := t.CoerceNumeric(opts.Denominator)
	if err != nil {
		return nil, nil, fmt.Errorf("redact: %w", err)
	}
	rates, err := t.CoerceNumeric(opts.Rate)
	if err != nil {
		return nil, nil, fmt.Errorf("redact: %w", err)
	}

	var periods []time.Time
	var partitions [][]int
	if opts.Scope == ScopePeriod {
		periods, partitions, err = t.Periods()
		if err != nil {
			return nil, nil, fmt.Errorf("redact: %w", err)
		}
	} else {
		periods = []time.Time{{}}
		partitions = [][]int{identity(t.Len())}
	}

	summary := &RedactionSummary{Threshold: opts.Threshold, Scope: opts.Scope}
	for _, col := range []struct {
		name   string
		values []float64
	}{{opts.Numerator, num}, {opts.Denominator, den}} {
		cr := ColumnRedaction{Column: col.name}
		for p, rows := range partitions {
			cells, mass, err := suppress(col.values, rows, float64(opts.Threshold))
			if err != nil {
				return nil, nil, &RedactionExhaustedError{
					Column:     col.name,
					Period:     periods[p],
					Suppressed: mass,
					Threshold:  opts.Threshold,
				}
			}
			if cells > 0 {
				cr.PeriodsRedacted++
				cr.CellsRedacted += cells
				cr.Suppressed += mass
			}
		}
		summary.Columns = append(summary.Columns, cr)
	}

	for i := range rates {
		if (IsNull(num[i]) || IsNull(den[i])) && !IsNull(rates[i]) {
			rates[i] = Null()
			summary.RatesNulled++
		}
	}

	order := make([]int, 0, t.Len())
	for _, rows := range partitions {
		order = append(order, rows...)
	}

	out := t.Clone()
	for _, c := range []struct {
		name   string
		values []float64
	}{{opts.Numerator, num}, {opts.Denominator, den}, {opts.Rate, rates}} {
		if err := out.AddNumeric(c.name, c.values); err != nil {
			return nil, nil, fmt.Errorf("redact: %w", err)
		}
	}
	return out.Take(order), summary, nil
}

var errExhausted = fmt.Errorf("no values left to suppress")

// suppress runs the cascade over values[rows] in place and returns the
// number of cells nulled and the suppressed mass.
func suppress(values []float64, rows []int, n float64) (int, float64, error) {
	var mass float64
	for _, r := range rows {
		if !IsNull(values[r]) && values[r] <= n {
			mass += values[r]
		}
	}
	if mass == 0 {
		return 0, 0, nil
	}

	cells := 0
	for _, r := range rows {
		if !IsNull(values[r]) && values[r] <= n {
			values[r] = Null()
			cells++
		}
	}
	for mass <= n {
		min := -1
		for _, r := range rows {
			if IsNull(values[r]) {
				continue
			}
			if min < 0 || values[r] < values[min] {
				min = r
			}
		}
		if min < 0 {
			return cells, mass, errExhausted
		}
		mass += values[min]
		values[min] = Null()
		cells++
	}
	return cells, mass, nil
}
