package measures

import "fmt"

// DefaultRatePer is the population base rates are expressed against
const DefaultRatePer = 1000.0

// CalculateRate returns a copy of t with a rate column holding
// numerator / (denominator / ratePer) for every row. A zero denominator
// yields a null rate. Calling it again on its own output overwrites the
// rate column with the same values.
func CalculateRate(t *Table, numerator, denominator string, ratePer float64) (*Table, error) {
	if ratePer <= 0 {
		return nil, &DataValidationError{Message: fmt.Sprintf("rate base must be positive, got %v", ratePer)}
	}
	num, err := t.CoerceNumeric(numerator)
	if err != nil {
		return nil, fmt.Errorf("calculate rate: %w", err)
	}
	den, err := t.CoerceNumeric(denominator)
	if err != nil {
		return nil, fmt.Errorf("calculate rate: %w", err)
	}

	rates := make([]float64, len(num))
	for i := range num {
		rates[i] = rateOf(num[i], den[i], ratePer)
	}

	out := t.Clone()
	if err := out.AddNumeric(RateColumn, rates); err != nil {
		return nil, fmt.Errorf("calculate rate: %w", err)
	}
	return out, nil
}

func rateOf(num, den, ratePer float64) float64 {
	if IsNull(num) || IsNull(den) || den == 0 {
		return Null()
	}
	return num / (den / ratePer)
}

// TotalRate sums the numerator and denominator per period and computes the
// rate over the totals. Output columns are date, numerator, denominator, rate
// with one row per period in order of first appearance.
func TotalRate(t *Table, numerator, denominator string, ratePer float64) (*Table, error) {
	num, err := t.CoerceNumeric(numerator)
	if err != nil {
		return nil, fmt.Errorf("total rate: %w", err)
	}
	den, err := t.CoerceNumeric(denominator)
	if err != nil {
		return nil, fmt.Errorf("total rate: %w", err)
	}
	periods, rows, err := t.Periods()
	if err != nil {
		return nil, fmt.Errorf("total rate: %w", err)
	}

	numTotals := make([]float64, len(periods))
	denTotals := make([]float64, len(periods))
	for p, idx := range rows {
		numTotals[p] = sumVisible(num, idx)
		denTotals[p] = sumVisible(den, idx)
	}

	out := NewTable()
	if err := out.AddDates(DateColumn, periods); err != nil {
		return nil, err
	}
	if err := out.AddNumeric(numerator, numTotals); err != nil {
		return nil, err
	}
	if err := out.AddNumeric(denominator, denTotals); err != nil {
		return nil, err
	}
	return CalculateRate(out, numerator, denominator, ratePer)
}

func sumVisible(values []float64, rows []int) float64 {
	var sum float64
	for _, r := range rows {
		if !IsNull(values[r]) {
			sum += values[r]
		}
	}
	return sum
}
