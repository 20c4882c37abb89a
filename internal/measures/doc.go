// Package measures implements the table transforms behind the Service Restoration
// Observatory reports: rates, deprivation quintiles, small-number redaction and
// the most used clinical codes.
//
// Every transform takes a *Table and returns a new one. Inputs are never
// mutated, so the functions are safe to call from many goroutines as long as
// each goroutine works on its own tables.
//
// # Core Components
//
//  1. CalculateRate: numerator per ratePer of the denominator, null for a zero denominator
//  2. GroupByDeprivation: equal-frequency quintiles of the IMD rank aggregated per period
//  3. RedactSmallNumbers: statistical disclosure control on the count columns
//  4. TopCodes: per-code event volume in thousands with codelist descriptions
//
// # Files
//
//   - table.go: the column-ordered Table and its accessors
//   - rate.go: per-row and per-period rates
//   - deprivation.go: quintile edges, binning and the deprivation group-by
//   - redact.go: the suppression cascade and its summary
//   - topcodes.go: codelists and the top code table
//   - transforms.go: demographic clean-up and practice coverage
//   - measure.go: measure definitions
//   - io.go: CSV loading
//   - errors.go: DataValidationError, RedactionExhaustedError and CodeNotFoundError
//
// # Nulls
//
// Numeric nulls are NaN, text nulls are the empty string, category nulls are
// code -1 and date nulls are the zero time. Nulls render as empty CSV cells.
//
// # Usage Example
//
//	t, err := measures.LoadCSV("output/measure_sex_rate.csv")
//	if err != nil {
//	    return err
//	}
//	t, err = measures.CalculateRate(t, "event", "population", measures.DefaultRatePer)
//	if err != nil {
//	    return err
//	}
//	redacted, summary, err := measures.RedactSmallNumbers(t, measures.RedactionOptions{
//	    Threshold:   measures.DefaultRedactionThreshold,
//	    Numerator:   "event",
//	    Denominator: "population",
//	    Rate:        measures.RateColumn,
//	})
package measures
