package measures

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Column names of the top code table
const (
	CodeColumn        = "code"
	EventsThousands   = "Events (thousands)"
	DescriptionColumn = "Description"
)

// DefaultTopN is the number of codes kept by TopCodes when n is zero
const DefaultTopN = 5

// Codelist maps clinical codes to their terms
type Codelist struct {
	terms map[string]string
	codes []string
}

// NewCodelist builds a codelist from the code and term columns of t.
// Codes are normalised with NormalizeCode and must be unique.
func NewCodelist(t *Table, codeColumn, termColumn string) (*Codelist, error) {
	codes, err := t.Labels(codeColumn)
	if err != nil {
		return nil, fmt.Errorf("load codelist: %w", err)
	}
	terms, err := t.Labels(termColumn)
	if err != nil {
		return nil, fmt.Errorf("load codelist: %w", err)
	}

	cl := &Codelist{terms: make(map[string]string, len(codes))}
	for i, raw := range codes {
		code := NormalizeCode(raw)
		if code == "" {
			continue
		}
		if _, dup := cl.terms[code]; dup {
			return nil, &DataValidationError{Column: codeColumn, Message: "duplicate code in codelist", Value: code}
		}
		cl.terms[code] = terms[i]
		cl.codes = append(cl.codes, code)
	}
	return cl, nil
}

// Lookup returns the term for a code
func (c *Codelist) Lookup(code string) (string, bool) {
	term, ok := c.terms[NormalizeCode(code)]
	return term, ok
}

// Len returns the number of codes
func (c *Codelist) Len() int {
	return len(c.codes)
}

// NormalizeCode trims a code and drops the fractional part of integer-valued
// numeric codes, so "123.0" and "123" are the same code.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if !strings.ContainsAny(code, ".eE") {
		return code
	}
	f, err := strconv.ParseFloat(code, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1e18 {
		return code
	}
	return strconv.FormatInt(int64(f), 10)
}

// TopCodesResult is the top code table plus the codes that had no term
type TopCodesResult struct {
	Table   *Table
	Missing []*CodeNotFoundError
}

// TopCodes sums events per code, converts the totals to thousands and keeps
// the n most used codes ordered by volume, ties broken by code. The event
// table needs event_code and event columns.
func TopCodes(events *Table, codelist *Codelist, n int) (*TopCodesResult, error) {
	if n < 0 {
		return nil, &DataValidationError{Message: "top code count must not be negative", Value: n}
	}
	if n == 0 {
		n = DefaultTopN
	}
	if codelist == nil {
		return nil, &DataValidationError{Message: "codelist is required"}
	}
	codes, err := events.Labels(EventCodeColumn)
	if err != nil {
		return nil, fmt.Errorf("top codes: %w", err)
	}
	counts, err := events.CoerceNumeric(EventColumn)
	if err != nil {
		return nil, fmt.Errorf("top codes: %w", err)
	}

	totals := make(map[string]float64)
	var order []string
	for i, raw := range codes {
		code := NormalizeCode(raw)
		if code == "" {
			continue
		}
		if _, ok := totals[code]; !ok {
			order = append(order, code)
			totals[code] = 0
		}
		if !IsNull(counts[i]) {
			totals[code] += counts[i]
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := totals[order[a]], totals[order[b]]
		if ta != tb {
			return ta > tb
		}
		return lessCode(order[a], order[b])
	})
	if len(order) > n {
		order = order[:n]
	}

	result := &TopCodesResult{}
	outEvents := make([]float64, len(order))
	outTerms := make([]string, len(order))
	for i, code := range order {
		outEvents[i] = totals[code] / 1000
		term, ok := codelist.Lookup(code)
		if !ok {
			result.Missing = append(result.Missing, &CodeNotFoundError{Code: code})
		}
		outTerms[i] = term
	}

	out := NewTable()
	if err := out.AddText(CodeColumn, order); err != nil {
		return nil, err
	}
	if err := out.AddNumeric(EventsThousands, outEvents); err != nil {
		return nil, err
	}
	if err := out.AddText(DescriptionColumn, outTerms); err != nil {
		return nil, err
	}
	result.Table = out
	return result, nil
}

// lessCode orders numerically when both codes are numbers, lexically otherwise
func lessCode(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil && fa != fb {
		return fa < fb
	}
	return a < b
}
