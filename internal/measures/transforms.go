package measures

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Ethnicity labels keyed by the 5-group census code
var ethnicityLabels = map[string]string{
	"1": "White",
	"2": "Mixed",
	"3": "Asian",
	"4": "Black",
	"5": "Other",
	"0": "unknown",
	"":  "unknown",
}

// ConvertEthnicity replaces the ethnicity codes 1 to 5 with their group
// names. 0 and null become "unknown"; anything else is kept as is.
func ConvertEthnicity(t *Table) (*Table, error) {
	labels, err := t.Labels(EthnicityColumn)
	if err != nil {
		return nil, fmt.Errorf("convert ethnicity: %w", err)
	}
	for i, l := range labels {
		if name, ok := ethnicityLabels[NormalizeCode(l)]; ok {
			labels[i] = name
		}
	}
	out := t.Clone()
	if err := out.AddText(EthnicityColumn, labels); err != nil {
		return nil, fmt.Errorf("convert ethnicity: %w", err)
	}
	return out, nil
}

// ConvertBinary replaces a 1/0 flag column with the given labels. Other
// values, nulls included, are kept as they render.
func ConvertBinary(t *Table, column, positive, negative string) (*Table, error) {
	labels, err := t.Labels(column)
	if err != nil {
		return nil, fmt.Errorf("convert binary: %w", err)
	}
	for i, l := range labels {
		switch NormalizeCode(l) {
		case "1":
			labels[i] = positive
		case "0":
			labels[i] = negative
		}
	}
	out := t.Clone()
	if err := out.AddText(column, labels); err != nil {
		return nil, fmt.Errorf("convert binary: %w", err)
	}
	return out, nil
}

// DropMissingDemographics removes rows whose group value is null, empty or
// the literal "missing"
func DropMissingDemographics(t *Table, column string) (*Table, error) {
	labels, err := t.Labels(column)
	if err != nil {
		return nil, fmt.Errorf("drop missing demographics: %w", err)
	}
	return t.Filter(func(row int) bool {
		v := strings.TrimSpace(labels[row])
		return v != "" && !strings.EqualFold(v, "missing")
	}), nil
}

// DropIrrelevantPractices removes every row of practices whose mean
// valueColumn is zero, i.e. practices that never use the code
func DropIrrelevantPractices(t *Table, valueColumn string) (*Table, error) {
	practices, err := t.Labels(PracticeColumn)
	if err != nil {
		return nil, fmt.Errorf("drop irrelevant practices: %w", err)
	}
	values, err := t.CoerceNumeric(valueColumn)
	if err != nil {
		return nil, fmt.Errorf("drop irrelevant practices: %w", err)
	}

	type acc struct {
		sum   float64
		count int
	}
	means := make(map[string]*acc)
	for i, p := range practices {
		a, ok := means[p]
		if !ok {
			a = &acc{}
			means[p] = a
		}
		if !IsNull(values[i]) {
			a.sum += values[i]
			a.count++
		}
	}
	return t.Filter(func(row int) bool {
		a := means[practices[row]]
		return a.count == 0 || a.sum/float64(a.count) != 0
	}), nil
}

// CoverageCount is the number of practices seen in a window and their share
// of all practices, as a percentage rounded to 2 decimals
type CoverageCount struct {
	Number  int     `json:"number"`
	Percent float64 `json:"percent"`
}

// Coverage reports how many practices contribute data
type Coverage struct {
	AllPractices int           `json:"all_practices"`
	Total        CoverageCount `json:"total"`
	Year         CoverageCount `json:"year"`
	Months3      CoverageCount `json:"months_3"`
}

// PracticeCoverage counts the distinct practices in t over the whole table,
// the year before endDate and the 3 months before endDate. Windows exclude
// their start date. allPractices lists every practice that could report.
func PracticeCoverage(t *Table, allPractices []string, endDate time.Time) (*Coverage, error) {
	practices, err := t.Labels(PracticeColumn)
	if err != nil {
		return nil, fmt.Errorf("practice coverage: %w", err)
	}
	dates, err := t.Dates(DateColumn)
	if err != nil {
		return nil, fmt.Errorf("practice coverage: %w", err)
	}

	universe := make(map[string]struct{})
	for _, p := range allPractices {
		if p = strings.TrimSpace(p); p != "" {
			universe[NormalizeCode(p)] = struct{}{}
		}
	}
	if len(universe) == 0 {
		return nil, &DataValidationError{Column: PracticeColumn, Message: "practice list is empty"}
	}

	yearBefore := endDate.AddDate(-1, 0, 0)
	months3Before := endDate.AddDate(0, -3, 0)
	total := make(map[string]struct{})
	year := make(map[string]struct{})
	months3 := make(map[string]struct{})
	for i, p := range practices {
		if p == "" {
			continue
		}
		p = NormalizeCode(p)
		total[p] = struct{}{}
		if dates[i].After(yearBefore) {
			year[p] = struct{}{}
		}
		if dates[i].After(months3Before) {
			months3[p] = struct{}{}
		}
	}

	count := func(set map[string]struct{}) CoverageCount {
		pct := float64(len(set)) / float64(len(universe)) * 100
		return CoverageCount{Number: len(set), Percent: math.Round(pct*100) / 100}
	}
	return &Coverage{
		AllPractices: len(universe),
		Total:        count(total),
		Year:         count(year),
		Months3:      count(months3),
	}, nil
}
