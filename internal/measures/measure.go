package measures

import (
	"fmt"
	"strings"
)

// Measure describes one measure table produced by the cohort extraction
type Measure struct {
	ID                     string   `json:"id" yaml:"id"`
	Numerator              string   `json:"numerator" yaml:"numerator"`
	Denominator            string   `json:"denominator" yaml:"denominator"`
	GroupBy                []string `json:"group_by" yaml:"group_by"`
	SmallNumberSuppression bool     `json:"small_number_suppression" yaml:"small_number_suppression"`
}

// Default numerator and denominator of every measure
const (
	DefaultNumerator   = EventColumn
	DefaultDenominator = PopulationColumn
)

// Measure identifiers with special post-processing
const (
	EventCodeMeasure = "event_code_rate"
	PracticeMeasure  = "practice_rate"
)

// binaryLabels holds the labels of the 1/0 demographic flags
var binaryLabels = map[string][2]string{
	"care_home_status":    {"Record of positive care home status", "No record of positive care home status"},
	"learning_disability": {"Record of learning disability", "No record of learning disability"},
}

// BinaryLabels returns the positive and negative labels for a flag column
func BinaryLabels(column string) (positive, negative string, ok bool) {
	l, ok := binaryLabels[column]
	return l[0], l[1], ok
}

// Group returns the first grouping column, or "" when the measure is ungrouped
func (m Measure) Group() string {
	if len(m.GroupBy) == 0 {
		return ""
	}
	return m.GroupBy[0]
}

// Validate checks the measure definition
func (m Measure) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return &DataValidationError{Message: "measure id is required"}
	}
	if m.Numerator == "" || m.Denominator == "" {
		return &DataValidationError{Message: fmt.Sprintf("measure %s needs a numerator and a denominator", m.ID)}
	}
	return nil
}

// DefaultMeasures returns the event code and practice measures followed by
// one measure per demographic. Every demographic is suppressed; the imd
// measure is redacted after it has been aggregated into quintiles.
func DefaultMeasures(demographics []string) []Measure {
	out := []Measure{
		{
			ID:                     EventCodeMeasure,
			Numerator:              DefaultNumerator,
			Denominator:            DefaultDenominator,
			GroupBy:                []string{EventCodeColumn},
			SmallNumberSuppression: true,
		},
		{
			ID:          PracticeMeasure,
			Numerator:   DefaultNumerator,
			Denominator: DefaultDenominator,
			GroupBy:     []string{PracticeColumn},
		},
	}
	for _, d := range demographics {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		out = append(out, Measure{
			ID:                     d + "_rate",
			Numerator:              DefaultNumerator,
			Denominator:            DefaultDenominator,
			GroupBy:                []string{d},
			SmallNumberSuppression: true,
		})
	}
	return out
}
