package measures

import (
	"fmt"
	"time"
)

// DataValidationError reports a missing column, a column of the wrong kind or
// a value that cannot be coerced to the kind a transform needs.
type DataValidationError struct {
	Column  string      `json:"column"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *DataValidationError) Error() string {
	if e.Column == "" {
		return e.Message
	}
	if e.Value != nil {
		return fmt.Sprintf("column %q: %s (value %v)", e.Column, e.Message, e.Value)
	}
	return fmt.Sprintf("column %q: %s", e.Column, e.Message)
}

// RedactionExhaustedError is returned when the suppression cascade runs out of
// visible values before the suppressed total exceeds the threshold.
type RedactionExhaustedError struct {
	Column     string    `json:"column"`
	Period     time.Time `json:"period"`
	Suppressed float64   `json:"suppressed"`
	Threshold  int       `json:"threshold"`
}

// Error implements the error interface
func (e *RedactionExhaustedError) Error() string {
	period := "whole table"
	if !e.Period.IsZero() {
		period = e.Period.Format(DateLayout)
	}
	return fmt.Sprintf("redaction of %q exhausted in %s: suppressed %.0f <= threshold %d with no values left",
		e.Column, period, e.Suppressed, e.Threshold)
}

// CodeNotFoundError marks a code that has no entry in the codelist. It is a
// soft error: it is collected on the summary, never returned from TopCodes.
type CodeNotFoundError struct {
	Code string `json:"code"`
}

// Error implements the error interface
func (e *CodeNotFoundError) Error() string {
	return fmt.Sprintf("code %s not found in codelist", e.Code)
}

func missingColumn(name string) error {
	return &DataValidationError{Column: name, Message: "column not found"}
}

func wrongKind(name string, want ColumnKind, got ColumnKind) error {
	return &DataValidationError{
		Column:  name,
		Message: fmt.Sprintf("expected %s column, got %s", want, got),
	}
}
