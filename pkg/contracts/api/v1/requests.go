// Package api contains the request and response contracts of the SRO
// measures HTTP API. Version v1 represents the current stable API version.
package api

import (
	"sroanalysis/internal/exporter"
	"sroanalysis/internal/measures"
)

// Transform API Requests

// RateRequest asks for a rate column computed over a table
type RateRequest struct {
	Table       *exporter.TableDocument `json:"table" validate:"required"`
	Numerator   string                  `json:"numerator" validate:"required"`
	Denominator string                  `json:"denominator" validate:"required"`
	RatePer     float64                 `json:"rate_per,omitempty" validate:"omitempty,gt=0"`
}

// DeprivationRequest asks for an imd table grouped into quintiles
type DeprivationRequest struct {
	Table         *exporter.TableDocument `json:"table" validate:"required"`
	DiseaseColumn string                  `json:"disease_column" validate:"required"`
	RateColumn    string                  `json:"rate_column" validate:"required"`
}

// RedactRequest asks for small-number suppression of a table
type RedactRequest struct {
	Table       *exporter.TableDocument `json:"table" validate:"required"`
	Numerator   string                  `json:"numerator" validate:"required"`
	Denominator string                  `json:"denominator" validate:"required"`
	RateColumn  string                  `json:"rate_column" validate:"required"`
	Threshold   *int                    `json:"threshold,omitempty" validate:"omitempty,min=0"`
	Scope       string                  `json:"scope,omitempty" validate:"omitempty,oneof=period table"`
}

// TopCodesRequest asks for the most used codes of an event table. The
// configured codelist is used when Codelist is omitted.
type TopCodesRequest struct {
	Events     *exporter.TableDocument `json:"events" validate:"required"`
	Codelist   *exporter.TableDocument `json:"codelist,omitempty"`
	CodeColumn string                  `json:"code_column,omitempty"`
	TermColumn string                  `json:"term_column,omitempty"`
	N          int                     `json:"n,omitempty" validate:"omitempty,min=1,max=100"`
}

// Pipeline API Requests

// PipelineRunRequest runs the configured pipeline, optionally restricted to
// some measures
type PipelineRunRequest struct {
	Measures []string `json:"measures,omitempty" validate:"omitempty,dive,required,measureid"`
}

// Responses

// TableResponse wraps a result table
type TableResponse struct {
	Table *exporter.TableDocument `json:"table"`
}

// RedactResponse is a redacted table plus what was suppressed
type RedactResponse struct {
	Table   *exporter.TableDocument    `json:"table"`
	Summary *measures.RedactionSummary `json:"summary"`
}

// TopCodesResponse is the top code table plus the codes missing from the
// codelist
type TopCodesResponse struct {
	Table        *exporter.TableDocument `json:"table"`
	MissingCodes []string                `json:"missing_codes"`
}

// MeasureInfo describes one configured measure
type MeasureInfo struct {
	measures.Measure
	InputFile string `json:"input_file"`
	Available bool   `json:"available"`
}

// MeasureListResponse lists the configured measures
type MeasureListResponse struct {
	Measures []MeasureInfo `json:"measures"`
}
