package services

import "errors"

// Service errors
var (
	// Pipeline errors
	ErrPipelineRunning = errors.New("pipeline already running")
	ErrMeasureNotFound = errors.New("measure not found")

	// Input errors
	ErrCodelistUnavailable = errors.New("codelist unavailable")
)
