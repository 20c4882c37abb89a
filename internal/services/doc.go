// Package services implements the business logic layer between the HTTP
// handlers and the measures and pipeline packages.
//
// # Services
//
//	- MeasureService: the table transforms (rate, deprivation, redaction,
//	  top codes), the measure listing and the pipeline run guard
//	- HealthService: health, readiness, liveness and version information
//
// # Error Handling
//
// Services return the domain errors of the measures package unchanged so
// handlers can map them onto problem documents:
//
//	- measures.DataValidationError for tables that do not fit a transform
//	- measures.RedactionExhaustedError when suppression cannot converge
//	- ErrPipelineRunning when a run is already in progress
//	- ErrMeasureNotFound for a run naming an unknown measure
//
// # Concurrency
//
// Transforms are stateless and run concurrently. Only one pipeline run is
// allowed at a time; RunPipeline is synchronous and the latest report is
// kept for GET requests.
package services
