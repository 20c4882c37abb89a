// Package http implements the HTTP request handlers of the measures service.
// Handlers are a thin layer between the transport and the services package:
// they decode and validate requests, call a service and render the result.
//
// # Endpoints
//
//	POST /api/v1/transforms/rate         rate per 1,000 (or rate_per) of a table
//	POST /api/v1/transforms/deprivation  collapse IMD ranks into quintiles
//	POST /api/v1/transforms/redact       small-number suppression
//	POST /api/v1/transforms/top-codes    most common codes with descriptions
//	POST /api/v1/pipeline/run            run the configured measures
//	GET  /api/v1/pipeline/last           report of the latest run
//	GET  /api/v1/measures                configured measures and their inputs
//	GET  /api/health[/ready|/live]       health probes
//	GET  /api/version                    build information
//
// Tables travel as {"columns": [...], "rows": [[...], ...]} documents with
// null for missing values.
//
// # Error Handling
//
// All errors are rendered by errors.ErrorHandler as RFC 7807 problem
// documents:
//
//	{
//	    "type": "/errors/data/validation",
//	    "title": "Unprocessable Entity",
//	    "status": 422,
//	    "detail": "column \"population\" not found",
//	    "instance": "/api/v1/transforms/rate",
//	    "trace_id": "..."
//	}
//
// A second pipeline run while one is in progress gets 409 Conflict. A failed
// run is classified by its cause (422 for invalid tables or redaction that
// cannot converge, 500 otherwise) and carries run_id and report extensions.
package http
