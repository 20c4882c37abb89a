// Package pipeline runs the configured measures from the extracted
// measure files to the output sinks.
//
// Every measure is carried by a Job through the same ordered stages:
//
//	load -> prepare -> rate -> practice -> deprivation -> redact -> top_codes -> write
//
// A stage that does not apply to a measure returns Skip and is reported as
// skipped. The practice measure also yields rate_table_total and practice
// coverage; the event code measure yields top_5_code_table, built from the
// redacted counts.
//
// Runner.Run processes measures concurrently over disjoint tables with a
// bounded errgroup. The first failing measure cancels the rest at their
// next stage boundary. Each run gets a UUID run ID, one span per run,
// measure and stage, and is recorded on the pipeline instruments.
package pipeline
