// Package config provides centralized configuration management for the measure
// pipeline. It loads configuration from multiple sources, validates it and
// exposes a type-safe API to the rest of the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file (SRO_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern SRO_<SECTION>_<FIELD>:
//
//	SRO_STUDY_START_DATE=2020-12-01
//	SRO_STUDY_DEMOGRAPHICS=sex,age_band,imd
//	SRO_ANALYSIS_REDACTION_THRESHOLD=5
//	SRO_ANALYSIS_REDACTION_SCOPE=period
//	SRO_STORAGE_SINKS=csv,excel
//	SRO_STORAGE_S3_BUCKET=sro-results
//	SRO_SERVER_PORT=8080
//	SRO_LOGGING_LEVEL=debug
//
// # Paths
//
// Relative paths are resolved against a base directory, normally the working
// directory of the run:
//
//	paths, err := cfg.ResolvePaths("")
//	input := paths.MeasurePath("sex_rate") // <input_dir>/measure_sex_rate.csv
//
// # Validation
//
// Validate rejects unknown redaction scopes and sinks, non-positive rate bases,
// study periods that end before they start and an S3 sink without a bucket.
// Errors are AppErrors of type CONFIG carrying the offending field.
package config
