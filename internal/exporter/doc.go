// Package exporter renders measure tables for output.
//
// CSVWriter writes tables into the report directory, one file per table,
// with nulls as empty cells:
//
//	writer := exporter.NewCSVWriter(paths.OutputDir, logger)
//	path, err := writer.WriteTable("rate_table_sex", table)
//
// EncodeTable and TableBytes produce the same CSV bytes for sinks that
// upload instead of writing files. TableDocument is the JSON form used by
// the HTTP API, {"columns": [...], "rows": [[...]]}, and converts back into
// a table with the typing rules of measures.ReadCSV.
package exporter
