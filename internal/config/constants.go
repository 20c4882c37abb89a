package config

// Application constants
const (
	AppName     = "SRO Measures"
	AppVersion  = "1.0.0"
	ServiceName = "sro-measures"
)

// Output sink names accepted in storage.sinks
const (
	SinkCSV    = "csv"
	SinkExcel  = "excel"
	SinkS3     = "s3"
	SinkSQLite = "sqlite"
)

// File name conventions of the cohort extraction output
const (
	MeasureFilePrefix    = "measure_"
	MeasureFileSuffix    = ".csv"
	PracticeCountPattern = "input_practice_count*.csv"
	RateTablePrefix      = "rate_table_"
	TopCodeTableName     = "top_5_code_table"
	TotalRateTableName   = "rate_table_total"
)
