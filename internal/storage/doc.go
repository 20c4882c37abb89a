// Package storage writes result tables to the configured output sinks.
//
// Four sinks implement Sink:
//
//	csv     one <name>.csv file per table in the output directory
//	excel   one sheet per table in a single workbook (excelize)
//	s3      CSV objects under <prefix>/ in a bucket (aws-sdk-go-v2)
//	sqlite  one SQL table per output table (modernc.org/sqlite)
//
// Open builds the sinks listed in config.StorageConfig and combines them in
// a Multi, which fans every write out to all of them:
//
//	sinks, err := storage.Open(ctx, cfg.Storage, paths, logger)
//	if err != nil {
//		return err
//	}
//	defer sinks.Close()
//	err = sinks.WriteTable(ctx, "rate_table_sex", table)
//
// Every sink replaces a table written earlier under the same name and
// serialises its own writes, so a Multi can be shared by concurrent measures.
package storage
