package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"sroanalysis/internal/config"
)

// Open builds the sinks named in cfg.Sinks. Relative workbook and database
// paths are resolved inside the output directory.
func Open(ctx context.Context, cfg config.StorageConfig, paths *config.Paths, logger *slog.Logger) (*Multi, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []Sink
	fail := func(err error) (*Multi, error) {
		_ = NewMulti(logger, sinks...).Close()
		return nil, err
	}

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkCSV:
			sinks = append(sinks, NewCSVSink(paths.OutputDir, logger))
		case config.SinkExcel:
			wb, err := NewWorkbookSink(resolveOutput(paths, cfg.Workbook), logger)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, wb)
		case config.SinkSQLite:
			db, err := NewSQLiteSink(resolveOutput(paths, cfg.SQLitePath))
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, db)
		case config.SinkS3:
			s3Sink, err := NewS3Sink(ctx, cfg.S3, logger)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, s3Sink)
		default:
			return fail(fmt.Errorf("unknown sink %q", name))
		}
	}

	logger.InfoContext(ctx, "Output sinks opened", slog.Any("sinks", cfg.Sinks))
	return NewMulti(logger, sinks...), nil
}

func resolveOutput(paths *config.Paths, name string) string {
	if name == ":memory:" || filepath.IsAbs(name) || paths == nil {
		return name
	}
	return filepath.Join(paths.OutputDir, name)
}
