package storage

import (
	"context"
	"log/slog"
	"sync"

	"sroanalysis/internal/config"
	"sroanalysis/internal/exporter"
	"sroanalysis/internal/measures"
)

// CSVSink writes one <name>.csv file per table into a directory
type CSVSink struct {
	mu     sync.Mutex
	writer *exporter.CSVWriter
}

// NewCSVSink creates a CSV sink rooted at dir
func NewCSVSink(dir string, logger *slog.Logger) *CSVSink {
	return &CSVSink{writer: exporter.NewCSVWriter(dir, logger)}
}

// Name returns the sink name used in configuration
func (s *CSVSink) Name() string { return config.SinkCSV }

// WriteTable writes the table to <name>.csv in the sink directory
func (s *CSVSink) WriteTable(ctx context.Context, name string, t *measures.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.writer.WriteTable(name, t)
	return err
}

// Close is a no-op; every table is flushed when written
func (s *CSVSink) Close() error { return nil }
