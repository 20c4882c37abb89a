package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"sroanalysis/internal/config"
	"sroanalysis/internal/measures"
)

const maxSheetName = 31

// WorkbookSink collects tables as sheets of one Excel workbook. The file is
// saved after every write so a failed run still leaves the finished tables.
type WorkbookSink struct {
	mu     sync.Mutex
	path   string
	file   *excelize.File
	sheets map[string]string
	logger *slog.Logger
}

// NewWorkbookSink creates a workbook sink saving to path
func NewWorkbookSink(path string, logger *slog.Logger) (*WorkbookSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create workbook directory: %w", err)
	}
	return &WorkbookSink{
		path:   path,
		file:   excelize.NewFile(),
		sheets: make(map[string]string),
		logger: logger,
	}, nil
}

// Name returns the sink name used in configuration
func (s *WorkbookSink) Name() string { return config.SinkExcel }

// Path returns the workbook file path
func (s *WorkbookSink) Path() string { return s.path }

// WriteTable writes the table to its own sheet and saves the workbook
func (s *WorkbookSink) WriteTable(ctx context.Context, name string, t *measures.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, err := s.sheetFor(name)
	if err != nil {
		return err
	}

	headers := t.Columns()
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := s.file.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", name, err)
	}

	for r := 0; r < t.Len(); r++ {
		row := make([]interface{}, len(headers))
		for c, h := range headers {
			row[c] = t.Value(h, r)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := s.file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", r, name, err)
		}
	}

	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	s.logger.Debug("Workbook sheet written",
		slog.String("sheet", sheet),
		slog.Int("rows", t.Len()))
	return nil
}

// sheetFor returns an empty sheet for the table, replacing an earlier one
func (s *WorkbookSink) sheetFor(name string) (string, error) {
	sheet, ok := s.sheets[name]
	if !ok {
		sheet = s.uniqueSheetName(sheetName(name))
		s.sheets[name] = sheet
	}

	if idx, err := s.file.GetSheetIndex(sheet); err == nil && idx >= 0 {
		// a workbook never loses its last sheet, so swap in a fresh one
		const tmp = "~replace"
		if _, err := s.file.NewSheet(tmp); err != nil {
			return "", fmt.Errorf("failed to replace sheet %s: %w", sheet, err)
		}
		if err := s.file.DeleteSheet(sheet); err != nil {
			return "", fmt.Errorf("failed to replace sheet %s: %w", sheet, err)
		}
		if err := s.file.SetSheetName(tmp, sheet); err != nil {
			return "", fmt.Errorf("failed to replace sheet %s: %w", sheet, err)
		}
	} else if _, err := s.file.NewSheet(sheet); err != nil {
		return "", fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	if _, isTable := s.sheetOwner("Sheet1"); !isTable {
		if i, err := s.file.GetSheetIndex("Sheet1"); err == nil && i >= 0 {
			if err := s.file.DeleteSheet("Sheet1"); err != nil {
				return "", err
			}
		}
	}
	if idx, err := s.file.GetSheetIndex(sheet); err == nil && idx >= 0 {
		s.file.SetActiveSheet(idx)
	}
	return sheet, nil
}

func (s *WorkbookSink) sheetOwner(sheet string) (string, bool) {
	for table, sh := range s.sheets {
		if sh == sheet {
			return table, true
		}
	}
	return "", false
}

func (s *WorkbookSink) uniqueSheetName(base string) string {
	candidate := base
	for i := 2; ; i++ {
		if _, taken := s.sheetOwner(candidate); !taken {
			return candidate
		}
		suffix := fmt.Sprintf("_%d", i)
		trimmed := base
		if len(trimmed)+len(suffix) > maxSheetName {
			trimmed = trimmed[:maxSheetName-len(suffix)]
		}
		candidate = trimmed + suffix
	}
}

// sheetName makes a table name valid as an Excel sheet name
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, "'")
	if name == "" {
		name = "table"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

// Close releases the workbook; it was saved after the last write
func (s *WorkbookSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
