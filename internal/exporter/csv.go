package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"sroanalysis/internal/measures"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes result tables into a directory
type CSVWriter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVWriter creates a writer rooted at dir
func NewCSVWriter(dir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{dir: dir, logger: logger}
}

// Dir returns the output directory
func (w *CSVWriter) Dir() string {
	return w.dir
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes records to a file, relative paths being resolved against
// the output directory
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	w.logger.Debug("Writing CSV file",
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	headers := options.Headers
	if options.Append {
		headers = nil
	}
	if err := writeRecords(file, headers, options.Records); err != nil {
		return err
	}
	return file.Close()
}

// WriteTable writes t to <dir>/<name>.csv and returns the file path
func (w *CSVWriter) WriteTable(name string, t *measures.Table) (string, error) {
	headers, records := measures.Records(t)
	path := w.resolvePath(name + ".csv")
	if err := w.WriteCSV(path, WriteOptions{Headers: headers, Records: records}); err != nil {
		return "", fmt.Errorf("failed to write table %s: %w", name, err)
	}

	w.logger.Info("Table written",
		slog.String("table", name),
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return path, nil
}

// EncodeTable writes t as CSV to out. Nulls become empty cells.
func EncodeTable(out io.Writer, t *measures.Table) error {
	headers, records := measures.Records(t)
	return writeRecords(out, headers, records)
}

// TableBytes renders t as CSV
func TableBytes(t *measures.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTable(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRecords(out io.Writer, headers []string, records [][]string) error {
	writer := csv.NewWriter(out)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(w.dir, filePath)
}
