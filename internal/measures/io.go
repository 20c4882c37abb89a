package measures

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a table with a header row. The date column is parsed as
// dates; any other column whose non-empty cells all parse as numbers becomes
// numeric, the rest stay text. Empty cells are nulls.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv records: %w", err)
	}
	return FromRecords(header, records)
}

// FromRecords builds a table from a header and string records using the
// same typing rules as ReadCSV
func FromRecords(header []string, records [][]string) (*Table, error) {
	cells := make([][]string, len(header))
	names := make([]string, len(header))
	for i := range header {
		names[i] = strings.TrimSpace(header[i])
		cells[i] = make([]string, len(records))
	}
	for r, rec := range records {
		if len(rec) != len(header) {
			return nil, &DataValidationError{
				Message: fmt.Sprintf("row %d has %d fields, header has %d", r+2, len(rec), len(header)),
			}
		}
		for c, v := range rec {
			cells[c][r] = strings.TrimSpace(v)
		}
	}

	t := NewTable()
	for c, name := range names {
		if t.Has(name) {
			return nil, &DataValidationError{Column: name, Message: "duplicate column in header"}
		}
		if err := addParsed(t, name, cells[c]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func addParsed(t *Table, name string, cells []string) error {
	if name == DateColumn {
		dates := make([]time.Time, len(cells))
		for i, s := range cells {
			if s == "" {
				continue
			}
			d, err := ParseDate(s)
			if err != nil {
				return err
			}
			dates[i] = d
		}
		return t.AddDates(name, dates)
	}

	numbers := make([]float64, len(cells))
	numeric := true
	for i, s := range cells {
		if s == "" {
			numbers[i] = Null()
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			numeric = false
			break
		}
		numbers[i] = f
	}
	// codes must keep their spelling even when they look like numbers
	if numeric && name != EventCodeColumn && name != CodeColumn && name != PracticeColumn {
		return t.AddNumeric(name, numbers)
	}
	return t.AddText(name, cells)
}

// LoadCSV reads a table from a file
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return t, nil
}

// Records renders the table as a header row plus string records, nulls as
// empty cells
func Records(t *Table) ([]string, [][]string) {
	headers := t.Columns()
	records := make([][]string, t.Len())
	for r := range records {
		rec := make([]string, len(headers))
		for c, name := range headers {
			rec[c] = t.Cell(name, r)
		}
		records[r] = rec
	}
	return headers, records
}
