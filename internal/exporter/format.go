package exporter

import (
	"encoding/json"
	"fmt"
	"strconv"

	"sroanalysis/internal/measures"
)

// TableDocument is the JSON form of a table: column names plus row-major
// cells. Null cells are JSON null; numbers stay numbers.
type TableDocument struct {
	Columns []string        `json:"columns" validate:"required,min=1,dive,required"`
	Rows    [][]interface{} `json:"rows" validate:"dive,required"`
}

// ToDocument converts a table into its JSON form
func ToDocument(t *measures.Table) *TableDocument {
	doc := &TableDocument{
		Columns: t.Columns(),
		Rows:    make([][]interface{}, t.Len()),
	}
	for r := range doc.Rows {
		row := make([]interface{}, len(doc.Columns))
		for c, name := range doc.Columns {
			row[c] = t.Value(name, r)
		}
		doc.Rows[r] = row
	}
	return doc
}

// Table converts the document into a table using the CSV typing rules
func (d *TableDocument) Table() (*measures.Table, error) {
	records := make([][]string, len(d.Rows))
	for r, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return nil, &measures.DataValidationError{
				Message: fmt.Sprintf("row %d has %d cells, expected %d", r, len(row), len(d.Columns)),
			}
		}
		rec := make([]string, len(row))
		for c, v := range row {
			s, err := formatCell(v)
			if err != nil {
				return nil, &measures.DataValidationError{Column: d.Columns[c], Message: err.Error(), Value: v}
			}
			rec[c] = s
		}
		records[r] = rec
	}
	return measures.FromRecords(d.Columns, records)
}

// formatCell renders one decoded JSON value as a CSV cell
func formatCell(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return measures.FormatNumber(x), nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	default:
		return "", fmt.Errorf("unsupported cell type %T", v)
	}
}
