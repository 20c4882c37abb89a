package measures

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Well-known column names used across the measure tables
const (
	DateColumn       = "date"
	RateColumn       = "rate"
	ValueColumn      = "value"
	PopulationColumn = "population"
	IMDColumn        = "imd"
	PracticeColumn   = "practice"
	EventCodeColumn  = "event_code"
	EventColumn      = "event"
	EthnicityColumn  = "ethnicity"
)

// DateLayout is the layout of the period key in measure files
const DateLayout = "2006-01-02"

// ColumnKind identifies how a column stores its values
type ColumnKind int

const (
	// KindNumeric stores float64 values, NaN is null
	KindNumeric ColumnKind = iota
	// KindText stores strings, "" is null
	KindText
	// KindCategory stores codes into an ordered list of levels, -1 is null
	KindCategory
	// KindDate stores time.Time values, the zero time is null
	KindDate
)

// String returns the string representation of the kind
func (k ColumnKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindCategory:
		return "category"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

type column struct {
	kind   ColumnKind
	floats []float64
	texts  []string
	dates  []time.Time
	codes  []int
	levels []string
}

func (c *column) len() int {
	switch c.kind {
	case KindNumeric:
		return len(c.floats)
	case KindText:
		return len(c.texts)
	case KindCategory:
		return len(c.codes)
	default:
		return len(c.dates)
	}
}

func (c *column) take(rows []int) *column {
	out := &column{kind: c.kind, levels: c.levels}
	switch c.kind {
	case KindNumeric:
		out.floats = make([]float64, len(rows))
		for i, r := range rows {
			out.floats[i] = c.floats[r]
		}
	case KindText:
		out.texts = make([]string, len(rows))
		for i, r := range rows {
			out.texts[i] = c.texts[r]
		}
	case KindCategory:
		out.codes = make([]int, len(rows))
		for i, r := range rows {
			out.codes[i] = c.codes[r]
		}
	case KindDate:
		out.dates = make([]time.Time, len(rows))
		for i, r := range rows {
			out.dates[i] = c.dates[r]
		}
	}
	return out
}

// Table is a small column-ordered frame holding one measure table.
// Transforms never mutate their input table; they return a new one.
type Table struct {
	names []string
	cols  map[string]*column
	rows  int
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{cols: make(map[string]*column)}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return t.rows
}

// Columns returns the column names in order
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether the table has the named column
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Kind returns the kind of the named column
func (t *Table) Kind(name string) (ColumnKind, bool) {
	c, ok := t.cols[name]
	if !ok {
		return 0, false
	}
	return c.kind, true
}

func (t *Table) set(name string, c *column) error {
	if name == "" {
		return &DataValidationError{Message: "column name must not be empty"}
	}
	n := c.len()
	if len(t.names) > 0 && n != t.rows {
		// replacing the only column may change the length
		if !(len(t.names) == 1 && t.names[0] == name) {
			return &DataValidationError{
				Column:  name,
				Message: fmt.Sprintf("length %d does not match table length %d", n, t.rows),
			}
		}
	}
	if _, ok := t.cols[name]; !ok {
		t.names = append(t.names, name)
	}
	t.cols[name] = c
	t.rows = n
	return nil
}

// AddNumeric adds or replaces a numeric column, keeping its position when replaced
func (t *Table) AddNumeric(name string, values []float64) error {
	v := make([]float64, len(values))
	copy(v, values)
	return t.set(name, &column{kind: KindNumeric, floats: v})
}

// AddText adds or replaces a text column
func (t *Table) AddText(name string, values []string) error {
	v := make([]string, len(values))
	copy(v, values)
	return t.set(name, &column{kind: KindText, texts: v})
}

// AddDates adds or replaces a date column
func (t *Table) AddDates(name string, values []time.Time) error {
	v := make([]time.Time, len(values))
	copy(v, values)
	return t.set(name, &column{kind: KindDate, dates: v})
}

// AddCategory adds or replaces an ordered categorical column
func (t *Table) AddCategory(name string, levels []string, codes []int) error {
	for _, c := range codes {
		if c < -1 || c >= len(levels) {
			return &DataValidationError{Column: name, Message: "category code out of range", Value: c}
		}
	}
	l := make([]string, len(levels))
	copy(l, levels)
	v := make([]int, len(codes))
	copy(v, codes)
	return t.set(name, &column{kind: KindCategory, levels: l, codes: v})
}

// Numeric returns a copy of a numeric column
func (t *Table) Numeric(name string) ([]float64, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, missingColumn(name)
	}
	if c.kind != KindNumeric {
		return nil, wrongKind(name, KindNumeric, c.kind)
	}
	out := make([]float64, len(c.floats))
	copy(out, c.floats)
	return out, nil
}

// Text returns a copy of a text column
func (t *Table) Text(name string) ([]string, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, missingColumn(name)
	}
	if c.kind != KindText {
		return nil, wrongKind(name, KindText, c.kind)
	}
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out, nil
}

// Dates returns a copy of a date column
func (t *Table) Dates(name string) ([]time.Time, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, missingColumn(name)
	}
	if c.kind != KindDate {
		return nil, wrongKind(name, KindDate, c.kind)
	}
	out := make([]time.Time, len(c.dates))
	copy(out, c.dates)
	return out, nil
}

// Category returns the levels and codes of a categorical column
func (t *Table) Category(name string) ([]string, []int, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, nil, missingColumn(name)
	}
	if c.kind != KindCategory {
		return nil, nil, wrongKind(name, KindCategory, c.kind)
	}
	levels := make([]string, len(c.levels))
	copy(levels, c.levels)
	codes := make([]int, len(c.codes))
	copy(codes, c.codes)
	return levels, codes, nil
}

// CoerceNumeric returns the named column as numbers. Text columns are parsed;
// empty cells become NaN and anything else that does not parse is an error.
func (t *Table) CoerceNumeric(name string) ([]float64, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, missingColumn(name)
	}
	switch c.kind {
	case KindNumeric:
		return t.Numeric(name)
	case KindText:
		out := make([]float64, len(c.texts))
		for i, s := range c.texts {
			s = strings.TrimSpace(s)
			if s == "" {
				out[i] = math.NaN()
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &DataValidationError{Column: name, Message: "value is not numeric", Value: s}
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, wrongKind(name, KindNumeric, c.kind)
	}
}

// Labels returns the named column rendered as strings, whatever its kind.
// Nulls render as "".
func (t *Table) Labels(name string) ([]string, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, missingColumn(name)
	}
	out := make([]string, c.len())
	for i := range out {
		out[i] = c.label(i)
	}
	return out, nil
}

// Cell returns the value of one cell rendered as a string
func (t *Table) Cell(name string, row int) string {
	c, ok := t.cols[name]
	if !ok || row < 0 || row >= t.rows {
		return ""
	}
	return c.label(row)
}

func (c *column) label(i int) string {
	switch c.kind {
	case KindNumeric:
		return FormatNumber(c.floats[i])
	case KindText:
		return c.texts[i]
	case KindCategory:
		if c.codes[i] < 0 {
			return ""
		}
		return c.levels[c.codes[i]]
	default:
		if c.dates[i].IsZero() {
			return ""
		}
		return c.dates[i].Format(DateLayout)
	}
}

// Value returns one cell as a JSON-friendly value: float64 or nil for
// numeric columns, string or nil for the others.
func (t *Table) Value(name string, row int) interface{} {
	c, ok := t.cols[name]
	if !ok || row < 0 || row >= t.rows {
		return nil
	}
	if c.kind == KindNumeric {
		if IsNull(c.floats[row]) {
			return nil
		}
		return c.floats[row]
	}
	s := c.label(row)
	if s == "" {
		return nil
	}
	return s
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	rows := make([]int, t.rows)
	for i := range rows {
		rows[i] = i
	}
	return t.Take(rows)
}

// Take returns a new table holding the given rows in the given order
func (t *Table) Take(rows []int) *Table {
	out := NewTable()
	out.names = append(out.names, t.names...)
	for _, name := range t.names {
		out.cols[name] = t.cols[name].take(rows)
	}
	out.rows = len(rows)
	return out
}

// Filter returns the rows for which keep returns true
func (t *Table) Filter(keep func(row int) bool) *Table {
	var rows []int
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return t.Take(rows)
}

// Select returns a new table with only the named columns, in the given order
func (t *Table) Select(names ...string) (*Table, error) {
	out := NewTable()
	for _, name := range names {
		c, ok := t.cols[name]
		if !ok {
			return nil, missingColumn(name)
		}
		out.names = append(out.names, name)
		out.cols[name] = c.take(identity(t.rows))
	}
	out.rows = t.rows
	return out, nil
}

// Drop returns a copy of the table without the named columns. Names that are
// not present are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := t.Clone()
	kept := out.names[:0]
	for _, n := range out.names {
		if skip[n] {
			delete(out.cols, n)
			continue
		}
		kept = append(kept, n)
	}
	out.names = kept
	if len(kept) == 0 {
		out.rows = 0
	}
	return out
}

// Periods groups row indices by the date column in order of first appearance
func (t *Table) Periods() ([]time.Time, [][]int, error) {
	dates, err := t.Dates(DateColumn)
	if err != nil {
		return nil, nil, err
	}
	index := make(map[time.Time]int)
	var periods []time.Time
	var rows [][]int
	for i, d := range dates {
		p, ok := index[d]
		if !ok {
			p = len(periods)
			index[d] = p
			periods = append(periods, d)
			rows = append(rows, nil)
		}
		rows[p] = append(rows[p], i)
	}
	return periods, rows, nil
}

// Concat stacks tables that share the same columns and kinds
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return NewTable(), nil
	}
	first := tables[0]
	out := NewTable()
	for _, name := range first.names {
		fc := first.cols[name]
		merged := &column{kind: fc.kind, levels: fc.levels}
		for _, t := range tables {
			c, ok := t.cols[name]
			if !ok {
				return nil, missingColumn(name)
			}
			if c.kind != fc.kind {
				return nil, wrongKind(name, fc.kind, c.kind)
			}
			switch c.kind {
			case KindNumeric:
				merged.floats = append(merged.floats, c.floats...)
			case KindText:
				merged.texts = append(merged.texts, c.texts...)
			case KindCategory:
				if strings.Join(c.levels, "\x00") != strings.Join(fc.levels, "\x00") {
					return nil, &DataValidationError{Column: name, Message: "category levels differ between tables"}
				}
				merged.codes = append(merged.codes, c.codes...)
			case KindDate:
				merged.dates = append(merged.dates, c.dates...)
			}
		}
		out.names = append(out.names, name)
		out.cols[name] = merged
		out.rows = merged.len()
	}
	return out, nil
}

// IsNull reports whether a numeric cell is null
func IsNull(v float64) bool {
	return math.IsNaN(v)
}

// Null returns the numeric null sentinel
func Null() float64 {
	return math.NaN()
}

// FormatNumber renders a number without a trailing ".0" for whole values; null is ""
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	if math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseDate parses a period key. Month-start ISO dates are expected but
// timestamps written by other tools are accepted too.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, &DataValidationError{Column: DateColumn, Message: "value is not a date", Value: s}
}

func identity(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
