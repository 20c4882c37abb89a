package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"sroanalysis/internal/config"
	"sroanalysis/internal/measures"
)

// SQLiteSink stores every table as a SQL table of the same name, dropped and
// recreated on each write. Numeric columns are REAL, the rest TEXT, and
// nulls are SQL NULL.
type SQLiteSink struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database at path. ":memory:" keeps it
// in memory.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		path = "measures.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection so an in-memory database is shared by all writes
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Name returns the sink name used in configuration
func (s *SQLiteSink) Name() string { return config.SinkSQLite }

// DB exposes the database handle for reads
func (s *SQLiteSink) DB() *sql.DB { return s.db }

// WriteTable replaces the SQL table of the same name in one transaction
func (s *SQLiteSink) WriteTable(ctx context.Context, name string, t *measures.Table) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	columns := t.Columns()
	if len(columns) == 0 {
		return fmt.Errorf("table %s has no columns", name)
	}

	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
		kind, _ := t.Kind(c)
		sqlType := "TEXT"
		if kind == measures.KindNumeric {
			sqlType = "REAL"
		}
		defs[i] = quoted[i] + " " + sqlType
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	table := quoteIdent(name)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", name, err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(columns))
	for r := 0; r < t.Len(); r++ {
		for c, col := range columns {
			args[c] = t.Value(col, r)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", r, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
