package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sroanalysis/internal/measures"
)

// Sink is an output destination for result tables. Writing a table under a
// name that was written before replaces it.
type Sink interface {
	Name() string
	WriteTable(ctx context.Context, name string, t *measures.Table) error
	Close() error
}

// Multi fans every write out to a set of sinks
type Multi struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMulti combines sinks; writes go to them in the given order
func NewMulti(logger *slog.Logger, sinks ...Sink) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sinks: sinks, logger: logger.With(slog.String("component", "storage"))}
}

// Name lists the names of the combined sinks
func (m *Multi) Name() string {
	return strings.Join(m.Names(), ",")
}

// Names returns the name of every sink
func (m *Multi) Names() []string {
	out := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		out[i] = s.Name()
	}
	return out
}

// WriteTable writes t to every sink. A failing sink does not stop the
// others; all failures are returned together.
func (m *Multi) WriteTable(ctx context.Context, name string, t *measures.Table) error {
	var errs []error
	for _, s := range m.sinks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.WriteTable(ctx, name, t); err != nil {
			m.logger.ErrorContext(ctx, "Sink write failed",
				slog.String("sink", s.Name()),
				slog.String("table", name),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
			continue
		}
		m.logger.DebugContext(ctx, "Table stored",
			slog.String("sink", s.Name()),
			slog.String("table", name),
			slog.Int("rows", t.Len()))
	}
	return errors.Join(errs...)
}

// Close closes every sink
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
