package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sroanalysis/internal/measures"
	"sroanalysis/internal/shared/testutil"
)

// rateTable is a small rate table with a null rate
func rateTable(t *testing.T) *measures.Table {
	t.Helper()
	table := measures.NewTable()
	require.NoError(t, table.AddDates(measures.DateColumn, []time.Time{
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, table.AddText("sex", []string{"F", "M"}))
	require.NoError(t, table.AddNumeric(measures.EventColumn, []float64{12, measures.Null()}))
	require.NoError(t, table.AddNumeric(measures.RateColumn, []float64{0.12, measures.Null()}))
	return table
}

type recordingSink struct {
	name    string
	err     error
	written []string
	closed  bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) WriteTable(_ context.Context, name string, _ *measures.Table) error {
	if s.err != nil {
		return s.err
	}
	s.written = append(s.written, name)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return s.err
}

func TestMulti(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	good := &recordingSink{name: "good"}
	bad := &recordingSink{name: "bad", err: errors.New("disk full")}
	last := &recordingSink{name: "last"}

	multi := NewMulti(logger, good, bad, last)
	assert.Equal(t, "good,bad,last", multi.Name())
	assert.Equal(t, []string{"good", "bad", "last"}, multi.Names())

	err := multi.WriteTable(context.Background(), "rate_table_sex", rateTable(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad sink: disk full")
	assert.Equal(t, []string{"rate_table_sex"}, good.written)
	assert.Equal(t, []string{"rate_table_sex"}, last.written, "a failing sink does not stop the others")
	assert.True(t, handler.ContainsMessage("Sink write failed"))

	err = multi.Close()
	assert.ErrorContains(t, err, "close bad sink")
	assert.True(t, good.closed)
	assert.True(t, last.closed)
}

func TestMultiCancelled(t *testing.T) {
	sink := &recordingSink{name: "s"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMulti(nil, sink).WriteTable(ctx, "x", rateTable(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.written)
}
