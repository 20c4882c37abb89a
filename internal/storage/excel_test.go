package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sroanalysis/internal/measures"
)

func TestWorkbookSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report", "measures.xlsx")
	sink, err := NewWorkbookSink(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "excel", sink.Name())

	ctx := context.Background()
	require.NoError(t, sink.WriteTable(ctx, "rate_table_sex", rateTable(t)))
	require.NoError(t, sink.WriteTable(ctx, "rate_table_event_code/rate", rateTable(t)))

	smaller := measures.NewTable()
	require.NoError(t, smaller.AddText("sex", []string{"F"}))
	require.NoError(t, sink.WriteTable(ctx, "rate_table_sex", smaller))
	require.NoError(t, sink.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"rate_table_sex", "rate_table_event_code_rate"}, f.GetSheetList())

	rows, err := f.GetRows("rate_table_sex")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"sex"}, {"F"}}, rows, "rewriting a table replaces its sheet")

	rows, err = f.GetRows("rate_table_event_code_rate")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"date", "sex", "event", "rate"}, rows[0])
	assert.Equal(t, []string{"2021-01-01", "F", "12", "0.12"}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 2)
	assert.Equal(t, []string{"2021-01-01", "M"}, rows[2][:2])
	for _, cell := range rows[2][2:] {
		assert.Empty(t, cell, "nulls are empty cells")
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"rate_table_sex", "rate_table_sex"},
		{"a:b/c\\d?e*f[g]", "a_b_c_d_e_f_g_"},
		{"'quoted'", "quoted"},
		{"", "table"},
		{strings.Repeat("x", 40), strings.Repeat("x", 31)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sheetName(tt.in), tt.in)
	}
}

func TestWorkbookSinkLongNamesStayUnique(t *testing.T) {
	sink, err := NewWorkbookSink(filepath.Join(t.TempDir(), "w.xlsx"), nil)
	require.NoError(t, err)
	defer sink.Close()

	long := strings.Repeat("rate_table_", 4)
	require.NoError(t, sink.WriteTable(context.Background(), long+"a", rateTable(t)))
	require.NoError(t, sink.WriteTable(context.Background(), long+"b", rateTable(t)))

	assert.Len(t, sink.sheets, 2)
	assert.NotEqual(t, sink.sheets[long+"a"], sink.sheets[long+"b"])
	assert.True(t, strings.HasSuffix(sink.sheets[long+"b"], "_2"))
}
