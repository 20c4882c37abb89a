package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sroanalysis/internal/measures"
)

func TestStageStateTransitions(t *testing.T) {
	state := NewStageState("rate", "Calculate rate")
	assert.Equal(t, StageStatusPending, state.GetStatus())
	assert.Zero(t, state.Duration())

	state.Start()
	assert.Equal(t, StageStatusActive, state.GetStatus())
	require.NotNil(t, state.StartTime)

	state.Complete()
	assert.Equal(t, StageStatusCompleted, state.GetStatus())
	assert.GreaterOrEqual(t, state.Duration().Nanoseconds(), int64(0))

	failed := NewStageState("load", "Load measure")
	failed.Start()
	failed.Fail(errors.New("no such file"))
	report := failed.Report()
	assert.Equal(t, StageStatusFailed, report.Status)
	assert.Equal(t, "no such file", report.Error)

	skipped := NewStageState("redact", "Redact small numbers")
	skipped.Skip("disabled")
	assert.Equal(t, StageReport{ID: "redact", Name: "Redact small numbers", Status: StageStatusSkipped, Message: "disabled"}, skipped.Report())
}

func TestSkip(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Skip("not applicable"))
	assert.True(t, IsSkip(err))
	assert.False(t, IsSkip(errors.New("other")))
	assert.EqualError(t, Skip("x"), "stage skipped: x")
}

func TestJobOutputs(t *testing.T) {
	job := NewJob(measures.Measure{ID: "sex_rate", GroupBy: []string{"sex"}}, &Inputs{}, Options{}, DefaultStages(nil))
	assert.Equal(t, "rate_table_sex", job.RateTableName())
	assert.Len(t, job.StageStates(), 8)
	assert.Equal(t, StageIDLoad, job.StageStates()[0].ID)

	a, b := measures.NewTable(), measures.NewTable()
	job.SetOutput("first", a)
	job.SetOutput("second", a)
	job.SetOutput("first", b)

	outputs := job.Outputs()
	require.Len(t, outputs, 2)
	assert.Equal(t, "first", outputs[0].Name)
	assert.Same(t, b, outputs[0].Table)

	got, ok := job.Output("second")
	assert.True(t, ok)
	assert.Same(t, a, got)
	_, ok = job.Output("missing")
	assert.False(t, ok)

	ungrouped := NewJob(measures.Measure{ID: "population_rate"}, &Inputs{}, Options{}, nil)
	assert.Equal(t, "rate_table_population_rate", ungrouped.RateTableName())
}
