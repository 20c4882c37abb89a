package pipeline

import (
	"time"

	"sroanalysis/internal/config"
	"sroanalysis/internal/measures"
	"sroanalysis/internal/storage"
)

// Options tunes the transforms applied by the stages
type Options struct {
	RatePer   float64
	Threshold int
	Scope     measures.RedactionScope
	TopN      int
}

// OptionsFromConfig reads the stage options from the analysis settings
func OptionsFromConfig(cfg config.AnalysisConfig) Options {
	return Options{
		RatePer:   cfg.RatePer,
		Threshold: cfg.RedactionThreshold,
		Scope:     cfg.Scope(),
		TopN:      cfg.TopN,
	}
}

// Inputs are shared by every job of a run and must not be modified
type Inputs struct {
	Paths     *config.Paths
	Sink      storage.Sink
	Codelist  *measures.Codelist
	Practices []string
	EndDate   time.Time
}

// Output is a named result table
type Output struct {
	Name  string
	Table *measures.Table
}

// Job carries one measure through the stages
type Job struct {
	Measure measures.Measure
	Inputs  *Inputs
	Options Options

	// Table is the measure table as transformed so far
	Table *measures.Table

	Redaction    *measures.RedactionSummary
	MissingCodes []string
	Coverage     *measures.Coverage
	RowsWritten  int

	outputs []Output
	stages  []*StageState
}

// NewJob creates a job with a pending state for every stage
func NewJob(m measures.Measure, inputs *Inputs, opts Options, stages []Stage) *Job {
	job := &Job{
		Measure: m,
		Inputs:  inputs,
		Options: opts,
		stages:  make([]*StageState, len(stages)),
	}
	for i, s := range stages {
		job.stages[i] = NewStageState(s.ID(), s.Name())
	}
	return job
}

// SetOutput adds or replaces a named output, keeping first-set order
func (j *Job) SetOutput(name string, t *measures.Table) {
	for i := range j.outputs {
		if j.outputs[i].Name == name {
			j.outputs[i].Table = t
			return
		}
	}
	j.outputs = append(j.outputs, Output{Name: name, Table: t})
}

// Output returns a named output
func (j *Job) Output(name string) (*measures.Table, bool) {
	for _, o := range j.outputs {
		if o.Name == name {
			return o.Table, true
		}
	}
	return nil, false
}

// Outputs returns the outputs in the order they were first set
func (j *Job) Outputs() []Output {
	out := make([]Output, len(j.outputs))
	copy(out, j.outputs)
	return out
}

// RateTableName is the output name of the measure's rate table
func (j *Job) RateTableName() string {
	group := j.Measure.Group()
	if group == "" {
		group = j.Measure.ID
	}
	return config.RateTablePrefix + group
}

// StageStates returns the per-stage states in pipeline order
func (j *Job) StageStates() []*StageState {
	return j.stages
}
