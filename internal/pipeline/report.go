package pipeline

import (
	"context"
	"errors"
	"time"

	"sroanalysis/internal/measures"
)

// RunStatus is the overall status of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Report summarises one pipeline run
type Report struct {
	RunID     string          `json:"run_id"`
	Status    RunStatus       `json:"status"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  string          `json:"duration"`
	Measures  []MeasureReport `json:"measures"`
	Error     string          `json:"error,omitempty"`
}

// MeasureReport summarises one measure of a run
type MeasureReport struct {
	ID           string                     `json:"id"`
	Group        string                     `json:"group,omitempty"`
	Status       StageStatus                `json:"status"`
	Rows         int                        `json:"rows"`
	RowsWritten  int                        `json:"rows_written"`
	Outputs      []OutputReport             `json:"outputs,omitempty"`
	Redaction    *measures.RedactionSummary `json:"redaction,omitempty"`
	MissingCodes []string                   `json:"missing_codes,omitempty"`
	Coverage     *measures.Coverage         `json:"coverage,omitempty"`
	Stages       []StageReport              `json:"stages"`
	Error        string                     `json:"error,omitempty"`
}

// OutputReport names one table produced by a measure
type OutputReport struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// StageReport is the final state of one stage
type StageReport struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	DurationMS int64       `json:"duration_ms"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// NewReport starts a report for a run
func NewReport(runID string) *Report {
	return &Report{
		RunID:     runID,
		Status:    RunStatusRunning,
		StartTime: time.Now(),
	}
}

func (r *Report) finish(ctx context.Context, err error) {
	r.EndTime = time.Now()
	r.Duration = Elapsed(r.EndTime.Sub(r.StartTime))
	switch {
	case err == nil:
		r.Status = RunStatusCompleted
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		r.Status = RunStatusCancelled
		r.Error = err.Error()
	default:
		r.Status = RunStatusFailed
		r.Error = err.Error()
	}
}

// Failed counts the measures that did not complete
func (r *Report) Failed() int {
	n := 0
	for _, m := range r.Measures {
		if m.Status == StageStatusFailed {
			n++
		}
	}
	return n
}

// Measure returns the report of one measure
func (r *Report) Measure(id string) (MeasureReport, bool) {
	for _, m := range r.Measures {
		if m.ID == id {
			return m, true
		}
	}
	return MeasureReport{}, false
}

// newMeasureReport derives the measure status from its stages: failed when
// any stage failed, skipped when none ran, completed otherwise
func newMeasureReport(job *Job) MeasureReport {
	mr := MeasureReport{
		ID:           job.Measure.ID,
		Group:        job.Measure.Group(),
		Status:       StageStatusCompleted,
		RowsWritten:  job.RowsWritten,
		Redaction:    job.Redaction,
		MissingCodes: job.MissingCodes,
		Coverage:     job.Coverage,
	}
	if job.Table != nil {
		mr.Rows = job.Table.Len()
	}
	for _, o := range job.Outputs() {
		mr.Outputs = append(mr.Outputs, OutputReport{Name: o.Name, Rows: o.Table.Len()})
	}

	ran := false
	for _, s := range job.stages {
		sr := s.Report()
		mr.Stages = append(mr.Stages, sr)
		switch sr.Status {
		case StageStatusFailed:
			mr.Status = StageStatusFailed
			mr.Error = sr.Error
		case StageStatusCompleted:
			ran = true
		}
	}
	if !ran && mr.Status != StageStatusFailed {
		mr.Status = StageStatusSkipped
	}
	return mr
}
