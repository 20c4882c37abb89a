package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"sroanalysis/internal/config"
	"sroanalysis/internal/measures"
)

// Stage IDs in pipeline order
const (
	StageIDLoad        = "load"
	StageIDPrepare     = "prepare"
	StageIDRate        = "rate"
	StageIDPractice    = "practice"
	StageIDDeprivation = "deprivation"
	StageIDRedact      = "redact"
	StageIDTopCodes    = "top_codes"
	StageIDWrite       = "write"
)

// DefaultStages returns the stages every measure runs through
func DefaultStages(logger *slog.Logger) []Stage {
	return []Stage{
		NewLoadStage(logger),
		NewPrepareStage(logger),
		NewRateStage(logger),
		NewPracticeStage(logger),
		NewDeprivationStage(logger),
		NewRedactStage(logger),
		NewTopCodesStage(logger),
		NewWriteStage(logger),
	}
}

// LoadStage reads measure_<id>.csv from the input directory
type LoadStage struct {
	BaseStage
	logger *slog.Logger
}

// NewLoadStage creates a new load stage
func NewLoadStage(logger *slog.Logger) *LoadStage {
	return &LoadStage{
		BaseStage: NewBaseStage(StageIDLoad, "Load measure"),
		logger:    logger,
	}
}

// Run loads the measure table and checks the count columns exist
func (s *LoadStage) Run(ctx context.Context, job *Job) error {
	path := job.Inputs.Paths.MeasurePath(job.Measure.ID)
	t, err := measures.LoadCSV(path)
	if err != nil {
		return err
	}
	for _, col := range []string{measures.DateColumn, job.Measure.Numerator, job.Measure.Denominator} {
		if !t.Has(col) {
			return &measures.DataValidationError{Column: col, Message: "column not found in " + path}
		}
	}
	if g := job.Measure.Group(); g != "" && !t.Has(g) {
		return &measures.DataValidationError{Column: g, Message: "group column not found in " + path}
	}

	s.logger.DebugContext(ctx, "Measure loaded",
		slog.String("measure_id", job.Measure.ID),
		slog.String("path", path),
		slog.Int("rows", t.Len()))
	job.Table = t
	return nil
}

// PrepareStage relabels coded demographics and drops rows with no group
type PrepareStage struct {
	BaseStage
	logger *slog.Logger
}

// NewPrepareStage creates a new prepare stage
func NewPrepareStage(logger *slog.Logger) *PrepareStage {
	return &PrepareStage{
		BaseStage: NewBaseStage(StageIDPrepare, "Prepare demographics"),
		logger:    logger,
	}
}

// Run converts ethnicity codes and binary flags to labels, then removes
// rows whose demographic is missing
func (s *PrepareStage) Run(ctx context.Context, job *Job) error {
	group := job.Measure.Group()
	switch group {
	case "", measures.EventCodeColumn, measures.PracticeColumn:
		return Skip("measure has no demographic group")
	}

	t := job.Table
	var err error
	if group == measures.EthnicityColumn {
		if t, err = measures.ConvertEthnicity(t); err != nil {
			return err
		}
	}
	if positive, negative, ok := measures.BinaryLabels(group); ok {
		if t, err = measures.ConvertBinary(t, group, positive, negative); err != nil {
			return err
		}
	}

	before := t.Len()
	if t, err = measures.DropMissingDemographics(t, group); err != nil {
		return err
	}
	if dropped := before - t.Len(); dropped > 0 {
		s.logger.InfoContext(ctx, "Dropped rows with missing demographic",
			slog.String("measure_id", job.Measure.ID),
			slog.String("column", group),
			slog.Int("rows", dropped))
	}
	job.Table = t
	return nil
}

// RateStage computes the rate column
type RateStage struct {
	BaseStage
	logger *slog.Logger
}

// NewRateStage creates a new rate stage
func NewRateStage(logger *slog.Logger) *RateStage {
	return &RateStage{
		BaseStage: NewBaseStage(StageIDRate, "Calculate rate"),
		logger:    logger,
	}
}

// Run replaces the extracted value column with a rate per Options.RatePer
func (s *RateStage) Run(ctx context.Context, job *Job) error {
	t, err := measures.CalculateRate(job.Table, job.Measure.Numerator, job.Measure.Denominator, job.Options.RatePer)
	if err != nil {
		return err
	}
	job.Table = t.Drop(measures.ValueColumn)
	return nil
}

// PracticeStage reports practice coverage and the total rate of the
// practice measure
type PracticeStage struct {
	BaseStage
	logger *slog.Logger
}

// NewPracticeStage creates a new practice stage
func NewPracticeStage(logger *slog.Logger) *PracticeStage {
	return &PracticeStage{
		BaseStage: NewBaseStage(StageIDPractice, "Practice coverage"),
		logger:    logger,
	}
}

// Run computes coverage, drops practices that never record an event and
// adds the total rate table
func (s *PracticeStage) Run(ctx context.Context, job *Job) error {
	if job.Measure.Group() != measures.PracticeColumn {
		return Skip("not a practice measure")
	}

	if len(job.Inputs.Practices) > 0 {
		coverage, err := measures.PracticeCoverage(job.Table, job.Inputs.Practices, job.Inputs.EndDate)
		if err != nil {
			return err
		}
		job.Coverage = coverage
		s.logger.InfoContext(ctx, "Practice coverage",
			slog.Int("all_practices", coverage.AllPractices),
			slog.Int("total", coverage.Total.Number),
			slog.Float64("total_percent", coverage.Total.Percent),
			slog.Int("year", coverage.Year.Number),
			slog.Int("months_3", coverage.Months3.Number))
	} else {
		s.logger.WarnContext(ctx, "No practice count files found, skipping coverage",
			slog.String("measure_id", job.Measure.ID))
	}

	t, err := measures.DropIrrelevantPractices(job.Table, measures.RateColumn)
	if err != nil {
		return err
	}
	job.Table = t

	total, err := measures.TotalRate(t, job.Measure.Numerator, job.Measure.Denominator, job.Options.RatePer)
	if err != nil {
		return err
	}
	job.SetOutput(config.TotalRateTableName, total)
	return nil
}

// DeprivationStage aggregates the imd measure into quintiles
type DeprivationStage struct {
	BaseStage
	logger *slog.Logger
}

// NewDeprivationStage creates a new deprivation stage
func NewDeprivationStage(logger *slog.Logger) *DeprivationStage {
	return &DeprivationStage{
		BaseStage: NewBaseStage(StageIDDeprivation, "Group by deprivation"),
		logger:    logger,
	}
}

// Run replaces the imd rank rows with one row per period and quintile
func (s *DeprivationStage) Run(ctx context.Context, job *Job) error {
	if job.Measure.Group() != measures.IMDColumn {
		return Skip("not a deprivation measure")
	}
	t, err := measures.GroupByDeprivation(job.Table, job.Measure.Numerator, measures.RateColumn)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Grouped by deprivation quintile",
		slog.Int("rows_in", job.Table.Len()),
		slog.Int("rows_out", t.Len()))
	job.Table = t
	return nil
}

// RedactStage applies small-number suppression
type RedactStage struct {
	BaseStage
	logger *slog.Logger
}

// NewRedactStage creates a new redact stage
func NewRedactStage(logger *slog.Logger) *RedactStage {
	return &RedactStage{
		BaseStage: NewBaseStage(StageIDRedact, "Redact small numbers"),
		logger:    logger,
	}
}

// Run suppresses small counts when the measure asks for it
func (s *RedactStage) Run(ctx context.Context, job *Job) error {
	if !job.Measure.SmallNumberSuppression {
		return Skip("small number suppression disabled")
	}
	t, summary, err := measures.RedactSmallNumbers(job.Table, measures.RedactionOptions{
		Threshold:   job.Options.Threshold,
		Numerator:   job.Measure.Numerator,
		Denominator: job.Measure.Denominator,
		Rate:        measures.RateColumn,
		Scope:       job.Options.Scope,
	})
	if err != nil {
		return err
	}
	if n := summary.CellsRedacted(); n > 0 {
		s.logger.InfoContext(ctx, "Small numbers redacted",
			slog.String("measure_id", job.Measure.ID),
			slog.Int("cells", n),
			slog.Int("rates_nulled", summary.RatesNulled))
	}
	job.Table = t
	job.Redaction = summary
	return nil
}

// TopCodesStage builds the most used codes table of the event code measure
type TopCodesStage struct {
	BaseStage
	logger *slog.Logger
}

// NewTopCodesStage creates a new top codes stage
func NewTopCodesStage(logger *slog.Logger) *TopCodesStage {
	return &TopCodesStage{
		BaseStage: NewBaseStage(StageIDTopCodes, "Top codes"),
		logger:    logger,
	}
}

// Run sums the events of the redacted table per code
func (s *TopCodesStage) Run(ctx context.Context, job *Job) error {
	if job.Measure.Group() != measures.EventCodeColumn {
		return Skip("not an event code measure")
	}
	if job.Inputs.Codelist == nil {
		return &measures.DataValidationError{Message: "codelist is required for " + job.Measure.ID}
	}

	result, err := measures.TopCodes(job.Table, job.Inputs.Codelist, job.Options.TopN)
	if err != nil {
		return err
	}
	for _, missing := range result.Missing {
		job.MissingCodes = append(job.MissingCodes, missing.Code)
		s.logger.WarnContext(ctx, "Code not found in codelist",
			slog.String("code", missing.Code))
	}
	job.SetOutput(config.TopCodeTableName, result.Table)
	return nil
}

// WriteStage stores the rate table and every extra output in the sink
type WriteStage struct {
	BaseStage
	logger *slog.Logger
}

// NewWriteStage creates a new write stage
func NewWriteStage(logger *slog.Logger) *WriteStage {
	return &WriteStage{
		BaseStage: NewBaseStage(StageIDWrite, "Write outputs"),
		logger:    logger,
	}
}

// Run writes the outputs, the rate table first
func (s *WriteStage) Run(ctx context.Context, job *Job) error {
	if job.Inputs.Sink == nil {
		return Skip("no output sink configured")
	}

	outputs := append([]Output{{Name: job.RateTableName(), Table: job.Table}}, job.Outputs()...)
	for _, o := range outputs {
		if err := job.Inputs.Sink.WriteTable(ctx, o.Name, o.Table); err != nil {
			return fmt.Errorf("failed to write %s: %w", o.Name, err)
		}
		job.RowsWritten += o.Table.Len()
	}
	job.outputs = outputs

	s.logger.InfoContext(ctx, "Outputs written",
		slog.String("measure_id", job.Measure.ID),
		slog.String("sink", job.Inputs.Sink.Name()),
		slog.Int("tables", len(outputs)),
		slog.Int("rows", job.RowsWritten))
	return nil
}
