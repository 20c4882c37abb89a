package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"sroanalysis/internal/config"
	"sroanalysis/internal/files"
	"sroanalysis/internal/infrastructure"
	"sroanalysis/internal/measures"
	"sroanalysis/internal/storage"
)

// ErrUnknownMeasure is returned when a run names a measure that is not configured
var ErrUnknownMeasure = errors.New("unknown measure")

// Runner executes the configured measures through the stages
type Runner struct {
	cfg     *config.Config
	paths   *config.Paths
	sink    storage.Sink
	stages  []Stage
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.Metrics
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithTracer sets the tracer used for run, measure and stage spans
func WithTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = tracer }
}

// WithMetrics sets the instruments runs are recorded on
func WithMetrics(metrics *infrastructure.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = metrics }
}

// WithStages replaces the default stages
func WithStages(stages ...Stage) RunnerOption {
	return func(r *Runner) { r.stages = stages }
}

// NewRunner creates a runner writing through sink. A nil sink skips the
// write stage.
func NewRunner(cfg *config.Config, paths *config.Paths, sink storage.Sink, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "pipeline"))

	r := &Runner{
		cfg:    cfg,
		paths:  paths,
		sink:   sink,
		logger: logger,
		tracer: tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName),
	}
	r.stages = DefaultStages(logger)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Measures returns the configured measures
func (r *Runner) Measures() []measures.Measure {
	return r.cfg.Study.MeasureDefinitions()
}

// Run processes the measures named by ids, or every configured measure when
// ids is empty. Measures run concurrently up to the configured limit; the
// first failure cancels the others at their next stage boundary. The report
// is returned even when the run fails.
func (r *Runner) Run(ctx context.Context, ids ...string) (*Report, error) {
	runID := uuid.New().String()
	ctx = infrastructure.WithRunID(ctx, runID)
	report := NewReport(runID)
	logger := r.logger.With(slog.String("run_id", runID))

	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	err := r.run(ctx, logger, report, ids)
	report.finish(ctx, err)
	r.metrics.RecordRun(ctx, report.EndTime.Sub(report.StartTime), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "Pipeline run failed",
			slog.String("error", err.Error()),
			slog.Int("failed_measures", report.Failed()))
		return report, err
	}
	span.SetStatus(codes.Ok, "")
	logger.InfoContext(ctx, "Pipeline run completed",
		slog.Int("measures", len(report.Measures)),
		slog.Duration("duration", report.EndTime.Sub(report.StartTime)))
	return report, nil
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, report *Report, ids []string) error {
	selected, err := r.selectMeasures(ids)
	if err != nil {
		return err
	}

	inputs, err := r.LoadInputs(ctx, selected)
	if err != nil {
		return err
	}
	opts := OptionsFromConfig(r.cfg.Analysis)

	logger.InfoContext(ctx, "Pipeline run started",
		slog.Int("measures", len(selected)),
		slog.Int("practices", len(inputs.Practices)),
		slog.Int("max_concurrency", r.cfg.Analysis.MaxConcurrency))

	jobs := make([]*Job, len(selected))
	for i, m := range selected {
		jobs[i] = NewJob(m, inputs, opts, r.stages)
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := r.cfg.Analysis.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return r.runJob(gctx, logger, job)
		})
	}
	err = g.Wait()

	for _, job := range jobs {
		report.Measures = append(report.Measures, newMeasureReport(job))
	}
	return err
}

func (r *Runner) selectMeasures(ids []string) ([]measures.Measure, error) {
	all := r.Measures()
	if len(ids) == 0 {
		return all, nil
	}

	byID := make(map[string]measures.Measure, len(all))
	for _, m := range all {
		byID[m.ID] = m
	}
	selected := make([]measures.Measure, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMeasure, id)
		}
		selected = append(selected, m)
	}
	return selected, nil
}

// LoadInputs reads the codelist, when an event code measure is selected,
// and the practice count files
func (r *Runner) LoadInputs(ctx context.Context, selected []measures.Measure) (*Inputs, error) {
	_, end, err := r.cfg.Study.Period()
	if err != nil {
		return nil, fmt.Errorf("invalid study period: %w", err)
	}
	inputs := &Inputs{Paths: r.paths, Sink: r.sink, EndDate: end}

	for _, m := range selected {
		if m.Group() != measures.EventCodeColumn {
			continue
		}
		path := r.paths.Resolve(r.cfg.Study.CodelistPath)
		t, err := measures.LoadCSV(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load codelist: %w", err)
		}
		codelist, err := measures.NewCodelist(t, r.cfg.Study.CodelistCodeColumn, r.cfg.Study.CodelistTermColumn)
		if err != nil {
			return nil, fmt.Errorf("invalid codelist %s: %w", path, err)
		}
		inputs.Codelist = codelist
		r.logger.DebugContext(ctx, "Codelist loaded",
			slog.String("path", path),
			slog.Int("codes", codelist.Len()))
		break
	}

	discovery := files.NewDiscovery(r.paths.BaseDir)
	countFiles, err := discovery.FindPracticeCountFiles(r.paths.InputDir)
	if err != nil {
		return nil, err
	}
	if inputs.Practices, err = files.UniquePractices(countFiles); err != nil {
		return nil, err
	}
	return inputs, nil
}

func (r *Runner) runJob(ctx context.Context, logger *slog.Logger, job *Job) error {
	measureID := job.Measure.ID
	logger = logger.With(slog.String("measure_id", measureID))

	ctx, span := r.tracer.Start(ctx, "pipeline.measure",
		trace.WithAttributes(
			attribute.String("measure.id", measureID),
			attribute.String("measure.group", job.Measure.Group())))
	defer span.End()

	err := r.runStages(ctx, logger, job)
	r.metrics.RecordMeasure(ctx, measureID, job.Redaction.CellsRedacted(), err == nil)
	if job.RowsWritten > 0 {
		r.metrics.RecordRowsWritten(ctx, job.Inputs.Sink.Name(), job.RowsWritten)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "Measure failed", slog.String("error", err.Error()))
		return fmt.Errorf("measure %s: %w", measureID, err)
	}
	span.SetStatus(codes.Ok, "")
	logger.InfoContext(ctx, "Measure processed", slog.Int("rows", job.Table.Len()))
	return nil
}

func (r *Runner) runStages(ctx context.Context, logger *slog.Logger, job *Job) error {
	for i, stage := range r.stages {
		state := job.stages[i]
		if err := ctx.Err(); err != nil {
			for _, rest := range job.stages[i:] {
				rest.Skip("run cancelled")
			}
			return err
		}

		stageCtx, span := r.tracer.Start(ctx, "pipeline.stage."+stage.ID(),
			trace.WithAttributes(
				attribute.String("stage.id", stage.ID()),
				attribute.String("measure.id", job.Measure.ID)))
		state.Start()
		err := stage.Run(stageCtx, job)

		var skip *SkipError
		skipped := errors.As(err, &skip)
		switch {
		case skipped:
			state.Skip(skip.Reason)
			span.SetAttributes(attribute.String("stage.skip_reason", skip.Reason))
			logger.DebugContext(stageCtx, "Stage skipped",
				slog.String("stage", stage.ID()),
				slog.String("reason", skip.Reason))
		case err != nil:
			state.Fail(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		default:
			state.Complete()
		}
		if !skipped {
			r.metrics.RecordStage(stageCtx, stage.ID(), state.Duration(), err == nil)
		}
		span.End()

		if err != nil && !skipped {
			for _, rest := range job.stages[i+1:] {
				rest.Skip("previous stage failed")
			}
			return fmt.Errorf("stage %s: %w", stage.ID(), err)
		}
	}
	return nil
}

// Elapsed returns a compact rendering of d for logs and reports
func Elapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
