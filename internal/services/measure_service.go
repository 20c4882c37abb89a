package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"sroanalysis/internal/config"
	"sroanalysis/internal/exporter"
	"sroanalysis/internal/files"
	"sroanalysis/internal/measures"
	"sroanalysis/internal/pipeline"
	api "sroanalysis/pkg/contracts/api/v1"
)

// PipelineRunner runs the measure pipeline
type PipelineRunner interface {
	Run(ctx context.Context, ids ...string) (*pipeline.Report, error)
	Measures() []measures.Measure
}

// MeasureService exposes the table transforms and the pipeline
type MeasureService struct {
	cfg    *config.Config
	paths  *config.Paths
	runner PipelineRunner
	logger *slog.Logger

	mu         sync.Mutex
	running    bool
	lastReport *pipeline.Report
}

// NewMeasureService creates a new measure service
func NewMeasureService(cfg *config.Config, paths *config.Paths, runner PipelineRunner, logger *slog.Logger) *MeasureService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeasureService{
		cfg:    cfg,
		paths:  paths,
		runner: runner,
		logger: logger.With(slog.String("service", "measures")),
	}
}

// CalculateRate adds a rate column to the request table
func (s *MeasureService) CalculateRate(ctx context.Context, req *api.RateRequest) (*api.TableResponse, error) {
	t, err := req.Table.Table()
	if err != nil {
		return nil, err
	}
	ratePer := req.RatePer
	if ratePer == 0 {
		ratePer = s.cfg.Analysis.RatePer
	}

	out, err := measures.CalculateRate(t, req.Numerator, req.Denominator, ratePer)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Rate calculated",
		slog.Int("rows", out.Len()),
		slog.Float64("rate_per", ratePer))
	return &api.TableResponse{Table: exporter.ToDocument(out)}, nil
}

// GroupByDeprivation aggregates an imd table into quintiles
func (s *MeasureService) GroupByDeprivation(ctx context.Context, req *api.DeprivationRequest) (*api.TableResponse, error) {
	t, err := req.Table.Table()
	if err != nil {
		return nil, err
	}
	out, err := measures.GroupByDeprivation(t, req.DiseaseColumn, req.RateColumn)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Grouped by deprivation",
		slog.Int("rows_in", t.Len()),
		slog.Int("rows_out", out.Len()))
	return &api.TableResponse{Table: exporter.ToDocument(out)}, nil
}

// Redact applies small-number suppression. Threshold and scope default to
// the configured values.
func (s *MeasureService) Redact(ctx context.Context, req *api.RedactRequest) (*api.RedactResponse, error) {
	t, err := req.Table.Table()
	if err != nil {
		return nil, err
	}

	opts := measures.RedactionOptions{
		Threshold:   s.cfg.Analysis.RedactionThreshold,
		Numerator:   req.Numerator,
		Denominator: req.Denominator,
		Rate:        req.RateColumn,
		Scope:       s.cfg.Analysis.Scope(),
	}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.Scope != "" {
		opts.Scope = measures.RedactionScope(req.Scope)
	}

	out, summary, err := measures.RedactSmallNumbers(t, opts)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Table redacted",
		slog.Int("rows", out.Len()),
		slog.Int("cells_redacted", summary.CellsRedacted()))
	return &api.RedactResponse{Table: exporter.ToDocument(out), Summary: summary}, nil
}

// TopCodes builds the most used codes table
func (s *MeasureService) TopCodes(ctx context.Context, req *api.TopCodesRequest) (*api.TopCodesResponse, error) {
	events, err := req.Events.Table()
	if err != nil {
		return nil, err
	}
	codelist, err := s.codelist(req)
	if err != nil {
		return nil, err
	}

	n := req.N
	if n == 0 {
		n = s.cfg.Analysis.TopN
	}
	result, err := measures.TopCodes(events, codelist, n)
	if err != nil {
		return nil, err
	}

	resp := &api.TopCodesResponse{Table: exporter.ToDocument(result.Table), MissingCodes: []string{}}
	for _, m := range result.Missing {
		resp.MissingCodes = append(resp.MissingCodes, m.Code)
	}
	if len(resp.MissingCodes) > 0 {
		s.logger.WarnContext(ctx, "Codes missing from codelist",
			slog.Any("codes", resp.MissingCodes))
	}
	return resp, nil
}

func (s *MeasureService) codelist(req *api.TopCodesRequest) (*measures.Codelist, error) {
	codeCol, termCol := req.CodeColumn, req.TermColumn
	if codeCol == "" {
		codeCol = s.cfg.Study.CodelistCodeColumn
	}
	if termCol == "" {
		termCol = s.cfg.Study.CodelistTermColumn
	}

	var (
		t   *measures.Table
		err error
	)
	if req.Codelist != nil {
		t, err = req.Codelist.Table()
	} else {
		t, err = measures.LoadCSV(s.paths.Resolve(s.cfg.Study.CodelistPath))
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrCodelistUnavailable, err)
		}
	}
	if err != nil {
		return nil, err
	}
	return measures.NewCodelist(t, codeCol, termCol)
}

// RunPipeline runs the pipeline synchronously. Only one run may be in
// progress; a second caller gets ErrPipelineRunning.
func (s *MeasureService) RunPipeline(ctx context.Context, req *api.PipelineRunRequest) (*pipeline.Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrPipelineRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var ids []string
	if req != nil {
		ids = req.Measures
	}
	report, err := s.runner.Run(ctx, ids...)
	if report != nil {
		s.mu.Lock()
		s.lastReport = report
		s.mu.Unlock()
	}
	if errors.Is(err, pipeline.ErrUnknownMeasure) {
		return nil, fmt.Errorf("%w: %v", ErrMeasureNotFound, err)
	}
	return report, err
}

// Running reports whether a pipeline run is in progress
func (s *MeasureService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastReport returns the report of the latest run
func (s *MeasureService) LastReport() (*pipeline.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport, s.lastReport != nil
}

// ListMeasures lists the configured measures and whether their input file
// exists
func (s *MeasureService) ListMeasures(ctx context.Context) (*api.MeasureListResponse, error) {
	discovery := files.NewDiscovery(s.paths.BaseDir)
	found, err := discovery.FindMeasureFiles(s.paths.InputDir)
	if err != nil {
		return nil, err
	}
	available := make(map[string]string, len(found))
	for _, f := range found {
		available[f.MeasureID] = f.Path
	}

	resp := &api.MeasureListResponse{Measures: []api.MeasureInfo{}}
	for _, m := range s.runner.Measures() {
		path, ok := available[m.ID]
		if !ok {
			path = s.paths.MeasurePath(m.ID)
		}
		resp.Measures = append(resp.Measures, api.MeasureInfo{Measure: m, InputFile: path, Available: ok})
	}
	s.logger.DebugContext(ctx, "Measures listed", slog.Int("count", len(resp.Measures)))
	return resp, nil
}
