package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "sroanalysis/internal/errors"
	"sroanalysis/internal/middleware"
	"sroanalysis/internal/pipeline"
	"sroanalysis/internal/services"
	api "sroanalysis/pkg/contracts/api/v1"
)

// PipelineHandler handles pipeline runs and the measure catalogue
type PipelineHandler struct {
	service      MeasureServiceInterface
	validator    *middleware.Validator
	errorHandler *apperrors.ErrorHandler
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(service MeasureServiceInterface, validator *middleware.Validator, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *PipelineHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	return &PipelineHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		tracer:       otel.Tracer("pipeline-handler"),
		logger:       logger.With(slog.String("handler", "pipeline")),
	}
}

// Routes returns a chi router for the pipeline endpoints. Runs write
// outputs, so they are audit logged.
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(middleware.AuditLog(h.logger)).Post("/run", h.RunPipeline)
	r.Get("/last", h.LastReport)
	return r
}

// RunPipeline handles POST /api/v1/pipeline/run. The body is optional; an
// empty body runs every configured measure.
func (h *PipelineHandler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	ctx, span := h.tracer.Start(r.Context(), "pipeline_handler.run",
		trace.WithAttributes(attribute.String("request_id", reqID)),
	)
	defer span.End()
	r = r.WithContext(ctx)

	req := &api.PipelineRunRequest{}
	if r.ContentLength != 0 {
		if err := h.validator.Decode(r, req); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
	}
	span.SetAttributes(attribute.StringSlice("pipeline.measures", req.Measures))

	h.logger.InfoContext(ctx, "pipeline run requested",
		slog.Any("measures", req.Measures),
		slog.String("request_id", reqID))

	report, err := h.service.RunPipeline(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.errorHandler.HandleError(w, r, runError(err, report))
		return
	}

	span.SetAttributes(attribute.String("pipeline.run_id", report.RunID))
	render.JSON(w, r, report)
}

// LastReport handles GET /api/v1/pipeline/last
func (h *PipelineHandler) LastReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.service.LastReport()
	if !ok {
		h.errorHandler.HandleError(w, r, apperrors.NotFoundError("pipeline report"))
		return
	}
	render.JSON(w, r, report)
}

// ListMeasures handles GET /api/v1/measures
func (h *PipelineHandler) ListMeasures(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListMeasures(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// runError maps service errors onto API errors. A failed run is classified
// by its cause and still carries its report so clients can see which
// measure and stage broke.
func runError(err error, report *pipeline.Report) error {
	switch {
	case errors.Is(err, services.ErrPipelineRunning):
		return apperrors.ErrPipelineRunning
	case errors.Is(err, services.ErrMeasureNotFound):
		return apperrors.MeasureNotFound(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case report != nil:
		classified := apperrors.Classify("pipeline run failed", err)
		var appErr *apperrors.AppError
		if errors.As(classified, &appErr) {
			appErr.WithContext("run_id", report.RunID).WithContext("report", report)
		}
		return classified
	}
	return err
}
