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
	"go.opentelemetry.io/otel/trace"

	apperrors "sroanalysis/internal/errors"
	"sroanalysis/internal/infrastructure"
	"sroanalysis/internal/middleware"
	"sroanalysis/internal/services"
)

// TransformHandler exposes the single-table transforms: rate calculation,
// deprivation grouping, small-number redaction and top codes
type TransformHandler struct {
	service      MeasureServiceInterface
	validator    *middleware.Validator
	errorHandler *apperrors.ErrorHandler
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewTransformHandler creates a new transform handler
func NewTransformHandler(service MeasureServiceInterface, validator *middleware.Validator, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *TransformHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	return &TransformHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		tracer:       otel.Tracer("transform-handler"),
		logger:       logger.With(slog.String("handler", "transforms")),
	}
}

// Routes returns a chi router for the transform endpoints
func (h *TransformHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/rate", h.CalculateRate)
	r.Post("/deprivation", h.GroupByDeprivation)
	r.Post("/redact", h.Redact)
	r.Post("/top-codes", h.TopCodes)
	return r
}

// CalculateRate handles POST /api/v1/transforms/rate
func (h *TransformHandler) CalculateRate(w http.ResponseWriter, r *http.Request) {
	serveTransform(h, w, r, "rate", h.service.CalculateRate)
}

// GroupByDeprivation handles POST /api/v1/transforms/deprivation
func (h *TransformHandler) GroupByDeprivation(w http.ResponseWriter, r *http.Request) {
	serveTransform(h, w, r, "deprivation", h.service.GroupByDeprivation)
}

// Redact handles POST /api/v1/transforms/redact
func (h *TransformHandler) Redact(w http.ResponseWriter, r *http.Request) {
	serveTransform(h, w, r, "redact", h.service.Redact)
}

// TopCodes handles POST /api/v1/transforms/top-codes
func (h *TransformHandler) TopCodes(w http.ResponseWriter, r *http.Request) {
	serveTransform(h, w, r, "top_codes", h.service.TopCodes)
}

// serveTransform decodes and validates the request body, runs the
// transform and renders its response
func serveTransform[Req any, Resp any](h *TransformHandler, w http.ResponseWriter, r *http.Request, name string, run func(context.Context, *Req) (Resp, error)) {
	ctx, span := h.tracer.Start(r.Context(), "transform."+name,
		trace.WithAttributes(
			attribute.String("transform", name),
			attribute.String("request_id", middleware.GetRequestID(r.Context())),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	req := new(Req)
	if err := h.validator.Decode(r, req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, err := run(ctx, req)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		h.logger.WarnContext(ctx, "transform failed",
			slog.String("transform", name),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, transformError(err))
		return
	}

	h.logger.DebugContext(ctx, "transform completed", slog.String("transform", name))
	render.JSON(w, r, resp)
}

func transformError(err error) error {
	if errors.Is(err, services.ErrCodelistUnavailable) {
		return apperrors.NewWithDetails(http.StatusUnprocessableEntity, "CODELIST_UNAVAILABLE",
			"No codelist was supplied and the configured codelist could not be read", err.Error())
	}
	return err
}
