package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"sroanalysis/internal/infrastructure"
)

// OTelMiddleware traces HTTP requests and records HTTP metrics
type OTelMiddleware struct {
	tracer     trace.Tracer
	metrics    *infrastructure.Metrics
	propagator propagation.TextMapPropagator
	logger     *slog.Logger
}

// NewOTelMiddleware creates the middleware from the telemetry providers.
// Nil providers or metrics produce a middleware that only logs.
func NewOTelMiddleware(providers *infrastructure.OTelProviders, metrics *infrastructure.Metrics, logger *slog.Logger) *OTelMiddleware {
	var tracer trace.Tracer = noop.NewTracerProvider().Tracer("")
	if providers != nil && providers.Tracer != nil {
		tracer = providers.Tracer
	}
	return &OTelMiddleware{
		tracer:     tracer,
		metrics:    metrics,
		propagator: otel.GetTextMapPropagator(),
		logger:     logger.With(slog.String("component", "otel_middleware")),
	}
}

// Handler wraps next in a server span named after the route pattern
func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := m.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := m.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPathKey.String(r.URL.Path),
				semconv.URLSchemeKey.String(scheme(r)),
				semconv.ServerAddressKey.String(r.Host),
				semconv.UserAgentOriginalKey.String(r.UserAgent()),
				semconv.HTTPRequestBodySizeKey.Int64(r.ContentLength),
				attribute.String("request.id", GetRequestID(ctx)),
			),
		)
		defer span.End()

		if m.metrics != nil {
			active := metric.WithAttributes(attribute.String("method", r.Method))
			m.metrics.HTTPActiveRequests.Add(ctx, 1, active)
			defer m.metrics.HTTPActiveRequests.Add(ctx, -1, active)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(ctx)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		duration := time.Since(start)

		span.SetName(fmt.Sprintf("%s %s", r.Method, route))
		span.SetAttributes(
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCodeKey.Int(status),
			semconv.HTTPResponseBodySizeKey.Int(ww.BytesWritten()),
		)
		if status >= 400 {
			span.SetStatus(codes.Error, http.StatusText(status))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		m.metrics.RecordHTTPRequest(ctx, r.Method, route, status, duration)

		m.logger.DebugContext(ctx, "HTTP request completed",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
			slog.String("trace_id", span.SpanContext().TraceID().String()),
		)
	})
}

// routePattern returns the matched chi route so metrics do not explode on
// path parameters. Unmatched requests are grouped together.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
