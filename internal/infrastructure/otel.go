package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"sroanalysis/internal/config"
)

// MeterName is the instrumentation scope of the tracer and meter
const MeterName = "sroanalysis"

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prom.Registry
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing and metrics from the telemetry config.
// Disabled telemetry yields no-op providers and an empty metrics endpoint.
// Metrics are exported through a dedicated Prometheus registry that also
// carries the Go runtime and process collectors.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	ctx := context.Background()
	if cfg.ServiceName == "" {
		cfg.ServiceName = config.ServiceName
	}

	registry := prom.NewRegistry()
	providers := &OTelProviders{
		Tracer:         tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:          metricnoop.NewMeterProvider().Meter(MeterName),
		Registry:       registry,
		PrometheusHTTP: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Logger:         logger,
	}

	if !cfg.Enabled {
		logger.InfoContext(ctx, "OpenTelemetry disabled")
		return providers, nil
	}

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", config.AppVersion),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(config.AppVersion),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	if err := initializeTracing(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.MetricsEnabled {
		if err := initializeMetrics(res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// initializeTracing installs an SDK tracer provider. The "none" exporter
// still produces recording spans so trace IDs correlate logs.
func initializeTracing(cfg config.TelemetryConfig, res *resource.Resource, providers *OTelProviders) error {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case "", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(config.AppVersion))
	otel.SetTracerProvider(tp)
	return nil
}

func initializeMetrics(res *resource.Resource, providers *OTelProviders) error {
	if err := providers.Registry.Register(collectors.NewGoCollector()); err != nil {
		return fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := providers.Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return fmt.Errorf("failed to register process collector: %w", err)
	}

	exporter, err := prometheus.New(prometheus.WithRegisterer(providers.Registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	providers.MeterProvider = mp
	providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(config.AppVersion))
	otel.SetMeterProvider(mp)
	return nil
}

// Shutdown flushes and stops the SDK providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// Metrics holds the pipeline and HTTP instruments
type Metrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	PipelineRunsTotal   metric.Int64Counter
	PipelineRunDuration metric.Float64Histogram
	MeasuresProcessed   metric.Int64Counter
	StageDuration       metric.Float64Histogram
	CellsRedacted       metric.Int64Counter
	RowsWritten         metric.Int64Counter
}

// CreateMetrics registers the application instruments on meter
func CreateMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		return h
	}

	m.HTTPRequestsTotal = counter("http_requests_total", "Total number of HTTP requests")
	m.HTTPRequestDuration = seconds("http_request_duration_seconds", "HTTP request duration in seconds")
	m.PipelineRunsTotal = counter("pipeline_runs_total", "Total number of pipeline runs")
	m.PipelineRunDuration = seconds("pipeline_run_duration_seconds", "Pipeline run duration in seconds")
	m.MeasuresProcessed = counter("measures_processed_total", "Total number of measures processed")
	m.StageDuration = seconds("pipeline_stage_duration_seconds", "Pipeline stage duration in seconds")
	m.CellsRedacted = counter("redacted_cells_total", "Total number of cells nulled by small-number redaction")
	m.RowsWritten = counter("sink_rows_written_total", "Total number of rows written to output sinks")
	if err != nil {
		return nil, err
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func status(success bool) attribute.KeyValue {
	if success {
		return attribute.String("status", "success")
	}
	return attribute.String("status", "failure")
}

// RecordRun records one pipeline run
func (m *Metrics) RecordRun(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(status(success))
	m.PipelineRunsTotal.Add(ctx, 1, attrs)
	m.PipelineRunDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordMeasure records one processed measure and the cells it redacted
func (m *Metrics) RecordMeasure(ctx context.Context, measureID string, cellsRedacted int, success bool) {
	if m == nil {
		return
	}
	m.MeasuresProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("measure.id", measureID), status(success)))
	if cellsRedacted > 0 {
		m.CellsRedacted.Add(ctx, int64(cellsRedacted), metric.WithAttributes(
			attribute.String("measure.id", measureID)))
	}
}

// RecordStage records the duration of one pipeline stage
func (m *Metrics) RecordStage(ctx context.Context, stageID string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage.id", stageID), status(success)))
}

// RecordRowsWritten records rows written through a sink
func (m *Metrics) RecordRowsWritten(ctx context.Context, sink string, rows int) {
	if m == nil {
		return
	}
	m.RowsWritten.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("sink", sink)))
}

// RecordHTTPRequest records one completed HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status_code", statusCode),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
