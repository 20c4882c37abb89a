package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sroanalysis/internal/config"
	apperrors "sroanalysis/internal/errors"
	"sroanalysis/internal/infrastructure"
	customMiddleware "sroanalysis/internal/middleware"
	"sroanalysis/internal/pipeline"
	"sroanalysis/internal/services"
	"sroanalysis/internal/storage"
	handlers "sroanalysis/internal/transport/http"
	"sroanalysis/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config         *config.Config
	Paths          *config.Paths
	Router         *chi.Mux
	Server         *http.Server
	Logger         *slog.Logger
	OTelProviders  *infrastructure.OTelProviders
	Metrics        *infrastructure.Metrics
	Sink           *storage.Multi
	Runner         *pipeline.Runner
	MeasureService *services.MeasureService
	HealthService  *services.HealthService
	ErrorHandler   *apperrors.ErrorHandler
}

// New wires the application: telemetry, output sinks, the pipeline runner,
// the services and the HTTP router. Call Close (or Stop once started) to
// release the sinks and flush telemetry.
func New(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("version", contracts.GetVersionString()),
		slog.String("input_dir", paths.InputDir),
		slog.String("output_dir", paths.OutputDir))

	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateMetrics(providers.Meter)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	sink, err := storage.Open(ctx, cfg.Storage, paths, logger)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open output sinks: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		Sink:          sink,
		ErrorHandler:  apperrors.NewErrorHandler(logger, cfg.Logging.Development),
	}
	a.initializeServices()
	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() {
	a.Runner = pipeline.NewRunner(a.Config, a.Paths, a.Sink, a.Logger,
		pipeline.WithTracer(a.OTelProviders.Tracer),
		pipeline.WithMetrics(a.Metrics),
	)
	a.MeasureService = services.NewMeasureService(a.Config, a.Paths, a.Runner, a.Logger)
	a.HealthService = services.NewHealthService(a.Paths, a.Sink.Names(), a.MeasureService, a.Logger)
}

// setupRouter configures the HTTP router with all routes. Middleware order:
// RequestID, RealIP, OTel, Logger, Recoverer, then the security and limit
// layers.
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Scrapes bypass logging and rate limiting
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		r.Use(customMiddleware.CORS(customMiddleware.DefaultCORSConfig()))

		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.ErrorHandler, a.Logger).Handler)
		}
		if a.Config.Server.RequestTimeout > 0 {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		}
		r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxBodyBytes))

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewValidator(a.Logger)
	health := handlers.NewHealthHandler(a.HealthService, a.Logger)
	transforms := handlers.NewTransformHandler(a.MeasureService, validator, a.ErrorHandler, a.Logger)
	pipelines := handlers.NewPipelineHandler(a.MeasureService, validator, a.ErrorHandler, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", health.HealthCheck)
		r.Get("/health/ready", health.ReadinessCheck)
		r.Get("/health/live", health.LivenessCheck)
		r.Get("/version", health.Version)

		r.Route("/v1", func(r chi.Router) {
			r.Use(customMiddleware.ContentTypeValidator(a.ErrorHandler, "application/json"))

			r.Mount("/transforms", transforms.Routes())
			r.Mount("/pipeline", pipelines.Routes())
			r.Get("/measures", pipelines.ListMeasures)
		})
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start begins serving on the configured port. A listener failure after
// start cancels the application context through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln, cancel)
}

// Serve begins serving on ln
func (a *Application) Serve(ctx context.Context, ln net.Listener, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting HTTP server",
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level),
		slog.Any("sinks", a.Sink.Names()))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", ln.Addr().String()))
	return nil
}

// Stop drains the HTTP server and then releases sinks and telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases the output sinks and flushes telemetry without touching
// the HTTP server
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if err := a.Sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sinks: %w", err))
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down OpenTelemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled or the server fails, then shuts down
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		_ = a.Close(context.Background())
		return err
	}

	<-ctx.Done()
	a.Logger.InfoContext(ctx, "Shutdown requested")

	return a.Stop(context.Background())
}

func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	status := a.HealthService.ReadinessCheck(ctx)
	if status.Status == "ready" {
		a.Logger.InfoContext(ctx, "Startup health check passed")
		return nil
	}

	var warnings []string
	for name, service := range status.Services {
		if sh, ok := service.(services.ServiceHealth); ok && sh.Status != "ready" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", name, sh.Message))
		}
	}
	return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
}

// ShutdownGrace is how long the CLI waits for sinks and telemetry to flush
const ShutdownGrace = 10 * time.Second
