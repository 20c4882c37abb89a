package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"sroanalysis/internal/config"
	"sroanalysis/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	paths     *config.Paths
	sinks     []string
	measures  *MeasureService
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a new health service. measureService may be nil
// when only liveness is needed.
func NewHealthService(paths *config.Paths, sinks []string, measureService *MeasureService, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version),
		slog.Any("sinks", sinks))

	return &HealthService{
		version:   contracts.Version,
		paths:     paths,
		sinks:     sinks,
		measures:  measureService,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether the inputs can be read and outputs written
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["inputs"] = hs.checkInputs()
	status.Services["outputs"] = hs.checkOutputs()
	status.Services["pipeline"] = hs.checkPipeline()

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "Readiness check failed",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      info.Version,
		"api_version":  info.APIVersion,
		"data_format":  info.DataFormat,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

func (hs *HealthService) checkInputs() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: "not_ready", Message: "paths not configured"}
	}
	info, err := os.Stat(hs.paths.InputDir)
	if err != nil || !info.IsDir() {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Input directory not found: %s", hs.paths.InputDir),
		}
	}
	return ServiceHealth{Status: "ready", Message: "Input directory is readable"}
}

func (hs *HealthService) checkOutputs() ServiceHealth {
	if len(hs.sinks) == 0 {
		return ServiceHealth{Status: "not_ready", Message: "no output sinks configured"}
	}
	if hs.paths == nil {
		return ServiceHealth{Status: "not_ready", Message: "paths not configured"}
	}
	if err := os.MkdirAll(hs.paths.OutputDir, 0755); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cannot write to output directory: %v", err),
		}
	}
	return ServiceHealth{Status: "ready", Message: fmt.Sprintf("%d output sink(s) configured", len(hs.sinks))}
}

func (hs *HealthService) checkPipeline() ServiceHealth {
	if hs.measures == nil {
		return ServiceHealth{Status: "not_ready", Message: "pipeline not initialized"}
	}
	message := "idle"
	if hs.measures.Running() {
		message = "run in progress"
	}
	return ServiceHealth{
		Status:  "ready",
		Message: message,
		Uptime:  time.Since(hs.startTime).String(),
	}
}
