package http

import (
	"context"

	"sroanalysis/internal/pipeline"
	"sroanalysis/internal/services"
	api "sroanalysis/pkg/contracts/api/v1"
)

// MeasureServiceInterface defines the measure operations exposed over HTTP
type MeasureServiceInterface interface {
	CalculateRate(ctx context.Context, req *api.RateRequest) (*api.TableResponse, error)
	GroupByDeprivation(ctx context.Context, req *api.DeprivationRequest) (*api.TableResponse, error)
	Redact(ctx context.Context, req *api.RedactRequest) (*api.RedactResponse, error)
	TopCodes(ctx context.Context, req *api.TopCodesRequest) (*api.TopCodesResponse, error)
	RunPipeline(ctx context.Context, req *api.PipelineRunRequest) (*pipeline.Report, error)
	LastReport() (*pipeline.Report, bool)
	ListMeasures(ctx context.Context) (*api.MeasureListResponse, error)
}

// HealthServiceInterface defines the health operations exposed over HTTP
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}
