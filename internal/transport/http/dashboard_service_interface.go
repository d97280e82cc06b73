package http

import (
	"context"

	"salesdash/internal/services"
	api "salesdash/pkg/contracts/api/v1"
)

// DashboardServiceInterface is the service behind DashboardHandler
type DashboardServiceInterface interface {
	Options(ctx context.Context) (*api.OptionsResponse, error)
	Overview(ctx context.Context, q api.DashboardQuery) (*api.OverviewResponse, error)
	Geography(ctx context.Context, q api.DashboardQuery) (*api.GeographyResponse, error)
	Map(ctx context.Context, q api.DashboardQuery) (*api.MapResponse, error)
	Customers(ctx context.Context, q api.DashboardQuery) (*api.CustomersResponse, error)
	Forecast(ctx context.Context) (*api.ForecastResponse, error)
	Export(ctx context.Context, q api.DashboardQuery) (*services.ExportFile, error)
	Reload(ctx context.Context) (*api.ReloadResponse, error)
	Stats() services.DashboardStats
}

// HealthServiceInterface is the service behind HealthHandler
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}
