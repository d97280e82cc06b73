package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"salesdash/internal/config"
	"salesdash/internal/dataset"
	"salesdash/pkg/contracts"
)

// DatasetProvider exposes the cached dataset and boundary availability
type DatasetProvider interface {
	Dataset() *dataset.Dataset
	BoundariesAvailable() bool
}

// HubStatus reports websocket hub state
type HubStatus interface {
	Running() bool
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	source    config.SourceConfig
	dashboard DatasetProvider
	hub       HubStatus
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

// NewHealthService creates a new health service. hub may be nil.
func NewHealthService(source config.SourceConfig, dashboard DatasetProvider, hub HubStatus, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	info := contracts.GetVersionInfo()

	logger.Info("HealthService initialized",
		slog.String("version", info.Version),
		slog.String("build_time", info.BuildTime),
		slog.String("source", source.Kind))

	return &HealthService{
		version:   info.Version,
		buildTime: info.BuildTime,
		buildID:   info.GitCommit,
		source:    source,
		dashboard: dashboard,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status),
		slog.String("uptime", time.Since(hs.startTime).String()))

	return status
}

// ReadinessCheck returns readiness status. The boundary file is reported
// but never makes the service unready: only the map view depends on it.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	datasetHealth := hs.checkDatasetHealth()
	status.Services["dataset"] = datasetHealth
	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["boundaries"] = hs.checkBoundaryHealth()

	for _, name := range []string{"dataset", "websocket"} {
		if sh, ok := status.Services[name].(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "ReadinessCheck: not ready", slog.String("dataset", datasetHealth.Message))
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
	result := map[string]interface{}{
		"version":      hs.version,
		"api_version":  contracts.APIVersion,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"source":       hs.source.Kind,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "unknown" && hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "unknown" && hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

// checkDatasetHealth reports whether a dataset has been loaded
func (hs *HealthService) checkDatasetHealth() ServiceHealth {
	if hs.dashboard == nil {
		return ServiceHealth{Status: "not_ready", Message: "dashboard service not initialized"}
	}
	ds := hs.dashboard.Dataset()
	if ds == nil {
		return ServiceHealth{Status: "not_ready", Message: "dataset not loaded"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d rows from %s", ds.Len(), ds.Stats.Source),
		Uptime:  time.Since(ds.LoadedAt).Round(time.Second).String(),
	}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "ready", Message: "WebSocket hub disabled"}
	}
	if !hs.hub.Running() {
		return ServiceHealth{Status: "not_ready", Message: "WebSocket hub not running"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkBoundaryHealth reports whether the map view can be drawn
func (hs *HealthService) checkBoundaryHealth() ServiceHealth {
	if hs.dashboard != nil && hs.dashboard.BoundariesAvailable() {
		return ServiceHealth{Status: "ready", Message: "region boundaries loaded"}
	}
	return ServiceHealth{Status: "degraded", Message: "region boundaries unavailable; map view disabled"}
}
