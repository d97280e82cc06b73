package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a snapshot of the Go runtime reported by /api/stats
type RuntimeStats struct {
	Goroutines     int     `json:"goroutines"`
	HeapAllocBytes uint64  `json:"heap_alloc_bytes"`
	SysBytes       uint64  `json:"sys_bytes"`
	NumGC          uint32  `json:"gc_count"`
	LastGCPauseMS  float64 `json:"last_gc_pause_ms"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// ReadRuntimeStats reads the current runtime statistics
func ReadRuntimeStats(start time.Time) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := RuntimeStats{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
		SysBytes:       mem.Sys,
		NumGC:          mem.NumGC,
		UptimeSeconds:  time.Since(start).Seconds(),
	}
	if mem.NumGC > 0 {
		pause := time.Duration(mem.PauseNs[(mem.NumGC+255)%256])
		stats.LastGCPauseMS = float64(pause) / float64(time.Millisecond)
	}
	return stats
}

// RegisterRuntimeMetrics exposes goroutine, heap and uptime gauges. The
// values are read on every collection; unregister the returned
// registration on shutdown.
func RegisterRuntimeMetrics(meter metric.Meter, start time.Time) (metric.Registration, error) {
	goroutines, err := meter.Int64ObservableGauge(
		"salesdash_runtime_goroutines",
		metric.WithDescription("Number of live goroutines"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create goroutine gauge: %w", err)
	}

	heap, err := meter.Int64ObservableGauge(
		"salesdash_runtime_heap_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create heap gauge: %w", err)
	}

	gcCount, err := meter.Int64ObservableCounter(
		"salesdash_runtime_gc_total",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gc counter: %w", err)
	}

	uptime, err := meter.Float64ObservableGauge(
		"salesdash_process_uptime_seconds",
		metric.WithDescription("Seconds since the process started"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create uptime gauge: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := ReadRuntimeStats(start)
		o.ObserveInt64(goroutines, int64(stats.Goroutines))
		o.ObserveInt64(heap, int64(stats.HeapAllocBytes))
		o.ObserveInt64(gcCount, int64(stats.NumGC))
		o.ObserveFloat64(uptime, stats.UptimeSeconds)
		return nil
	}, goroutines, heap, gcCount, uptime)
}
