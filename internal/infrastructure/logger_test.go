package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"salesdash/internal/config"
)

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	cfg := config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.FileExists(t, logFile)

	logger.Info("dataset loaded", "rows", 3)
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(content, &entry))
	assert.Equal(t, "dataset loaded", entry["msg"])
	assert.Equal(t, float64(3), entry["rows"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestInitializeLoggerOnlyOnce(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "console"})
	require.NoError(t, err)
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, GetLogger())
}

func TestTraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug")

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.InfoContext(ctx, "with trace")
	logger.InfoContext(context.Background(), "without trace")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var withTrace, withoutTrace map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &withTrace))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &withoutTrace))

	assert.Equal(t, "trace-123", withTrace["trace_id"])
	assert.NotContains(t, withoutTrace, "trace_id")
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantWarn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warning", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)
			logger.Debug("debug line")
			logger.Warn("warn line")

			assert.Equal(t, tt.wantDebug, strings.Contains(buf.String(), "debug line"))
			assert.Equal(t, tt.wantWarn, strings.Contains(buf.String(), "warn line"))
		})
	}
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.NotEmpty(t, id)

	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	WithComponent(NewLogger(&buf, "info"), "loader").Info("hello")
	assert.Contains(t, buf.String(), `"component":"loader"`)
}

func TestLatencyRecorder(t *testing.T) {
	r := NewLatencyRecorder()
	for i := 1; i <= 100; i++ {
		r.Record("overview", time.Duration(i)*time.Millisecond)
	}
	r.Record("map", 0)
	r.Record("map", 2*time.Minute)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "map", snap[0].View)
	assert.Equal(t, int64(2), snap[0].Count)
	assert.LessOrEqual(t, snap[0].Max, 61*time.Second)

	overview := snap[1]
	assert.Equal(t, int64(100), overview.Count)
	assert.InDelta(t, float64(50*time.Millisecond), float64(overview.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(overview.P95), float64(time.Millisecond))
	assert.GreaterOrEqual(t, overview.Max, overview.P99)

	r.Reset()
	assert.Empty(t, r.Snapshot())

	var nilRecorder *LatencyRecorder
	nilRecorder.Record("x", time.Second)
	assert.Nil(t, nilRecorder.Snapshot())
}

func TestDashboardMetrics(t *testing.T) {
	m, err := CreateDashboardMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordDatasetLoad(ctx, "csv", 10, 1, time.Second, nil)
		m.RecordCacheLookup(ctx, true)
		m.RecordCacheLookup(ctx, false)
		m.RecordView(ctx, "overview")
		m.RecordForecast(ctx, "seasonal_trend", time.Second, nil)
	})

	var nilMetrics *DashboardMetrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordDatasetLoad(ctx, "csv", 1, 0, time.Second, nil)
		nilMetrics.RecordView(ctx, "overview")
	})
}
