package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/config"
	"salesdash/internal/dataset"
	apperrors "salesdash/internal/errors"
	"salesdash/internal/forecast"
	"salesdash/internal/geo"
	"salesdash/internal/infrastructure"
	"salesdash/internal/shared/testutil"
	"salesdash/internal/source"
	api "salesdash/pkg/contracts/api/v1"
	"salesdash/pkg/contracts/domain"
	"salesdash/pkg/contracts/events"
)

// scenarioNow equals the latest purchase of the three order scenario, so
// the date shift is zero and dates read as in the fixtures.
var scenarioNow = time.Date(2024, 2, 20, 8, 15, 0, 0, time.UTC)

type broadcastRecord struct {
	msgType string
	data    interface{}
}

type recordingHub struct {
	mu       sync.Mutex
	messages []broadcastRecord
}

func (h *recordingHub) Broadcast(messageType string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, broadcastRecord{messageType, data})
}

func (h *recordingHub) last() broadcastRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) == 0 {
		return broadcastRecord{}
	}
	return h.messages[len(h.messages)-1]
}

type serviceFixture struct {
	svc      *DashboardService
	dir      string
	boundary string
	hub      *recordingHub
	cfg      *config.Config
	// loaderNow is the reference time of the next dataset load
	loaderNow *time.Time
}

func newServiceFixture(t *testing.T, mutate func(*config.Config)) *serviceFixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	dir := testutil.WriteOlistCSV(t, testutil.ThreeOrderScenario()...)
	boundary := testutil.WriteBoundaries(t, dir, cfg.Paths.BoundaryFile)

	loaderNow := scenarioNow
	src := source.NewCSVSource(dir, config.DefaultTableFiles, logger)
	loader := dataset.NewLoader(src,
		dataset.WithClock(func() time.Time { return loaderNow }),
		dataset.WithCategoryLanguage(cfg.Analytics.CategoryLanguage),
		dataset.WithLogger(logger))
	cache := dataset.NewCache(loader, dataset.WithCacheLogger(logger))

	hub := &recordingHub{}
	svc := NewDashboardService(cfg, cache,
		forecast.NewSeasonalTrend(cfg.Forecast.IntervalWidth, cfg.Forecast.MinHistory),
		geo.NewStore(boundary, geo.DefaultFeatureKey),
		logger,
		WithHub(hub),
		WithLatencyRecorder(infrastructure.NewLatencyRecorder()),
		WithServiceClock(func() time.Time { return scenarioNow }),
	)

	return &serviceFixture{svc: svc, dir: dir, boundary: boundary, hub: hub, cfg: cfg, loaderNow: &loaderNow}
}

func spQuery() api.DashboardQuery {
	return api.DashboardQuery{Start: "2024-01-01", End: "2024-02-29", States: []string{"SP"}, StatesSet: true}
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestDashboardOverview(t *testing.T) {
	f := newServiceFixture(t, nil)

	result, err := f.svc.Overview(context.Background(), spQuery())
	require.NoError(t, err)

	assert.Equal(t, api.FilterView{Start: "2024-01-01", End: "2024-02-29", States: []string{"SP"}}, result.Filter)
	assert.Equal(t, 150.0, result.KPIs.TotalRevenue)
	assert.Equal(t, 2, result.KPIs.OrderCount)
	assert.Equal(t, 2, result.KPIs.CustomerCount)
	assert.Equal(t, domain.RevenueModeRow, result.KPIs.RevenueMode)
	assert.Equal(t, []domain.MonthlyRevenue{
		{Month: month(2024, time.January), Revenue: 100},
		{Month: month(2024, time.February), Revenue: 50},
	}, result.Monthly)
	assert.Equal(t, []domain.CategoryCount{
		{Category: "Beleza Saude", Count: 1},
		{Category: "Cama Mesa Banho", Count: 1},
	}, result.TopCategories)
}

func TestDashboardDefaultFilter(t *testing.T) {
	f := newServiceFixture(t, nil)

	result, err := f.svc.Overview(context.Background(), api.DashboardQuery{})
	require.NoError(t, err)

	// twelve months back from the last purchase is clamped to the first one;
	// MG is a default state but has no orders
	assert.Equal(t, api.FilterView{Start: "2024-01-05", End: "2024-02-20", States: []string{"SP", "RJ"}}, result.Filter)
	assert.Equal(t, 180.0, result.KPIs.TotalRevenue)
	assert.Equal(t, 3, result.KPIs.OrderCount)
}

func TestDashboardExplicitEmptyStates(t *testing.T) {
	f := newServiceFixture(t, nil)

	result, err := f.svc.Overview(context.Background(), api.DashboardQuery{StatesSet: true})
	require.NoError(t, err)

	assert.Empty(t, result.Filter.States)
	assert.NotNil(t, result.Filter.States)
	assert.Zero(t, result.KPIs.TotalRevenue)
	assert.Zero(t, result.KPIs.OrderCount)
	assert.Empty(t, result.Monthly)
	assert.Empty(t, result.TopCategories)
}

func TestDashboardFilterErrors(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name: "malformed date",
			run: func() error {
				_, err := f.svc.Customers(ctx, api.DashboardQuery{Start: "01/02/2024"})
				return err
			},
			wantErr: ErrInvalidFilter,
		},
		{
			name: "unknown metric",
			run: func() error {
				_, err := f.svc.Geography(ctx, api.DashboardQuery{Metric: "profit"})
				return err
			},
			wantErr: ErrInvalidMetric,
		},
		{
			name: "unknown export format",
			run: func() error {
				_, err := f.svc.Export(ctx, api.DashboardQuery{Format: "pdf"})
				return err
			},
			wantErr: ErrInvalidFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.wantErr)
		})
	}
}

func TestDashboardInvertedRangeIsEmpty(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	q := api.DashboardQuery{Start: "2024-02-01", End: "2024-01-01"}

	overview, err := f.svc.Overview(ctx, q)
	require.NoError(t, err)
	assert.Zero(t, overview.KPIs.TotalRevenue)
	assert.Zero(t, overview.KPIs.OrderCount)
	assert.Empty(t, overview.Monthly)
	assert.Empty(t, overview.TopCategories)

	geography, err := f.svc.Geography(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, geography.States)

	customers, err := f.svc.Customers(ctx, q)
	require.NoError(t, err)
	assert.Zero(t, customers.Funnel.Created)
	assert.Empty(t, customers.Reviews)
}

func TestDashboardSameDayRange(t *testing.T) {
	f := newServiceFixture(t, nil)

	q := api.DashboardQuery{Start: "2024-02-10", End: "2024-02-10", States: []string{"SP"}, StatesSet: true}
	result, err := f.svc.Overview(context.Background(), q)
	require.NoError(t, err)

	// the end date covers the whole day, including the 15:30 purchase
	assert.Equal(t, 50.0, result.KPIs.TotalRevenue)
}

func TestDashboardGeography(t *testing.T) {
	f := newServiceFixture(t, nil)

	result, err := f.svc.Geography(context.Background(), api.DashboardQuery{})
	require.NoError(t, err)

	assert.Equal(t, domain.StateMetricRevenue, result.Metric)
	assert.Equal(t, []domain.StateStats{
		{State: "SP", Revenue: 150, OrderCount: 2, AverageTicket: 75},
		{State: "RJ", Revenue: 30, OrderCount: 1, AverageTicket: 30},
	}, result.States)
	assert.Len(t, result.TopStates, 2)

	for _, s := range result.States {
		assert.Positive(t, s.OrderCount)
	}
}

func TestDashboardMap(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	result, err := f.svc.Map(ctx, api.DashboardQuery{Metric: string(domain.StateMetricOrderCount)})
	require.NoError(t, err)

	require.Len(t, result.Collection.Features, 2)
	assert.Equal(t, 1.0, result.Min)
	assert.Equal(t, 2.0, result.Max)
	assert.Empty(t, result.Unmatched)
	assert.True(t, f.svc.BoundariesAvailable())

	require.NoError(t, os.Remove(f.boundary))

	_, err = f.svc.Map(ctx, api.DashboardQuery{})
	assert.ErrorIs(t, err, ErrBoundariesUnavailable)
	assert.False(t, f.svc.BoundariesAvailable())

	// every other view keeps working
	_, err = f.svc.Geography(ctx, api.DashboardQuery{})
	assert.NoError(t, err)
}

func TestDashboardMapWithoutStore(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	svc := NewDashboardService(config.Default(), nil, nil, nil, logger)

	_, err := svc.Map(context.Background(), api.DashboardQuery{})
	assert.ErrorIs(t, err, ErrBoundariesUnavailable)
	assert.False(t, svc.BoundariesAvailable())
}

func TestDashboardCustomers(t *testing.T) {
	f := newServiceFixture(t, nil)

	result, err := f.svc.Customers(context.Background(), api.DashboardQuery{})
	require.NoError(t, err)

	assert.Equal(t, domain.Funnel{Created: 3, Paid: 3, Delivered: 2}, result.Funnel)
	assert.True(t, result.Monotonic)
	assert.Equal(t, []domain.FunnelStage{
		{Label: "Orders created", Count: 3},
		{Label: "Orders paid", Count: 3},
		{Label: "Orders delivered", Count: 2},
	}, result.Stages)
	assert.Equal(t, []domain.ReviewBucket{
		{Score: 3, Count: 1},
		{Score: 4, Count: 1},
		{Score: 5, Count: 1},
	}, result.Reviews)
}

func TestDashboardForecast(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	result, err := f.svc.Forecast(ctx)
	require.NoError(t, err)

	assert.Equal(t, "seasonal_trend", result.Model)
	assert.Len(t, result.History, 47, "zero-filled from 2024-01-05 to 2024-02-20")
	require.Len(t, result.Points, f.cfg.Forecast.Horizon)
	assert.Equal(t, time.Date(2024, 2, 21, 0, 0, 0, 0, time.UTC), result.Points[0].Date)
	for _, p := range result.Points {
		assert.LessOrEqual(t, p.Lower, p.Estimate)
		assert.GreaterOrEqual(t, p.Upper, p.Estimate)
	}

	again, err := f.svc.Forecast(ctx)
	require.NoError(t, err)
	assert.Same(t, result, again, "forecast is cached per dataset")
}

func TestDashboardForecastFollowsReload(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	before, err := f.svc.Forecast(ctx)
	require.NoError(t, err)

	// same files, later clock: the fingerprint is unchanged but every date moves
	*f.loaderNow = scenarioNow.AddDate(0, 0, 30)
	reloaded, err := f.svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Fingerprint, reloaded.Fingerprint)

	after, err := f.svc.Forecast(ctx)
	require.NoError(t, err)
	assert.NotSame(t, before, after)

	ds := f.svc.Dataset()
	require.NotNil(t, ds)
	lastDay := after.History[len(after.History)-1].Date
	assert.Equal(t, time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC), lastDay)
	assert.Equal(t, ds.MaxPurchase.Format(api.DateLayout), lastDay.Format(api.DateLayout))
	assert.Equal(t, lastDay.AddDate(0, 0, 1), after.Points[0].Date)
}

func TestDashboardForecastInsufficientHistory(t *testing.T) {
	f := newServiceFixture(t, func(cfg *config.Config) { cfg.Forecast.MinHistory = 100 })
	ctx := context.Background()

	_, err := f.svc.Forecast(ctx)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	// exports still succeed without the forecast table
	file, err := f.svc.Export(ctx, api.DashboardQuery{})
	require.NoError(t, err)
	assert.NotContains(t, string(file.Data), "Forecast")
}

func TestDashboardExport(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	csvFile, err := f.svc.Export(ctx, spQuery())
	require.NoError(t, err)
	assert.Equal(t, "sales_dashboard_20240220_081500.csv", csvFile.Name)
	assert.Equal(t, "text/csv; charset=utf-8", csvFile.ContentType)
	assert.True(t, bytes.HasPrefix(csvFile.Data, []byte("\ufeff")))
	assert.True(t, strings.Contains(string(csvFile.Data), "Top categories"))

	xlsxFile, err := f.svc.Export(ctx, api.DashboardQuery{Format: "xlsx"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(xlsxFile.Name, ".xlsx"))
	assert.True(t, bytes.HasPrefix(xlsxFile.Data, []byte("PK")), "xlsx is a zip archive")
}

func TestDashboardReport(t *testing.T) {
	f := newServiceFixture(t, nil)

	report, err := f.svc.Report(context.Background(), spQuery(), false)
	require.NoError(t, err)

	assert.Equal(t, scenarioNow, report.GeneratedAt)
	assert.Equal(t, []string{"SP"}, report.StateCodes)
	assert.Equal(t, 150.0, report.KPIs.TotalRevenue)
	assert.Nil(t, report.Forecast)

	var monthly float64
	for _, m := range report.Monthly {
		monthly += m.Revenue
	}
	assert.InDelta(t, report.KPIs.TotalRevenue, monthly, 1e-9)
}

func TestDashboardReload(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	result, err := f.svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, config.SourceCSV, result.Source)

	msg := f.hub.last()
	assert.Equal(t, string(events.MessageTypeDatasetReloaded), msg.msgType)
	payload, ok := msg.data.(events.DatasetReloaded)
	require.True(t, ok)
	assert.Equal(t, 3, payload.Rows)
	assert.Equal(t, result.Fingerprint, payload.Fingerprint)

	require.NoError(t, os.Remove(filepath.Join(f.dir, config.DefaultTableFiles[config.TablePayments])))

	_, err = f.svc.Reload(ctx)
	require.Error(t, err)
	assert.True(t, source.IsMissingInput(err))

	msg = f.hub.last()
	assert.Equal(t, string(events.MessageTypeDatasetLoadFailed), msg.msgType)
	failed, ok := msg.data.(events.DatasetLoadFailed)
	require.True(t, ok)
	assert.Equal(t, config.TablePayments, failed.Table)
}

func TestDashboardMissingInput(t *testing.T) {
	f := newServiceFixture(t, nil)
	require.NoError(t, os.Remove(filepath.Join(f.dir, config.DefaultTableFiles[config.TableOrders])))

	_, err := f.svc.Options(context.Background())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeMissingInput, appErr.Type)
	assert.Equal(t, config.TableOrders, appErr.Context["table"])
}

func TestDashboardOptionsAndStats(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	assert.Nil(t, f.svc.Dataset())

	opts, err := f.svc.Options(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", opts.MinDate)
	assert.Equal(t, "2024-02-20", opts.MaxDate)
	assert.Equal(t, []string{"RJ", "SP"}, opts.States)
	assert.Equal(t, []string{"SP", "RJ"}, opts.Default.States)
	assert.Len(t, opts.Metrics, 3)
	assert.Equal(t, 3, opts.Rows)

	_, err = f.svc.Overview(ctx, api.DashboardQuery{})
	require.NoError(t, err)

	stats := f.svc.Stats()
	assert.EqualValues(t, 1, stats.Cache.Loads)
	assert.EqualValues(t, 1, stats.Cache.Hits)
	require.NotNil(t, stats.Load)
	assert.Equal(t, 3, stats.Load.JoinedRows)

	views := make(map[string]int64)
	for _, l := range stats.Latency {
		views[l.View] = l.Count
	}
	assert.Equal(t, map[string]int64{ViewOptions: 1, ViewOverview: 1}, views)
	assert.NotNil(t, f.svc.Dataset())
}
