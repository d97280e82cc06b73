package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"salesdash/internal/analytics"
	"salesdash/internal/config"
	"salesdash/internal/dataset"
	apperrors "salesdash/internal/errors"
	"salesdash/internal/exporter"
	"salesdash/internal/forecast"
	"salesdash/internal/geo"
	"salesdash/internal/infrastructure"
	api "salesdash/pkg/contracts/api/v1"
	"salesdash/pkg/contracts/domain"
	"salesdash/pkg/contracts/events"
)

// View names used for latency tracking and metrics
const (
	ViewOptions   = "options"
	ViewOverview  = "overview"
	ViewGeography = "geography"
	ViewMap       = "map"
	ViewCustomers = "customers"
	ViewForecast  = "forecast"
	ViewExport    = "export"
	ViewReload    = "reload"
)

// WebSocketHub interface for WebSocket communication
type WebSocketHub interface {
	Broadcast(messageType string, data interface{})
}

// ExportFile is an encoded report ready to be downloaded
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// DashboardStats reports cache, latency and runtime statistics
type DashboardStats struct {
	Cache   dataset.CacheStats              `json:"cache"`
	Load    *dataset.LoadStats              `json:"load,omitempty"`
	Latency []infrastructure.LatencySummary `json:"latency"`
	Runtime infrastructure.RuntimeStats     `json:"runtime"`
}

// DashboardService computes the dashboard views from the cached dataset
type DashboardService struct {
	cfg        *config.Config
	cache      *dataset.Cache
	forecaster forecast.Forecaster
	boundaries *geo.Store
	hub        WebSocketHub
	latency    *infrastructure.LatencyRecorder
	metrics    *infrastructure.DashboardMetrics
	now        func() time.Time
	started    time.Time
	logger     *slog.Logger

	forecastMu   sync.Mutex
	forecastDS   *dataset.Dataset
	forecastView *api.ForecastResponse
}

// DashboardOption configures a DashboardService
type DashboardOption func(*DashboardService)

// WithHub broadcasts dataset lifecycle events on hub
func WithHub(hub WebSocketHub) DashboardOption {
	return func(s *DashboardService) { s.hub = hub }
}

// WithLatencyRecorder records the duration of every view
func WithLatencyRecorder(r *infrastructure.LatencyRecorder) DashboardOption {
	return func(s *DashboardService) { s.latency = r }
}

// WithDashboardMetrics records view and forecast metrics
func WithDashboardMetrics(m *infrastructure.DashboardMetrics) DashboardOption {
	return func(s *DashboardService) { s.metrics = m }
}

// WithServiceClock overrides the clock used to stamp exports
func WithServiceClock(now func() time.Time) DashboardOption {
	return func(s *DashboardService) { s.now = now }
}

// NewDashboardService creates a new dashboard service. boundaries may be
// nil, in which case only the map view fails.
func NewDashboardService(cfg *config.Config, cache *dataset.Cache, forecaster forecast.Forecaster, boundaries *geo.Store, logger *slog.Logger, opts ...DashboardOption) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DashboardService{
		cfg:        cfg,
		cache:      cache,
		forecaster: forecaster,
		boundaries: boundaries,
		now:        time.Now,
		started:    time.Now(),
		logger:     logger.With(slog.String("component", "dashboard_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin starts a span and returns the function that ends it and records
// the view latency.
func (s *DashboardService) begin(ctx context.Context, view string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := infrastructure.Tracer().Start(ctx, "dashboard."+view,
		trace.WithAttributes(attribute.String("view", view)))
	return ctx, func(err error) {
		if err != nil {
			infrastructure.RecordError(ctx, err)
		} else {
			s.metrics.RecordView(ctx, view)
		}
		s.latency.Since(view, start)
		span.End()
	}
}

func (s *DashboardService) revenueMode() domain.RevenueMode {
	return domain.RevenueMode(s.cfg.Analytics.RevenueMode)
}

// Filter resolves query parameters against the loaded dataset. Absent
// values fall back to the default filter.
func (s *DashboardService) Filter(ds *dataset.Dataset, q api.DashboardQuery) (analytics.Filter, error) {
	def := analytics.DefaultFilter(ds, s.cfg.Analytics.DefaultMonths, s.cfg.Analytics.DefaultStates)

	start, end := def.Start, def.End
	if t, ok := q.StartDate(); ok {
		start = t
	} else if q.Start != "" {
		return analytics.Filter{}, fmt.Errorf("%w: bad start date %q", ErrInvalidFilter, q.Start)
	}
	if t, ok := q.EndDate(); ok {
		end = t
	} else if q.End != "" {
		return analytics.Filter{}, fmt.Errorf("%w: bad end date %q", ErrInvalidFilter, q.End)
	}
	start, end = analytics.DayRange(start, end)

	states := def.States
	if q.StatesSet {
		states = append([]string{}, q.States...)
	}

	return analytics.Filter{Start: start, End: end, States: states}, nil
}

// Metric parses a state metric name; empty selects revenue
func Metric(name string) (domain.StateMetric, error) {
	if name == "" {
		return domain.StateMetricRevenue, nil
	}
	m := domain.StateMetric(name)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMetric, name)
	}
	return m, nil
}

func filterView(f analytics.Filter) api.FilterView {
	states := f.States
	if states == nil {
		states = []string{}
	}
	return api.FilterView{
		Start:  f.Start.Format(api.DateLayout),
		End:    f.End.Format(api.DateLayout),
		States: states,
	}
}

// filtered loads the dataset and applies the query filter
func (s *DashboardService) filtered(ctx context.Context, q api.DashboardQuery) (*dataset.Dataset, analytics.Filter, []*domain.OrderRow, error) {
	ds, err := s.cache.Get(ctx)
	if err != nil {
		return nil, analytics.Filter{}, nil, err
	}
	f, err := s.Filter(ds, q)
	if err != nil {
		return nil, analytics.Filter{}, nil, err
	}
	return ds, f, analytics.Apply(ds.All(), f), nil
}

// Options returns the date bounds, states and defaults of the filter controls
func (s *DashboardService) Options(ctx context.Context) (result *api.OptionsResponse, err error) {
	ctx, end := s.begin(ctx, ViewOptions)
	defer func() { end(err) }()

	ds, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	def := analytics.DefaultFilter(ds, s.cfg.Analytics.DefaultMonths, s.cfg.Analytics.DefaultStates)

	result = &api.OptionsResponse{
		States:      append([]string{}, ds.States...),
		Default:     filterView(def),
		Metrics:     []domain.StateMetric{domain.StateMetricRevenue, domain.StateMetricAverageTicket, domain.StateMetricOrderCount},
		RevenueMode: s.revenueMode(),
		Rows:        ds.Len(),
		LoadedAt:    ds.LoadedAt,
		Source:      ds.Stats.Source,
	}
	if ds.Len() > 0 {
		result.MinDate = ds.MinPurchase.Format(api.DateLayout)
		result.MaxDate = ds.MaxPurchase.Format(api.DateLayout)
	}
	return result, nil
}

// Overview returns the KPIs, the monthly revenue series and the top categories
func (s *DashboardService) Overview(ctx context.Context, q api.DashboardQuery) (result *api.OverviewResponse, err error) {
	ctx, end := s.begin(ctx, ViewOverview)
	defer func() { end(err) }()

	_, f, rows, err := s.filtered(ctx, q)
	if err != nil {
		return nil, err
	}

	mode := s.revenueMode()
	return &api.OverviewResponse{
		Filter:        filterView(f),
		KPIs:          analytics.ComputeKPIs(rows, mode),
		Monthly:       analytics.MonthlyRevenue(rows, mode),
		TopCategories: analytics.TopCategories(rows, s.cfg.Analytics.TopCategories),
	}, nil
}

// Geography returns the per-state table sorted by metric and the top states
func (s *DashboardService) Geography(ctx context.Context, q api.DashboardQuery) (result *api.GeographyResponse, err error) {
	ctx, end := s.begin(ctx, ViewGeography)
	defer func() { end(err) }()

	metric, err := Metric(q.Metric)
	if err != nil {
		return nil, err
	}
	_, f, rows, err := s.filtered(ctx, q)
	if err != nil {
		return nil, err
	}

	stats := analytics.StateStatistics(rows, s.revenueMode())
	return &api.GeographyResponse{
		Filter:    filterView(f),
		Metric:    metric,
		States:    analytics.SortStates(stats, metric),
		TopStates: analytics.TopStates(stats, metric, s.cfg.Analytics.TopStates),
	}, nil
}

// Map returns the choropleth of the per-state metric. It fails with
// ErrBoundariesUnavailable when the boundary file is missing or invalid.
func (s *DashboardService) Map(ctx context.Context, q api.DashboardQuery) (result *api.MapResponse, err error) {
	ctx, end := s.begin(ctx, ViewMap)
	defer func() { end(err) }()

	metric, err := Metric(q.Metric)
	if err != nil {
		return nil, err
	}
	if s.boundaries == nil {
		return nil, fmt.Errorf("%w: no boundary file configured", ErrBoundariesUnavailable)
	}
	b, err := s.boundaries.Get()
	if err != nil {
		s.logger.WarnContext(ctx, "map unavailable",
			slog.String("path", s.boundaries.Path()),
			slog.String("error", err.Error()))
		return nil, err
	}

	_, f, rows, err := s.filtered(ctx, q)
	if err != nil {
		return nil, err
	}

	layer := geo.Choropleth(b, analytics.StateStatistics(rows, s.revenueMode()), metric)
	if len(layer.Unmatched) > 0 {
		s.logger.WarnContext(ctx, "states without boundary",
			slog.Any("states", layer.Unmatched))
	}

	return &api.MapResponse{
		Filter:     filterView(f),
		Metric:     metric,
		Min:        layer.Min,
		Max:        layer.Max,
		Unmatched:  layer.Unmatched,
		Collection: layer.Collection,
	}, nil
}

// Customers returns the fulfilment funnel and the review score histogram
func (s *DashboardService) Customers(ctx context.Context, q api.DashboardQuery) (result *api.CustomersResponse, err error) {
	ctx, end := s.begin(ctx, ViewCustomers)
	defer func() { end(err) }()

	_, f, rows, err := s.filtered(ctx, q)
	if err != nil {
		return nil, err
	}

	funnel := analytics.ComputeFunnel(rows)
	if verr := funnel.Validate(); verr != nil {
		s.logger.WarnContext(ctx, "unexpected order statuses", slog.String("error", verr.Error()))
	}

	return &api.CustomersResponse{
		Filter:    filterView(f),
		Funnel:    funnel,
		Stages:    funnel.Stages(),
		Monotonic: funnel.Monotonic(),
		Reviews:   analytics.ReviewHistogram(rows),
	}, nil
}

// Forecast projects daily revenue over the configured horizon from the full
// history, ignoring any filter. The result is cached per dataset.
func (s *DashboardService) Forecast(ctx context.Context) (result *api.ForecastResponse, err error) {
	ctx, end := s.begin(ctx, ViewForecast)
	defer func() { end(err) }()

	ds, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	s.forecastMu.Lock()
	defer s.forecastMu.Unlock()
	if s.forecastView != nil && s.forecastDS == ds {
		return s.forecastView, nil
	}

	mode := s.revenueMode()
	history := analytics.DailyRevenue(ds.All(), mode)

	start := time.Now()
	model, err := s.forecaster.Fit(ctx, history)
	s.metrics.RecordForecast(ctx, s.forecaster.Name(), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	view := &api.ForecastResponse{
		Model:         s.forecaster.Name(),
		IntervalWidth: s.cfg.Forecast.IntervalWidth,
		Horizon:       s.cfg.Forecast.Horizon,
		RevenueMode:   mode,
		History:       history,
		Points:        model.Predict(s.cfg.Forecast.Horizon),
		Fingerprint:   ds.Fingerprint,
	}
	s.logger.InfoContext(ctx, "forecast fitted",
		slog.String("model", view.Model),
		slog.Int("history_days", len(history)),
		slog.Int("horizon", view.Horizon),
		slog.Duration("duration", time.Since(start)))

	s.forecastDS, s.forecastView = ds, view
	return view, nil
}

// Report computes every view for the query. The forecast is included when
// withForecast is set and there is enough history; otherwise it is left out.
func (s *DashboardService) Report(ctx context.Context, q api.DashboardQuery, withForecast bool) (*exporter.Report, error) {
	metric, err := Metric(q.Metric)
	if err != nil {
		return nil, err
	}
	_, f, rows, err := s.filtered(ctx, q)
	if err != nil {
		return nil, err
	}

	mode := s.revenueMode()
	report := &exporter.Report{
		GeneratedAt: s.now().UTC(),
		Start:       f.Start,
		End:         f.End,
		StateCodes:  f.States,
		Metric:      metric,
		KPIs:        analytics.ComputeKPIs(rows, mode),
		Monthly:     analytics.MonthlyRevenue(rows, mode),
		Categories:  analytics.TopCategories(rows, s.cfg.Analytics.TopCategories),
		StateStats:  analytics.SortStates(analytics.StateStatistics(rows, mode), metric),
		Funnel:      analytics.ComputeFunnel(rows),
		Reviews:     analytics.ReviewHistogram(rows),
	}

	if withForecast {
		fc, err := s.Forecast(ctx)
		switch {
		case err == nil:
			report.Forecast = fc.Points
		case errors.Is(err, ErrInsufficientHistory):
			s.logger.WarnContext(ctx, "forecast left out of report", slog.String("error", err.Error()))
		default:
			return nil, err
		}
	}
	return report, nil
}

// Export encodes the report for the query in q.Format (csv when empty)
func (s *DashboardService) Export(ctx context.Context, q api.DashboardQuery) (result *ExportFile, err error) {
	ctx, end := s.begin(ctx, ViewExport)
	defer func() { end(err) }()

	format, err := exporter.ParseFormat(q.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	report, err := s.Report(ctx, q, true)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := exporter.Encode(&buf, format, report); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeInternal, "failed to encode export", err)
	}

	return &ExportFile{
		Name:        format.FileName("sales_dashboard", report.GeneratedAt),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// Reload drops the cached dataset, loads it again and notifies websocket
// clients of the outcome.
func (s *DashboardService) Reload(ctx context.Context) (result *api.ReloadResponse, err error) {
	ctx, end := s.begin(ctx, ViewReload)
	defer func() { end(err) }()

	ds, err := s.cache.Reload(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "dataset reload failed", slog.String("error", err.Error()))
		s.broadcast(events.MessageTypeDatasetLoadFailed, loadFailed(s.cfg.Source.Kind, err))
		return nil, err
	}

	s.broadcast(events.MessageTypeDatasetReloaded, events.DatasetReloaded{
		Source:      ds.Stats.Source,
		Fingerprint: ds.Fingerprint,
		Rows:        ds.Len(),
		DroppedRows: ds.Stats.DroppedRows,
		LoadedAt:    ds.LoadedAt,
		MinPurchase: ds.MinPurchase,
		MaxPurchase: ds.MaxPurchase,
		DurationMS:  ds.Stats.Duration.Milliseconds(),
	})

	return &api.ReloadResponse{
		Source:      ds.Stats.Source,
		Fingerprint: ds.Fingerprint,
		Rows:        ds.Len(),
		DroppedRows: ds.Stats.DroppedRows,
		LoadedAt:    ds.LoadedAt,
	}, nil
}

func (s *DashboardService) broadcast(msgType events.MessageType, data interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(string(msgType), data)
}

func loadFailed(source string, err error) events.DatasetLoadFailed {
	payload := events.DatasetLoadFailed{Source: source, Error: err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ErrTypeMissingInput {
		if table, ok := appErr.Context["table"].(string); ok {
			payload.Table = table
		}
	}
	return payload
}

// Stats returns cache and latency statistics
func (s *DashboardService) Stats() DashboardStats {
	stats := DashboardStats{
		Cache:   s.cache.Stats(),
		Latency: s.latency.Snapshot(),
		Runtime: infrastructure.ReadRuntimeStats(s.started),
	}
	if stats.Latency == nil {
		stats.Latency = []infrastructure.LatencySummary{}
	}
	if ds := s.cache.Current(); ds != nil {
		load := ds.Stats
		stats.Load = &load
	}
	return stats
}

// Dataset returns the cached dataset without loading it
func (s *DashboardService) Dataset() *dataset.Dataset {
	return s.cache.Current()
}

// BoundariesAvailable reports whether the map view can be drawn
func (s *DashboardService) BoundariesAvailable() bool {
	return s.boundaries != nil && s.boundaries.Available()
}
