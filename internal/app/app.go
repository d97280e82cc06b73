package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/metric"

	"salesdash/internal/config"
	"salesdash/internal/dataset"
	apperrors "salesdash/internal/errors"
	"salesdash/internal/forecast"
	"salesdash/internal/geo"
	"salesdash/internal/infrastructure"
	customMiddleware "salesdash/internal/middleware"
	"salesdash/internal/services"
	"salesdash/internal/source"
	handlers "salesdash/internal/transport/http"
	ws "salesdash/internal/websocket"
	"salesdash/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.DashboardMetrics
	Latency       *infrastructure.LatencyRecorder

	Source           source.Source
	Cache            *dataset.Cache
	Boundaries       *geo.Store
	WebSocketHub     *ws.Hub
	DashboardService *services.DashboardService
	HealthService    *services.HealthService

	runtimeMetrics metric.Registration
}

type options struct {
	baseDir string
	now     func() time.Time
}

// Option customises New
type Option func(*options)

// WithBaseDir resolves relative paths against dir instead of the working directory
func WithBaseDir(dir string) Option {
	return func(o *options) { o.baseDir = dir }
}

// WithClock fixes the reference time used for the date shift
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewApplication loads configuration from the environment and config file
// and builds the application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(ctx, cfg, logger)
}

// New wires every component from cfg. The dataset is loaded before New
// returns; a missing input table is returned as an error of type
// errors.ErrTypeMissingInput and must stop the process.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.GetVersionString()),
		slog.String("source", cfg.Source.Kind))

	var paths *config.Paths
	if o.baseDir != "" {
		paths = cfg.ResolvePathsFrom(o.baseDir)
	} else {
		var err error
		if paths, err = cfg.ResolvePaths(); err != nil {
			return nil, err
		}
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Latency:       infrastructure.NewLatencyRecorder(),
	}

	if providers.Meter != nil {
		if a.Metrics, err = infrastructure.CreateDashboardMetrics(providers.Meter); err != nil {
			_ = a.shutdownPartial(ctx)
			return nil, fmt.Errorf("failed to create dashboard metrics: %w", err)
		}
		if a.runtimeMetrics, err = infrastructure.RegisterRuntimeMetrics(providers.Meter, time.Now()); err != nil {
			_ = a.shutdownPartial(ctx)
			return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
		}
	}

	if err := a.initializeServices(ctx, o); err != nil {
		_ = a.shutdownPartial(ctx)
		return nil, err
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices opens the source, loads the dataset and builds the services
func (a *Application) initializeServices(ctx context.Context, o options) error {
	openCtx, cancel := context.WithTimeout(ctx, a.Config.Source.Timeout)
	defer cancel()

	src, err := source.Open(openCtx, a.Config, a.Paths, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open %s source: %w", a.Config.Source.Kind, err)
	}
	a.Source = src

	loader := dataset.NewLoader(src,
		dataset.WithClock(o.now),
		dataset.WithCategoryLanguage(a.Config.Analytics.CategoryLanguage),
		dataset.WithMetrics(a.Metrics),
		dataset.WithLogger(a.Logger))

	cacheOpts := []dataset.CacheOption{
		dataset.WithCacheMetrics(a.Metrics),
		dataset.WithCacheLogger(a.Logger),
		dataset.WithVerifyInterval(a.Config.Cache.VerifyInterval),
	}
	if !a.Config.Cache.Enabled {
		cacheOpts = append(cacheOpts, dataset.WithCacheDisabled())
	}
	a.Cache = dataset.NewCache(loader, cacheOpts...)

	ds, err := a.Cache.Get(openCtx)
	if err != nil {
		if source.IsMissingInput(err) {
			a.Logger.ErrorContext(ctx, "required input missing", slog.String("error", err.Error()))
		}
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	a.Logger.InfoContext(ctx, "Dataset loaded",
		slog.Int("rows", ds.Len()),
		slog.Int("dropped_rows", ds.Stats.DroppedRows),
		slog.String("fingerprint", ds.Fingerprint))

	a.Boundaries = geo.NewStore(a.Paths.BoundaryFile, geo.DefaultFeatureKey)
	if !a.Boundaries.Available() {
		a.Logger.WarnContext(ctx, "Region boundaries unavailable, map view disabled",
			slog.String("path", a.Paths.BoundaryFile))
	}

	a.WebSocketHub = ws.NewHub(a.Config.WebSocket, a.Metrics, a.Logger)
	a.WebSocketHub.Start()

	a.DashboardService = services.NewDashboardService(a.Config, a.Cache,
		forecast.NewSeasonalTrend(a.Config.Forecast.IntervalWidth, a.Config.Forecast.MinHistory),
		a.Boundaries,
		a.Logger,
		services.WithHub(a.WebSocketHub),
		services.WithLatencyRecorder(a.Latency),
		services.WithDashboardMetrics(a.Metrics),
		services.WithServiceClock(o.now))

	a.HealthService = services.NewHealthService(a.Config.Source, a.DashboardService, a.WebSocketHub, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// The websocket route skips the response-wrapping middleware below.
	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, a.Config.WebSocket, a.allowedOrigins(), a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.allowedOrigins(),
				Logger:         a.Logger,
			}))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		a.setupAPIRoutes(r, errorHandler)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apperrors.ErrorHandler) {
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	dashboardHandler := handlers.NewDashboardHandler(a.DashboardService, a.Logger, errorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
		r.Mount("/dashboard", dashboardHandler.Routes())
		r.Get("/stats", dashboardHandler.GetStats)
	})
}

func (a *Application) allowedOrigins() []string {
	origins := append([]string{}, a.Config.Security.AllowedOrigins...)
	local := fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)
	for _, o := range origins {
		if o == local {
			return origins
		}
	}
	return append(origins, local)
}

// createServer creates the HTTP server
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

// Start starts serving HTTP in the background. cancel is called when the
// server stops with an error.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting HTTP server",
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if err := a.shutdownPartial(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// shutdownPartial releases whatever New managed to create
func (a *Application) shutdownPartial(ctx context.Context) error {
	var errs []error

	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.Source != nil {
		if err := a.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close: %w", err))
		}
	}
	if a.runtimeMetrics != nil {
		if err := a.runtimeMetrics.Unregister(); err != nil {
			errs = append(errs, fmt.Errorf("runtime metrics: %w", err))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
