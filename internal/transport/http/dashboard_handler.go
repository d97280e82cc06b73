package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/middleware"
	"salesdash/internal/services"
	api "salesdash/pkg/contracts/api/v1"
)

// DashboardHandler serves the dashboard views
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    *middleware.QueryValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{
		service:      service,
		validator:    middleware.NewQueryValidator(logger),
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/options", h.GetOptions)
		r.Get("/overview", h.GetOverview)
		r.Get("/geography", h.GetGeography)
		r.Get("/map", h.GetMap)
		r.Get("/customers", h.GetCustomers)
		r.Get("/forecast", h.GetForecast)
	})

	// xlsx is already zipped; only CSV exports are compressed
	r.With(middleware.Compress(5, "text/csv")).Get("/export", h.Export)

	r.With(middleware.AuditLog(h.logger)).Post("/reload", h.Reload)

	return r
}

// GetOptions handles GET /api/dashboard/options
func (h *DashboardHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, r, opts)
}

// GetOverview handles GET /api/dashboard/overview
func (h *DashboardHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	view, err := h.service.Overview(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, r, view)
}

// GetGeography handles GET /api/dashboard/geography
func (h *DashboardHandler) GetGeography(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	view, err := h.service.Geography(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, r, view)
}

// GetMap handles GET /api/dashboard/map. It answers 503 when the boundary
// file is missing while every other view keeps working.
func (h *DashboardHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	view, err := h.service.Map(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, r, view)
}

// GetCustomers handles GET /api/dashboard/customers
func (h *DashboardHandler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	view, err := h.service.Customers(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, r, view)
}

// GetForecast handles GET /api/dashboard/forecast. Filters do not apply:
// the forecast always covers the full history.
func (h *DashboardHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Forecast(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, r, view)
}

// Export handles GET /api/dashboard/export and streams a CSV or XLSX file
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	file, err := h.service.Export(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "export generated",
		slog.String("file", file.Name),
		slog.Int("bytes", len(file.Data)))

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

// Reload handles POST /api/dashboard/reload
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Reload(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, r, result)
}

// GetStats handles GET /api/stats
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.success(w, r, h.service.Stats())
}

func (h *DashboardHandler) query(w http.ResponseWriter, r *http.Request) (api.DashboardQuery, bool) {
	q, err := h.validator.ParseDashboardQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return q, false
	}
	return q, true
}

func (h *DashboardHandler) success(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}

// fail maps service errors onto API errors. AppErrors keep their own
// mapping in the error handler.
func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apierrors.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, services.ErrInvalidFilter):
		err = apierrors.InvalidParameter("start/end", err)
	case errors.Is(err, services.ErrInvalidMetric):
		err = apierrors.InvalidParameter("metric", err)
	case errors.Is(err, services.ErrInvalidFormat):
		err = apierrors.InvalidParameter("format", err)
	case errors.Is(err, services.ErrBoundariesUnavailable):
		err = apierrors.BoundaryUnavailable(err)
	case errors.Is(err, services.ErrInsufficientHistory):
		err = apierrors.InsufficientData(err)
	}
	h.errorHandler.HandleError(w, r, err)
}
