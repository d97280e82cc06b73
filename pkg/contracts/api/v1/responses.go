package api

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"salesdash/pkg/contracts/domain"
)

// FilterView echoes the filter a view was computed with
type FilterView struct {
	Start  string   `json:"start"`
	End    string   `json:"end"`
	States []string `json:"states"`
}

// OptionsResponse describes the values the filter controls can take
type OptionsResponse struct {
	MinDate     string               `json:"min_date"`
	MaxDate     string               `json:"max_date"`
	States      []string             `json:"states"`
	Default     FilterView           `json:"default"`
	Metrics     []domain.StateMetric `json:"metrics"`
	RevenueMode domain.RevenueMode   `json:"revenue_mode"`
	Rows        int                  `json:"rows"`
	LoadedAt    time.Time            `json:"loaded_at"`
	Source      string               `json:"source"`
}

// OverviewResponse is the overview tab
type OverviewResponse struct {
	Filter        FilterView              `json:"filter"`
	KPIs          domain.KPIs             `json:"kpis"`
	Monthly       []domain.MonthlyRevenue `json:"monthly_revenue"`
	TopCategories []domain.CategoryCount  `json:"top_categories"`
}

// GeographyResponse is the geography tab without the map
type GeographyResponse struct {
	Filter    FilterView          `json:"filter"`
	Metric    domain.StateMetric  `json:"metric"`
	States    []domain.StateStats `json:"states"`
	TopStates []domain.StateStats `json:"top_states"`
}

// MapResponse is the choropleth of the geography tab
type MapResponse struct {
	Filter     FilterView                 `json:"filter"`
	Metric     domain.StateMetric         `json:"metric"`
	Min        float64                    `json:"min"`
	Max        float64                    `json:"max"`
	Unmatched  []string                   `json:"unmatched,omitempty"`
	Collection *geojson.FeatureCollection `json:"collection"`
}

// CustomersResponse is the customer behaviour tab
type CustomersResponse struct {
	Filter    FilterView            `json:"filter"`
	Funnel    domain.Funnel         `json:"funnel"`
	Stages    []domain.FunnelStage  `json:"stages"`
	Monotonic bool                  `json:"monotonic"`
	Reviews   []domain.ReviewBucket `json:"reviews"`
}

// ForecastResponse is the forecast tab. It always covers the full history.
type ForecastResponse struct {
	Model         string                 `json:"model"`
	IntervalWidth float64                `json:"interval_width"`
	Horizon       int                    `json:"horizon"`
	RevenueMode   domain.RevenueMode     `json:"revenue_mode"`
	History       []domain.SeriesPoint   `json:"history"`
	Points        []domain.ForecastPoint `json:"points"`
	Fingerprint   string                 `json:"fingerprint"`
}

// ReloadResponse reports the dataset after a reload
type ReloadResponse struct {
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	DroppedRows int       `json:"dropped_rows"`
	LoadedAt    time.Time `json:"loaded_at"`
}
