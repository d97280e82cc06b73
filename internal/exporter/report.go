package exporter

import (
	"strings"
	"time"

	"salesdash/pkg/contracts/domain"
)

// Report is every dashboard view computed for one filter
type Report struct {
	GeneratedAt time.Time
	Start       time.Time
	End         time.Time
	StateCodes  []string
	Metric      domain.StateMetric

	KPIs       domain.KPIs
	Monthly    []domain.MonthlyRevenue
	Categories []domain.CategoryCount
	StateStats []domain.StateStats
	Funnel     domain.Funnel
	Reviews    []domain.ReviewBucket
	// Forecast is optional; it covers the full history, not the filter
	Forecast []domain.ForecastPoint
}

// Table is a named, typed table
type Table struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Tables flattens the report into one table per view
func (r *Report) Tables() []Table {
	tables := []Table{
		{
			Name:    "Filter",
			Headers: []string{"Generated at", "Start", "End", "States", "Revenue mode", "State metric"},
			Rows: [][]any{{
				r.GeneratedAt.UTC().Format(time.RFC3339), r.Start, r.End,
				strings.Join(r.StateCodes, ","), string(r.KPIs.RevenueMode), string(r.Metric),
			}},
		},
		{
			Name:    "KPIs",
			Headers: []string{"Total revenue", "Orders", "Unique customers"},
			Rows:    [][]any{{r.KPIs.TotalRevenue, r.KPIs.OrderCount, r.KPIs.CustomerCount}},
		},
	}

	monthly := Table{Name: "Monthly revenue", Headers: []string{"Month", "Revenue"}}
	for _, m := range r.Monthly {
		monthly.Rows = append(monthly.Rows, []any{m.Month.Format("2006-01"), m.Revenue})
	}

	categories := Table{Name: "Top categories", Headers: []string{"Category", "Orders"}}
	for _, c := range r.Categories {
		categories.Rows = append(categories.Rows, []any{c.Category, c.Count})
	}

	states := Table{Name: "States", Headers: []string{"State", "Revenue", "Orders", "Average ticket"}}
	for _, s := range r.StateStats {
		states.Rows = append(states.Rows, []any{s.State, s.Revenue, s.OrderCount, s.AverageTicket})
	}

	funnel := Table{Name: "Funnel", Headers: []string{"Stage", "Orders"}}
	for _, s := range r.Funnel.Stages() {
		funnel.Rows = append(funnel.Rows, []any{s.Label, s.Count})
	}

	reviews := Table{Name: "Reviews", Headers: []string{"Score", "Count"}}
	for _, b := range r.Reviews {
		reviews.Rows = append(reviews.Rows, []any{b.Score, b.Count})
	}

	tables = append(tables, monthly, categories, states, funnel, reviews)

	if len(r.Forecast) > 0 {
		forecast := Table{Name: "Forecast", Headers: []string{"Date", "Estimate", "Lower", "Upper"}}
		for _, p := range r.Forecast {
			forecast.Rows = append(forecast.Rows, []any{p.Date, p.Estimate, p.Lower, p.Upper})
		}
		tables = append(tables, forecast)
	}

	return tables
}
