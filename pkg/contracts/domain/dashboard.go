package domain

import (
	"fmt"
	"time"
)

// RevenueMode selects how payment values are summed.
type RevenueMode string

const (
	// RevenueModeRow sums the payment value of every joined row. Orders
	// with several items or reviews are counted more than once.
	RevenueModeRow RevenueMode = "row"
	// RevenueModePayment counts each (order, payment sequence) pair once.
	RevenueModePayment RevenueMode = "payment"
)

// StateMetric selects the column the per-state table is sorted by
type StateMetric string

const (
	StateMetricRevenue       StateMetric = "revenue"
	StateMetricAverageTicket StateMetric = "average_ticket"
	StateMetricOrderCount    StateMetric = "order_count"
)

// Valid reports whether m is a known metric
func (m StateMetric) Valid() bool {
	switch m {
	case StateMetricRevenue, StateMetricAverageTicket, StateMetricOrderCount:
		return true
	}
	return false
}

// KPIs are the three headline figures
type KPIs struct {
	TotalRevenue  float64     `json:"total_revenue"`
	OrderCount    int         `json:"order_count"`
	CustomerCount int         `json:"customer_count"`
	RevenueMode   RevenueMode `json:"revenue_mode"`
}

// MonthlyRevenue is one point of the monthly revenue series. Month is the
// first day of the calendar month.
type MonthlyRevenue struct {
	Month   time.Time `json:"month"`
	Revenue float64   `json:"revenue"`
}

// CategoryCount is one row of the top categories table
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// StateStats is one row of the per-state table
type StateStats struct {
	State         string  `json:"state"`
	Revenue       float64 `json:"revenue"`
	OrderCount    int     `json:"order_count"`
	AverageTicket float64 `json:"average_ticket"`
}

// FunnelStage is one labelled funnel count
type FunnelStage struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Funnel holds the order fulfilment funnel
type Funnel struct {
	Created   int `json:"created"`
	Paid      int `json:"paid"`
	Delivered int `json:"delivered"`
}

// Stages returns the funnel as labelled stages, widest first
func (f Funnel) Stages() []FunnelStage {
	return []FunnelStage{
		{Label: "Orders created", Count: f.Created},
		{Label: "Orders paid", Count: f.Paid},
		{Label: "Orders delivered", Count: f.Delivered},
	}
}

// Monotonic reports whether delivered <= paid <= created
func (f Funnel) Monotonic() bool {
	return f.Delivered <= f.Paid && f.Paid <= f.Created
}

// Validate returns an error describing a non-monotonic funnel
func (f Funnel) Validate() error {
	if f.Monotonic() {
		return nil
	}
	return fmt.Errorf("funnel is not monotonic: created=%d paid=%d delivered=%d", f.Created, f.Paid, f.Delivered)
}

// ReviewBucket is one bar of the review score histogram
type ReviewBucket struct {
	Score int `json:"score"`
	Count int `json:"count"`
}

// SeriesPoint is one day of a revenue series
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ForecastPoint is one projected day
type ForecastPoint struct {
	Date     time.Time `json:"date"`
	Estimate float64   `json:"estimate"`
	Lower    float64   `json:"lower"`
	Upper    float64   `json:"upper"`
}
