package analytics

import (
	"sort"
	"time"

	"salesdash/pkg/contracts/domain"
)

// PaidStatuses are the statuses counted as paid by the funnel. The data has
// no explicit paid status; an order that reached processing is assumed paid.
var PaidStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusProcessing: true,
	domain.OrderStatusShipped:    true,
	domain.OrderStatusDelivered:  true,
}

type paymentKey struct {
	order string
	seq   int
}

// revenue yields the contribution of each row under a revenue mode.
type revenue struct {
	mode domain.RevenueMode
	seen map[paymentKey]struct{}
}

func newRevenue(mode domain.RevenueMode) *revenue {
	r := &revenue{mode: mode}
	if mode == domain.RevenueModePayment {
		r.seen = make(map[paymentKey]struct{})
	}
	return r
}

func (rv *revenue) of(r *domain.OrderRow) float64 {
	if r.PaymentValue == nil {
		return 0
	}
	if rv.seen != nil {
		k := paymentKey{r.OrderID, r.PaymentSequential}
		if _, dup := rv.seen[k]; dup {
			return 0
		}
		rv.seen[k] = struct{}{}
	}
	return *r.PaymentValue
}

// ComputeKPIs returns total revenue, distinct orders and distinct unique
// customers.
func ComputeKPIs(rows []*domain.OrderRow, mode domain.RevenueMode) domain.KPIs {
	rv := newRevenue(mode)
	orders := make(map[string]struct{})
	customers := make(map[string]struct{})

	var total float64
	for _, r := range rows {
		total += rv.of(r)
		if r.OrderID != "" {
			orders[r.OrderID] = struct{}{}
		}
		if r.CustomerUniqueID != "" {
			customers[r.CustomerUniqueID] = struct{}{}
		}
	}

	return domain.KPIs{
		TotalRevenue:  total,
		OrderCount:    len(orders),
		CustomerCount: len(customers),
		RevenueMode:   mode,
	}
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthlyRevenue sums revenue per calendar month of purchase. Every month
// between the first and the last one present is included, empty months as
// zero.
func MonthlyRevenue(rows []*domain.OrderRow, mode domain.RevenueMode) []domain.MonthlyRevenue {
	if len(rows) == 0 {
		return []domain.MonthlyRevenue{}
	}

	rv := newRevenue(mode)
	sums := make(map[time.Time]float64)
	var first, last time.Time
	for _, r := range rows {
		m := monthOf(r.Purchase())
		sums[m] += rv.of(r)
		if first.IsZero() || m.Before(first) {
			first = m
		}
		if m.After(last) {
			last = m
		}
	}

	out := make([]domain.MonthlyRevenue, 0, len(sums))
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		out = append(out, domain.MonthlyRevenue{Month: m, Revenue: sums[m]})
	}
	return out
}

// DailyRevenue sums revenue per calendar day of purchase, zero-filled
// between the first and last day.
func DailyRevenue(rows []*domain.OrderRow, mode domain.RevenueMode) []domain.SeriesPoint {
	if len(rows) == 0 {
		return []domain.SeriesPoint{}
	}

	rv := newRevenue(mode)
	sums := make(map[time.Time]float64)
	var first, last time.Time
	for _, r := range rows {
		d := StartOfDay(r.Purchase())
		sums[d] += rv.of(r)
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	out := make([]domain.SeriesPoint, 0, len(sums))
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, domain.SeriesPoint{Date: d, Value: sums[d]})
	}
	return out
}

// TopCategories counts rows per category label and returns the n largest,
// ties broken by label. Rows without a label are skipped.
func TopCategories(rows []*domain.OrderRow, n int) []domain.CategoryCount {
	counts := make(map[string]int)
	for _, r := range rows {
		if r.CategoryLabel != "" {
			counts[r.CategoryLabel]++
		}
	}

	out := make([]domain.CategoryCount, 0, len(counts))
	for label, c := range counts {
		out = append(out, domain.CategoryCount{Category: label, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})

	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// StateStatistics returns revenue, distinct orders and average ticket per
// customer state, sorted by state code. Rows without a state are skipped.
func StateStatistics(rows []*domain.OrderRow, mode domain.RevenueMode) []domain.StateStats {
	type acc struct {
		revenue float64
		orders  map[string]struct{}
	}

	rv := newRevenue(mode)
	byState := make(map[string]*acc)
	for _, r := range rows {
		if r.State == "" {
			continue
		}
		a, ok := byState[r.State]
		if !ok {
			a = &acc{orders: make(map[string]struct{})}
			byState[r.State] = a
		}
		a.revenue += rv.of(r)
		if r.OrderID != "" {
			a.orders[r.OrderID] = struct{}{}
		}
	}

	out := make([]domain.StateStats, 0, len(byState))
	for state, a := range byState {
		count := len(a.orders)
		if count == 0 {
			continue
		}
		out = append(out, domain.StateStats{
			State:         state,
			Revenue:       a.revenue,
			OrderCount:    count,
			AverageTicket: a.revenue / float64(count),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out
}

// MetricValue returns the value of metric for one state
func MetricValue(s domain.StateStats, metric domain.StateMetric) float64 {
	switch metric {
	case domain.StateMetricAverageTicket:
		return s.AverageTicket
	case domain.StateMetricOrderCount:
		return float64(s.OrderCount)
	default:
		return s.Revenue
	}
}

// SortStates returns a copy of stats sorted by metric descending, ties by
// state code.
func SortStates(stats []domain.StateStats, metric domain.StateMetric) []domain.StateStats {
	out := make([]domain.StateStats, len(stats))
	copy(out, stats)
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := MetricValue(out[i], metric), MetricValue(out[j], metric)
		if vi != vj {
			return vi > vj
		}
		return out[i].State < out[j].State
	})
	return out
}

// TopStates returns the first n states by metric
func TopStates(stats []domain.StateStats, metric domain.StateMetric, n int) []domain.StateStats {
	sorted := SortStates(stats, metric)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ComputeFunnel counts distinct orders overall, paid and delivered.
func ComputeFunnel(rows []*domain.OrderRow) domain.Funnel {
	created := make(map[string]struct{})
	paid := make(map[string]struct{})
	delivered := make(map[string]struct{})

	for _, r := range rows {
		if r.OrderID == "" {
			continue
		}
		created[r.OrderID] = struct{}{}
		if PaidStatuses[r.Status] {
			paid[r.OrderID] = struct{}{}
		}
		if r.Status == domain.OrderStatusDelivered {
			delivered[r.OrderID] = struct{}{}
		}
	}

	return domain.Funnel{
		Created:   len(created),
		Paid:      len(paid),
		Delivered: len(delivered),
	}
}

// ReviewHistogram counts rows per review score, ascending by score. Rows
// without a score are skipped; the score domain is whatever is present.
func ReviewHistogram(rows []*domain.OrderRow) []domain.ReviewBucket {
	counts := make(map[int]int)
	for _, r := range rows {
		if r.ReviewScore != nil {
			counts[*r.ReviewScore]++
		}
	}

	out := make([]domain.ReviewBucket, 0, len(counts))
	for score, c := range counts {
		out = append(out, domain.ReviewBucket{Score: score, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}
