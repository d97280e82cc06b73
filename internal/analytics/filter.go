// Package analytics filters the joined order table and aggregates it into
// the dashboard views. Every function here is pure: inputs are never
// modified and results are freshly allocated.
package analytics

import (
	"time"

	"salesdash/internal/dataset"
	"salesdash/pkg/contracts/domain"
)

// Filter selects rows by purchase time and customer state. Both bounds are
// inclusive. A nil or empty States selects nothing.
type Filter struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	States []string  `json:"states"`
}

// Matches reports whether the row passes the filter
func (f Filter) Matches(r *domain.OrderRow) bool {
	p := r.Purchase()
	if p.Before(f.Start) || p.After(f.End) {
		return false
	}
	for _, s := range f.States {
		if r.State == s {
			return true
		}
	}
	return false
}

// Apply returns the rows matching f in their original order
func Apply(rows []*domain.OrderRow, f Filter) []*domain.OrderRow {
	if len(f.States) == 0 || f.End.Before(f.Start) {
		return []*domain.OrderRow{}
	}

	out := make([]*domain.OrderRow, 0, len(rows)/4)
	for _, r := range rows {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// DayRange turns calendar days into a filter range covering the whole of
// both days.
func DayRange(start, end time.Time) (time.Time, time.Time) {
	return StartOfDay(start), StartOfDay(end).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfDay truncates t to midnight in its location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DefaultFilter covers the months ending on the latest purchase day and the
// preferred states present in the dataset.
func DefaultFilter(ds *dataset.Dataset, months int, preferred []string) Filter {
	if ds == nil || ds.Len() == 0 {
		return Filter{States: []string{}}
	}

	start, end := DayRange(ds.MaxPurchase.AddDate(0, -months, 0), ds.MaxPurchase)
	if start.Before(ds.MinPurchase) {
		start = StartOfDay(ds.MinPurchase)
	}

	present := make(map[string]bool, len(ds.States))
	for _, s := range ds.States {
		present[s] = true
	}
	states := make([]string, 0, len(preferred))
	for _, s := range preferred {
		if present[s] {
			states = append(states, s)
		}
	}

	return Filter{Start: start, End: end, States: states}
}
