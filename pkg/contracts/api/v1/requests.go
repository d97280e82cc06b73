// Package api contains the HTTP API contracts of the sales dashboard.
// Version v1 represents the current stable API version.
package api

import (
	"time"
)

// DateLayout is the layout of every date query parameter
const DateLayout = "2006-01-02"

// DashboardQuery holds the query parameters shared by the dashboard views.
// Empty fields fall back to the default filter.
type DashboardQuery struct {
	Start  string   `json:"start" query:"start" validate:"omitempty,datetime=2006-01-02"`
	End    string   `json:"end" query:"end" validate:"omitempty,datetime=2006-01-02"`
	States []string `json:"states" query:"states" validate:"omitempty,dive,len=2,alpha,uppercase"`
	Metric string   `json:"metric" query:"metric" validate:"omitempty,oneof=revenue average_ticket order_count"`
	Format string   `json:"format" query:"format" validate:"omitempty,oneof=csv xlsx"`

	// StatesSet is true when the states parameter was present, even empty.
	// An explicit empty list selects no state.
	StatesSet bool `json:"-"`
}

// StartDate parses Start; ok is false when Start is empty
func (q DashboardQuery) StartDate() (t time.Time, ok bool) {
	return parseDate(q.Start)
}

// EndDate parses End; ok is false when End is empty
func (q DashboardQuery) EndDate() (t time.Time, ok bool) {
	return parseDate(q.End)
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
