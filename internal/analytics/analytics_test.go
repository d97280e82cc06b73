package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/config"
	"salesdash/internal/dataset"
	"salesdash/internal/shared/testutil"
	"salesdash/internal/source"
	"salesdash/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

type rowSpec struct {
	order    string
	customer string
	state    string
	status   domain.OrderStatus
	purchase time.Time
	payment  *float64
	seq      int
	label    string
	score    *int
}

func rows(specs ...rowSpec) []*domain.OrderRow {
	out := make([]*domain.OrderRow, len(specs))
	for i, s := range specs {
		r := &domain.OrderRow{
			OrderID:           s.order,
			CustomerUniqueID:  s.customer,
			State:             s.state,
			Status:            s.status,
			PaymentValue:      s.payment,
			PaymentSequential: s.seq,
			CategoryLabel:     s.label,
			ReviewScore:       s.score,
		}
		r.Times[domain.PurchaseTimestamp] = s.purchase
		out[i] = r
	}
	return out
}

func sample() []*domain.OrderRow {
	return rows(
		rowSpec{order: "o1", customer: "u1", state: "SP", status: "delivered", purchase: day(2024, 1, 5).Add(10 * time.Hour), payment: ptr(100.0), seq: 1, label: "Beleza Saude", score: ptr(5)},
		rowSpec{order: "o2", customer: "u2", state: "SP", status: "delivered", purchase: day(2024, 2, 10).Add(15 * time.Hour), payment: ptr(50.0), seq: 1, label: "Cama Mesa Banho", score: ptr(4)},
		rowSpec{order: "o3", customer: "u3", state: "RJ", status: "shipped", purchase: day(2024, 2, 20).Add(8 * time.Hour), payment: ptr(30.0), seq: 1, label: "Esporte Lazer", score: ptr(3)},
	)
}

func TestApply(t *testing.T) {
	all := sample()
	start, end := DayRange(day(2024, 1, 1), day(2024, 2, 29))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"single state", Filter{Start: start, End: end, States: []string{"SP"}}, []string{"o1", "o2"}},
		{"all states", Filter{Start: start, End: end, States: []string{"SP", "RJ"}}, []string{"o1", "o2", "o3"}},
		{"empty states", Filter{Start: start, End: end, States: []string{}}, nil},
		{"nil states", Filter{Start: start, End: end}, nil},
		{"inclusive end day", Filter{Start: start, End: day(2024, 2, 20).Add(8 * time.Hour), States: []string{"RJ"}}, []string{"o3"}},
		{"inclusive start", Filter{Start: day(2024, 2, 10).Add(15 * time.Hour), End: end, States: []string{"SP"}}, []string{"o2"}},
		{"inverted range", Filter{Start: end, End: start, States: []string{"SP"}}, nil},
		{"window without orders", Filter{Start: day(2023, 1, 1), End: day(2023, 12, 31), States: []string{"SP"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(all, tt.filter)
			require.NotNil(t, got)

			var ids []string
			for _, r := range got {
				ids = append(ids, r.OrderID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestApplyIsPureAndIdempotent(t *testing.T) {
	all := sample()
	before := make([]domain.OrderRow, len(all))
	for i, r := range all {
		before[i] = *r
	}

	start, end := DayRange(day(2024, 2, 1), day(2024, 2, 29))
	f := Filter{Start: start, End: end, States: []string{"SP", "RJ"}}

	once := Apply(all, f)
	twice := Apply(once, f)
	assert.Equal(t, once, twice)

	require.Len(t, all, 3, "input slice is untouched")
	for i, r := range all {
		assert.Equal(t, before[i], *r)
	}
}

func TestDayRange(t *testing.T) {
	start, end := DayRange(day(2024, 1, 5).Add(13*time.Hour), day(2024, 1, 6))
	assert.Equal(t, day(2024, 1, 5), start)
	assert.Equal(t, day(2024, 1, 7).Add(-time.Nanosecond), end)
}

func TestComputeKPIs(t *testing.T) {
	split := rows(
		rowSpec{order: "o1", customer: "u1", state: "SP", purchase: day(2024, 1, 5), payment: ptr(60.0), seq: 1},
		rowSpec{order: "o1", customer: "u1", state: "SP", purchase: day(2024, 1, 5), payment: ptr(40.0), seq: 2},
		// second item of o1 repeats both payments
		rowSpec{order: "o1", customer: "u1", state: "SP", purchase: day(2024, 1, 5), payment: ptr(60.0), seq: 1},
		rowSpec{order: "o1", customer: "u1", state: "SP", purchase: day(2024, 1, 5), payment: ptr(40.0), seq: 2},
		rowSpec{order: "o2", customer: "u1", state: "SP", purchase: day(2024, 1, 6)},
	)

	row := ComputeKPIs(split, domain.RevenueModeRow)
	assert.Equal(t, 200.0, row.TotalRevenue)
	assert.Equal(t, 2, row.OrderCount)
	assert.Equal(t, 1, row.CustomerCount)
	assert.Equal(t, domain.RevenueModeRow, row.RevenueMode)

	payment := ComputeKPIs(split, domain.RevenueModePayment)
	assert.Equal(t, 100.0, payment.TotalRevenue)
	assert.Equal(t, domain.RevenueModePayment, payment.RevenueMode)

	empty := ComputeKPIs(nil, domain.RevenueModeRow)
	assert.Equal(t, domain.KPIs{RevenueMode: domain.RevenueModeRow}, empty)
}

func TestMonthlyRevenue(t *testing.T) {
	data := rows(
		rowSpec{order: "a", purchase: day(2024, 1, 31), payment: ptr(10.0)},
		rowSpec{order: "b", purchase: day(2024, 4, 1), payment: ptr(5.0)},
		rowSpec{order: "c", purchase: day(2024, 1, 1), payment: ptr(2.5)},
	)

	got := MonthlyRevenue(data, domain.RevenueModeRow)
	assert.Equal(t, []domain.MonthlyRevenue{
		{Month: day(2024, 1, 1), Revenue: 12.5},
		{Month: day(2024, 2, 1), Revenue: 0},
		{Month: day(2024, 3, 1), Revenue: 0},
		{Month: day(2024, 4, 1), Revenue: 5},
	}, got)

	assert.Empty(t, MonthlyRevenue(nil, domain.RevenueModeRow))
}

func TestRevenueTotalsConsistent(t *testing.T) {
	data := sample()
	data = append(data, rows(
		rowSpec{order: "o1", state: "SP", purchase: day(2024, 1, 5).Add(10 * time.Hour), payment: ptr(100.0), seq: 1},
		rowSpec{order: "o9", state: "MG", purchase: day(2023, 11, 3), payment: ptr(12.34), seq: 1},
	)...)

	for _, mode := range []domain.RevenueMode{domain.RevenueModeRow, domain.RevenueModePayment} {
		t.Run(string(mode), func(t *testing.T) {
			kpis := ComputeKPIs(data, mode)

			var monthly, daily float64
			for _, m := range MonthlyRevenue(data, mode) {
				monthly += m.Revenue
			}
			for _, d := range DailyRevenue(data, mode) {
				daily += d.Value
			}
			assert.InDelta(t, kpis.TotalRevenue, monthly, 1e-9)
			assert.InDelta(t, kpis.TotalRevenue, daily, 1e-9)
		})
	}
}

func TestDailyRevenue(t *testing.T) {
	data := rows(
		rowSpec{order: "a", purchase: day(2024, 1, 1).Add(23 * time.Hour), payment: ptr(1.0)},
		rowSpec{order: "b", purchase: day(2024, 1, 3).Add(time.Hour), payment: ptr(2.0)},
		rowSpec{order: "c", purchase: day(2024, 1, 3).Add(2 * time.Hour), payment: ptr(3.0)},
	)

	assert.Equal(t, []domain.SeriesPoint{
		{Date: day(2024, 1, 1), Value: 1},
		{Date: day(2024, 1, 2), Value: 0},
		{Date: day(2024, 1, 3), Value: 5},
	}, DailyRevenue(data, domain.RevenueModeRow))
}

func TestTopCategories(t *testing.T) {
	var specs []rowSpec
	add := func(label string, n int) {
		for i := 0; i < n; i++ {
			specs = append(specs, rowSpec{order: label, label: label})
		}
	}
	add("Beleza Saude", 3)
	add("Cama Mesa Banho", 5)
	add("Esporte Lazer", 3)
	add("", 7)

	got := TopCategories(rows(specs...), 10)
	assert.Equal(t, []domain.CategoryCount{
		{Category: "Cama Mesa Banho", Count: 5},
		{Category: "Beleza Saude", Count: 3},
		{Category: "Esporte Lazer", Count: 3},
	}, got)

	assert.Len(t, TopCategories(rows(specs...), 2), 2)
	assert.Empty(t, TopCategories(nil, 10))
}

func TestStateStatistics(t *testing.T) {
	data := append(sample(), rows(
		rowSpec{order: "o4", state: "RJ", purchase: day(2024, 2, 21), payment: ptr(90.0)},
		rowSpec{order: "o5", purchase: day(2024, 2, 21), payment: ptr(1000.0)},
	)...)

	stats := StateStatistics(data, domain.RevenueModeRow)
	assert.Equal(t, []domain.StateStats{
		{State: "RJ", Revenue: 120, OrderCount: 2, AverageTicket: 60},
		{State: "SP", Revenue: 150, OrderCount: 2, AverageTicket: 75},
	}, stats)

	for _, s := range stats {
		assert.Positive(t, s.OrderCount, "states without orders never appear")
	}

	byTicket := SortStates(stats, domain.StateMetricAverageTicket)
	assert.Equal(t, "SP", byTicket[0].State)
	assert.Equal(t, "RJ", stats[0].State, "sorting copies")

	byCount := SortStates(stats, domain.StateMetricOrderCount)
	assert.Equal(t, []string{"RJ", "SP"}, []string{byCount[0].State, byCount[1].State}, "ties by state code")

	assert.Len(t, TopStates(stats, domain.StateMetricRevenue, 1), 1)
	assert.Empty(t, StateStatistics(nil, domain.RevenueModeRow))
}

func TestComputeFunnel(t *testing.T) {
	data := rows(
		rowSpec{order: "a", status: "delivered"},
		rowSpec{order: "a", status: "delivered"},
		rowSpec{order: "b", status: "shipped"},
		rowSpec{order: "c", status: "processing"},
		rowSpec{order: "d", status: "canceled"},
		rowSpec{order: "e", status: "invoiced"},
	)

	f := ComputeFunnel(data)
	assert.Equal(t, domain.Funnel{Created: 5, Paid: 3, Delivered: 1}, f)
	assert.True(t, f.Monotonic())
	assert.NoError(t, f.Validate())

	assert.Equal(t, []domain.FunnelStage{
		{Label: "Orders created", Count: 5},
		{Label: "Orders paid", Count: 3},
		{Label: "Orders delivered", Count: 1},
	}, f.Stages())

	assert.Error(t, domain.Funnel{Created: 1, Paid: 2}.Validate())
	assert.Equal(t, domain.Funnel{}, ComputeFunnel(nil))
}

func TestReviewHistogram(t *testing.T) {
	data := rows(
		rowSpec{order: "a", score: ptr(5)},
		rowSpec{order: "b", score: ptr(1)},
		rowSpec{order: "c", score: ptr(5)},
		rowSpec{order: "d"},
		rowSpec{order: "e", score: ptr(7)},
	)

	assert.Equal(t, []domain.ReviewBucket{
		{Score: 1, Count: 1},
		{Score: 5, Count: 2},
		{Score: 7, Count: 1},
	}, ReviewHistogram(data))
	assert.Empty(t, ReviewHistogram(nil))
}

// TestThreeOrderScenario runs the pipeline end to end on CSV input. The
// clock equals the latest purchase so the date shift is zero.
func TestThreeOrderScenario(t *testing.T) {
	dir := testutil.WriteOlistCSV(t, testutil.ThreeOrderScenario()...)
	logger, _ := testutil.NewTestLogger(t)
	latest := time.Date(2024, 2, 20, 8, 15, 0, 0, time.UTC)

	loader := dataset.NewLoader(
		source.NewCSVSource(dir, config.DefaultTableFiles, logger),
		dataset.WithClock(func() time.Time { return latest }),
		dataset.WithLogger(logger),
	)
	ds, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Zero(t, ds.Offset)

	start, end := DayRange(day(2024, 1, 1), day(2024, 2, 29))
	filtered := Apply(ds.All(), Filter{Start: start, End: end, States: []string{"SP"}})

	kpis := ComputeKPIs(filtered, domain.RevenueModeRow)
	assert.Equal(t, 150.0, kpis.TotalRevenue)
	assert.Equal(t, 2, kpis.OrderCount)

	assert.Equal(t, []domain.MonthlyRevenue{
		{Month: day(2024, 1, 1), Revenue: 100},
		{Month: day(2024, 2, 1), Revenue: 50},
	}, MonthlyRevenue(filtered, domain.RevenueModeRow))

	assert.Equal(t, []domain.StateStats{
		{State: "SP", Revenue: 150, OrderCount: 2, AverageTicket: 75},
	}, StateStatistics(filtered, domain.RevenueModeRow))

	funnel := ComputeFunnel(filtered)
	assert.Equal(t, domain.Funnel{Created: 2, Paid: 2, Delivered: 2}, funnel)
}

func TestDefaultFilter(t *testing.T) {
	dir := testutil.WriteOlistCSV(t, testutil.ThreeOrderScenario()...)
	logger, _ := testutil.NewTestLogger(t)
	now := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

	ds, err := dataset.NewLoader(
		source.NewCSVSource(dir, config.DefaultTableFiles, logger),
		dataset.WithClock(func() time.Time { return now }),
	).Load(context.Background())
	require.NoError(t, err)

	f := DefaultFilter(ds, 12, []string{"SP", "RJ", "MG"})
	assert.Equal(t, []string{"SP", "RJ"}, f.States, "only states present in the data")
	assert.Equal(t, day(2026, 5, 11).Add(-time.Nanosecond), f.End)
	// the data spans under two months, so the window starts at the first purchase
	assert.Equal(t, StartOfDay(ds.MinPurchase), f.Start)
	assert.Len(t, Apply(ds.All(), f), 3)

	assert.Empty(t, DefaultFilter(nil, 12, []string{"SP"}).States)
}
