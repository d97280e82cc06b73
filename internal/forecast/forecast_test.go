package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "salesdash/internal/errors"
	"salesdash/pkg/contracts/domain"
)

func series(start time.Time, days int, value func(i int, d time.Time) float64) []domain.SeriesPoint {
	out := make([]domain.SeriesPoint, days)
	for i := range out {
		d := start.AddDate(0, 0, i)
		out[i] = domain.SeriesPoint{Date: d, Value: value(i, d)}
	}
	return out
}

// 2024-01-01 is a Monday
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSeasonalTrendLinear(t *testing.T) {
	f := NewSeasonalTrend(0.8, 14)
	history := series(monday, 60, func(i int, _ time.Time) float64 { return 100 + 2*float64(i) })

	model, err := f.Fit(context.Background(), history)
	require.NoError(t, err)

	got := model.Predict(365)
	require.Len(t, got, 365)

	assert.Equal(t, monday.AddDate(0, 0, 60), got[0].Date, "starts the day after the last observation")
	assert.Equal(t, monday.AddDate(0, 0, 60+364), got[364].Date)

	for i, p := range got {
		want := 100 + 2*float64(60+i)
		assert.InDelta(t, want, p.Estimate, 1e-6)
		assert.InDelta(t, p.Estimate, p.Lower, 1e-6, "a perfect fit has no uncertainty")
		assert.InDelta(t, p.Estimate, p.Upper, 1e-6)
	}
}

func TestSeasonalTrendWeekdayPattern(t *testing.T) {
	f := NewSeasonalTrend(0.8, 14)
	weekend := func(_ int, d time.Time) float64 {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			return 200
		}
		return 100
	}

	model, err := f.Fit(context.Background(), series(monday, 8*7, weekend))
	require.NoError(t, err)

	got := model.Predict(14)
	require.Equal(t, time.Monday, got[0].Date.Weekday())

	// within a week the estimates differ only by the weekday effect
	for week := 0; week < 2; week++ {
		mon := got[week*7].Estimate
		for d := 1; d < 7; d++ {
			p := got[week*7+d]
			want := 0.0
			if p.Date.Weekday() == time.Saturday || p.Date.Weekday() == time.Sunday {
				want = 100
			}
			assert.InDelta(t, want, p.Estimate-mon, 1e-6, p.Date.Weekday().String())
		}
	}
}

func TestSeasonalTrendIntervals(t *testing.T) {
	f := NewSeasonalTrend(0.8, 14)
	noisy := func(i int, _ time.Time) float64 { return 50 + 10*math.Sin(float64(i)*1.7) }

	model, err := f.Fit(context.Background(), series(monday, 90, noisy))
	require.NoError(t, err)

	got := model.Predict(30)
	for i, p := range got {
		assert.Less(t, p.Lower, p.Estimate)
		assert.Greater(t, p.Upper, p.Estimate)
		assert.InDelta(t, p.Estimate-p.Lower, p.Upper-p.Estimate, 1e-9, "band is symmetric")
		if i > 0 {
			assert.Greater(t, p.Upper-p.Lower, got[i-1].Upper-got[i-1].Lower, "band widens with the horizon")
		}
	}

	wide, err := NewSeasonalTrend(0.95, 14).Fit(context.Background(), series(monday, 90, noisy))
	require.NoError(t, err)
	assert.Greater(t, wide.Predict(1)[0].Upper, got[0].Upper)
}

func TestSeasonalTrendInsufficientHistory(t *testing.T) {
	f := NewSeasonalTrend(0.8, 14)

	_, err := f.Fit(context.Background(), series(monday, 13, func(int, time.Time) float64 { return 1 }))
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeForecast, appErr.Type)
	assert.Equal(t, 13, appErr.Context["history_days"])
	assert.Equal(t, 14, appErr.Context["min_history"])

	_, err = f.Fit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestSeasonalTrendUnsortedInput(t *testing.T) {
	f := NewSeasonalTrend(0.8, 2)
	history := series(monday, 20, func(i int, _ time.Time) float64 { return float64(i) })
	reversed := make([]domain.SeriesPoint, len(history))
	for i, p := range history {
		reversed[len(history)-1-i] = p
	}

	model, err := f.Fit(context.Background(), reversed)
	require.NoError(t, err)
	assert.Equal(t, monday.AddDate(0, 0, 20), model.Predict(1)[0].Date)
	assert.Equal(t, history[0].Date, reversed[len(reversed)-1].Date, "input is not reordered")
}

func TestPredictNonPositiveHorizon(t *testing.T) {
	model, err := NewSeasonalTrend(0.8, 2).Fit(context.Background(),
		series(monday, 10, func(i int, _ time.Time) float64 { return float64(i) }))
	require.NoError(t, err)
	assert.Empty(t, model.Predict(0))
}

func TestZScore(t *testing.T) {
	assert.InDelta(t, 1.2816, zScore(0.8), 1e-4)
	assert.InDelta(t, 1.96, zScore(0.95), 1e-3)
}
