// Package forecast projects the daily revenue series forward.
//
// The pipeline depends only on the Forecaster and Model interfaces; the
// seasonal-trend model is the default implementation.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	apperrors "salesdash/internal/errors"
	"salesdash/pkg/contracts/domain"
)

// ErrInsufficientHistory is returned when the series is too short to fit.
var ErrInsufficientHistory = errors.New("insufficient history to fit a forecast")

func insufficient(cause error) *apperrors.AppError {
	return apperrors.NewForecastError("cannot fit forecast", cause)
}

// Forecaster fits a model to a daily series
type Forecaster interface {
	// Name identifies the model in logs and metrics
	Name() string
	Fit(ctx context.Context, series []domain.SeriesPoint) (Model, error)
}

// Model projects a fitted series
type Model interface {
	// Predict returns one point per day for the horizon days after the
	// last observed day.
	Predict(horizon int) []domain.ForecastPoint
}

// SeasonalTrend fits a least-squares linear trend plus an additive
// day-of-week component estimated from the trend residuals. The
// uncertainty band widens with the distance from the observed history.
type SeasonalTrend struct {
	// IntervalWidth is the probability mass inside [Lower, Upper]
	IntervalWidth float64
	// MinHistory is the minimum number of observed days
	MinHistory int
}

// NewSeasonalTrend creates the default forecaster
func NewSeasonalTrend(intervalWidth float64, minHistory int) *SeasonalTrend {
	if intervalWidth <= 0 || intervalWidth >= 1 {
		intervalWidth = 0.8
	}
	if minHistory < 2 {
		minHistory = 2
	}
	return &SeasonalTrend{IntervalWidth: intervalWidth, MinHistory: minHistory}
}

// Name implements Forecaster
func (f *SeasonalTrend) Name() string { return "seasonal_trend" }

// Fit implements Forecaster
func (f *SeasonalTrend) Fit(ctx context.Context, series []domain.SeriesPoint) (Model, error) {
	if len(series) < f.MinHistory {
		return nil, insufficient(fmt.Errorf("%w: %d days, need %d", ErrInsufficientHistory, len(series), f.MinHistory)).
			WithContext("history_days", len(series)).
			WithContext("min_history", f.MinHistory)
	}

	points := make([]domain.SeriesPoint, len(series))
	copy(points, series)
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	first := points[0].Date
	coords := make(stats.Series, len(points))
	for i, p := range points {
		coords[i] = stats.Coordinate{X: dayIndex(first, p.Date), Y: p.Value}
	}
	if coords[len(coords)-1].X == coords[0].X {
		return nil, insufficient(fmt.Errorf("%w: all observations fall on one day", ErrInsufficientHistory))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fitted, err := stats.LinearRegression(coords)
	if err != nil {
		return nil, fmt.Errorf("linear regression failed: %w", err)
	}
	a, b := fitted[0], fitted[len(fitted)-1]
	slope := (b.Y - a.Y) / (b.X - a.X)
	intercept := a.Y - slope*a.X

	// weekday means of the trend residuals, centred on zero
	var sums, counts [7]float64
	residuals := make([]float64, len(points))
	for i, p := range points {
		residuals[i] = p.Value - (intercept + slope*coords[i].X)
		w := p.Date.Weekday()
		sums[w] += residuals[i]
		counts[w]++
	}
	var seasonal [7]float64
	var present stats.Float64Data
	for w := range seasonal {
		if counts[w] > 0 {
			seasonal[w] = sums[w] / counts[w]
			present = append(present, seasonal[w])
		}
	}
	if centre, err := stats.Mean(present); err == nil {
		for w := range seasonal {
			if counts[w] > 0 {
				seasonal[w] -= centre
			}
		}
	}

	noise := make(stats.Float64Data, len(points))
	for i, p := range points {
		noise[i] = residuals[i] - seasonal[p.Date.Weekday()]
	}
	sigma, err := stats.StandardDeviation(noise)
	if err != nil {
		return nil, fmt.Errorf("residual deviation failed: %w", err)
	}

	return &seasonalTrendModel{
		first:     first,
		last:      points[len(points)-1].Date,
		lastX:     coords[len(coords)-1].X,
		n:         float64(len(points)),
		slope:     slope,
		intercept: intercept,
		seasonal:  seasonal,
		sigma:     sigma,
		z:         zScore(f.IntervalWidth),
	}, nil
}

type seasonalTrendModel struct {
	first, last time.Time
	lastX       float64
	n           float64

	slope, intercept float64
	seasonal         [7]float64
	sigma            float64
	z                float64
}

func (m *seasonalTrendModel) Predict(horizon int) []domain.ForecastPoint {
	if horizon <= 0 {
		return []domain.ForecastPoint{}
	}

	out := make([]domain.ForecastPoint, horizon)
	for h := 1; h <= horizon; h++ {
		date := m.last.AddDate(0, 0, h)
		x := m.lastX + float64(h)
		estimate := m.intercept + m.slope*x + m.seasonal[date.Weekday()]
		width := m.z * m.sigma * math.Sqrt(1+float64(h)/m.n)
		out[h-1] = domain.ForecastPoint{
			Date:     date,
			Estimate: estimate,
			Lower:    estimate - width,
			Upper:    estimate + width,
		}
	}
	return out
}

func dayIndex(first, t time.Time) float64 {
	return math.Round(t.Sub(first).Hours() / 24)
}

// zScore returns the two-sided standard normal quantile for width.
func zScore(width float64) float64 {
	return math.Sqrt2 * math.Erfinv(width)
}
