package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"salesdash/internal/analytics"
	"salesdash/pkg/contracts/domain"
)

// Layer is a choropleth: one feature per state with a value, the bounding
// box of those features and the value range for the colour scale.
type Layer struct {
	Metric     domain.StateMetric         `json:"metric"`
	Collection *geojson.FeatureCollection `json:"collection"`
	Min        float64                    `json:"min"`
	Max        float64                    `json:"max"`
	// Unmatched lists states with statistics but no boundary
	Unmatched []string `json:"unmatched"`
}

// Choropleth joins per-state statistics to their boundaries. Features keep
// the order of stats and carry the properties state, metric and value. The
// collection bbox covers only the returned features.
func Choropleth(b *Boundaries, stats []domain.StateStats, metric domain.StateMetric) *Layer {
	layer := &Layer{
		Metric:     metric,
		Collection: geojson.NewFeatureCollection(),
		Unmatched:  []string{},
	}

	var (
		bound orb.Bound
		first = true
	)
	layer.Min, layer.Max = math.Inf(1), math.Inf(-1)

	for _, s := range stats {
		boundary, ok := b.Feature(s.State)
		if !ok {
			layer.Unmatched = append(layer.Unmatched, s.State)
			continue
		}

		value := analytics.MetricValue(s, metric)
		f := geojson.NewFeature(boundary.Geometry)
		f.ID = s.State
		f.Properties[b.Key()] = s.State
		f.Properties["state"] = s.State
		f.Properties["metric"] = string(metric)
		f.Properties["value"] = value
		f.Properties["revenue"] = s.Revenue
		f.Properties["order_count"] = s.OrderCount
		f.Properties["average_ticket"] = s.AverageTicket
		if name, ok := boundary.Properties["name"]; ok {
			f.Properties["name"] = name
		}
		layer.Collection.Append(f)

		gb := boundary.Geometry.Bound()
		if first {
			bound, first = gb, false
		} else {
			bound = bound.Union(gb)
		}
		layer.Min = math.Min(layer.Min, value)
		layer.Max = math.Max(layer.Max, value)
	}

	if first {
		layer.Min, layer.Max = 0, 0
		return layer
	}
	layer.Collection.BBox = geojson.NewBBox(bound)
	return layer
}
