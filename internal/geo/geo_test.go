package geo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "salesdash/internal/errors"
	"salesdash/pkg/contracts/domain"
)

const statesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"sigla": "SP", "name": "São Paulo"},
     "geometry": {"type": "Polygon", "coordinates": [[[-53, -25], [-44, -25], [-44, -19], [-53, -19], [-53, -25]]]}},
    {"type": "Feature", "properties": {"sigla": "RJ", "name": "Rio de Janeiro"},
     "geometry": {"type": "Polygon", "coordinates": [[[-45, -23], [-41, -23], [-41, -20], [-45, -20], [-45, -23]]]}},
    {"type": "Feature", "properties": {"sigla": "AM", "name": "Amazonas"},
     "geometry": {"type": "Polygon", "coordinates": [[[-73, -9], [-56, -9], [-56, 2], [-73, 2], [-73, -9]]]}},
    {"type": "Feature", "properties": {"name": "no code"},
     "geometry": {"type": "Point", "coordinates": [0, 0]}}
  ]
}`

func writeBoundaries(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "br_states.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseBoundaries(t *testing.T) {
	b, err := ParseBoundaries([]byte(statesGeoJSON), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultFeatureKey, b.Key())
	assert.Equal(t, []string{"AM", "RJ", "SP"}, b.Codes())

	_, ok := b.Feature("SP")
	assert.True(t, ok)
	_, ok = b.Feature("MG")
	assert.False(t, ok)
}

func TestParseBoundariesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		key  string
	}{
		{"invalid json", "{not json", ""},
		{"no keyed features", statesGeoJSON, "uf"},
		{"empty collection", `{"type":"FeatureCollection","features":[]}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBoundaries([]byte(tt.data), tt.key)
			assert.ErrorIs(t, err, ErrBoundariesUnavailable)
		})
	}
}

func TestLoadBoundaries(t *testing.T) {
	b, err := LoadBoundaries(writeBoundaries(t, statesGeoJSON), DefaultFeatureKey)
	require.NoError(t, err)
	assert.Len(t, b.Codes(), 3)
}

func TestLoadBoundariesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := LoadBoundaries(path, "")
	assert.ErrorIs(t, err, ErrBoundariesUnavailable)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeGeo, appErr.Type)
	assert.Equal(t, path, appErr.Context["path"])
}

func TestLoadBoundariesInvalidFileIsGeoError(t *testing.T) {
	path := writeBoundaries(t, `{"type":"FeatureCollection","features":[]}`)
	_, err := LoadBoundaries(path, "")
	assert.ErrorIs(t, err, ErrBoundariesUnavailable)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeGeo, appErr.Type)
	assert.Equal(t, path, appErr.Context["path"])
	assert.Equal(t, DefaultFeatureKey, appErr.Context["feature_key"])
}

func TestChoropleth(t *testing.T) {
	b, err := ParseBoundaries([]byte(statesGeoJSON), "")
	require.NoError(t, err)

	stats := []domain.StateStats{
		{State: "SP", Revenue: 150, OrderCount: 2, AverageTicket: 75},
		{State: "RJ", Revenue: 30, OrderCount: 1, AverageTicket: 30},
		{State: "ZZ", Revenue: 1, OrderCount: 1, AverageTicket: 1},
	}

	layer := Choropleth(b, stats, domain.StateMetricAverageTicket)
	require.Len(t, layer.Collection.Features, 2)
	assert.Equal(t, []string{"ZZ"}, layer.Unmatched)
	assert.Equal(t, 30.0, layer.Min)
	assert.Equal(t, 75.0, layer.Max)

	sp := layer.Collection.Features[0]
	assert.Equal(t, "SP", sp.ID)
	assert.Equal(t, 75.0, sp.Properties["value"])
	assert.Equal(t, "average_ticket", sp.Properties["metric"])
	assert.Equal(t, "São Paulo", sp.Properties["name"])

	// bbox covers SP and RJ only, not AM
	assert.Equal(t, []float64{-53, -25, -41, -19}, []float64(layer.Collection.BBox))

	data, err := json.Marshal(layer)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bbox"`)
}

func TestChoroplethEmpty(t *testing.T) {
	b, err := ParseBoundaries([]byte(statesGeoJSON), "")
	require.NoError(t, err)

	layer := Choropleth(b, nil, domain.StateMetricRevenue)
	assert.Empty(t, layer.Collection.Features)
	assert.Nil(t, layer.Collection.BBox)
	assert.Zero(t, layer.Min)
	assert.Zero(t, layer.Max)
}

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "br_states.json")
	store := NewStore(path, "")

	_, err := store.Get()
	assert.ErrorIs(t, err, ErrBoundariesUnavailable)
	assert.False(t, store.Available())

	require.NoError(t, os.WriteFile(path, []byte(statesGeoJSON), 0644))
	first, err := store.Get()
	require.NoError(t, err)

	again, err := store.Get()
	require.NoError(t, err)
	assert.Same(t, first, again)

	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[]}`), 0644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = store.Get()
	assert.ErrorIs(t, err, ErrBoundariesUnavailable)
}
