package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// StatesGeoJSON is a tiny boundary file with rectangles for SP and RJ
const StatesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"sigla": "SP", "name": "São Paulo"},
     "geometry": {"type": "Polygon", "coordinates": [[[-53, -25], [-44, -25], [-44, -19], [-53, -19], [-53, -25]]]}},
    {"type": "Feature", "properties": {"sigla": "RJ", "name": "Rio de Janeiro"},
     "geometry": {"type": "Polygon", "coordinates": [[[-45, -23], [-41, -23], [-41, -20], [-45, -20], [-45, -23]]]}}
  ]
}`

// WriteBoundaries writes StatesGeoJSON to dir/name and returns the path
func WriteBoundaries(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(StatesGeoJSON), 0644); err != nil {
		t.Fatalf("failed to write boundaries: %v", err)
	}
	return path
}
