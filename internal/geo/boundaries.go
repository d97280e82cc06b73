// Package geo loads region boundaries and assembles choropleth layers from
// per-state statistics.
package geo

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	apperrors "salesdash/internal/errors"
)

// ErrBoundariesUnavailable is returned when the boundary file is missing or
// cannot be parsed. Only the map view depends on it.
var ErrBoundariesUnavailable = errors.New("region boundaries unavailable")

// unavailable wraps ErrBoundariesUnavailable in a GEO application error
func unavailable(message string, cause error) *apperrors.AppError {
	return apperrors.NewGeoError(message, fmt.Errorf("%w: %v", ErrBoundariesUnavailable, cause))
}

// DefaultFeatureKey is the feature property holding the state code
const DefaultFeatureKey = "sigla"

// Boundaries indexes boundary features by region code
type Boundaries struct {
	key      string
	features map[string]*geojson.Feature
	codes    []string
}

// ParseBoundaries reads a GeoJSON FeatureCollection. Features are keyed by
// the string property key; features without it are ignored.
func ParseBoundaries(data []byte, key string) (*Boundaries, error) {
	if key == "" {
		key = DefaultFeatureKey
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, unavailable("invalid boundary file", err)
	}

	b := &Boundaries{key: key, features: make(map[string]*geojson.Feature, len(fc.Features))}
	for _, f := range fc.Features {
		code, ok := f.Properties[key].(string)
		if !ok || code == "" || f.Geometry == nil {
			continue
		}
		if _, dup := b.features[code]; dup {
			continue
		}
		b.features[code] = f
		b.codes = append(b.codes, code)
	}
	if len(b.features) == 0 {
		return nil, unavailable("invalid boundary file",
			fmt.Errorf("no feature has a %q property", key)).WithContext("feature_key", key)
	}
	sort.Strings(b.codes)
	return b, nil
}

// LoadBoundaries reads and parses the boundary file at path
func LoadBoundaries(path, key string) (*Boundaries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, unavailable("cannot read boundary file", err).WithContext("path", path)
	}
	b, err := ParseBoundaries(data, key)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		appErr.WithContext("path", path)
	}
	return b, err
}

// Key returns the feature property used as region code
func (b *Boundaries) Key() string { return b.key }

// Codes returns the region codes, sorted
func (b *Boundaries) Codes() []string {
	out := make([]string, len(b.codes))
	copy(out, b.codes)
	return out
}

// Feature returns the boundary of one region
func (b *Boundaries) Feature(code string) (*geojson.Feature, bool) {
	f, ok := b.features[code]
	return f, ok
}

// Store loads the boundary file on demand and reloads it when its
// modification time changes. A missing file is retried on every call.
type Store struct {
	path string
	key  string

	mu         sync.Mutex
	boundaries *Boundaries
	modTime    time.Time
}

// NewStore creates a store for the file at path
func NewStore(path, key string) *Store {
	return &Store{path: path, key: key}
}

// Path returns the boundary file location
func (s *Store) Path() string { return s.path }

// Get returns the current boundaries or ErrBoundariesUnavailable
func (s *Store) Get() (*Boundaries, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, unavailable("cannot read boundary file", err).WithContext("path", s.path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.boundaries != nil && info.ModTime().Equal(s.modTime) {
		return s.boundaries, nil
	}

	b, err := LoadBoundaries(s.path, s.key)
	if err != nil {
		return nil, err
	}
	s.boundaries = b
	s.modTime = info.ModTime()
	return b, nil
}

// Available reports whether the boundary file can be loaded
func (s *Store) Available() bool {
	_, err := s.Get()
	return err == nil
}
