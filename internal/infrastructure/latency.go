package infrastructure

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latency tracking range: 1µs to 60s with 3 significant figures.
const (
	latencyMinMicros = 1
	latencyMaxMicros = 60_000_000
	latencySigFigs   = 3
)

// LatencySummary is a snapshot of the latency distribution of one view.
type LatencySummary struct {
	View  string        `json:"view"`
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean_ns"`
	P50   time.Duration `json:"p50_ns"`
	P95   time.Duration `json:"p95_ns"`
	P99   time.Duration `json:"p99_ns"`
	Max   time.Duration `json:"max_ns"`
}

// LatencyRecorder keeps one HDR histogram per dashboard view.
type LatencyRecorder struct {
	mu    sync.Mutex
	views map[string]*hdrhistogram.Histogram
}

// NewLatencyRecorder creates an empty recorder
func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{views: make(map[string]*hdrhistogram.Histogram)}
}

// Record adds one observation for view. Values beyond the tracked range are clamped.
func (r *LatencyRecorder) Record(view string, d time.Duration) {
	if r == nil {
		return
	}
	us := d.Microseconds()
	if us < latencyMinMicros {
		us = latencyMinMicros
	}
	if us > latencyMaxMicros {
		us = latencyMaxMicros
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.views[view]
	if !ok {
		h = hdrhistogram.New(latencyMinMicros, latencyMaxMicros, latencySigFigs)
		r.views[view] = h
	}
	_ = h.RecordValue(us)
}

// Since records the time elapsed since start.
func (r *LatencyRecorder) Since(view string, start time.Time) {
	r.Record(view, time.Since(start))
}

// Snapshot returns summaries for all views, sorted by view name.
func (r *LatencyRecorder) Snapshot() []LatencySummary {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]LatencySummary, 0, len(r.views))
	for view, h := range r.views {
		out = append(out, LatencySummary{
			View:  view,
			Count: h.TotalCount(),
			Mean:  time.Duration(h.Mean()) * time.Microsecond,
			P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
			P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
			P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
			Max:   time.Duration(h.Max()) * time.Microsecond,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].View < out[j].View })
	return out
}

// Reset discards all recorded observations.
func (r *LatencyRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = make(map[string]*hdrhistogram.Histogram)
}
