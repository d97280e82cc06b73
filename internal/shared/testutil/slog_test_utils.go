package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogRecord is one captured log line. Attributes bound with Logger.With
// are merged into Attrs; groups prefix keys with "group.".
type LogRecord struct {
	Level     slog.Level
	Message   string
	Component string
	Attrs     map[string]any
}

type logStore struct {
	mu      sync.Mutex
	records []LogRecord
}

// BufferedSlogHandler records every log line for assertions. Handlers
// derived with WithAttrs or WithGroup share the parent's records.
type BufferedSlogHandler struct {
	store  *logStore
	attrs  []slog.Attr
	prefix string
}

// NewTestLogger returns a logger whose output is captured by the handler.
// Records are dumped to t.Log when the test fails.
func NewTestLogger(t *testing.T) (*slog.Logger, *BufferedSlogHandler) {
	t.Helper()
	h := &BufferedSlogHandler{store: &logStore{}}
	t.Cleanup(func() {
		if t.Failed() {
			for _, r := range h.GetRecords() {
				t.Logf("[%s] %s %v", r.Level, r.Message, r.Attrs)
			}
		}
	})
	return slog.New(h), h
}

// Enabled captures every level
func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler
func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.prefix+a.Key] = a.Value.Any()
		return true
	})

	rec := LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs}
	if c, ok := attrs["component"].(string); ok {
		rec.Component = c
	}

	h.store.mu.Lock()
	h.store.records = append(h.store.records, rec)
	h.store.mu.Unlock()
	return nil
}

// WithAttrs implements slog.Handler
func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	bound = append(bound, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		bound = append(bound, a)
	}
	return &BufferedSlogHandler{store: h.store, attrs: bound, prefix: h.prefix}
}

// WithGroup implements slog.Handler
func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &BufferedSlogHandler{store: h.store, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// GetRecords returns a copy of every captured record
func (h *BufferedSlogHandler) GetRecords() []LogRecord {
	return h.filter(func(LogRecord) bool { return true })
}

// GetRecordsByLevel returns the records logged at level
func (h *BufferedSlogHandler) GetRecordsByLevel(level slog.Level) []LogRecord {
	return h.filter(func(r LogRecord) bool { return r.Level == level })
}

// ForComponent returns the records of loggers bound with component=name
func (h *BufferedSlogHandler) ForComponent(name string) []LogRecord {
	return h.filter(func(r LogRecord) bool { return r.Component == name })
}

// ContainsMessage reports whether any message contains substr
func (h *BufferedSlogHandler) ContainsMessage(substr string) bool {
	return len(h.filter(func(r LogRecord) bool { return strings.Contains(r.Message, substr) })) > 0
}

// ContainsAttr reports whether any record has key set to value. slog
// stores integers as int64.
func (h *BufferedSlogHandler) ContainsAttr(key string, value any) bool {
	return len(h.filter(func(r LogRecord) bool {
		v, ok := r.Attrs[key]
		return ok && v == value
	})) > 0
}

// Count returns the number of captured records
func (h *BufferedSlogHandler) Count() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return len(h.store.records)
}

// Clear drops every captured record
func (h *BufferedSlogHandler) Clear() {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.records = nil
}

func (h *BufferedSlogHandler) filter(keep func(LogRecord) bool) []LogRecord {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	var out []LogRecord
	for _, r := range h.store.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// AssertLogContains fails t unless a record at level contains message
func AssertLogContains(t *testing.T, h *BufferedSlogHandler, level slog.Level, message string) {
	t.Helper()

	records := h.GetRecordsByLevel(level)
	for _, r := range records {
		if strings.Contains(r.Message, message) {
			return
		}
	}

	t.Errorf("no %s log containing %q", level, message)
	for _, r := range records {
		t.Logf("  - %s", r.Message)
	}
}
