// Package dataset builds the joined order table from the input tables and
// memoizes it across requests.
package dataset

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"salesdash/internal/config"
	"salesdash/internal/infrastructure"
	"salesdash/internal/source"
	"salesdash/pkg/contracts/domain"
)

// Dataset is the joined, cleaned and date-shifted order table. It is never
// modified after Load returns and is safe for concurrent readers.
type Dataset struct {
	Rows []domain.OrderRow

	// Offset was added to every non-null time so that MaxPurchase is LoadedAt.
	Offset      time.Duration
	LoadedAt    time.Time
	MinPurchase time.Time
	MaxPurchase time.Time
	// States lists the customer state codes present, sorted.
	States      []string
	Fingerprint string
	Stats       LoadStats

	all []*domain.OrderRow
}

// LoadStats describes how a dataset was built
type LoadStats struct {
	Source      string         `json:"source"`
	TableRows   map[string]int `json:"table_rows"`
	JoinedRows  int            `json:"joined_rows"`
	DroppedRows int            `json:"dropped_rows"`
	Duration    time.Duration  `json:"duration"`
}

// All returns a pointer to every row. Callers must not modify the rows.
func (d *Dataset) All() []*domain.OrderRow {
	return d.all
}

// Len returns the number of joined rows
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Original returns t with the date shift removed.
func (d *Dataset) Original(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Add(-d.Offset)
}

// Loader reads the input tables from a source and builds a Dataset.
type Loader struct {
	source   source.Source
	now      func() time.Time
	language string
	metrics  *infrastructure.DashboardMetrics
	logger   *slog.Logger
}

// Option configures a Loader
type Option func(*Loader)

// WithClock overrides the wall clock used for the date shift
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithCategoryLanguage selects the category label source: "pt" formats the
// raw category code, "en" formats the translated name.
func WithCategoryLanguage(lang string) Option {
	return func(l *Loader) { l.language = lang }
}

// WithMetrics records load metrics
func WithMetrics(m *infrastructure.DashboardMetrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a loader reading from src
func NewLoader(src source.Source, opts ...Option) *Loader {
	l := &Loader{
		source:   src,
		now:      time.Now,
		language: "pt",
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = infrastructure.WithComponent(l.logger, "dataset_loader")
	return l
}

// Source returns the source the loader reads from
func (l *Loader) Source() source.Source {
	return l.source
}

// Load builds a fresh dataset. A missing input table fails the load with an
// error naming the table and its location.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	fingerprint, err := l.source.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	return l.load(ctx, fingerprint)
}

func (l *Loader) load(ctx context.Context, fingerprint string) (ds *Dataset, err error) {
	ctx, span := infrastructure.Tracer().Start(ctx, "dataset.Load")
	defer span.End()
	span.SetAttributes(attribute.String("source", l.source.Kind()))

	start := time.Now()
	stats := LoadStats{Source: l.source.Kind(), TableRows: make(map[string]int, len(config.RequiredTables))}
	defer func() {
		stats.Duration = time.Since(start)
		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
		l.metrics.RecordDatasetLoad(ctx, stats.Source, stats.JoinedRows, stats.DroppedRows, stats.Duration, err)
	}()

	raw, err := l.readTables(ctx)
	if err != nil {
		return nil, err
	}
	for table, records := range raw {
		stats.TableRows[table] = len(records.Rows)
	}

	parsed, err := parseTables(raw)
	if err != nil {
		return nil, err
	}

	rows := join(parsed)
	joined := len(rows)
	rows = dropMissingPurchase(rows)
	stats.JoinedRows = len(rows)
	stats.DroppedRows = joined - len(rows)

	loadedAt := l.now()
	ds = &Dataset{
		Rows:        rows,
		LoadedAt:    loadedAt,
		Fingerprint: fingerprint,
	}
	ds.shift(loadedAt)
	l.label(ds)
	ds.index()
	stats.Duration = time.Since(start)
	ds.Stats = stats

	span.SetAttributes(
		attribute.Int("rows", stats.JoinedRows),
		attribute.Int("dropped", stats.DroppedRows),
	)
	l.logger.InfoContext(ctx, "dataset loaded",
		slog.String("source", stats.Source),
		slog.Any("table_rows", stats.TableRows),
		slog.Int("joined_rows", stats.JoinedRows),
		slog.Int("dropped_rows", stats.DroppedRows),
		slog.Duration("offset", ds.Offset),
		slog.Duration("duration", stats.Duration))

	return ds, nil
}

// readTables reads every required table concurrently.
func (l *Loader) readTables(ctx context.Context) (map[string]*source.Records, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	raw := make(map[string]*source.Records, len(config.RequiredTables))
	for _, table := range config.RequiredTables {
		table := table
		g.Go(func() error {
			records, err := l.source.ReadTable(gctx, table)
			if err != nil {
				return err
			}
			mu.Lock()
			raw[table] = records
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if source.IsMissingInput(err) {
			l.logger.ErrorContext(ctx, "required input missing", slog.String("error", err.Error()))
		}
		return nil, err
	}
	return raw, nil
}

// dropMissingPurchase removes rows without a parseable purchase timestamp.
func dropMissingPurchase(rows []domain.OrderRow) []domain.OrderRow {
	kept := rows[:0]
	for _, r := range rows {
		if !r.Times[domain.PurchaseTimestamp].IsZero() {
			kept = append(kept, r)
		}
	}
	return kept
}

// shift moves every non-null time by now - max(purchase).
func (d *Dataset) shift(now time.Time) {
	if len(d.Rows) == 0 {
		return
	}

	var maxPurchase time.Time
	for i := range d.Rows {
		if p := d.Rows[i].Purchase(); p.After(maxPurchase) {
			maxPurchase = p
		}
	}
	d.Offset = now.Sub(maxPurchase)

	for i := range d.Rows {
		times := &d.Rows[i].Times
		for f := range times {
			if !times[f].IsZero() {
				times[f] = times[f].Add(d.Offset)
			}
		}
	}
}

// label fills CategoryLabel: underscores become spaces, then title case.
func (l *Loader) label(d *Dataset) {
	caser := cases.Title(language.BrazilianPortuguese)
	labels := make(map[string]string)

	for i := range d.Rows {
		row := &d.Rows[i]
		code := row.CategoryName
		if l.language == "en" && row.CategoryNameEnglish != "" {
			code = row.CategoryNameEnglish
		}
		if code == "" {
			continue
		}
		label, ok := labels[code]
		if !ok {
			label = caser.String(strings.ReplaceAll(code, "_", " "))
			labels[code] = label
		}
		row.CategoryLabel = label
	}
}

// index computes the derived fields.
func (d *Dataset) index() {
	d.all = make([]*domain.OrderRow, len(d.Rows))
	states := make(map[string]struct{})
	for i := range d.Rows {
		row := &d.Rows[i]
		d.all[i] = row

		p := row.Purchase()
		if d.MinPurchase.IsZero() || p.Before(d.MinPurchase) {
			d.MinPurchase = p
		}
		if p.After(d.MaxPurchase) {
			d.MaxPurchase = p
		}
		if row.State != "" {
			states[row.State] = struct{}{}
		}
	}

	d.States = make([]string, 0, len(states))
	for s := range states {
		d.States = append(d.States, s)
	}
	sort.Strings(d.States)
}
