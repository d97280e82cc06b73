// Package source reads the seven input tables of the sales dataset from a
// CSV directory, a SQL database or a MongoDB database.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"salesdash/internal/config"
	apperrors "salesdash/internal/errors"
)

// Source abstracts where the input tables live.
type Source interface {
	// Kind names the backend (csv, sqlite, postgres, mysql, mongo).
	Kind() string
	// Fingerprint identifies the current content of every required table.
	// It changes whenever any table changes and fails with a missing input
	// error when a table is absent.
	Fingerprint(ctx context.Context) (string, error)
	// ReadTable returns every row of the table as strings. Empty strings are nulls.
	ReadTable(ctx context.Context, table string) (*Records, error)
	Close() error
}

// Records is a table read from a source: a header and string rows.
type Records struct {
	Table  string
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewRecords creates a table with the given header. Header names are
// matched case-insensitively and with surrounding whitespace removed.
func NewRecords(table string, header []string) *Records {
	r := &Records{Table: table, Header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		key := normalizeColumn(h)
		if _, dup := r.index[key]; !dup {
			r.index[key] = i
		}
	}
	return r
}

// Col returns the index of a column, or -1 when the table has no such column.
func (r *Records) Col(name string) int {
	if i, ok := r.index[normalizeColumn(name)]; ok {
		return i
	}
	return -1
}

// Require returns the indexes of the named columns or an error naming the
// first absent one.
func (r *Records) Require(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		c := r.Col(name)
		if c < 0 {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("table %q has no column %q", r.Table, name), nil).
				WithContext("table", r.Table).
				WithContext("column", name)
		}
		idx[i] = c
	}
	return idx, nil
}

// Value returns the trimmed cell of row at col, or "" when col is -1 or
// beyond the row.
func Value(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func normalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.ToLower(strings.TrimSpace(name))
}

// IsMissingInput reports whether err is caused by an absent input table.
func IsMissingInput(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.Type == apperrors.ErrTypeMissingInput
}

// Open creates the source configured in cfg.
func Open(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (Source, error) {
	tables := make(map[string]string, len(config.RequiredTables))
	for _, t := range config.RequiredTables {
		tables[t] = cfg.TableFile(t)
	}

	switch cfg.Source.Kind {
	case config.SourceCSV, "":
		return NewCSVSource(paths.DataDir, tables, logger), nil
	case config.SourceSQLite, config.SourceMySQL:
		return OpenSQL(ctx, cfg.Source.Kind, cfg.Source.DSN, sqlTableNames(tables), logger)
	case config.SourcePostgres:
		return OpenPostgres(ctx, cfg.Source.DSN, sqlTableNames(tables), logger)
	case config.SourceMongo:
		return OpenMongo(ctx, cfg.Source.DSN, cfg.Source.Database, sqlTableNames(tables), logger)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown source kind %q", cfg.Source.Kind), nil)
	}
}

// sqlTableNames turns configured file names into table names: the
// extension and the Olist "_dataset" suffix are dropped, so
// olist_orders_dataset.csv is read from table olist_orders.
func sqlTableNames(files map[string]string) map[string]string {
	out := make(map[string]string, len(files))
	for table, file := range files {
		name := strings.TrimSuffix(file, ".csv")
		name = strings.TrimSuffix(name, "_dataset")
		out[table] = name
	}
	return out
}
