package source

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"salesdash/internal/config"
	apperrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
)

// SQLSource reads tables through database/sql. Supported kinds are sqlite
// (modernc.org/sqlite) and mysql (go-sql-driver/mysql).
type SQLSource struct {
	kind   string
	db     *sql.DB
	tables map[string]string
	logger *slog.Logger
}

// OpenSQL opens a database/sql backed source and verifies the connection.
func OpenSQL(ctx context.Context, kind, dsn string, tables map[string]string, logger *slog.Logger) (*SQLSource, error) {
	driver, err := driverName(kind)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open %s database", kind), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to connect to %s database", kind), err)
	}

	return NewSQLSource(kind, db, tables, logger), nil
}

// NewSQLSource wraps an open database handle.
func NewSQLSource(kind string, db *sql.DB, tables map[string]string, logger *slog.Logger) *SQLSource {
	return &SQLSource{
		kind:   kind,
		db:     db,
		tables: tables,
		logger: infrastructure.WithComponent(logger, "source."+kind),
	}
}

func driverName(kind string) (string, error) {
	switch kind {
	case config.SourceSQLite:
		return "sqlite", nil
	case config.SourceMySQL:
		return "mysql", nil
	default:
		return "", apperrors.NewConfigError(fmt.Sprintf("unsupported sql source kind %q", kind), nil)
	}
}

// Kind implements Source
func (s *SQLSource) Kind() string { return s.kind }

// Fingerprint hashes a digest of every row of every table. It scans the
// tables in full; the cache verify interval bounds how often that happens.
func (s *SQLSource) Fingerprint(ctx context.Context) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	_, _ = io.WriteString(h, s.kind+"\x00")

	for _, table := range config.RequiredTables {
		name, err := s.tableName(ctx, table)
		if err != nil {
			return "", err
		}

		d, err := s.digest(ctx, name)
		if err != nil {
			return "", err
		}
		d.writeTo(h, table, name)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *SQLSource) digest(ctx context.Context, name string) (*tableDigest, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+s.quote(name))
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to digest %s", name), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read columns of %s", name), err)
	}
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	d := &tableDigest{}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.NewStorageError(fmt.Sprintf("failed to scan %s", name), err)
		}
		for _, v := range values {
			d.field([]byte(v.String), !v.Valid)
		}
		d.endRow()
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to digest %s", name), err)
	}
	return d, nil
}

// ReadTable implements Source
func (s *SQLSource) ReadTable(ctx context.Context, table string) (*Records, error) {
	name, err := s.tableName(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+s.quote(name))
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to query %s", name), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read columns of %s", name), err)
	}

	records := NewRecords(table, cols)
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.NewStorageError(fmt.Sprintf("failed to scan %s", name), err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		records.Rows = append(records.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read %s", name), err)
	}

	s.logger.DebugContext(ctx, "table read",
		slog.String("table", table),
		slog.String("sql_table", name),
		slog.Int("rows", len(records.Rows)))

	return records, nil
}

// Close implements Source
func (s *SQLSource) Close() error { return s.db.Close() }

// tableName resolves and checks the database table backing table.
func (s *SQLSource) tableName(ctx context.Context, table string) (string, error) {
	name, ok := s.tables[table]
	if !ok {
		return "", apperrors.NewConfigError(fmt.Sprintf("no table configured for %q", table), nil)
	}

	var query string
	switch s.kind {
	case config.SourceSQLite:
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?"
	default:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to look up table %s", name), err)
	}
	if n == 0 {
		return "", apperrors.NewMissingInputError(table, s.kind+" table "+name, nil)
	}
	return name, nil
}

func (s *SQLSource) quote(name string) string {
	if s.kind == config.SourceMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
