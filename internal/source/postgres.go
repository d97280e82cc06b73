package source

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/blake2b"

	"salesdash/internal/config"
	apperrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
)

// PostgresSource reads tables over a native pgx connection. Every column is
// requested in the text format so values arrive exactly as PostgreSQL
// prints them.
type PostgresSource struct {
	conn   *pgx.Conn
	tables map[string]string
	logger *slog.Logger
}

// OpenPostgres connects to PostgreSQL.
func OpenPostgres(ctx context.Context, dsn string, tables map[string]string, logger *slog.Logger) (*PostgresSource, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to connect to postgres", err)
	}
	return &PostgresSource{
		conn:   conn,
		tables: tables,
		logger: infrastructure.WithComponent(logger, "source.postgres"),
	}, nil
}

// Kind implements Source
func (s *PostgresSource) Kind() string { return config.SourcePostgres }

// Fingerprint hashes a digest of every row of every table.
func (s *PostgresSource) Fingerprint(ctx context.Context) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	_, _ = io.WriteString(h, config.SourcePostgres+"\x00")

	for _, table := range config.RequiredTables {
		name, err := s.tableName(ctx, table)
		if err != nil {
			return "", err
		}

		rows, err := s.conn.Query(ctx, "SELECT * FROM "+pgx.Identifier{name}.Sanitize(),
			pgx.QueryResultFormats{pgx.TextFormatCode})
		if err != nil {
			return "", apperrors.NewStorageError(fmt.Sprintf("failed to digest %s", name), err)
		}
		d := &tableDigest{}
		for rows.Next() {
			for _, v := range rows.RawValues() {
				d.field(v, v == nil)
			}
			d.endRow()
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return "", apperrors.NewStorageError(fmt.Sprintf("failed to digest %s", name), err)
		}
		d.writeTo(h, table, name)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadTable implements Source
func (s *PostgresSource) ReadTable(ctx context.Context, table string) (*Records, error) {
	name, err := s.tableName(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, "SELECT * FROM "+pgx.Identifier{name}.Sanitize(),
		pgx.QueryResultFormats{pgx.TextFormatCode})
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to query %s", name), err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}

	records := NewRecords(table, header)
	for rows.Next() {
		raw := rows.RawValues()
		row := make([]string, len(raw))
		for i, v := range raw {
			if v != nil {
				row[i] = string(v)
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
func (s *PostgresSource) Close() error {
	return s.conn.Close(context.Background())
}

func (s *PostgresSource) tableName(ctx context.Context, table string) (string, error) {
	name, ok := s.tables[table]
	if !ok {
		return "", apperrors.NewConfigError(fmt.Sprintf("no table configured for %q", table), nil)
	}

	var exists bool
	err := s.conn.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", pgx.Identifier{name}.Sanitize()).Scan(&exists)
	if err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to look up table %s", name), err)
	}
	if !exists {
		return "", apperrors.NewMissingInputError(table, "postgres table "+name, nil)
	}
	return name, nil
}
