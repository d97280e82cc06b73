package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"salesdash/internal/config"
	apperrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
)

// CSVSource reads tables from CSV files in a directory.
type CSVSource struct {
	dir    string
	files  map[string]string
	logger *slog.Logger
}

// NewCSVSource creates a source reading files[table] from dir.
func NewCSVSource(dir string, files map[string]string, logger *slog.Logger) *CSVSource {
	return &CSVSource{
		dir:    dir,
		files:  files,
		logger: infrastructure.WithComponent(logger, "source.csv"),
	}
}

// Kind implements Source
func (s *CSVSource) Kind() string { return config.SourceCSV }

// Path returns the file path of a table.
func (s *CSVSource) Path(table string) string {
	return filepath.Join(s.dir, s.files[table])
}

// Fingerprint hashes the name and content of every required file with BLAKE2b-256.
func (s *CSVSource) Fingerprint(ctx context.Context) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}

	for _, table := range config.RequiredTables {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		path := s.Path(table)
		f, err := s.open(table, path)
		if err != nil {
			return "", err
		}
		_, _ = io.WriteString(h, table+"\x00"+s.files[table]+"\x00")
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", apperrors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadTable implements Source
func (s *CSVSource) ReadTable(ctx context.Context, table string) (*Records, error) {
	path := s.Path(table)
	f, err := s.open(table, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReaderSize(f, 1<<16))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return NewRecords(table, nil), nil
	}
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read header of %s", path), err)
	}

	records := NewRecords(table, header)
	for {
		if len(records.Rows)%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse %s", path), err)
		}
		records.Rows = append(records.Rows, row)
	}

	s.logger.DebugContext(ctx, "table read",
		slog.String("table", table),
		slog.String("path", path),
		slog.Int("rows", len(records.Rows)))

	return records, nil
}

// Close implements Source
func (s *CSVSource) Close() error { return nil }

func (s *CSVSource) open(table, path string) (*os.File, error) {
	if _, ok := s.files[table]; !ok {
		return nil, apperrors.NewConfigError(fmt.Sprintf("no file configured for table %q", table), nil)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewMissingInputError(table, path, err)
		}
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err)
	}
	return f, nil
}
