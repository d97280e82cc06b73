package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"salesdash/internal/config"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName returns a timestamped file name for an export
func (f Format) FileName(name string, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", name, at.UTC().Format("20060102_150405"), f)
}

// Encode writes the report in format f
func Encode(w io.Writer, f Format, r *Report) error {
	switch f {
	case FormatXLSX:
		return EncodeXLSX(w, r.Tables())
	default:
		return EncodeCSV(w, r.Tables())
	}
}

// EncodeCSV writes tables into one CSV stream. Each table starts with a
// single-cell title row; tables are separated by an empty record.
func EncodeCSV(w io.Writer, tables []Table) error {
	// UTF-8 BOM helps Excel recognize the encoding
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	writer.UseCRLF = false

	for i, t := range tables {
		if i > 0 {
			if err := writer.Write([]string{""}); err != nil {
				return err
			}
		}
		if err := writer.Write([]string{t.Name}); err != nil {
			return fmt.Errorf("failed to write title of %s: %w", t.Name, err)
		}
		if err := writer.Write(t.Headers); err != nil {
			return fmt.Errorf("failed to write headers of %s: %w", t.Name, err)
		}
		for j, row := range t.Rows {
			record := make([]string, len(row))
			for k, v := range row {
				record[k] = formatValue(v)
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record %d of %s: %w", j, t.Name, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// Writer stores exports under the export directory
type Writer struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewWriter creates a new export writer
func NewWriter(paths *config.Paths, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{paths: paths, logger: logger.With(slog.String("component", "exporter"))}
}

// WriteReport encodes the report into a new file and returns its path
func (w *Writer) WriteReport(name string, f Format, r *Report) (string, error) {
	fullPath := w.resolvePath(f.FileName(name, r.GeneratedAt))

	var buf bytes.Buffer
	if err := Encode(&buf, f, r); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	w.logger.Info("Export written",
		slog.String("format", string(f)),
		slog.String("path", fullPath),
		slog.Int("bytes", buf.Len()))

	return fullPath, nil
}

// resolvePath resolves a file name into the export directory
func (w *Writer) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(w.paths.ExportDir, filePath)
}
