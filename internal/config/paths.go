package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved file system locations used by the application.
// Relative entries in PathsConfig are resolved against BaseDir.
type Paths struct {
	BaseDir      string
	DataDir      string
	BoundaryFile string
	ExportDir    string
	LogsDir      string
}

// ResolvePaths resolves the configured paths. Relative paths are taken
// relative to the working directory.
func (c *Config) ResolvePaths() (*Paths, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return c.ResolvePathsFrom(wd), nil
}

// ResolvePathsFrom resolves the configured paths against base.
func (c *Config) ResolvePathsFrom(base string) *Paths {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	dataDir := abs(c.Paths.DataDir)

	// A bare boundary file name lives next to the data files.
	boundary := c.Paths.BoundaryFile
	if boundary != "" && !filepath.IsAbs(boundary) && filepath.Base(boundary) == boundary {
		boundary = filepath.Join(dataDir, boundary)
	} else {
		boundary = abs(boundary)
	}

	return &Paths{
		BaseDir:      base,
		DataDir:      dataDir,
		BoundaryFile: boundary,
		ExportDir:    abs(c.Paths.ExportDir),
		LogsDir:      abs(c.Paths.LogsDir),
	}
}

// EnsureDirectories creates the writable directories if they don't exist.
// The data directory is input only and is never created.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.ExportDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// TablePath returns the absolute path of a CSV input table.
func (p *Paths) TablePath(cfg *Config, table string) string {
	return filepath.Join(p.DataDir, cfg.TableFile(table))
}

// LogPathResolution logs resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("resolved paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("data_dir", p.DataDir),
		slog.String("boundary_file", p.BoundaryFile),
		slog.String("export_dir", p.ExportDir),
		slog.String("logs_dir", p.LogsDir))
}
