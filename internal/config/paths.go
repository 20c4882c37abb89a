package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved directories of one run
type Paths struct {
	BaseDir   string
	InputDir  string
	OutputDir string
	LogsDir   string
}

// ResolvePaths resolves the configured directories against baseDir. An empty
// baseDir means the current working directory.
func (c *Config) ResolvePaths(baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(baseDir, p)
	}

	return &Paths{
		BaseDir:   baseDir,
		InputDir:  resolve(c.Paths.InputDir),
		OutputDir: resolve(c.Paths.OutputDir),
		LogsDir:   resolve(c.Paths.LogsDir),
	}, nil
}

// EnsureDirectories creates the output and log directories
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutputDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// MeasurePath returns the input file of a measure
func (p *Paths) MeasurePath(measureID string) string {
	return filepath.Join(p.InputDir, MeasureFilePrefix+measureID+MeasureFileSuffix)
}

// OutputPath returns a file path inside the output directory
func (p *Paths) OutputPath(name string) string {
	return filepath.Join(p.OutputDir, name)
}

// Resolve resolves a path against the base directory
func (p *Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
