package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sroanalysis/internal/config"
	"sroanalysis/internal/measures"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// MeasureFile is a measure table found in the input directory
type MeasureFile struct {
	FileInfo
	MeasureID string
}

// Discovery finds the cohort extraction outputs under a base directory
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

// FindFilesByPattern finds regular files matching a glob pattern, sorted by name
func (d *Discovery) FindFilesByPattern(dir string, pattern string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)
	matches, err := filepath.Glob(filepath.Join(fullPath, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	var files []FileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, FileInfo{
			Path:    match,
			Name:    filepath.Base(match),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// FindMeasureFiles lists measure_<id>.csv files, sorted by measure ID
func (d *Discovery) FindMeasureFiles(dir string) ([]MeasureFile, error) {
	if _, err := os.Stat(d.resolve(dir)); err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.resolve(dir), err)
	}

	files, err := d.FindFilesByPattern(dir, config.MeasureFilePrefix+"*"+config.MeasureFileSuffix)
	if err != nil {
		return nil, err
	}

	out := make([]MeasureFile, 0, len(files))
	for _, f := range files {
		id := strings.TrimSuffix(strings.TrimPrefix(f.Name, config.MeasureFilePrefix), config.MeasureFileSuffix)
		if id == "" {
			continue
		}
		out = append(out, MeasureFile{FileInfo: f, MeasureID: id})
	}
	return out, nil
}

// FindPracticeCountFiles lists the input_practice_count*.csv files
func (d *Discovery) FindPracticeCountFiles(dir string) ([]FileInfo, error) {
	return d.FindFilesByPattern(dir, config.PracticeCountPattern)
}

// UniquePractices reads the practice column of every file and returns the
// distinct practice identifiers in first-seen order
func UniquePractices(files []FileInfo) ([]string, error) {
	seen := make(map[string]bool)
	var practices []string
	for _, f := range files {
		t, err := measures.LoadCSV(f.Path)
		if err != nil {
			return nil, err
		}
		ids, err := t.Labels(measures.PracticeColumn)
		if err != nil {
			return nil, fmt.Errorf("failed to read practices from %s: %w", f.Name, err)
		}
		for _, id := range ids {
			id = measures.NormalizeCode(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			practices = append(practices, id)
		}
	}
	return practices, nil
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}
	return latest, true
}
