// Package source finds raw listing batches on disk and reads them into tables.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/kailas-cloud/vecprep/internal/domain"
)

// DefaultPatterns match the formats Reader understands.
var DefaultPatterns = []string{"*.csv", "*.parquet"}

// Detector lists the batches waiting in a data directory.
type Detector struct {
	fs       afero.Fs
	dir      string
	patterns []string
}

// NewDetector creates a detector over dir. Without patterns DefaultPatterns apply.
func NewDetector(fs afero.Fs, dir string, patterns ...string) *Detector {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	p := make([]string, len(patterns))
	copy(p, patterns)
	return &Detector{fs: fs, dir: dir, patterns: p}
}

// Dir returns the watched directory.
func (d *Detector) Dir() string { return d.dir }

// Detect returns matching files in lexical order. A missing directory or no
// match yields domain.ErrNoNewData.
func (d *Detector) Detect(_ context.Context) ([]string, error) {
	exists, err := afero.DirExists(d.fs, d.dir)
	if err != nil {
		return nil, fmt.Errorf("check data dir: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("data dir %s does not exist: %w", d.dir, domain.ErrNoNewData)
	}

	seen := make(map[string]struct{})
	var files []string
	for _, p := range d.patterns {
		matches, err := afero.Glob(d.fs, filepath.Join(d.dir, p))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", p, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			if isDir, _ := afero.IsDir(d.fs, m); isDir {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matching %v in %s: %w", d.patterns, d.dir, domain.ErrNoNewData)
	}
	sort.Strings(files)
	return files, nil
}

// Matches reports whether path names a file the detector would pick up.
func (d *Detector) Matches(path string) bool {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(d.dir) {
		return false
	}
	base := filepath.Base(path)
	for _, p := range d.patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
