package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor Parquet.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Reader loads one batch file into a table.
type Reader struct {
	fs        afero.Fs
	keyColumn string
}

// NewReader creates a reader. keyColumn, when present in a file, supplies row keys.
func NewReader(fs afero.Fs, keyColumn string) *Reader {
	return &Reader{fs: fs, keyColumn: keyColumn}
}

// Read dispatches on the file extension.
func (r *Reader) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return r.readCSV(path)
	case ".parquet":
		return r.readParquet(path)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}
