package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

const utf8BOM = "\ufeff"

func (r *Reader) readCSV(path string) (*table.Table, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	t, err := DecodeCSV(f, r.keyColumn)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// DecodeCSV reads a CSV stream with a header row. Column types are inferred
// per column; NA tokens become nulls. Row keys are the raw text of keyColumn,
// taken before inference so long or zero-padded ids keep every digit.
func DecodeCSV(in io.Reader, keyColumn string) (*table.Table, error) {
	cr := csv.NewReader(in)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file: header row is missing")
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	raw := make([][]string, len(header))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row: %w", err)
		}
		for c, cell := range rec {
			raw[c] = append(raw[c], cell)
		}
	}

	cols := make([][]table.Value, len(header))
	var keys []string
	for c, name := range header {
		cols[c] = table.InferColumn(raw[c])
		if keyColumn != "" && name == keyColumn && keys == nil {
			keys = rawKeys(raw[c])
		}
	}
	return table.FromKeyedColumns(header, cols, keyColumn, keys)
}

// rawKeys trims key cells; an NA token yields an empty, rejected key.
func rawKeys(cells []string) []string {
	keys := make([]string, len(cells))
	for i, c := range cells {
		if c = strings.TrimSpace(c); !table.IsNAToken(c) {
			keys[i] = c
		}
	}
	return keys
}
