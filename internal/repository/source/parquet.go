package source

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

const rowBufferSize = 1000

// leaf is one top-level primitive column of the file.
type leaf struct {
	name string
	date bool // DATE logical type, stored as days since the epoch
	key  bool
}

func (r *Reader) readParquet(path string) (*table.Table, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	t, err := decodeParquet(pf, r.keyColumn)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// decodeParquet reads every top-level leaf column. Nested and repeated
// columns are skipped.
func decodeParquet(pf *parquet.File, keyColumn string) (*table.Table, error) {
	leaves := make(map[int]leaf)
	var order []int
	for _, path := range pf.Schema().Columns() {
		if len(path) != 1 {
			continue
		}
		lc, ok := pf.Schema().Lookup(path...)
		if !ok || lc.MaxRepetitionLevel > 0 {
			continue
		}
		lt := lc.Node.Type().LogicalType()
		leaves[lc.ColumnIndex] = leaf{
			name: path[0],
			date: lt != nil && lt.Date != nil,
			key:  keyColumn != "" && path[0] == keyColumn,
		}
		order = append(order, lc.ColumnIndex)
	}

	n := int(pf.NumRows())
	d := &decoded{leaves: leaves, cols: make(map[int][]table.Value, len(order))}
	for _, idx := range order {
		d.cols[idx] = make([]table.Value, 0, n)
		if leaves[idx].key {
			d.keys = make([]string, 0, n)
		}
	}

	buf := make([]parquet.Row, rowBufferSize)
	for _, rg := range pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		for {
			cnt, readErr := rows.ReadRows(buf)
			for i := 0; i < cnt; i++ {
				d.appendRow(buf[i])
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}

	names := make([]string, len(order))
	values := make([][]table.Value, len(order))
	for i, idx := range order {
		names[i] = leaves[idx].name
		values[i] = d.cols[idx]
	}
	return table.FromKeyedColumns(names, values, keyColumn, d.keys)
}

// decoded accumulates column values and, when the key column is present,
// the exact text of each row key.
type decoded struct {
	leaves map[int]leaf
	cols   map[int][]table.Value
	keys   []string
}

// appendRow adds one cell per tracked leaf; a leaf absent from the row is null.
func (d *decoded) appendRow(row parquet.Row) {
	seen := make(map[int]bool, len(d.leaves))
	for _, v := range row {
		idx := v.Column()
		l, ok := d.leaves[idx]
		if !ok || seen[idx] {
			continue
		}
		seen[idx] = true
		d.cols[idx] = append(d.cols[idx], convert(v, l))
		if l.key {
			d.keys = append(d.keys, keyText(v))
		}
	}
	for idx, l := range d.leaves {
		if seen[idx] {
			continue
		}
		d.cols[idx] = append(d.cols[idx], table.Null())
		if l.key {
			d.keys = append(d.keys, "")
		}
	}
}

// keyText renders an id cell without going through float64.
func keyText(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	default:
		return strings.TrimSpace(v.String())
	}
}

func convert(v parquet.Value, l leaf) table.Value {
	if v.IsNull() {
		return table.Null()
	}
	switch v.Kind() {
	case parquet.Boolean:
		return table.Bool(v.Boolean())
	case parquet.Int32:
		if l.date {
			return table.String(time.Unix(int64(v.Int32())*secondsPerDay, 0).UTC().Format(time.DateOnly))
		}
		return table.Number(float64(v.Int32()))
	case parquet.Int64:
		return table.Number(float64(v.Int64()))
	case parquet.Float:
		return table.Number(float64(v.Float()))
	case parquet.Double:
		return table.Number(v.Double())
	default:
		return table.String(v.String())
	}
}

const secondsPerDay = 24 * 60 * 60
