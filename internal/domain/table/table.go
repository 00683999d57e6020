// Package table implements the working table threaded through the
// preprocessing steps and the numeric feature batch it is frozen into.
package table

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kailas-cloud/vecprep/internal/domain"
)

// Table is an ordered set of equal-length columns plus a key per row.
//
// A Table is a value: WithColumn and Without return new tables and never
// modify the receiver, and Column hands out copies. Unchanged column slices
// are shared between generations, which is safe because nothing writes to
// them after construction.
type Table struct {
	keys  []string
	names []string
	index map[string]int
	cols  [][]Value
}

// New creates a table with one row per key and no columns.
func New(keys []string) *Table {
	k := make([]string, len(keys))
	copy(k, keys)
	return &Table{keys: k, index: map[string]int{}}
}

// OrdinalKeys returns "0".."n-1".
func OrdinalKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}
	return keys
}

// FromColumns builds a table from named columns in order. keyColumn, when
// non-empty and present, supplies row keys from the text form of its values;
// without it keys are ordinals. Readers that see the raw cells should use
// FromKeyedColumns, since a number-typed id may already have lost digits.
func FromColumns(names []string, cols [][]Value, keyColumn string) (*Table, error) {
	var keys []string
	for i, name := range names {
		if keyColumn == "" || name != keyColumn || i >= len(cols) {
			continue
		}
		keys = make([]string, len(cols[i]))
		for r, v := range cols[i] {
			keys[r], _ = v.Text()
		}
		break
	}
	return FromKeyedColumns(names, cols, keyColumn, keys)
}

// FromKeyedColumns builds a table from named columns with explicit row keys.
// A nil keys slice means ordinal keys. Otherwise every key must be non-empty
// and unique, because the key becomes the stored point id; keyColumn only
// names the source of the keys in errors.
func FromKeyedColumns(names []string, cols [][]Value, keyColumn string, keys []string) (*Table, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("table: %d names for %d columns", len(names), len(cols))
	}
	n := 0
	if len(cols) > 0 {
		n = len(cols[0])
	}
	if keys == nil {
		keys = OrdinalKeys(n)
	} else if err := checkKeys(keys, n, keyColumn); err != nil {
		return nil, err
	}

	t := New(keys)
	var err error
	for i, name := range names {
		if t.Has(name) {
			return nil, domain.NewSchemaError("", name, "duplicate column in input")
		}
		if t, err = t.WithColumn(name, cols[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func checkKeys(keys []string, rows int, keyColumn string) error {
	if len(keys) != rows {
		return fmt.Errorf("table: %d keys for %d rows", len(keys), rows)
	}
	seen := make(map[string]int, len(keys))
	for r, k := range keys {
		if k == "" {
			return domain.NewSchemaError("", keyColumn, "row %d has no key", r)
		}
		if first, dup := seen[k]; dup {
			return domain.NewSchemaError("", keyColumn, "key %q repeats on rows %d and %d", k, first, r)
		}
		seen[k] = r
	}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.keys) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.names) }

// Key returns the identity of row i.
func (t *Table) Key(i int) string { return t.keys[i] }

// Keys returns a copy of all row keys in order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]Value, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(t.cols[i]))
	copy(out, t.cols[i])
	return out, true
}

// WithColumn returns a table where name holds vals. An existing column is
// replaced at its position; a new one is appended.
func (t *Table) WithColumn(name string, vals []Value) (*Table, error) {
	if len(vals) != len(t.keys) {
		return nil, fmt.Errorf("table: column %q has %d rows, table has %d", name, len(vals), len(t.keys))
	}
	col := make([]Value, len(vals))
	copy(col, vals)

	next := t.shallow()
	if i, ok := next.index[name]; ok {
		next.cols[i] = col
		return next, nil
	}
	next.index[name] = len(next.names)
	next.names = append(next.names, name)
	next.cols = append(next.cols, col)
	return next, nil
}

// Without returns a table lacking the named columns. Every name must exist;
// the error is a *domain.SchemaError for the first missing one.
func (t *Table) Without(names ...string) (*Table, error) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		if !t.Has(n) {
			return nil, domain.NewSchemaError("", n, "column not found")
		}
		drop[n] = struct{}{}
	}

	next := &Table{
		keys:  t.keys,
		names: make([]string, 0, len(t.names)),
		index: make(map[string]int, len(t.names)),
		cols:  make([][]Value, 0, len(t.cols)),
	}
	for i, n := range t.names {
		if _, ok := drop[n]; ok {
			continue
		}
		next.index[n] = len(next.names)
		next.names = append(next.names, n)
		next.cols = append(next.cols, t.cols[i])
	}
	return next, nil
}

// SelectRows returns a table holding only the given rows, in the given order.
// Indexes must be in range.
func (t *Table) SelectRows(rows []int) *Table {
	next := &Table{
		keys:  make([]string, len(rows)),
		names: t.Columns(),
		index: make(map[string]int, len(t.index)),
		cols:  make([][]Value, len(t.cols)),
	}
	for k, v := range t.index {
		next.index[k] = v
	}
	for i, r := range rows {
		next.keys[i] = t.keys[r]
	}
	for c, col := range t.cols {
		out := make([]Value, len(rows))
		for i, r := range rows {
			out[i] = col[r]
		}
		next.cols[c] = out
	}
	return next
}

// Freeze converts the table into an immutable numeric batch. Every cell must
// be null or numeric (strings that parse as numbers are accepted); nulls
// become NaN.
func (t *Table) Freeze() (*FeatureBatch, error) {
	width := len(t.names)
	data := make([]float64, len(t.keys)*width)
	for c, name := range t.names {
		for r, v := range t.cols[c] {
			if v.IsNull() {
				data[r*width+c] = math.NaN()
				continue
			}
			f, ok := v.Float()
			if !ok {
				return nil, domain.NewSchemaError("freeze", name,
					"row %q holds non-numeric value after preprocessing", t.keys[r])
			}
			data[r*width+c] = f
		}
	}
	return &FeatureBatch{
		columns: t.Columns(),
		keys:    t.Keys(),
		data:    data,
		width:   width,
	}, nil
}

func (t *Table) shallow() *Table {
	next := &Table{
		keys:  t.keys,
		names: make([]string, len(t.names), len(t.names)+1),
		index: make(map[string]int, len(t.index)+1),
		cols:  make([][]Value, len(t.cols), len(t.cols)+1),
	}
	copy(next.names, t.names)
	copy(next.cols, t.cols)
	for k, v := range t.index {
		next.index[k] = v
	}
	return next
}
