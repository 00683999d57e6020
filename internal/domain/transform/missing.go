package transform

import (
	"math"
	"sort"

	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// MissingStrategy selects how HandleMissing treats null cells.
type MissingStrategy string

// Missing value strategies.
const (
	MissingMean   MissingStrategy = "mean"
	MissingMedian MissingStrategy = "median"
	MissingMode   MissingStrategy = "mode"
	MissingDrop   MissingStrategy = "drop"
)

// ParseMissingStrategy validates a configured strategy name.
func ParseMissingStrategy(s string) (MissingStrategy, error) {
	switch m := MissingStrategy(s); m {
	case MissingMean, MissingMedian, MissingMode, MissingDrop:
		return m, nil
	default:
		return "", domain.NewConfigError("missing.strategy", "unknown strategy %q", s)
	}
}

// HandleMissing fills or drops null cells.
//
// Columns names the columns to treat; when empty, every column without string
// cells is treated. mean and median fill with the column statistic, mode with
// its most frequent value (the smallest one on a tie). A column with no
// values at all is left as is. drop removes every row holding a null in one
// of the treated columns.
type HandleMissing struct {
	Strategy MissingStrategy
	Columns  []string
}

// Name returns the step name.
func (HandleMissing) Name() string { return NameHandleMissing }

// Apply treats every selected column.
func (s HandleMissing) Apply(t *table.Table) (*table.Table, error) {
	targets, err := s.targets(t)
	if err != nil {
		return nil, err
	}
	if s.Strategy == MissingDrop {
		return dropIncomplete(t, targets), nil
	}

	for _, name := range targets {
		col, _ := t.Column(name)
		fill, ok, err := s.fillValue(name, col)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for i, v := range col {
			if v.IsNull() {
				col[i] = fill
			}
		}
		if t, err = t.WithColumn(name, col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (s HandleMissing) targets(t *table.Table) ([]string, error) {
	switch s.Strategy {
	case MissingMean, MissingMedian, MissingMode, MissingDrop:
	default:
		return nil, domain.NewSchemaError(NameHandleMissing, "", "unknown strategy %q", s.Strategy)
	}
	if len(s.Columns) > 0 {
		for _, name := range s.Columns {
			if !t.Has(name) {
				return nil, domain.NewSchemaError(NameHandleMissing, name, "column not found")
			}
		}
		return s.Columns, nil
	}

	var out []string
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		if numericColumn(col) {
			out = append(out, name)
		}
	}
	return out, nil
}

func numericColumn(col []table.Value) bool {
	for _, v := range col {
		if v.Kind() == table.KindString {
			return false
		}
	}
	return true
}

func dropIncomplete(t *table.Table, targets []string) *table.Table {
	cols := make([][]table.Value, len(targets))
	for i, name := range targets {
		cols[i], _ = t.Column(name)
	}
	keep := make([]int, 0, t.Len())
rows:
	for r := 0; r < t.Len(); r++ {
		for _, col := range cols {
			if col[r].IsNull() {
				continue rows
			}
		}
		keep = append(keep, r)
	}
	if len(keep) == t.Len() {
		return t
	}
	return t.SelectRows(keep)
}

// fillValue computes the replacement for nulls; ok is false when the column
// has no values to derive it from.
func (s HandleMissing) fillValue(name string, col []table.Value) (table.Value, bool, error) {
	if s.Strategy == MissingMode {
		v, ok := mode(col)
		return v, ok, nil
	}

	nums := make([]float64, 0, len(col))
	for _, v := range col {
		if v.IsNull() {
			continue
		}
		f, ok := v.Float()
		if !ok || math.IsNaN(f) {
			return table.Value{}, false, domain.NewSchemaError(NameHandleMissing, name,
				"%s needs numeric values", s.Strategy)
		}
		nums = append(nums, f)
	}
	if len(nums) == 0 {
		return table.Value{}, false, nil
	}
	if s.Strategy == MissingMean {
		var sum float64
		for _, f := range nums {
			sum += f
		}
		return table.Number(sum / float64(len(nums))), true, nil
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return table.Number(nums[mid]), true, nil
	}
	return table.Number((nums[mid-1] + nums[mid]) / 2), true, nil
}

// mode returns the most frequent non-null value. Ties go to the smallest
// value; numbers order before strings.
func mode(col []table.Value) (table.Value, bool) {
	type tally struct {
		v table.Value
		n int
	}
	seen := make(map[string]*tally)
	for _, v := range col {
		if v.IsNull() {
			continue
		}
		k := cellKey(v)
		if c, ok := seen[k]; ok {
			c.n++
			continue
		}
		seen[k] = &tally{v: v, n: 1}
	}

	var best *tally
	for _, c := range seen {
		if best == nil || c.n > best.n || (c.n == best.n && less(c.v, best.v)) {
			best = c
		}
	}
	if best == nil {
		return table.Value{}, false
	}
	return best.v, true
}

func less(a, b table.Value) bool {
	if a.Kind() != b.Kind() {
		return a.Kind() == table.KindNumber
	}
	if a.Kind() == table.KindNumber {
		x, _ := a.Float()
		y, _ := b.Float()
		return x < y
	}
	x, _ := a.Text()
	y, _ := b.Text()
	return x < y
}

// cellKey identifies a cell by kind and text, so "1" and 1 stay apart and
// nulls compare equal.
func cellKey(v table.Value) string {
	s, _ := v.Text()
	return v.Kind().String() + ":" + s
}
