package transform

import (
	"strings"

	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// RemoveDuplicates drops rows whose cells all equal an earlier row, keeping
// the first occurrence. Row keys are not compared.
type RemoveDuplicates struct{}

// Name returns the step name.
func (RemoveDuplicates) Name() string { return NameRemoveDuplicates }

// Apply keeps the first row of every distinct cell tuple.
func (RemoveDuplicates) Apply(t *table.Table) (*table.Table, error) {
	names := t.Columns()
	cols := make([][]table.Value, len(names))
	for i, name := range names {
		cols[i], _ = t.Column(name)
	}

	seen := make(map[string]struct{}, t.Len())
	keep := make([]int, 0, t.Len())
	var sb strings.Builder
	for r := 0; r < t.Len(); r++ {
		sb.Reset()
		for _, col := range cols {
			sb.WriteString(cellKey(col[r]))
			sb.WriteByte(0)
		}
		sig := sb.String()
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		keep = append(keep, r)
	}
	if len(keep) == t.Len() {
		return t, nil
	}
	return t.SelectRows(keep), nil
}
