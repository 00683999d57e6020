package transform

import "github.com/kailas-cloud/vecprep/internal/domain/table"

// DropColumns removes a fixed set of columns. Every column must be present.
type DropColumns struct {
	name    string
	columns []string
}

// Drop creates a DropColumns step called name.
func Drop(name string, columns ...string) DropColumns {
	c := make([]string, len(columns))
	copy(c, columns)
	return DropColumns{name: name, columns: c}
}

// Name returns the step name.
func (s DropColumns) Name() string { return s.name }

// Columns returns the columns the step removes.
func (s DropColumns) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Apply removes the columns.
func (s DropColumns) Apply(t *table.Table) (*table.Table, error) {
	next, err := t.Without(s.columns...)
	if err != nil {
		return nil, attribute(s.name, err)
	}
	return next, nil
}
