package transform

import (
	"github.com/kailas-cloud/vecprep/internal/domain/colspec"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// UnknownLabel is the code of a value outside the vocabulary, and of a null.
const UnknownLabel = -1

// EncodeLabels replaces every categorical column of the registry with the
// index of its value in the declared vocabulary. The column keeps its name
// and position.
type EncodeLabels struct {
	Registry *colspec.Registry
}

// Name returns the step name.
func (EncodeLabels) Name() string { return NameEncodeLabels }

// Apply encodes every categorical column in registry order.
func (s EncodeLabels) Apply(t *table.Table) (*table.Table, error) {
	for _, name := range s.Registry.CategoricalColumns() {
		src, err := column(NameEncodeLabels, t, name)
		if err != nil {
			return nil, err
		}
		spec, _ := s.Registry.SpecFor(name)
		codes := make(map[string]int, len(spec.Values()))
		for i, v := range spec.Values() {
			codes[v] = i
		}

		col := make([]table.Value, len(src))
		for i, v := range src {
			code := UnknownLabel
			if label, ok := v.Text(); ok {
				if c, known := codes[label]; known {
					code = c
				}
			}
			col[i] = table.Number(float64(code))
		}
		if t, err = t.WithColumn(name, col); err != nil {
			return nil, err
		}
	}
	return t, nil
}
