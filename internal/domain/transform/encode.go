package transform

import (
	"sort"

	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/colspec"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// EncodeCategorical one-hot encodes every categorical column of the registry.
//
// Each column yields one indicator per vocabulary label, named
// "<column>_<label>", appended in sorted name order; the source column is
// dropped. A value outside the vocabulary, or a null, yields all zeros.
type EncodeCategorical struct {
	Registry *colspec.Registry
}

// Name returns the step name.
func (EncodeCategorical) Name() string { return NameEncodeCategorical }

// Apply encodes every categorical column in registry order.
func (s EncodeCategorical) Apply(t *table.Table) (*table.Table, error) {
	for _, name := range s.Registry.CategoricalColumns() {
		spec, _ := s.Registry.SpecFor(name)
		next, err := encodeColumn(t, spec)
		if err != nil {
			return nil, err
		}
		t = next
	}
	return t, nil
}

// IndicatorColumns returns the sorted indicator names for a categorical spec.
func IndicatorColumns(spec colspec.Spec) []string {
	values := spec.Values()
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = spec.Column() + "_" + v
	}
	sort.Strings(names)
	return names
}

func encodeColumn(t *table.Table, spec colspec.Spec) (*table.Table, error) {
	src, err := column(NameEncodeCategorical, t, spec.Column())
	if err != nil {
		return nil, err
	}

	prefix := spec.Column() + "_"
	for _, ind := range IndicatorColumns(spec) {
		if t.Has(ind) {
			return nil, domain.NewSchemaError(NameEncodeCategorical, ind,
				"indicator collides with an existing column")
		}
		label := ind[len(prefix):]
		col := make([]table.Value, len(src))
		for i, v := range src {
			s, ok := v.Text()
			col[i] = table.Bool(ok && s == label)
		}
		if t, err = t.WithColumn(ind, col); err != nil {
			return nil, err
		}
	}

	next, err := t.Without(spec.Column())
	if err != nil {
		return nil, attribute(NameEncodeCategorical, err)
	}
	return next, nil
}
