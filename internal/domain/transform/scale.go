package transform

import (
	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/colspec"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// ScaleNumeric min-max scales every numeric column of the registry with its
// configured bounds. Values outside the bounds are not clamped and nulls stay
// null. Degenerate bounds are a configuration error.
type ScaleNumeric struct {
	Registry *colspec.Registry
}

// Name returns the step name.
func (ScaleNumeric) Name() string { return NameScaleNumeric }

// Apply scales every numeric column in registry order.
func (s ScaleNumeric) Apply(t *table.Table) (*table.Table, error) {
	for _, name := range s.Registry.NumericColumns() {
		spec, _ := s.Registry.SpecFor(name)
		sc := spec.Scaler()
		if sc.Degenerate() {
			return nil, domain.NewConfigError(name, "scaler max equals min (%g)", sc.Min)
		}

		col, err := column(NameScaleNumeric, t, name)
		if err != nil {
			return nil, err
		}
		span := sc.Max - sc.Min
		for i, v := range col {
			if v.IsNull() {
				continue
			}
			f, ok := v.Float()
			if !ok {
				raw, _ := v.Text()
				return nil, domain.NewSchemaError(NameScaleNumeric, name,
					"row %q holds non-numeric value %q", t.Key(i), raw)
			}
			col[i] = table.Number((f - sc.Min) / span)
		}
		if t, err = t.WithColumn(name, col); err != nil {
			return nil, err
		}
	}
	return t, nil
}
