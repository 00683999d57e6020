package transform

import (
	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// DeriveBinaryFeatures derives 0/1 flags from count columns:
// Multiple = HostListings > 1 (appended) and Availability = Availability > 0
// (replaced in place). Null counts give 0.
type DeriveBinaryFeatures struct {
	HostListings string
	Multiple     string
	Availability string
}

// Name returns the step name.
func (DeriveBinaryFeatures) Name() string { return NameBinaryFeatures }

// Apply derives the flags.
func (s DeriveBinaryFeatures) Apply(t *table.Table) (*table.Table, error) {
	multiple, err := s.flag(t, s.HostListings, 1)
	if err != nil {
		return nil, err
	}
	available, err := s.flag(t, s.Availability, 0)
	if err != nil {
		return nil, err
	}

	next, err := t.WithColumn(s.Multiple, multiple)
	if err != nil {
		return nil, err
	}
	return next.WithColumn(s.Availability, available)
}

// flag returns 1 where the column exceeds threshold.
func (s DeriveBinaryFeatures) flag(t *table.Table, name string, threshold float64) ([]table.Value, error) {
	col, err := column(NameBinaryFeatures, t, name)
	if err != nil {
		return nil, err
	}
	out := make([]table.Value, len(col))
	for i, v := range col {
		if v.IsNull() {
			out[i] = table.Bool(false)
			continue
		}
		f, ok := v.Float()
		if !ok {
			raw, _ := v.Text()
			return nil, domain.NewSchemaError(NameBinaryFeatures, name,
				"row %q holds non-numeric value %q", t.Key(i), raw)
		}
		out[i] = table.Bool(f > threshold)
	}
	return out, nil
}
