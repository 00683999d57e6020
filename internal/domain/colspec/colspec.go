// Package colspec holds per-column transformation metadata: categorical
// vocabularies for one-hot encoding and min/max bounds for linear scaling.
package colspec

import (
	"math"

	"github.com/kailas-cloud/vecprep/internal/domain"
)

// Kind distinguishes the two mutually exclusive spec variants.
type Kind string

// Spec kinds.
const (
	Categorical Kind = "categorical"
	Numeric     Kind = "numeric"
)

// Scaler is a linear rescaling range.
type Scaler struct {
	Min float64
	Max float64
}

// Spec is an immutable value object describing how one column is transformed.
type Spec struct {
	column string
	kind   Kind
	values []string
	scaler Scaler
}

// NewCategorical validates and creates a categorical spec.
// Labels must be unique; an empty vocabulary is allowed.
func NewCategorical(column string, values []string) (Spec, error) {
	if column == "" {
		return Spec{}, domain.NewConfigError("", "column name is required")
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			return Spec{}, domain.NewConfigError(column, "duplicate category %q", v)
		}
		seen[v] = struct{}{}
	}
	vals := make([]string, len(values))
	copy(vals, values)
	return Spec{column: column, kind: Categorical, values: vals}, nil
}

// NewNumeric validates and creates a numeric spec.
// Degenerate bounds (max == min) are accepted here; ScaleNumeric rejects them.
func NewNumeric(column string, s Scaler) (Spec, error) {
	if column == "" {
		return Spec{}, domain.NewConfigError("", "column name is required")
	}
	if !isFinite(s.Min) || !isFinite(s.Max) {
		return Spec{}, domain.NewConfigError(column, "scaler bounds must be finite")
	}
	return Spec{column: column, kind: Numeric, scaler: s}, nil
}

// Column returns the column the spec applies to.
func (s Spec) Column() string { return s.column }

// Kind returns the spec variant.
func (s Spec) Kind() Kind { return s.kind }

// Values returns a copy of the categorical vocabulary in configured order.
func (s Spec) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

// Scaler returns the numeric bounds.
func (s Spec) Scaler() Scaler { return s.scaler }

// Degenerate reports whether the bounds collapse to a single point.
func (s Scaler) Degenerate() bool { return s.Max == s.Min }

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
