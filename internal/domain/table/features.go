package table

import "math"

// FeatureBatch is the finalized, immutable output of one pipeline run:
// a row-major numeric matrix with column names and row keys.
type FeatureBatch struct {
	columns []string
	keys    []string
	data    []float64
	width   int
}

// Columns returns the feature names in vector order.
func (b *FeatureBatch) Columns() []string {
	out := make([]string, len(b.columns))
	copy(out, b.columns)
	return out
}

// Len returns the number of rows.
func (b *FeatureBatch) Len() int { return len(b.keys) }

// Width returns the vector dimension.
func (b *FeatureBatch) Width() int { return b.width }

// Key returns the identity of row i.
func (b *FeatureBatch) Key(i int) string { return b.keys[i] }

// Row returns a copy of row i.
func (b *FeatureBatch) Row(i int) []float64 {
	out := make([]float64, b.width)
	copy(out, b.data[i*b.width:(i+1)*b.width])
	return out
}

// Value returns the cell at row i, column c.
func (b *FeatureBatch) Value(i, c int) float64 { return b.data[i*b.width+c] }

// Vector32 returns row i narrowed to float32 for vector storage.
func (b *FeatureBatch) Vector32(i int) []float32 {
	out := make([]float32, b.width)
	for c, f := range b.data[i*b.width : (i+1)*b.width] {
		out[c] = float32(f)
	}
	return out
}

// HasMissing reports whether row i contains a NaN cell and returns the first such column.
func (b *FeatureBatch) HasMissing(i int) (string, bool) {
	for c, f := range b.data[i*b.width : (i+1)*b.width] {
		if math.IsNaN(f) {
			return b.columns[c], true
		}
	}
	return "", false
}

// Equal reports bit-for-bit equality, treating identical NaNs as equal.
func (b *FeatureBatch) Equal(o *FeatureBatch) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.width != o.width || len(b.keys) != len(o.keys) || len(b.columns) != len(o.columns) {
		return false
	}
	for i := range b.columns {
		if b.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range b.keys {
		if b.keys[i] != o.keys[i] {
			return false
		}
	}
	for i := range b.data {
		if math.Float64bits(b.data[i]) != math.Float64bits(o.data[i]) {
			return false
		}
	}
	return true
}
