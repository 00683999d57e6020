package vector

import (
	"encoding/binary"
	"math"
)

// Hash field names of a stored point.
const (
	fieldVector = "__vector"
	fieldKey    = "__key"
	vectorAlias = "vector"
)

// hashFields converts one feature row into a flat map for HSET.
func hashFields(key string, vec []float32) map[string]string {
	return map[string]string{
		fieldKey:    key,
		fieldVector: vectorToBytes(vec),
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
