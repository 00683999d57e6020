package table

import (
	"strconv"
	"strings"
)

// Kind is the dynamic type of a cell.
type Kind uint8

// Cell kinds.
const (
	KindNull Kind = iota
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "null"
	}
}

// Value is one untyped cell of a record. The zero value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// Null returns a missing value.
func Null() Value { return Value{} }

// String returns a string cell.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns 1 for true and 0 for false.
func Bool(b bool) Value {
	if b {
		return Number(1)
	}
	return Number(0)
}

// Kind returns the cell kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is missing.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value. Strings are parsed; null never converts.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Text returns the string form used for category matching.
// Numbers render in shortest form ("3", "1.5").
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	default:
		return "", false
	}
}

// naTokens are the cell spellings read as missing, matching the pandas CSV defaults.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNAToken reports whether a raw cell spells a missing value.
func IsNAToken(s string) bool {
	_, ok := naTokens[s]
	return ok
}

// InferColumn converts raw text cells of one column into values. NA tokens
// become null. If every remaining cell parses as a number the column is
// numeric; otherwise every remaining cell is kept as a string.
func InferColumn(cells []string) []Value {
	out := make([]Value, len(cells))
	numeric := true
	nums := make([]float64, len(cells))
	for i, c := range cells {
		if IsNAToken(c) {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = f
	}
	for i, c := range cells {
		switch {
		case IsNAToken(c):
			out[i] = Null()
		case numeric:
			out[i] = Number(nums[i])
		default:
			out[i] = String(c)
		}
	}
	return out
}
