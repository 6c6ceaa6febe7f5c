package cell

import (
	"encoding/json"
	"strconv"
)

// Scalar is a single cell value as exchanged with the host: a number,
// string, boolean, or nil for an empty cell. JSON and YAML decoding
// produce these shapes directly.
type Scalar = any

// State is the captured {value, formula} of one cell at one instant.
//
// If Formula is non-empty the cell was formula-driven at capture time,
// and restoring must write the formula rather than the cached value so
// that dependent cells recalculate correctly.
type State struct {
	Value   Scalar `json:"value"`
	Formula string `json:"formula,omitempty"`
}

// HasFormula reports whether the cell carried a formula at capture time.
func (s State) HasFormula() bool { return s.Formula != "" }

// Number reports v as a float64 when v is a genuine numeric type.
// Strings are not numbers here; see CoerceNumber for the looser form.
func Number(v Scalar) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// CoerceNumber is Number extended to numeric strings. Used only for
// diagnostic differences on mismatched types; it never decides a pass.
func CoerceNumber(v Scalar) (float64, bool) {
	if f, ok := Number(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// Equal compares two scalars with exact typed equality, except that two
// numeric values compare by numeric value so an int 5 from YAML equals
// a float64 5 from the host.
func Equal(a, b Scalar) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := Number(a)
	bf, bok := Number(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return a == b
}

// FormatScalar renders a scalar for logs and reports.
func FormatScalar(v Scalar) string {
	switch s := v.(type) {
	case nil:
		return "<empty>"
	case string:
		return strconv.Quote(s)
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "<unprintable>"
		}
		return string(b)
	}
}
