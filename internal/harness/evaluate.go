package harness

import (
	"math"

	"github.com/gridproof/gridproof/internal/cell"
)

// Outcome is the result of evaluating one actual value against its
// expectation.
type Outcome struct {
	Passed     bool
	Difference *float64
}

// Evaluate compares an actual host-computed value against an expected
// scalar with numeric tolerance. Pure function; no host interaction.
//
// Rules:
//   - A nil/absent actual always fails, with no difference.
//   - When both sides are numeric, difference = |actual - expected|
//     and the assertion passes iff difference <= tolerance. Tolerance
//     defaults to 0, so exact numeric match is the default.
//   - Otherwise exact typed equality decides the outcome. If both
//     sides are still numeric-coercible (say a "100" string against
//     100), the difference is computed for diagnostics but never
//     affects the pass decision.
func Evaluate(actual, expected cell.Scalar, tolerance float64) Outcome {
	if actual == nil {
		return Outcome{Passed: false}
	}

	if af, ok := cell.Number(actual); ok {
		if ef, ok := cell.Number(expected); ok {
			d := math.Abs(af - ef)
			return Outcome{Passed: d <= tolerance, Difference: &d}
		}
	}

	out := Outcome{Passed: cell.Equal(actual, expected)}
	if af, ok := cell.CoerceNumber(actual); ok {
		if ef, ok := cell.CoerceNumber(expected); ok {
			d := math.Abs(af - ef)
			out.Difference = &d
		}
	}
	return out
}
