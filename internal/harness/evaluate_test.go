package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridproof/gridproof/internal/cell"
)

func TestEvaluate_NumericTolerance(t *testing.T) {
	tests := []struct {
		name      string
		actual    cell.Scalar
		expected  cell.Scalar
		tolerance float64
		passed    bool
		diff      float64
	}{
		{"exact match zero tolerance", 100.0, 100.0, 0, true, 0},
		{"within tolerance", 100.5, 100.0, 0.5, true, 0.5},
		{"just outside tolerance", 100.51, 100.0, 0.5, false, 0.51},
		{"int actual against float expected", 5, 5.0, 0, true, 0},
		{"negative difference folds to absolute", 99.0, 100.0, 2, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Evaluate(tt.actual, tt.expected, tt.tolerance)
			assert.Equal(t, tt.passed, out.Passed)
			require.NotNil(t, out.Difference)
			assert.InDelta(t, tt.diff, *out.Difference, 1e-9)
		})
	}
}

func TestEvaluate_NilActualAlwaysFails(t *testing.T) {
	out := Evaluate(nil, 100.0, 1000)
	assert.False(t, out.Passed)
	assert.Nil(t, out.Difference, "no difference for an absent value")

	out = Evaluate(nil, nil, 0)
	assert.False(t, out.Passed, "even a nil expectation cannot pass against an absent value")
}

func TestEvaluate_ExactTypedEquality(t *testing.T) {
	assert.True(t, Evaluate("done", "done", 0).Passed)
	assert.False(t, Evaluate("done", "DONE", 0).Passed)
	assert.True(t, Evaluate(true, true, 0).Passed)
	assert.False(t, Evaluate(false, true, 0).Passed)
}

func TestEvaluate_MismatchedTypesFailWithDiagnosticDifference(t *testing.T) {
	// A "100" string never equals the number 100, however generous the
	// tolerance; the difference is diagnostic only.
	out := Evaluate("100", 100.0, 50)
	assert.False(t, out.Passed)
	require.NotNil(t, out.Difference)
	assert.Equal(t, 0.0, *out.Difference)

	out = Evaluate("abc", 100.0, 50)
	assert.False(t, out.Passed)
	assert.Nil(t, out.Difference)
}

func TestEvaluate_BooleanAgainstNumber(t *testing.T) {
	out := Evaluate(true, 1.0, 0)
	assert.False(t, out.Passed)
	assert.Nil(t, out.Difference)
}
