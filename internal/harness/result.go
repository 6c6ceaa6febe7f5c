package harness

import "github.com/gridproof/gridproof/internal/cell"

// AssertionResult is the outcome of one assertion.
type AssertionResult struct {
	Cell      cell.Address `json:"cell"`
	Expected  cell.Scalar  `json:"expected"`
	Actual    cell.Scalar  `json:"actual"`
	Tolerance float64      `json:"tolerance"`

	// Difference is |actual - expected|, populated only when both
	// sides are numeric (or numeric-coercible, for diagnostics).
	Difference *float64 `json:"difference"`

	Passed bool `json:"passed"`
}

// TestResult is the outcome of one test case.
//
// A test that failed before evaluation (snapshot, mutation,
// recalculation, or read failure) has Passed false, an empty
// AssertionResults, and a non-empty Error. Restore failures never
// change the outcome; they land in Diagnostics.
type TestResult struct {
	TestName         string            `json:"test_name"`
	Passed           bool              `json:"passed"`
	AssertionResults []AssertionResult `json:"assertion_results"`
	Error            string            `json:"error,omitempty"`
	Diagnostics      []string          `json:"diagnostics,omitempty"`
}

// SuiteResult aggregates the results of a suite run. Results preserve
// test order; every submitted test appears exactly once, whether it
// passed, failed, or errored mid-region.
type SuiteResult struct {
	Results     []TestResult `json:"results"`
	PassedCount int          `json:"passed_count"`
	TotalCount  int          `json:"total_count"`

	// Diagnostics carries suite-level restore failures.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// AllPassed reports whether every test in the suite passed.
func (s *SuiteResult) AllPassed() bool {
	return s.PassedCount == s.TotalCount
}
