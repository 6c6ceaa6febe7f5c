package cli

import (
	"fmt"
	"io"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/gridproof/gridproof/internal/cell"
	"github.com/gridproof/gridproof/internal/harness"
)

// renderSuite writes the human-readable suite report: one line per
// test, one indented line per assertion, restore diagnostics last.
func renderSuite(w io.Writer, suite *harness.SuiteResult, verbose bool) {
	for _, res := range suite.Results {
		mark := "✓"
		if !res.Passed {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, res.TestName)

		if res.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", res.Error)
		}
		for _, ar := range res.AssertionResults {
			renderAssertion(w, ar, verbose)
		}
		for _, d := range res.Diagnostics {
			fmt.Fprintf(w, "    ! %s\n", d)
		}
	}

	for _, d := range suite.Diagnostics {
		fmt.Fprintf(w, "! %s\n", d)
	}
	fmt.Fprintf(w, "\n%d/%d tests passed\n", suite.PassedCount, suite.TotalCount)
}

func renderAssertion(w io.Writer, ar harness.AssertionResult, verbose bool) {
	mark := "✓"
	if !ar.Passed {
		mark = "✗"
	}
	line := fmt.Sprintf("    %s %s: expected %s", mark, ar.Cell.String(), cell.FormatScalar(ar.Expected))
	if ar.Tolerance > 0 {
		line += fmt.Sprintf(" (±%g)", ar.Tolerance)
	}
	line += fmt.Sprintf(", got %s", cell.FormatScalar(ar.Actual))
	if ar.Difference != nil {
		line += fmt.Sprintf(" (diff %g)", *ar.Difference)
	}
	fmt.Fprintln(w, line)

	// For failed string comparisons a character diff beats eyeballing
	// two long quoted strings.
	if verbose && !ar.Passed {
		exp, eok := ar.Expected.(string)
		act, aok := ar.Actual.(string)
		if eok && aok {
			dmp := diffmatchpatch.New()
			diffs := dmp.DiffMain(exp, act, false)
			fmt.Fprintf(w, "      diff: %s\n", dmp.DiffPrettyText(diffs))
		}
	}
}
