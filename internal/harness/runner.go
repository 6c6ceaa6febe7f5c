// Package harness executes declarative formula-model tests against a
// live spreadsheet document.
//
// Every test (or suite) runs inside a protected region: the runner
// snapshots the union of addresses the test touches, applies inputs,
// asks the document to recalculate, reads the computed outputs,
// evaluates assertions, and restores the snapshot on every exit path.
// The document is externally calculated and stateful; the harness never
// evaluates a formula itself and guarantees the document's original
// contents survive the run.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gridproof/gridproof/internal/adapter"
	"github.com/gridproof/gridproof/internal/cell"
	"github.com/gridproof/gridproof/internal/host"
	"github.com/gridproof/gridproof/internal/snapshot"
)

// Runner drives protected regions against one document.
//
// A runner is stateless between invocations: each run is pure input to
// output, aside from the document it temporarily mutates. Tests within
// a suite execute strictly sequentially; the document is a shared
// resource with no mutual exclusion against external edits, so nothing
// here may run concurrently against it.
type Runner struct {
	ad     *adapter.Adapter
	snaps  *snapshot.Store
	logger *slog.Logger
	tokens TokenGenerator

	adapterOpts []adapter.Option
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger used by the runner, adapter,
// and snapshot store. Defaults to a discarded one.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTokenGenerator replaces the UUIDv7 region token generator.
// Tests use NewFixedGenerator for deterministic logs.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(r *Runner) { r.tokens = g }
}

// WithAdapterOptions forwards options to the underlying adapter
// (settle interval, sleep function, and so on).
func WithAdapterOptions(opts ...adapter.Option) Option {
	return func(r *Runner) { r.adapterOpts = append(r.adapterOpts, opts...) }
}

// New creates a runner over the given document.
func New(doc host.Document, opts ...Option) *Runner {
	r := &Runner{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	ad := adapter.New(doc, append([]adapter.Option{adapter.WithLogger(r.logger)}, r.adapterOpts...)...)
	r.ad = ad
	r.snaps = snapshot.New(ad, snapshot.WithLogger(r.logger))
	return r
}

// RunTest executes one test case in its own protected region.
//
// If the snapshot capture fails, the test aborts before any mutation
// and no restore runs, since nothing was touched. After mutation begins the
// region always reaches the restore phase, whether assertions pass,
// fail, or execution panics; restore failures are reported in the
// result's diagnostics and never replace the test outcome.
func (r *Runner) RunTest(ctx context.Context, tc TestCase) (res TestResult) {
	res = TestResult{TestName: tc.Name, AssertionResults: []AssertionResult{}}
	reg := newRegion(r.tokens.Generate(), r.logger)
	r.logger.Info("test region start", "region", reg.id, "test", tc.Name)

	reg.advance(StateSnapshotting)
	snap, err := r.snaps.Capture(ctx, tc.ProtectedAddresses())
	if err != nil {
		res.Error = (&RegionError{Code: CodeSnapshotFailed, Test: tc.Name, Err: err}).Error()
		r.logger.Error("snapshot capture failed, aborting before mutation", "region", reg.id, "test", tc.Name, "error", err)
		reg.advance(StateDone)
		return res
	}

	defer func() {
		reg.advance(StateRestoring)
		report := r.snaps.Restore(ctx, snap)
		appendRestoreDiagnostics(&res.Diagnostics, report)
		reg.advance(StateDone)
		r.logger.Info("test region done", "region", reg.id, "test", tc.Name, "passed", res.Passed, "restore", report.String())
	}()

	r.execute(ctx, reg, tc, &res)
	return res
}

// RunSuite executes the test cases strictly sequentially inside one
// suite-scoped protected region: the snapshot covers the union of every
// test's protected addresses, captured once before the first test and
// restored once after the last. A failure in one test never aborts the
// rest; every submitted test contributes exactly one result.
//
// Known boundary condition: the snapshot covers only addresses that
// appear in some test's inputs or assertions. A cell mutated indirectly
// during test i and referenced by no test's declarations is not
// captured, so the suite-level restore cannot undo it and it may leak
// into a later test's baseline.
func (r *Runner) RunSuite(ctx context.Context, tcs []TestCase) (suite SuiteResult) {
	suite = SuiteResult{Results: []TestResult{}, TotalCount: len(tcs)}
	if len(tcs) == 0 {
		return suite
	}

	reg := newRegion(r.tokens.Generate(), r.logger)
	r.logger.Info("suite region start", "region", reg.id, "tests", len(tcs))

	reg.advance(StateSnapshotting)
	snap, err := r.snaps.Capture(ctx, protectedAddresses(tcs...))
	if err != nil {
		msg := (&RegionError{Code: CodeSnapshotFailed, Err: err}).Error()
		r.logger.Error("suite snapshot capture failed, aborting before mutation", "region", reg.id, "error", err)
		for _, tc := range tcs {
			suite.Results = append(suite.Results, TestResult{
				TestName:         tc.Name,
				AssertionResults: []AssertionResult{},
				Error:            msg,
			})
		}
		reg.advance(StateDone)
		return suite
	}

	defer func() {
		reg.advance(StateRestoring)
		report := r.snaps.Restore(ctx, snap)
		appendRestoreDiagnostics(&suite.Diagnostics, report)
		reg.advance(StateDone)
		r.logger.Info("suite region done", "region", reg.id, "passed", suite.PassedCount, "total", suite.TotalCount, "restore", report.String())
	}()

	for _, tc := range tcs {
		res := TestResult{TestName: tc.Name, AssertionResults: []AssertionResult{}}
		r.execute(ctx, reg, tc, &res)
		if res.Passed {
			suite.PassedCount++
		}
		suite.Results = append(suite.Results, res)
	}
	return suite
}

// execute runs the mutate -> recalculate -> read -> evaluate phases for
// one test. Any step failure (or panic) converts into a failed result;
// the caller owns the surrounding snapshot and restore.
func (r *Runner) execute(ctx context.Context, reg *region, tc TestCase, res *TestResult) {
	defer func() {
		if p := recover(); p != nil {
			res.Passed = false
			res.AssertionResults = []AssertionResult{}
			res.Error = fmt.Sprintf("panic during test %q: %v", tc.Name, p)
			r.logger.Error("recovered panic in test region", "region", reg.id, "test", tc.Name, "panic", p)
		}
	}()

	fail := func(code RegionErrorCode, err error) {
		res.Passed = false
		res.Error = (&RegionError{Code: code, Test: tc.Name, Err: err}).Error()
		r.logger.Error("test step failed", "region", reg.id, "test", tc.Name, "code", string(code), "error", err)
	}

	reg.advance(StateMutating)
	if len(tc.Inputs) > 0 {
		if err := r.ad.WriteValues(ctx, tc.Inputs); err != nil {
			fail(CodeMutationFailed, err)
			return
		}
	}

	reg.advance(StateRecalculating)
	if err := r.ad.Recalculate(ctx); err != nil {
		fail(CodeRecalculationFailed, err)
		return
	}

	reg.advance(StateReading)
	actuals := map[cell.Address]cell.State{}
	if len(tc.Assertions) > 0 {
		cells := make([]cell.Address, 0, len(tc.Assertions))
		for _, asrt := range tc.Assertions {
			cells = append(cells, asrt.Cell)
		}
		read, err := r.ad.ReadCells(ctx, cells)
		if err != nil {
			fail(CodeReadFailed, err)
			return
		}
		actuals = read
	}

	reg.advance(StateEvaluating)
	passed := true
	results := make([]AssertionResult, 0, len(tc.Assertions))
	for _, asrt := range tc.Assertions {
		actual := actuals[asrt.Cell].Value
		out := Evaluate(actual, asrt.Equals, asrt.Tolerance)
		results = append(results, AssertionResult{
			Cell:       asrt.Cell,
			Expected:   asrt.Equals,
			Actual:     actual,
			Tolerance:  asrt.Tolerance,
			Difference: out.Difference,
			Passed:     out.Passed,
		})
		passed = passed && out.Passed
	}
	res.AssertionResults = results
	// An empty assertion list passes vacuously.
	res.Passed = passed
}

func appendRestoreDiagnostics(diags *[]string, report *snapshot.RestoreReport) {
	for _, f := range report.Failures {
		*diags = append(*diags, fmt.Sprintf("restore failed for %s: %s", f.Cell.String(), f.Message))
	}
}
