package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridproof/gridproof/internal/adapter"
	"github.com/gridproof/gridproof/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Target docTarget
	Settle time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <test-file>",
		Short: "Run formula-model tests against a document",
		Long: `Run the test cases in a JSON or YAML test file against a document.

All tests run inside one protected region: the union of every cell the
tests touch is snapshotted before the first test and restored after the
last, so the document's original contents survive the run.

Exit codes:
  0 - All tests passed
  1 - One or more tests failed
  2 - Command error (bad paths, malformed test file, etc.)

Examples:
  gridproof run model-tests.json --workbook model.db
  gridproof run model-tests.yaml --doc cells.json --format json
  gridproof run model-tests.json --workbook model.db --settle 250ms`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target.Workbook, "workbook", "", "sqlite workbook to run against")
	cmd.Flags().StringVar(&opts.Target.Doc, "doc", "", "JSON cell map to run against in memory")
	cmd.Flags().DurationVar(&opts.Settle, "settle", adapter.DefaultSettleInterval, "post-recalculation settle interval")

	return cmd
}

func runTests(opts *RunOptions, testFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cases, err := harness.LoadFile(testFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "load test file", err)
	}
	formatter.VerboseLog("loaded %d test case(s) from %s", len(cases), testFile)

	doc, closeDoc, err := openDocument(opts.Target)
	if err != nil {
		return err
	}
	defer closeDoc()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	runner := harness.New(doc,
		harness.WithLogger(logger),
		harness.WithAdapterOptions(adapter.WithSettleInterval(opts.Settle)),
	)
	suite := runner.RunSuite(cmd.Context(), cases)

	// The suite result is its own wire format, not wrapped in the
	// response envelope.
	if opts.Format == "json" {
		if err := formatter.JSON(suite); err != nil {
			return WrapExitError(ExitCommandError, "encode results", err)
		}
	} else {
		renderSuite(formatter.Writer, &suite, opts.Verbose)
	}

	if !suite.AllPassed() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d tests failed", suite.TotalCount-suite.PassedCount, suite.TotalCount))
	}
	return nil
}
