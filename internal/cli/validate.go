package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridproof/gridproof/internal/harness"
)

// FileValidation holds the validation outcome for one test file.
type FileValidation struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Tests int    `json:"tests,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <test-file>...",
		Short: "Validate test files without running them",
		Long: `Parse and schema-validate test files without touching any document.

Checks JSON/YAML structure, unknown fields, the test case schema, cell
address syntax, and tolerance bounds.

Exit codes:
  0 - All files valid
  1 - One or more files invalid

Examples:
  gridproof validate model-tests.json
  gridproof validate tests/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFiles(rootOpts, args, cmd)
		},
	}
	return cmd
}

func validateFiles(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	results := make([]FileValidation, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		formatter.VerboseLog("validating %s", path)
		cases, err := harness.LoadFile(path)
		if err != nil {
			invalid++
			results = append(results, FileValidation{Path: path, Error: err.Error()})
			continue
		}
		results = append(results, FileValidation{Path: path, Valid: true, Tests: len(cases)})
	}

	if invalid > 0 {
		return outputValidateFailure(formatter, results, invalid, len(paths))
	}
	return outputValidateSuccess(formatter, results)
}

// outputValidateSuccess emits the per-file results when every file is
// valid.
func outputValidateSuccess(formatter *OutputFormatter, results []FileValidation) error {
	if formatter.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return WrapExitError(ExitCommandError, "encode results", err)
		}
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(formatter.Writer, "✓ %s (%d tests)\n", r.Path, r.Tests)
	}
	return nil
}

// outputValidateFailure emits the per-file results when at least one
// file is invalid. The JSON envelope keeps the results alongside the
// error so consumers see which files failed.
func outputValidateFailure(formatter *OutputFormatter, results []FileValidation, invalid, total int) error {
	msg := fmt.Sprintf("%d of %d test files invalid", invalid, total)

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   results,
			Error:  &CLIError{Code: ErrCodeInvalidTestFile, Message: msg},
		}
		enc := json.NewEncoder(formatter.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			return WrapExitError(ExitCommandError, "encode results", err)
		}
		return NewExitError(ExitFailure, msg)
	}

	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(formatter.Writer, "✓ %s (%d tests)\n", r.Path, r.Tests)
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %s: %s\n", r.Path, r.Error)
		}
	}
	return NewExitError(ExitFailure, msg)
}
