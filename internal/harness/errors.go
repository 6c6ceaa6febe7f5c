package harness

import (
	"errors"
	"fmt"
)

// RegionErrorCode categorizes failures inside a protected region.
type RegionErrorCode string

const (
	// CodeSnapshotFailed: the capture step failed. The region aborts
	// before any mutation, so no restore is needed.
	CodeSnapshotFailed RegionErrorCode = "SNAPSHOT_FAILED"

	// CodeMutationFailed: applying test inputs failed. Restore runs.
	CodeMutationFailed RegionErrorCode = "MUTATION_FAILED"

	// CodeRecalculationFailed: the recalculation request failed.
	// Restore runs.
	CodeRecalculationFailed RegionErrorCode = "RECALCULATION_FAILED"

	// CodeReadFailed: reading assertion cells failed. Restore runs.
	CodeReadFailed RegionErrorCode = "READ_FAILED"
)

// RegionError wraps a failure from one step of a protected region with
// the step's code and the affected test.
type RegionError struct {
	Code RegionErrorCode
	Test string
	Err  error
}

func (e *RegionError) Error() string {
	if e.Test != "" {
		return fmt.Sprintf("%s: test %q: %v", e.Code, e.Test, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *RegionError) Unwrap() error { return e.Err }

// CodeOf extracts the region error code from err, or "" when err is not
// (and does not wrap) a RegionError.
func CodeOf(err error) RegionErrorCode {
	var re *RegionError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// ParseError reports a test file that could not be loaded. It surfaces
// before any test runs.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid test file %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("invalid test file: %s", e.Message)
}
