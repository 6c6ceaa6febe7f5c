// Package host defines the capability interface the harness consumes
// from a live spreadsheet document.
//
// The interface mirrors the command-queue execution model of real
// spreadsheet hosts: range handles queue loads and writes locally, and
// nothing crosses the process boundary until Sync flushes the queue in
// a single round trip. A handle stays bound to the exact cell it was
// opened for; callers must never re-derive a handle from an address
// after a batch boundary.
package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/gridproof/gridproof/internal/cell"
)

// Document is a live spreadsheet document.
//
// Implementations: memdoc.Doc (in-memory double), store.Workbook
// (sqlite-backed local workbook). The production host behind the task
// pane satisfies the same shape.
type Document interface {
	// Sheet resolves a sheet by name. Returns a *SheetNotFoundError
	// when no sheet with that (NFC-normalized) name exists.
	Sheet(name string) (Sheet, error)

	// Sync flushes every queued load and write in one round trip.
	// After a successful Sync, queued loads are resolved on their
	// range handles and queued writes are visible in the document.
	Sync(ctx context.Context) error

	// Recalculate triggers a full recalculation of the document and
	// all dependents. Completion is not synchronously observable;
	// see CalcObserver.
	Recalculate(ctx context.Context) error
}

// Sheet is a handle on one worksheet.
type Sheet interface {
	// Range opens a handle on a single cell by its local A1-style
	// reference. The handle is inert until operations are queued on
	// it and Sync runs.
	Range(local string) Range
}

// Range is a handle on a single cell.
//
// LoadValue/LoadFormula queue reads; SetValue/SetFormula queue writes.
// Value and Formula are valid only after a Sync that followed the
// corresponding Load call.
type Range interface {
	LoadValue()
	LoadFormula()
	SetValue(v cell.Scalar)
	SetFormula(formula string)

	Value() cell.Scalar
	Formula() string
}

// CalcObserver is optionally implemented by documents that expose a
// calculation-state signal. Callers poll CalcDone after Recalculate;
// documents without the signal are waited out with a fixed settle
// interval instead.
type CalcObserver interface {
	CalcDone(ctx context.Context) (bool, error)
}

// SheetNotFoundError reports a sheet name with no matching sheet.
type SheetNotFoundError struct {
	Sheet string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("sheet not found: %q", e.Sheet)
}

// IsSheetNotFound reports whether err is (or wraps) a sheet-not-found
// failure.
func IsSheetNotFound(err error) bool {
	var snf *SheetNotFoundError
	return errors.As(err, &snf)
}
