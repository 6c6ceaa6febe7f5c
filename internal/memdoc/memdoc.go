// Package memdoc provides an in-memory spreadsheet document
// implementing the host capability interface.
//
// It is the primary test double for the harness and the backend for
// JSON-seeded documents in the CLI. Beyond plain storage it supports a
// pluggable recalculation hook (the document owns calculation, never
// the harness), a calculation-state countdown for exercising the
// polling path, and per-sheet/per-cell fault injection so restore
// isolation can be tested.
package memdoc

import (
	"context"
	"fmt"
	"sync"

	"github.com/gridproof/gridproof/internal/cell"
	"github.com/gridproof/gridproof/internal/host"
)

// RecalcFunc recomputes formula cells from current inputs. It stands in
// for the host calculation engine; the harness never evaluates formulas
// itself.
type RecalcFunc func(d *Doc) error

type opKind int

const (
	opLoadValue opKind = iota
	opLoadFormula
	opSetValue
	opSetFormula
)

type op struct {
	kind    opKind
	sheet   string
	local   string
	r       *rng
	value   cell.Scalar
	formula string
}

// Doc is an in-memory document. Like real hosts it runs in automatic
// calculation mode: every Sync that applied at least one write runs the
// recalculation hook before returning.
type Doc struct {
	mu      sync.Mutex
	sheets  map[string]map[string]cell.State
	pending []op
	syncs   int

	recalc        RecalcFunc
	recalcs       int
	calcCountdown int

	failCell  map[string]error
	failSheet map[string]error
	failRead  map[string]error
}

// New creates an empty document with the given sheets.
func New(sheetNames ...string) *Doc {
	d := &Doc{
		sheets:    make(map[string]map[string]cell.State),
		failCell:  make(map[string]error),
		failSheet: make(map[string]error),
		failRead:  make(map[string]error),
	}
	for _, name := range sheetNames {
		d.CreateSheet(name)
	}
	return d
}

// CreateSheet adds an empty sheet. Adding an existing sheet is a no-op.
func (d *Doc) CreateSheet(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name = cell.NormalizeSheet(name)
	if _, ok := d.sheets[name]; !ok {
		d.sheets[name] = make(map[string]cell.State)
	}
}

// SetRecalc installs the recalculation hook.
func (d *Doc) SetRecalc(fn RecalcFunc) { d.recalc = fn }

// Set writes a cell state directly, creating the sheet if needed.
// Seeding helper; bypasses the command queue.
func (d *Doc) Set(addr string, st cell.State) {
	a := cell.MustParseAddress(addr)
	d.mu.Lock()
	defer d.mu.Unlock()
	sheet, ok := d.sheets[a.Sheet()]
	if !ok {
		sheet = make(map[string]cell.State)
		d.sheets[a.Sheet()] = sheet
	}
	sheet[a.Local()] = st
}

// Get reads a cell state directly, bypassing the command queue.
func (d *Doc) Get(addr string) (cell.State, bool) {
	a := cell.MustParseAddress(addr)
	d.mu.Lock()
	defer d.mu.Unlock()
	sheet, ok := d.sheets[a.Sheet()]
	if !ok {
		return cell.State{}, false
	}
	st, ok := sheet[a.Local()]
	return st, ok
}

// Dump returns a copy of every non-empty cell keyed by "Sheet!A1".
// Tests use it for whole-document equality checks.
func (d *Doc) Dump() map[string]cell.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]cell.State)
	for sheet, cells := range d.sheets {
		for local, st := range cells {
			out[cell.NewAddress(sheet, local).String()] = st
		}
	}
	return out
}

// Syncs returns the number of Sync round trips served. Tests assert on
// it to verify the adapter batches instead of issuing per-cell calls.
func (d *Doc) Syncs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syncs
}

// Recalcs returns the number of recalculation passes run, including
// automatic ones after write batches.
func (d *Doc) Recalcs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recalcs
}

// FailCell arms a write failure for one "Sheet!A1" address. The next
// Sync whose batch writes that cell fails with err. Pass a nil err to
// disarm.
func (d *Doc) FailCell(addr string, err error) {
	a := cell.MustParseAddress(addr)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failCell, a.String())
		return
	}
	d.failCell[a.String()] = err
}

// FailSheet arms a failure for any queued operation touching the named
// sheet. Pass a nil err to disarm.
func (d *Doc) FailSheet(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name = cell.NormalizeSheet(name)
	if err == nil {
		delete(d.failSheet, name)
		return
	}
	d.failSheet[name] = err
}

// FailReads arms a failure for queued loads from the named sheet,
// leaving writes intact. Pass a nil err to disarm.
func (d *Doc) FailReads(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name = cell.NormalizeSheet(name)
	if err == nil {
		delete(d.failRead, name)
		return
	}
	d.failRead[name] = err
}

// ClearFailures disarms all injected faults.
func (d *Doc) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failCell = make(map[string]error)
	d.failSheet = make(map[string]error)
	d.failRead = make(map[string]error)
}

// SetCalcCountdown makes the next n CalcDone probes report "still
// calculating" before reporting done. Exercises the polling path.
func (d *Doc) SetCalcCountdown(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calcCountdown = n
}

// Sheet implements host.Document.
func (d *Doc) Sheet(name string) (host.Sheet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name = cell.NormalizeSheet(name)
	if _, ok := d.sheets[name]; !ok {
		return nil, &host.SheetNotFoundError{Sheet: name}
	}
	return &sheetHandle{doc: d, name: name}, nil
}

// Sync implements host.Document. The whole queued batch either applies
// or fails: an armed fault on any queued operation fails the round trip
// and discards the batch, matching host batch semantics.
func (d *Doc) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.syncs++

	for _, o := range batch {
		if err, ok := d.failSheet[o.sheet]; ok {
			d.mu.Unlock()
			return fmt.Errorf("sync failed on %s!%s: %w", o.sheet, o.local, err)
		}
		switch o.kind {
		case opLoadValue, opLoadFormula:
			if err, ok := d.failRead[o.sheet]; ok {
				d.mu.Unlock()
				return fmt.Errorf("sync failed on %s!%s: %w", o.sheet, o.local, err)
			}
		case opSetValue, opSetFormula:
			if err, ok := d.failCell[o.sheet+"!"+o.local]; ok {
				d.mu.Unlock()
				return fmt.Errorf("sync failed on %s!%s: %w", o.sheet, o.local, err)
			}
		}
	}

	wrote := false
	for _, o := range batch {
		sheet := d.sheets[o.sheet]
		if sheet == nil {
			d.mu.Unlock()
			return &host.SheetNotFoundError{Sheet: o.sheet}
		}
		st := sheet[o.local]
		switch o.kind {
		case opLoadValue:
			o.r.value = st.Value
		case opLoadFormula:
			o.r.formula = st.Formula
		case opSetValue:
			// Writing a literal clears any formula, as hosts do.
			sheet[o.local] = cell.State{Value: o.value}
			wrote = true
		case opSetFormula:
			st.Formula = o.formula
			sheet[o.local] = st
			wrote = true
		}
	}
	d.mu.Unlock()

	if wrote {
		return d.runRecalc()
	}
	return nil
}

// Recalculate implements host.Document with a full recalculation.
func (d *Doc) Recalculate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.runRecalc()
}

// CalcDone implements host.CalcObserver.
func (d *Doc) CalcDone(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calcCountdown > 0 {
		d.calcCountdown--
		return false, nil
	}
	return true, nil
}

func (d *Doc) runRecalc() error {
	d.mu.Lock()
	d.recalcs++
	fn := d.recalc
	d.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(d)
}

type sheetHandle struct {
	doc  *Doc
	name string
}

func (s *sheetHandle) Range(local string) host.Range {
	return &rng{doc: s.doc, sheet: s.name, local: local}
}

// rng is a single-cell range handle. It stays bound to the cell it was
// opened for; loads resolve into the handle at Sync time.
type rng struct {
	doc     *Doc
	sheet   string
	local   string
	value   cell.Scalar
	formula string
}

func (r *rng) queue(o op) {
	o.sheet, o.local, o.r = r.sheet, r.local, r
	r.doc.mu.Lock()
	r.doc.pending = append(r.doc.pending, o)
	r.doc.mu.Unlock()
}

func (r *rng) LoadValue()                { r.queue(op{kind: opLoadValue}) }
func (r *rng) LoadFormula()              { r.queue(op{kind: opLoadFormula}) }
func (r *rng) SetValue(v cell.Scalar)    { r.queue(op{kind: opSetValue, value: v}) }
func (r *rng) SetFormula(formula string) { r.queue(op{kind: opSetFormula, formula: formula}) }

func (r *rng) Value() cell.Scalar { return r.value }
func (r *rng) Formula() string    { return r.formula }
