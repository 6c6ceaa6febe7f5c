package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gridproof/gridproof/internal/cell"
	"github.com/gridproof/gridproof/internal/host"
)

// The host.Document implementation. Range handles queue loads and
// writes; Sync flushes the whole queue inside a single transaction, the
// workbook's one-round-trip equivalent of a host command batch.

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

// Sheet implements host.Document.
func (w *Workbook) Sheet(name string) (host.Sheet, error) {
	name = cell.NormalizeSheet(name)
	var one int
	err := w.db.QueryRow(`SELECT 1 FROM sheets WHERE name = ?`, name).Scan(&one)
	switch err {
	case nil:
		return &sheetHandle{wb: w, name: name}, nil
	case sql.ErrNoRows:
		return nil, &host.SheetNotFoundError{Sheet: name}
	default:
		return nil, fmt.Errorf("resolve sheet %q: %w", name, err)
	}
}

// Sync implements host.Document. The queued batch applies atomically:
// a failing operation rolls back the whole round trip. Like hosts in
// automatic calculation mode, a batch that wrote at least one cell runs
// the recalculation hook before Sync returns.
func (w *Workbook) Sync(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	defer tx.Rollback()

	wrote := false
	for _, o := range batch {
		switch o.kind {
		case opLoadValue, opLoadFormula:
			if err := w.applyLoad(ctx, tx, o); err != nil {
				return fmt.Errorf("sync: %w", err)
			}
		case opSetValue:
			valueJSON, err := encodeScalar(o.value)
			if err != nil {
				return fmt.Errorf("sync %s!%s: %w", o.sheet, o.local, err)
			}
			// Writing a literal clears any formula on the cell.
			_, err = tx.ExecContext(ctx, `
				INSERT INTO cells (sheet, addr, value, formula) VALUES (?, ?, ?, '')
				ON CONFLICT(sheet, addr) DO UPDATE SET value = excluded.value, formula = ''
			`, o.sheet, o.local, valueJSON)
			if err != nil {
				return fmt.Errorf("sync %s!%s: %w", o.sheet, o.local, err)
			}
			wrote = true
		case opSetFormula:
			_, err := tx.ExecContext(ctx, `
				INSERT INTO cells (sheet, addr, value, formula) VALUES (?, ?, NULL, ?)
				ON CONFLICT(sheet, addr) DO UPDATE SET formula = excluded.formula
			`, o.sheet, o.local, o.formula)
			if err != nil {
				return fmt.Errorf("sync %s!%s: %w", o.sheet, o.local, err)
			}
			wrote = true
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if wrote && w.recalc != nil {
		if err := w.recalc(ctx, w); err != nil {
			return fmt.Errorf("sync: recalculate: %w", err)
		}
	}
	return nil
}

func (w *Workbook) applyLoad(ctx context.Context, tx *sql.Tx, o op) error {
	var valueJSON sql.NullString
	var formula string
	row := tx.QueryRowContext(ctx,
		`SELECT value, formula FROM cells WHERE sheet = ? AND addr = ?`, o.sheet, o.local)
	switch err := row.Scan(&valueJSON, &formula); err {
	case nil:
	case sql.ErrNoRows:
		// Empty cell: nil value, no formula.
	default:
		return fmt.Errorf("load %s!%s: %w", o.sheet, o.local, err)
	}
	switch o.kind {
	case opLoadValue:
		value, err := decodeScalar(valueJSON)
		if err != nil {
			return fmt.Errorf("load %s!%s: %w", o.sheet, o.local, err)
		}
		o.r.value = value
	case opLoadFormula:
		o.r.formula = formula
	}
	return nil
}

// Recalculate implements host.Document with a full recalculation pass
// through the hook. Without a hook, cached values stand.
func (w *Workbook) Recalculate(ctx context.Context) error {
	if w.recalc == nil {
		return nil
	}
	return w.recalc(ctx, w)
}

type sheetHandle struct {
	wb   *Workbook
	name string
}

func (s *sheetHandle) Range(local string) host.Range {
	return &rng{wb: s.wb, sheet: s.name, local: local}
}

type rng struct {
	wb      *Workbook
	sheet   string
	local   string
	value   cell.Scalar
	formula string
}

func (r *rng) queue(o op) {
	o.sheet, o.local, o.r = r.sheet, r.local, r
	r.wb.mu.Lock()
	r.wb.pending = append(r.wb.pending, o)
	r.wb.mu.Unlock()
}

func (r *rng) LoadValue()                { r.queue(op{kind: opLoadValue}) }
func (r *rng) LoadFormula()              { r.queue(op{kind: opLoadFormula}) }
func (r *rng) SetValue(v cell.Scalar)    { r.queue(op{kind: opSetValue, value: v}) }
func (r *rng) SetFormula(formula string) { r.queue(op{kind: opSetFormula, formula: formula}) }

func (r *rng) Value() cell.Scalar { return r.value }
func (r *rng) Formula() string    { return r.formula }
