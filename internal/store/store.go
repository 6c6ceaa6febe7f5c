// Package store provides a SQLite-backed workbook implementing the
// host document interface, so the CLI can drive persistent local
// workbooks with the same protocol it uses against a live host.
//
// The workbook stores sheets and cells; it has no calculation engine of
// its own. A RecalcFunc hook stands in for the host calculation engine
// where one is needed.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gridproof/gridproof/internal/cell"
)

//go:embed schema.sql
var schemaSQL string

// RecalcFunc recomputes formula cells from current inputs.
type RecalcFunc func(ctx context.Context, w *Workbook) error

// Workbook is a SQLite-backed spreadsheet document.
// Use ":memory:" as the path for a throwaway in-memory workbook.
type Workbook struct {
	db *sql.DB

	mu      sync.Mutex
	pending []op

	recalc RecalcFunc
}

// Option configures a Workbook.
type Option func(*Workbook)

// WithRecalc installs the recalculation hook. Without one,
// Recalculate leaves cached values as they are.
func WithRecalc(fn RecalcFunc) Option {
	return func(w *Workbook) { w.recalc = fn }
}

// Open creates or opens a workbook database at the given path.
//
// The database is configured with WAL mode for concurrent reads,
// NORMAL synchronous mode, a 5-second busy timeout, and foreign key
// enforcement. SQLite supports one writer at a time, so the pool is
// pinned to a single connection. Idempotent.
func Open(path string, opts ...Option) (*Workbook, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect workbook: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	w := &Workbook{db: db}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (w *Workbook) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}

// CreateSheet adds a sheet. Adding an existing sheet is a no-op.
func (w *Workbook) CreateSheet(ctx context.Context, name string) error {
	name = cell.NormalizeSheet(name)
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO sheets (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}
	return nil
}

// SheetNames lists the workbook's sheets in name order.
func (w *Workbook) SheetNames(ctx context.Context) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT name FROM sheets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list sheets: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Seed writes cell states directly, creating sheets as needed.
// Fixture helper; bypasses the command queue.
func (w *Workbook) Seed(ctx context.Context, cells map[string]cell.State) error {
	for addr, st := range cells {
		a, err := cell.ParseAddress(addr)
		if err != nil {
			return err
		}
		if err := w.CreateSheet(ctx, a.Sheet()); err != nil {
			return err
		}
		valueJSON, err := encodeScalar(st.Value)
		if err != nil {
			return fmt.Errorf("seed %s: %w", addr, err)
		}
		_, err = w.db.ExecContext(ctx, `
			INSERT INTO cells (sheet, addr, value, formula) VALUES (?, ?, ?, ?)
			ON CONFLICT(sheet, addr) DO UPDATE SET value = excluded.value, formula = excluded.formula
		`, a.Sheet(), a.Local(), valueJSON, st.Formula)
		if err != nil {
			return fmt.Errorf("seed %s: %w", addr, err)
		}
	}
	return nil
}

// Cell reads one cell state directly, bypassing the command queue.
// The second return reports whether the cell exists.
func (w *Workbook) Cell(ctx context.Context, addr string) (cell.State, bool, error) {
	a, err := cell.ParseAddress(addr)
	if err != nil {
		return cell.State{}, false, err
	}
	var valueJSON sql.NullString
	var formula string
	row := w.db.QueryRowContext(ctx,
		`SELECT value, formula FROM cells WHERE sheet = ? AND addr = ?`, a.Sheet(), a.Local())
	switch err := row.Scan(&valueJSON, &formula); err {
	case nil:
	case sql.ErrNoRows:
		return cell.State{}, false, nil
	default:
		return cell.State{}, false, fmt.Errorf("read cell %s: %w", addr, err)
	}
	value, err := decodeScalar(valueJSON)
	if err != nil {
		return cell.State{}, false, fmt.Errorf("read cell %s: %w", addr, err)
	}
	return cell.State{Value: value, Formula: formula}, true, nil
}

func encodeScalar(v cell.Scalar) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeScalar(s sql.NullString) (cell.Scalar, error) {
	if !s.Valid {
		return nil, nil
	}
	var v cell.Scalar
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, err
	}
	return v, nil
}
