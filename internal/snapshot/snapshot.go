// Package snapshot captures and restores cell state so that test
// mutations against a live document can always be undone.
//
// A snapshot holds {value, formula} for an explicit address set at a
// point in time. Restore replays it: formula cells get their formula
// written back (recreating dependent behavior), plain cells get their
// raw value. Restore never gives up early: a workbook left mostly
// restored beats one left fully un-restored, so per-cell failures are
// recorded and the remaining cells still restore.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gridproof/gridproof/internal/adapter"
	"github.com/gridproof/gridproof/internal/cell"
)

// Snapshot maps each protected address to its captured state.
// A snapshot is consumed exactly once, by the restore that closes the
// protected region; the region owner discards it afterward.
type Snapshot map[cell.Address]cell.State

// CellFailure records one cell that could not be restored.
type CellFailure struct {
	Cell    cell.Address `json:"cell"`
	Message string       `json:"message"`
}

// RestoreReport aggregates the outcome of a restore pass.
type RestoreReport struct {
	Attempted int           `json:"attempted"`
	Restored  int           `json:"restored"`
	Failures  []CellFailure `json:"failures,omitempty"`
}

// OK reports whether every cell restored.
func (r *RestoreReport) OK() bool { return len(r.Failures) == 0 }

func (r *RestoreReport) String() string {
	return fmt.Sprintf("restored %d/%d cells (%d failed)", r.Restored, r.Attempted, len(r.Failures))
}

// Store captures and restores snapshots through the adapter.
type Store struct {
	ad     *adapter.Adapter
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. Defaults to a discarded one.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a snapshot store over the given adapter.
func New(ad *adapter.Adapter, opts ...Option) *Store {
	s := &Store{
		ad:     ad,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture reads {value, formula} for every address in one batched pass.
// A capture failure leaves the document untouched: nothing has been
// written yet, so no restore is needed.
func (s *Store) Capture(ctx context.Context, addrs []cell.Address) (Snapshot, error) {
	states, err := s.ad.ReadCells(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("capture snapshot: %w", err)
	}
	s.logger.Debug("captured snapshot", "cells", len(states))
	return Snapshot(states), nil
}

// Restore replays the snapshot. Formula cells are written as formulas,
// plain cells as values. Each entry restores independently: a failure
// is recorded in the report and the remaining cells still restore.
//
// Restore is idempotent: replaying the same snapshot twice yields the
// same final document state, absent concurrent external mutation.
func (s *Store) Restore(ctx context.Context, snap Snapshot) *RestoreReport {
	report := &RestoreReport{Attempted: len(snap)}

	formulas := make(map[cell.Address]string)
	values := make(map[cell.Address]cell.Scalar)
	for addr, st := range snap {
		if st.HasFormula() {
			formulas[addr] = st.Formula
		} else {
			values[addr] = st.Value
		}
	}

	s.restoreBatch(ctx, report, keys(formulas), func(addr cell.Address) error {
		return s.ad.WriteFormulas(ctx, map[cell.Address]string{addr: formulas[addr]})
	}, func() error {
		return s.ad.WriteFormulas(ctx, formulas)
	})
	s.restoreBatch(ctx, report, keys(values), func(addr cell.Address) error {
		return s.ad.WriteValues(ctx, map[cell.Address]cell.Scalar{addr: values[addr]})
	}, func() error {
		return s.ad.WriteValues(ctx, values)
	})

	if !report.OK() {
		for _, f := range report.Failures {
			s.logger.Error("cell restore failed", "cell", f.Cell.String(), "error", f.Message)
		}
	}
	s.logger.Debug("restored snapshot", "attempted", report.Attempted, "restored", report.Restored)
	return report
}

// restoreBatch tries one batched write for the whole group first. If
// the batch fails it falls back to cell-by-cell writes so a single bad
// cell (or a sheet deleted mid-test) cannot take down the rest.
func (s *Store) restoreBatch(ctx context.Context, report *RestoreReport, addrs []cell.Address, one func(cell.Address) error, all func() error) {
	if len(addrs) == 0 {
		return
	}
	if err := all(); err == nil {
		report.Restored += len(addrs)
		return
	}
	for _, addr := range addrs {
		if err := one(addr); err != nil {
			report.Failures = append(report.Failures, CellFailure{Cell: addr, Message: err.Error()})
			continue
		}
		report.Restored++
	}
}

func keys[V any](m map[cell.Address]V) []cell.Address {
	out := make([]cell.Address, 0, len(m))
	for addr := range m {
		out = append(out, addr)
	}
	cell.SortAddresses(out)
	return out
}
