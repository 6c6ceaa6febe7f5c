// Package adapter translates cell-address based reads and writes into
// batched operations against a host document.
//
// Every adapter call validates addresses up front, opens one range
// handle per cell, queues all operations, and flushes them with a
// single Sync round trip. Handles are kept in slices index-aligned with
// the address list: after a batch boundary a handle is never re-derived
// from its address, so a batched result cannot be attributed to the
// wrong cell.
package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gridproof/gridproof/internal/cell"
	"github.com/gridproof/gridproof/internal/host"
)

// Defaults for the post-recalculation wait.
const (
	// DefaultSettleInterval is the fixed delay used when the document
	// exposes no calculation-state signal. Recalculation completion is
	// not synchronously observable; the delay is a proxy for it.
	DefaultSettleInterval = 100 * time.Millisecond

	// DefaultPollInterval is the probe spacing when the document
	// implements host.CalcObserver.
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultCalcWait bounds how long polling waits for the
	// calculation-state signal before proceeding anyway.
	DefaultCalcWait = 5 * time.Second
)

// Adapter provides batched cell access over a host document.
type Adapter struct {
	doc    host.Document
	logger *slog.Logger

	settle   time.Duration
	poll     time.Duration
	calcWait time.Duration
	sleep    func(time.Duration)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the structured logger. Defaults to a discarded one.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithSettleInterval overrides the fixed post-recalculation delay.
func WithSettleInterval(d time.Duration) Option {
	return func(a *Adapter) { a.settle = d }
}

// WithPollInterval overrides the calculation-state probe spacing.
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) { a.poll = d }
}

// WithCalcWait overrides the polling budget.
func WithCalcWait(d time.Duration) Option {
	return func(a *Adapter) { a.calcWait = d }
}

// WithSleepFunc replaces time.Sleep. Tests inject a recording fake so
// settle behavior is observable without real delays.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(a *Adapter) { a.sleep = fn }
}

// New creates an adapter over the given document.
func New(doc host.Document, opts ...Option) *Adapter {
	a := &Adapter{
		doc:      doc,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		settle:   DefaultSettleInterval,
		poll:     DefaultPollInterval,
		calcWait: DefaultCalcWait,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ReadCells reads {value, formula} for every address in one batched
// pass. Duplicate addresses are read once. Any malformed address fails
// before the host is touched; any missing sheet fails the whole call.
func (a *Adapter) ReadCells(ctx context.Context, addrs []cell.Address) (map[cell.Address]cell.State, error) {
	uniq, err := validateAddresses(addrs)
	if err != nil {
		return nil, err
	}
	if len(uniq) == 0 {
		return map[cell.Address]cell.State{}, nil
	}

	handles := make([]host.Range, len(uniq))
	sheets := make(map[string]host.Sheet)
	for i, addr := range uniq {
		sh, err := a.sheet(sheets, addr.Sheet())
		if err != nil {
			return nil, err
		}
		r := sh.Range(addr.Local())
		r.LoadValue()
		r.LoadFormula()
		handles[i] = r
	}

	if err := a.doc.Sync(ctx); err != nil {
		return nil, fmt.Errorf("read %d cells: %w", len(uniq), err)
	}

	out := make(map[cell.Address]cell.State, len(uniq))
	for i, addr := range uniq {
		out[addr] = cell.State{Value: handles[i].Value(), Formula: handles[i].Formula()}
	}
	a.logger.Debug("read cells", "count", len(uniq))
	return out, nil
}

// WriteValues writes raw values to cells in one batched pass. Writing a
// value clears any formula on the cell, per host semantics.
func (a *Adapter) WriteValues(ctx context.Context, values map[cell.Address]cell.Scalar) error {
	return a.write(ctx, keys(values), func(r host.Range, addr cell.Address) {
		r.SetValue(values[addr])
	})
}

// WriteFormulas writes formulas to cells in one batched pass.
func (a *Adapter) WriteFormulas(ctx context.Context, formulas map[cell.Address]string) error {
	return a.write(ctx, keys(formulas), func(r host.Range, addr cell.Address) {
		r.SetFormula(formulas[addr])
	})
}

func (a *Adapter) write(ctx context.Context, addrs []cell.Address, set func(host.Range, cell.Address)) error {
	uniq, err := validateAddresses(addrs)
	if err != nil {
		return err
	}
	if len(uniq) == 0 {
		return nil
	}

	sheets := make(map[string]host.Sheet)
	for _, addr := range uniq {
		sh, err := a.sheet(sheets, addr.Sheet())
		if err != nil {
			return err
		}
		set(sh.Range(addr.Local()), addr)
	}

	if err := a.doc.Sync(ctx); err != nil {
		return fmt.Errorf("write %d cells: %w", len(uniq), err)
	}
	a.logger.Debug("wrote cells", "count", len(uniq))
	return nil
}

// Recalculate triggers a full recalculation and waits for completion.
//
// Documents implementing host.CalcObserver are polled until done or
// until the polling budget runs out; all others are waited out with the
// fixed settle interval.
func (a *Adapter) Recalculate(ctx context.Context) error {
	if err := a.doc.Recalculate(ctx); err != nil {
		return fmt.Errorf("recalculate: %w", err)
	}

	obs, ok := a.doc.(host.CalcObserver)
	if !ok {
		a.sleep(a.settle)
		return nil
	}

	var waited time.Duration
	for {
		done, err := obs.CalcDone(ctx)
		if err != nil {
			return fmt.Errorf("recalculate: calc state: %w", err)
		}
		if done {
			return nil
		}
		if waited >= a.calcWait {
			a.logger.Warn("recalculation still pending after wait budget, proceeding", "waited", waited)
			return nil
		}
		a.sleep(a.poll)
		waited += a.poll
	}
}

func (a *Adapter) sheet(cache map[string]host.Sheet, name string) (host.Sheet, error) {
	if sh, ok := cache[name]; ok {
		return sh, nil
	}
	sh, err := a.doc.Sheet(name)
	if err != nil {
		return nil, err
	}
	cache[name] = sh
	return sh, nil
}

// validateAddresses checks every address before any host call and
// returns them deduplicated in deterministic sheet/local order.
func validateAddresses(addrs []cell.Address) ([]cell.Address, error) {
	seen := make(map[cell.Address]struct{}, len(addrs))
	uniq := make([]cell.Address, 0, len(addrs))
	for _, addr := range addrs {
		if err := addr.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		uniq = append(uniq, addr)
	}
	cell.SortAddresses(uniq)
	return uniq, nil
}

func keys[V any](m map[cell.Address]V) []cell.Address {
	out := make([]cell.Address, 0, len(m))
	for addr := range m {
		out = append(out, addr)
	}
	return out
}
