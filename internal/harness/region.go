package harness

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// State is a phase of a protected region.
type State int

const (
	StateIdle State = iota
	StateSnapshotting
	StateMutating
	StateRecalculating
	StateReading
	StateEvaluating
	StateRestoring
	StateDone
)

var stateNames = map[State]string{
	StateIdle:          "IDLE",
	StateSnapshotting:  "SNAPSHOTTING",
	StateMutating:      "MUTATING",
	StateRecalculating: "RECALCULATING",
	StateReading:       "READING",
	StateEvaluating:    "EVALUATING",
	StateRestoring:     "RESTORING",
	StateDone:          "DONE",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// regionTransitions lists the legal phase transitions. RESTORING is
// reachable from every phase after mutation begins; DONE is terminal.
// MUTATING is re-enterable from mid phases because a suite region
// cycles mutate..evaluate once per test inside a single snapshot scope.
var regionTransitions = map[State][]State{
	StateIdle:          {StateSnapshotting},
	StateSnapshotting:  {StateMutating, StateDone},
	StateMutating:      {StateRecalculating, StateRestoring, StateMutating},
	StateRecalculating: {StateReading, StateRestoring, StateMutating},
	StateReading:       {StateEvaluating, StateRestoring, StateMutating},
	StateEvaluating:    {StateRestoring, StateMutating},
	StateRestoring:     {StateDone},
}

// region tracks one protected snapshot..restore scope.
type region struct {
	id     string
	state  State
	logger *slog.Logger
}

func newRegion(id string, logger *slog.Logger) *region {
	return &region{id: id, state: StateIdle, logger: logger}
}

// advance moves the region to the next phase. An illegal transition is
// a harness bug and panics; the runner's region boundary converts the
// panic into a failed result and still restores.
func (r *region) advance(to State) {
	for _, allowed := range regionTransitions[r.state] {
		if allowed == to {
			r.logger.Debug("region phase", "region", r.id, "from", r.state.String(), "to", to.String())
			r.state = to
			return
		}
	}
	panic(fmt.Sprintf("illegal region transition %s -> %s (region %s)", r.state, to, r.id))
}

// TokenGenerator produces region correlation tokens for logs and
// diagnostics.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 region tokens, so
// regions in interleaved logs sort by start time.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined tokens in order, enabling
// deterministic logs and golden comparison in tests.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order,
// repeating the last token once the sequence is exhausted.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.tokens) == 0 {
		return "region-fixed"
	}
	tok := g.tokens[g.idx]
	if g.idx < len(g.tokens)-1 {
		g.idx++
	}
	return tok
}
