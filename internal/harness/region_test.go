package harness

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegion() *region {
	return newRegion("region-test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegion_FullLifecycle(t *testing.T) {
	reg := testRegion()
	for _, next := range []State{
		StateSnapshotting, StateMutating, StateRecalculating,
		StateReading, StateEvaluating, StateRestoring, StateDone,
	} {
		assert.NotPanics(t, func() { reg.advance(next) }, next.String())
	}
	assert.Equal(t, StateDone, reg.state)
}

func TestRegion_SuiteCyclesBackToMutating(t *testing.T) {
	reg := testRegion()
	reg.advance(StateSnapshotting)
	reg.advance(StateMutating)
	reg.advance(StateRecalculating)
	reg.advance(StateReading)
	reg.advance(StateEvaluating)

	// Next test in the same snapshot scope.
	assert.NotPanics(t, func() { reg.advance(StateMutating) })
	assert.Equal(t, StateMutating, reg.state)
}

func TestRegion_RestoringReachableMidRegion(t *testing.T) {
	for _, mid := range []State{StateMutating, StateRecalculating, StateReading, StateEvaluating} {
		reg := testRegion()
		reg.advance(StateSnapshotting)
		reg.advance(StateMutating)
		switch mid {
		case StateRecalculating:
			reg.advance(StateRecalculating)
		case StateReading:
			reg.advance(StateRecalculating)
			reg.advance(StateReading)
		case StateEvaluating:
			reg.advance(StateRecalculating)
			reg.advance(StateReading)
			reg.advance(StateEvaluating)
		}
		assert.NotPanics(t, func() { reg.advance(StateRestoring) }, mid.String())
	}
}

func TestRegion_IllegalTransitionsPanic(t *testing.T) {
	reg := testRegion()
	assert.Panics(t, func() { reg.advance(StateMutating) }, "cannot mutate before snapshotting")

	reg = testRegion()
	reg.advance(StateSnapshotting)
	assert.Panics(t, func() { reg.advance(StateReading) }, "cannot skip mutation")

	reg = testRegion()
	reg.advance(StateSnapshotting)
	reg.advance(StateDone)
	assert.Panics(t, func() { reg.advance(StateSnapshotting) }, "DONE is terminal")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "RESTORING", StateRestoring.String())
	assert.Equal(t, "State(99)", State(99).String())
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a := gen.Generate()
	b := gen.Generate()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator_SequenceThenRepeat(t *testing.T) {
	gen := NewFixedGenerator("one", "two")
	assert.Equal(t, "one", gen.Generate())
	assert.Equal(t, "two", gen.Generate())
	assert.Equal(t, "two", gen.Generate(), "last token repeats once exhausted")
}

func TestFixedGenerator_Empty(t *testing.T) {
	gen := NewFixedGenerator()
	assert.Equal(t, "region-fixed", gen.Generate())
}
