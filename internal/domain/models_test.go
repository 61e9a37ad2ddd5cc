package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_CanAdvance_ForwardChain(t *testing.T) {
	chain := []State{StateIdle, StateValidated, StateRead, StateMeshed, StateWritten, StateSucceeded}

	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, chain[i].CanAdvance(chain[i+1]), "%s -> %s", chain[i], chain[i+1])
	}

	// No skipping ahead or stepping back.
	assert.False(t, StateIdle.CanAdvance(StateRead))
	assert.False(t, StateValidated.CanAdvance(StateMeshed))
	assert.False(t, StateRead.CanAdvance(StateValidated))
	assert.False(t, StateWritten.CanAdvance(StateWritten))
}

func TestState_FailedReachableFromNonTerminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateValidated, StateRead, StateMeshed, StateWritten} {
		assert.True(t, s.CanAdvance(StateFailed), "from %s", s)
	}

	assert.False(t, StateSucceeded.CanAdvance(StateFailed))
	assert.False(t, StateFailed.CanAdvance(StateFailed))
	assert.False(t, StateFailed.CanAdvance(StateValidated))
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateWritten.Terminal())
}

func TestFormatForFilename(t *testing.T) {
	f, ok := FormatForFilename("bracket.step")
	assert.True(t, ok)
	assert.Equal(t, FormatSTEP, f)

	f, ok = FormatForFilename("HOUSING.STP")
	assert.True(t, ok)
	assert.Equal(t, FormatSTEP, f)

	f, ok = FormatForFilename("turbine.igs")
	assert.True(t, ok)
	assert.Equal(t, FormatIGES, f)

	_, ok = FormatForFilename("mesh.obj")
	assert.False(t, ok)
	_, ok = FormatForFilename("noextension")
	assert.False(t, ok)
}

func TestStlFilename(t *testing.T) {
	assert.Equal(t, "bracket.stl", StlFilename("bracket.step"))
	assert.Equal(t, "housing.stl", StlFilename("parts/housing.igs"))
	assert.Equal(t, "model.stl", StlFilename(".step"))
}
