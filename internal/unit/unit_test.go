package unit

import (
	"testing"

	"github.com/anphsw/ppp/internal/buffer"
	"github.com/anphsw/ppp/internal/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStagedTBusyInvariant exercises spec.md §8's "staged-output ≠ empty
// ⇔ TBUSY" property directly against the slot's own transitions.
func TestStagedTBusyInvariant(t *testing.T) {
	p := NewPool()
	u, err := p.Allocate(1)
	require.NoError(t, err)

	assert.False(t, u.HasStaged())
	assert.False(t, u.Has(FlagTBusy))

	u.StageChain(buffer.NewFromBytes([]byte{1, 2, 3}, 0))
	assert.True(t, u.HasStaged())
	assert.True(t, u.Has(FlagTBusy))

	c := u.TakeStaged()
	require.NotNil(t, c)
	assert.False(t, u.HasStaged())
	assert.False(t, u.Has(FlagTBusy))

	assert.Nil(t, u.TakeStaged())
	assert.False(t, u.Has(FlagTBusy))
}

func TestAllocateResetsStateAndRejectsWhenExhausted(t *testing.T) {
	p := NewPool()
	allocated := make([]*Unit, 0, cfg.NumUnits)
	for i := 0; i < cfg.NumUnits; i++ {
		u, err := p.Allocate(100 + i)
		require.NoError(t, err)
		assert.Equal(t, cfg.MinMRU, u.MRU())
		assert.Equal(t, NPError, u.NPMode(NPProtoIP))
		allocated = append(allocated, u)
	}

	_, err := p.Allocate(999)
	assert.ErrorIs(t, err, ErrNoUnitAvailable)

	p.Release(allocated[0])
	u, err := p.Allocate(999)
	require.NoError(t, err)
	assert.Same(t, allocated[0], u)
}

func TestReleaseDrainsQueuesAndClosesCCP(t *testing.T) {
	p := NewPool()
	u, err := p.Allocate(1)
	require.NoError(t, err)

	u.NormalOutput.Push(buffer.NewFromBytes([]byte{1}, 0))
	u.FastOutput.Push(buffer.NewFromBytes([]byte{2}, 0))
	u.RawReceive.Push(buffer.NewFromBytes([]byte{3}, 0))
	u.PushUserRead(buffer.NewFromBytes([]byte{4}, 0))
	u.SetFlagBits(FlagCCPOpen | FlagCCPUp | FlagCompRun)

	p.Release(u)

	assert.Equal(t, 0, u.NormalOutput.Len())
	assert.Equal(t, 0, u.FastOutput.Len())
	assert.Equal(t, 0, u.RawReceive.Len())
	assert.Equal(t, 0, u.ReadableBytes())
	assert.False(t, u.Running())
	assert.False(t, u.AttachedDevice())
	assert.Nil(t, u.TxCompressor())
	assert.Nil(t, u.RxDecompressor())
}

func TestSetNPModeNoOpIfUnchanged(t *testing.T) {
	p := NewPool()
	u, err := p.Allocate(1)
	require.NoError(t, err)

	assert.True(t, u.SetNPMode(NPProtoIP, NPPass))
	assert.False(t, u.SetNPMode(NPProtoIP, NPPass), "setting the same mode twice must report no-op")
	assert.True(t, u.SetNPMode(NPProtoIP, NPQueue))
}

func TestSetWritableFlagsTriggersCCPClosedOnlyOnFallingEdge(t *testing.T) {
	p := NewPool()
	u, err := p.Allocate(1)
	require.NoError(t, err)
	u.SetFlagBits(FlagCCPOpen)

	closedCalls := 0
	closeFn := func() { closedCalls++ }

	u.SetWritableFlags(FlagCCPOpen|FlagDebug, closeFn)
	assert.Equal(t, 0, closedCalls)
	assert.True(t, u.Has(FlagDebug))

	u.SetWritableFlags(FlagDebug, closeFn)
	assert.Equal(t, 1, closedCalls, "clearing CCP_OPEN must invoke ccp_closed exactly once")
	assert.False(t, u.Has(FlagCCPOpen))
}
