package queue

import (
	"testing"

	"github.com/anphsw/ppp/internal/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(tag byte) *buffer.Chain {
	return buffer.NewFromBytes([]byte{tag}, 0)
}

func TestFIFOPushPopOrder(t *testing.T) {
	q := NewFIFO(4)
	require.True(t, q.Push(chain(1)))
	require.True(t, q.Push(chain(2)))
	require.True(t, q.Push(chain(3)))

	assert.Equal(t, byte(1), q.Pop().Bytes()[0])
	assert.Equal(t, byte(2), q.Pop().Bytes()[0])
	assert.Equal(t, 1, q.Len())
}

func TestFIFODropsAtCapacity(t *testing.T) {
	q := NewFIFO(2)
	require.True(t, q.Push(chain(1)))
	require.True(t, q.Push(chain(2)))
	assert.False(t, q.Push(chain(3)))
	assert.EqualValues(t, 1, q.Dropped())
}

func TestFIFORemoveFirstMatch(t *testing.T) {
	q := NewFIFO(8)
	q.Push(chain(1))
	q.Push(chain(2))
	q.Push(chain(3))

	removed := q.RemoveFirstMatch(func(c *buffer.Chain) bool { return c.Bytes()[0] == 2 })
	require.NotNil(t, removed)
	assert.Equal(t, byte(2), removed.Bytes()[0])
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, byte(1), q.Pop().Bytes()[0])
	assert.Equal(t, byte(3), q.Pop().Bytes()[0])
}

func TestFIFOScanSelect(t *testing.T) {
	q := NewFIFO(8)
	q.Push(chain(1)) // drop
	q.Push(chain(2)) // skip
	q.Push(chain(3)) // take

	got := q.ScanSelect(func(c *buffer.Chain) ScanDecision {
		switch c.Bytes()[0] {
		case 1:
			return ScanDrop
		case 2:
			return ScanSkip
		default:
			return ScanTake
		}
	})
	require.NotNil(t, got)
	assert.Equal(t, byte(3), got.Bytes()[0])
	assert.Equal(t, 1, q.Len(), "only the skipped entry should remain")
	assert.Equal(t, byte(2), q.Peek().Bytes()[0])
}

func TestFIFODrain(t *testing.T) {
	q := NewFIFO(4)
	q.Push(chain(1))
	q.Push(chain(2))
	out := q.Drain()
	assert.Len(t, out, 2)
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Pop())
}

func TestRingPushPopWrapsAndDrops(t *testing.T) {
	r := NewRing(2) // rounds up to next power of two (2)
	require.True(t, r.Push(chain(1)))
	require.True(t, r.Push(chain(2)))
	assert.False(t, r.Push(chain(3)), "ring at capacity must drop")
	assert.EqualValues(t, 1, r.Dropped())

	assert.Equal(t, byte(1), r.Pop().Bytes()[0])
	require.True(t, r.Push(chain(4)))
	assert.Equal(t, byte(2), r.Pop().Bytes()[0])
	assert.Equal(t, byte(4), r.Pop().Bytes()[0])
	assert.Nil(t, r.Pop())
}

func TestRingRoundsCapacityToPowerOfTwo(t *testing.T) {
	r := NewRing(5)
	for i := 0; i < 8; i++ {
		require.True(t, r.Push(chain(byte(i))), "capacity should round up to 8")
	}
	assert.False(t, r.Push(chain(9)))
}
