package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromBytes(t *testing.T) {
	t.Run("SmallSegmentKeepsHeadroom", func(t *testing.T) {
		c := NewFromBytes([]byte("hello"), 4)
		require.Equal(t, 5, c.Len())
		assert.Equal(t, []byte("hello"), c.Bytes())
		assert.False(t, c.First().IsCluster())
	})

	t.Run("LargePayloadUsesCluster", func(t *testing.T) {
		payload := make([]byte, smallCap*2)
		for i := range payload {
			payload[i] = byte(i)
		}
		c := NewFromBytes(payload, 0)
		require.Equal(t, len(payload), c.Len())
		assert.True(t, c.First().IsCluster())
		assert.Equal(t, payload, c.Bytes())
	})
}

func TestPrependHeaderSpace(t *testing.T) {
	c := NewFromBytes([]byte("payload"), 4)
	c.PrependHeaderSpace(4)
	c.WriteAt(0, []byte{0xFF, 0x03, 0x00, 0x21})

	require.Equal(t, 4+len("payload"), c.Len())
	assert.Equal(t, []byte{0xFF, 0x03, 0x00, 0x21}, c.ReadAt(0, 4))
	assert.Equal(t, []byte("payload"), c.ReadAt(4, 7))
}

func TestTrimHead(t *testing.T) {
	c := NewFromBytes([]byte("ABCDEFG"), 0)
	c.TrimHead(3)
	assert.Equal(t, []byte("DEFG"), c.Bytes())
}

func TestMarkLostTakeLost(t *testing.T) {
	c := NewFromBytes([]byte("x"), 0)
	assert.False(t, c.TakeLost())
	c.MarkLost()
	assert.True(t, c.TakeLost())
	assert.False(t, c.TakeLost(), "TakeLost must clear the flag")
}

func TestPeekFrontShorterThanRequested(t *testing.T) {
	c := NewFromBytes([]byte("abc"), 0)
	got := c.PeekFront(10)
	assert.Equal(t, []byte("abc"), got)
}

func TestReadAtWriteAtRoundTrip(t *testing.T) {
	c := NewFromBytes(make([]byte, 10), 0)
	c.WriteAt(2, []byte{1, 2, 3})
	assert.Equal(t, []byte{1, 2, 3}, c.ReadAt(2, 3))
}
