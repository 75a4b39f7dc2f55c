package queue

import (
	"sync"
	"sync/atomic"

	"github.com/anphsw/ppp/internal/buffer"
)

// Ring is a fixed-capacity circular FIFO for queues that never need
// mid-queue removal: the user-read queue draining to the control surface
// (the raw-receive queue is a FIFO). Ported from the
// teacher's xdp_rb.go ring-buffer shape (power-of-two size, head/tail
// counters), adapted from packet descriptors to buffer.Chain pointers.
type Ring struct {
	mask    uint64
	buf     []*buffer.Chain
	mu      sync.Mutex
	head    uint64
	tail    uint64
	dropped uint64
}

// NewRing creates a Ring whose capacity is the next power of two >= size.
func NewRing(size int) *Ring {
	n := uint64(1)
	for n < uint64(size) {
		n <<= 1
	}
	return &Ring{mask: n - 1, buf: make([]*buffer.Chain, n)}
}

// Push enqueues c, dropping it and reporting false if the ring is full.
func (r *Ring) Push(c *buffer.Chain) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.head-r.tail > r.mask {
		atomic.AddUint64(&r.dropped, 1)
		return false
	}
	r.buf[r.head&r.mask] = c
	r.head++
	return true
}

// Pop dequeues the oldest chain, or nil if the ring is empty.
func (r *Ring) Pop() *buffer.Chain {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tail == r.head {
		return nil
	}
	c := r.buf[r.tail&r.mask]
	r.buf[r.tail&r.mask] = nil
	r.tail++
	return c
}

// Len reports the number of chains currently queued.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.head - r.tail)
}

// Dropped reports the cumulative number of chains dropped for being over
// capacity.
func (r *Ring) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}
