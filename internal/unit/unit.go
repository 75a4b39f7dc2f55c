// Package unit implements the per-link PPP state record (spec §3) and its
// fixed allocation pool (spec §4.1): flags, MRU, per-network-protocol
// mode table, statistics counters, the three bounded transmit/receive
// queues, the single-slot staged-output buffer, VJ and CCP state, and the
// line-driver upcall pair. Grounded on if_ppp.c's `struct ppp_softc ppp_softc[NPPP]`
// and the teacher's Unit-pool-shaped config in internal/core/config.go,
// re-expressed with explicit mutexes in place of SPL-based critical
// sections (SPEC_FULL.md §5).
package unit

import (
	"sync"
	"sync/atomic"

	"github.com/anphsw/ppp/internal/buffer"
	"github.com/anphsw/ppp/internal/ccp"
	"github.com/anphsw/ppp/internal/cfg"
	"github.com/anphsw/ppp/internal/queue"
	"github.com/anphsw/ppp/internal/vj"
)

// Counters holds the interface statistics exposed via GET-PPP-STATS.
type Counters struct {
	InPackets  uint64
	OutPackets uint64
	InBytes    uint64
	OutBytes   uint64
	InErrors   uint64
	OutErrors  uint64
}

// Unit represents one PPP link (spec §3).
type Unit struct {
	Index int

	mu       sync.Mutex
	flags    Flags
	mru      int
	npModes  [npProtoCount]NPMode
	counters Counters

	NormalOutput *queue.FIFO
	FastOutput   *queue.FIFO
	RawReceive   *queue.FIFO
	UserRead     *queue.Ring

	staged         *buffer.Chain
	userReadBytes  int64

	VJTx *vj.State
	VJRx *vj.State

	txCompressor   ccp.Compressor
	rxDecompressor ccp.Decompressor

	// LineStart is invoked (outside the unit's lock) whenever a packet is
	// staged and ready for the line driver to pull via Dequeue.
	LineStart func(*Unit)
	// LineCtlNotify is invoked whenever a non-IP frame lands on the
	// user-read queue, so the daemon can wake up and read it.
	LineCtlNotify func(*Unit)

	running        bool
	up             bool
	attachedDevice bool
	ownerPID       int
	nextOwnerPID   int
	hasNextOwner   bool
}

func newUnit(index int) *Unit {
	u := &Unit{
		Index:        index,
		NormalOutput: queue.NewFIFO(cfg.OutputQueueLen),
		FastOutput:   queue.NewFIFO(cfg.FastQueueLen),
		RawReceive:   queue.NewFIFO(cfg.RawRecvQueueLen),
		UserRead:     queue.NewRing(cfg.UserReadQueueLen),
		mru:          cfg.MinMRU,
	}
	for i := range u.npModes {
		u.npModes[i] = NPError
	}
	return u
}

// Flags returns the current flag word.
func (u *Unit) Flags() Flags {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.flags
}

// SetFlagBits ORs mask into the flag word under the unit's short
// critical section (spec §5: flag-word mutation is one of the three
// priority-elevated windows).
func (u *Unit) SetFlagBits(mask Flags) {
	u.mu.Lock()
	u.flags |= mask
	u.mu.Unlock()
}

// ClearFlagBits clears mask from the flag word.
func (u *Unit) ClearFlagBits(mask Flags) {
	u.mu.Lock()
	u.flags &^= mask
	u.mu.Unlock()
}

// Has reports whether every bit in mask is currently set.
func (u *Unit) Has(mask Flags) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.flags.Has(mask)
}

// SetWritableFlags applies a SETFLAGS control call: only WritableMask
// bits are replaced, and clearing CCP_OPEN while it was set triggers
// CCPClosed (spec §6).
func (u *Unit) SetWritableFlags(newBits Flags, ccpClosed func()) {
	u.mu.Lock()
	wasOpen := u.flags.Has(FlagCCPOpen)
	u.flags = (u.flags &^ WritableMask) | (newBits & WritableMask)
	nowOpen := u.flags.Has(FlagCCPOpen)
	u.mu.Unlock()
	if wasOpen && !nowOpen {
		ccpClosed()
	}
}

// MRU returns the current maximum receive unit.
func (u *Unit) MRU() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.mru
}

// SetMRU clamps and stores the requested MRU (spec §6: "SET clamped to
// [minimum-MRU, maximum-MRU] silently").
func (u *Unit) SetMRU(v int) {
	if v < cfg.MinMRU {
		v = cfg.MinMRU
	}
	if v > cfg.MaxMRU {
		v = cfg.MaxMRU
	}
	u.mu.Lock()
	u.mru = v
	u.mu.Unlock()
}

// NPMode returns the gate for the given protocol, defaulting to
// NPError (unrecognized protocols never match NPProtoIP).
func (u *Unit) NPMode(p NPProto) NPMode {
	u.mu.Lock()
	defer u.mu.Unlock()
	if int(p) < 0 || int(p) >= len(u.npModes) {
		return NPError
	}
	return u.npModes[p]
}

// SetNPMode records the gate for p, returning false (no-op) if unchanged
// (spec §6: "SET is a no-op if unchanged").
func (u *Unit) SetNPMode(p NPProto, mode NPMode) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if int(p) < 0 || int(p) >= len(u.npModes) {
		return false
	}
	if u.npModes[p] == mode {
		return false
	}
	u.npModes[p] = mode
	return true
}

// Counters returns a snapshot of the interface statistics.
func (u *Unit) Counters() Counters {
	return Counters{
		InPackets:  atomic.LoadUint64(&u.counters.InPackets),
		OutPackets: atomic.LoadUint64(&u.counters.OutPackets),
		InBytes:    atomic.LoadUint64(&u.counters.InBytes),
		OutBytes:   atomic.LoadUint64(&u.counters.OutBytes),
		InErrors:   atomic.LoadUint64(&u.counters.InErrors),
		OutErrors:  atomic.LoadUint64(&u.counters.OutErrors),
	}
}

func (u *Unit) AddInPackets(n uint64)  { atomic.AddUint64(&u.counters.InPackets, n) }
func (u *Unit) AddOutPackets(n uint64) { atomic.AddUint64(&u.counters.OutPackets, n) }
func (u *Unit) AddInBytes(n uint64)    { atomic.AddUint64(&u.counters.InBytes, n) }
func (u *Unit) AddOutBytes(n uint64)   { atomic.AddUint64(&u.counters.OutBytes, n) }
func (u *Unit) AddInErrors(n uint64)   { atomic.AddUint64(&u.counters.InErrors, n) }
func (u *Unit) AddOutErrors(n uint64)  { atomic.AddUint64(&u.counters.OutErrors, n) }

// Running reports whether the unit has been allocated and is active.
func (u *Unit) Running() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running
}

// Up reports whether the interface is administratively up.
func (u *Unit) Up() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.up
}

// SetUp sets the interface up/down flag (network-interface SIFFLAGS
// equivalent, spec §6).
func (u *Unit) SetUp(v bool) {
	u.mu.Lock()
	u.up = v
	u.mu.Unlock()
}

// AttachedDevice reports whether a line driver is bound to the unit.
func (u *Unit) AttachedDevice() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.attachedDevice
}

// OwnerPID returns the current owning process identifier.
func (u *Unit) OwnerPID() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ownerPID
}

// RequestTransfer records pid as the next owner (spec §6: TRANSFER-UNIT).
func (u *Unit) RequestTransfer(pid int) {
	u.mu.Lock()
	u.nextOwnerPID = pid
	u.hasNextOwner = true
	u.mu.Unlock()
}

// --- Staged-output slot (spec §3 invariant: non-empty ⇔ TBUSY) ---

// StageChain moves c into the staged-output slot and sets TBUSY. Callers
// must already hold no conflicting staged chain (Dequeue must have
// drained it first); out_pkt enforces this.
func (u *Unit) StageChain(c *buffer.Chain) {
	u.mu.Lock()
	u.staged = c
	u.flags |= FlagTBusy
	u.mu.Unlock()
}

// TakeStaged removes and returns the staged chain if present, clearing
// TBUSY as it empties the slot — the core of Dequeue (spec §4.3).
func (u *Unit) TakeStaged() *buffer.Chain {
	u.mu.Lock()
	defer u.mu.Unlock()
	c := u.staged
	if c != nil {
		u.staged = nil
	}
	u.flags &^= FlagTBusy
	return c
}

// HasStaged reports whether the staged-output slot is occupied.
func (u *Unit) HasStaged() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.staged != nil
}

// --- User-read queue (spec §3: "a user-read queue for protocols
// delivered to user space") ---

// PushUserRead enqueues c for the daemon to read, tracking its byte
// length for GET-READABLE-COUNT (spec §6) without the control surface
// having to walk the ring buffer's contents under its lock.
func (u *Unit) PushUserRead(c *buffer.Chain) bool {
	if !u.UserRead.Push(c) {
		return false
	}
	atomic.AddInt64(&u.userReadBytes, int64(c.Len()))
	return true
}

// PopUserRead dequeues the oldest user-read chain, or nil if empty.
func (u *Unit) PopUserRead() *buffer.Chain {
	c := u.UserRead.Pop()
	if c != nil {
		atomic.AddInt64(&u.userReadBytes, -int64(c.Len()))
	}
	return c
}

// ReadableBytes returns the byte count GET-READABLE-COUNT reports.
func (u *Unit) ReadableBytes() int {
	return int(atomic.LoadInt64(&u.userReadBytes))
}

// --- Compressor handles ---

// TxCompressor returns the installed transmit compressor, or nil.
func (u *Unit) TxCompressor() ccp.Compressor {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.txCompressor
}

// RxDecompressor returns the installed receive decompressor, or nil.
func (u *Unit) RxDecompressor() ccp.Decompressor {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rxDecompressor
}

// SetTxCompressor installs (or clears, with nil) the transmit compressor,
// clearing COMP_RUN (spec §6: SET-COMPRESSOR "Clears the corresponding
// RUN flag").
func (u *Unit) SetTxCompressor(c ccp.Compressor) {
	u.mu.Lock()
	u.txCompressor = c
	u.flags &^= FlagCompRun
	u.mu.Unlock()
}

// SetRxDecompressor installs (or clears, with nil) the receive
// decompressor, clearing DECOMP_RUN.
func (u *Unit) SetRxDecompressor(d ccp.Decompressor) {
	u.mu.Lock()
	u.rxDecompressor = d
	u.flags &^= FlagDecompRun
	u.mu.Unlock()
}

// CCPClosed frees both compressor states and nils the handles (spec §4.5:
// ccp_closed).
func (u *Unit) CCPClosed() {
	u.mu.Lock()
	tx, rx := u.txCompressor, u.rxDecompressor
	u.txCompressor = nil
	u.rxDecompressor = nil
	u.flags &^= (FlagCCPUp | FlagCompRun | FlagDecompRun)
	u.mu.Unlock()
	if tx != nil {
		tx.Free()
	}
	if rx != nil {
		rx.Free()
	}
}
