package unit

import (
	"sync"

	"github.com/anphsw/ppp/internal/cfg"
	"github.com/anphsw/ppp/internal/vj"
)

// Pool is the fixed-size vector of units with stable indices (spec §9:
// "Fixed pool of units").
type Pool struct {
	mu    sync.Mutex
	units []*Unit
}

// NewPool allocates a pool of cfg.NumUnits idle units.
func NewPool() *Pool {
	p := &Pool{units: make([]*Unit, cfg.NumUnits)}
	for i := range p.units {
		p.units[i] = newUnit(i)
	}
	return p
}

// All returns every unit in index order, for the dispatcher's walk.
func (p *Pool) All() []*Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Unit, len(p.units))
	copy(out, p.units)
	return out
}

// Get returns the unit at index, or nil if out of range.
func (p *Pool) Get(index int) *Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.units) {
		return nil
	}
	return p.units[index]
}

// Allocate implements spec §4.1's allocate(owner_pid): it first honors a
// pending transfer claim, then falls back to any idle unit, resetting all
// state before handing it back.
func (p *Pool) Allocate(ownerPID int) (*Unit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, u := range p.units {
		u.mu.Lock()
		claim := u.hasNextOwner && u.nextOwnerPID == ownerPID
		u.mu.Unlock()
		if claim {
			resetUnit(u, ownerPID)
			return u, nil
		}
	}
	for _, u := range p.units {
		u.mu.Lock()
		idle := !u.attachedDevice
		u.mu.Unlock()
		if idle {
			resetUnit(u, ownerPID)
			return u, nil
		}
	}
	return nil, ErrNoUnitAvailable
}

// resetUnit applies the allocate-time reset described in spec §4.1:
// flags zeroed, MRU to minimum, compressor state cleared, NP modes to
// ERROR, unit marked running.
func resetUnit(u *Unit, ownerPID int) {
	u.mu.Lock()
	u.flags = 0
	u.mru = cfg.MinMRU
	for i := range u.npModes {
		u.npModes[i] = NPError
	}
	u.txCompressor = nil
	u.rxDecompressor = nil
	u.running = true
	u.attachedDevice = true
	u.ownerPID = ownerPID
	u.hasNextOwner = false
	u.staged = nil
	u.mu.Unlock()

	u.VJTx = vj.Init()
	u.VJRx = vj.Init()
}

// Release implements spec §4.1's release(unit): marks the unit down,
// clears ownership and attachment, drains every queue (freeing chains),
// drops the staged chain, and invokes CCPClosed.
func (p *Pool) Release(u *Unit) {
	u.mu.Lock()
	u.running = false
	u.up = false
	u.attachedDevice = false
	u.ownerPID = 0
	u.staged = nil
	u.flags &^= FlagTBusy
	u.mu.Unlock()

	u.RawReceive.Drain()
	u.NormalOutput.Drain()
	u.FastOutput.Drain()
	for u.PopUserRead() != nil {
	}

	u.CCPClosed()
}
