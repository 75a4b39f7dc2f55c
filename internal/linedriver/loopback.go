package linedriver

import "sync"

// Loopback is an in-memory Driver that hands every frame it's asked to
// Send straight back to its own pktIn callback, simulating a line with
// perfect delivery. Used by cmd/pppd when started without a real serial
// device attached.
type Loopback struct {
	mu    sync.Mutex
	pktIn func(frame []byte, lost bool)
	// Peer, if set, routes Send to another Loopback's pktIn instead of
	// its own — used to join two units back to back.
	Peer *Loopback
}

// NewLoopback creates a detached loopback driver.
func NewLoopback() *Loopback { return &Loopback{} }

// Attach implements Driver.
func (l *Loopback) Attach(pktIn func(frame []byte, lost bool)) {
	l.mu.Lock()
	l.pktIn = pktIn
	l.mu.Unlock()
}

// Detach implements Driver.
func (l *Loopback) Detach() {
	l.mu.Lock()
	l.pktIn = nil
	l.mu.Unlock()
}

// Send implements Driver. With no Peer set, the frame loops back to this
// same driver's unit; with Peer set, it is delivered to the peer's unit,
// joining two units into one simulated point-to-point link.
func (l *Loopback) Send(frame []byte) bool {
	target := l
	if l.Peer != nil {
		target = l.Peer
	}
	target.mu.Lock()
	cb := target.pktIn
	target.mu.Unlock()
	if cb == nil {
		return false
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	cb(cp, false)
	return true
}
