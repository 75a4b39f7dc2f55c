// Package linedriver defines the contract the asynchronous byte-framing
// layer below the PPP core must satisfy (spec §6 "Line-driver contract")
// and supplies an in-memory loopback implementation for tests and the
// bundled daemon's default no-hardware mode.
package linedriver

// Driver is what a line driver supplies to a unit: Attach to receive the
// unit's frame-input callback, Send to transmit a frame, and Detach.
type Driver interface {
	// Attach stores the unit-side callbacks the driver must invoke:
	// pktIn for each complete verified frame, with lost indicating a
	// detected framing/FCS loss since the previous frame.
	Attach(pktIn func(frame []byte, lost bool))
	// Send transmits one fully-framed PPP packet (address/control/
	// protocol already applied per the unit's AC/protocol compression
	// settings). Returns false if the driver cannot accept it right now.
	Send(frame []byte) bool
	// Detach disconnects the driver from its unit.
	Detach()
}

// StartFunc and CtlNotifyFunc name the two line-driver callbacks (spec §3:
// "line-driver start callback and line-driver control-notify callback").
// Nothing in the repository uses them: unit.Unit stores these callbacks
// as func(*unit.Unit) in LineStart and LineCtlNotify.
type StartFunc func()
type CtlNotifyFunc func()
