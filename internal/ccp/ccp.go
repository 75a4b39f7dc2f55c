// Package ccp implements the pluggable generic-compressor registry and
// the CCP (Compression Control Protocol) observer that drives compressor
// lifecycle flags (spec §4.5, §9 "Pluggable compressors"). Grounded on
// if_ppp.c's ppp_ccp/ppp_comp_tab jump-table design, re-expressed as Go
// interfaces per SPEC_FULL.md's capability-set translation.
package ccp

import (
	"encoding/binary"
	"errors"
)

var errInvalidOption = errors.New("ccp: invalid compressor option")

// CCP codes recognized by the observer (spec §4.5 table).
const (
	CodeConfigureReq = 1
	CodeConfigureAck = 2
	CodeTerminateReq = 5
	CodeTerminateAck = 6
	CodeResetReq     = 14
	CodeResetAck     = 15
)

// DecompressResult is the outcome of a Decompressor.Decompress call.
type DecompressResult int

const (
	DecompOK DecompressResult = iota
	DecompError
	DecompFatalError
)

// CompressorStat is the per-direction statistics surfaced through
// GET-COMP-STATS.
type CompressorStat struct {
	InBytes, OutBytes   uint64
	InPackets, OutPkts  uint64
	Errors              uint64
	UnCompressibleCount uint64
}

// Compressor is the transmit-side capability set: init/free/compress/
// reset/stat (spec §9).
type Compressor interface {
	Init(options []byte) error
	Free()
	Compress(ppp []byte) (out []byte, ok bool)
	Reset()
	Stat() CompressorStat
}

// Decompressor is the receive-side capability set: init/free/decompress/
// incomp/reset/stat (spec §9).
type Decompressor interface {
	Init(options []byte) error
	Free()
	Decompress(ppp []byte) ([]byte, DecompressResult)
	Incomp(ppp []byte)
	Reset()
	Stat() CompressorStat
}

// Descriptor is a registry entry: a compressor protocol id plus factory
// functions for its transmit and receive sides.
type Descriptor struct {
	ID              byte
	NewCompressor   func() Compressor
	NewDecompressor func() Decompressor
	Name            string
}

var registry = map[byte]Descriptor{}

// Register adds d to the static compressor table, discovered at
// initialization (spec §9: "Registration is a static table discovered at
// initialization").
func Register(d Descriptor) { registry[d.ID] = d }

// Lookup finds a registered descriptor by protocol id.
func Lookup(id byte) (Descriptor, bool) {
	d, ok := registry[id]
	return d, ok
}

// Observer watches CCP control packets flowing through the transmit and
// receive pipelines and drives the runtime flags named in spec §4.5.
// It is deliberately decoupled from internal/unit's concrete Unit type:
// the caller supplies small closures over the unit's flag word and
// compressor handles so this package has no import cycle with unit.
type Observer struct {
	// IsCCPOpen/IsCCPUp read the unit's CCP_OPEN/CCP_UP flags.
	IsCCPOpen func() bool
	IsCCPUp   func() bool
	// IsCompRun/IsDecompRun read COMP_RUN/DECOMP_RUN, gating Reset-Ack the
	// way spec §4.5's table conditions it ("If COMP_RUN, call reset" /
	// "If DECOMP_RUN, call reset; clear DC_ERROR"), matching if_ppp.c's
	// enclosing "if (sc->sc_flags & SC_CCP_UP)" guard around the whole
	// Reset-Ack case.
	IsCompRun   func() bool
	IsDecompRun func() bool
	// ClearUpAndRunFlags/SetCompRun/SetDecompRun mutate CCP_UP, COMP_RUN,
	// DECOMP_RUN.
	ClearUpAndRunFlags func()
	SetCompRun         func(bool)
	SetDecompRun       func(bool)
	ClearDCErrors      func()

	// TxCompressor/RxDecompressor give access to the installed instances,
	// nil if none is installed yet.
	TxCompressor   func() Compressor
	RxDecompressor func() Decompressor
}

// Observe parses the CCP body of ppp (the bytes after the 4-byte PPP
// header) and applies spec §4.5's transition table. direction is
// "sending" for packets about to leave via out_pkt, "received" for
// packets arriving via in_proc. It returns false if the CCP body is
// malformed (length fields disagree with the supplied slice), matching
// if_ppp.c's ppp_ccp validation; a malformed body is ignored without
// any state change. The transmit and receive pipelines discard the
// result.
func (o *Observer) Observe(direction string, ppp []byte) bool {
	if len(ppp) < 4 {
		return false
	}
	code := ppp[0]
	length := binary.BigEndian.Uint16(ppp[2:4])
	if int(length) > len(ppp) || length < 4 {
		return false
	}

	switch code {
	case CodeConfigureReq, CodeTerminateReq, CodeTerminateAck:
		if o.IsCCPUp() {
			o.ClearUpAndRunFlags()
		}
	case CodeConfigureAck:
		if direction == "sending" {
			if o.IsCCPOpen() && !o.IsCCPUp() {
				if c := o.TxCompressor(); c != nil {
					if err := c.Init(ppp[4:length]); err == nil {
						o.SetCompRun(true)
					}
				}
			}
		} else {
			if o.IsCCPOpen() && !o.IsCCPUp() {
				if d := o.RxDecompressor(); d != nil {
					if err := d.Init(ppp[4:length]); err == nil {
						o.ClearDCErrors()
						o.SetDecompRun(true)
					}
				}
			}
		}
	case CodeResetReq:
		// Reset-Req carries no state transition of its own in spec §4.5;
		// only its Ack does.
	case CodeResetAck:
		if direction == "sending" {
			if o.IsCompRun() {
				if c := o.TxCompressor(); c != nil {
					c.Reset()
				}
			}
		} else {
			if o.IsDecompRun() {
				if d := o.RxDecompressor(); d != nil {
					d.Reset()
					o.ClearDCErrors()
				}
			}
		}
	}
	return true
}
