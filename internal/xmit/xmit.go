// Package xmit implements the transmit pipeline: the process-context
// Output entry (spec §4.2), the hard-interrupt Dequeue (spec §4.3), and
// the deferred OutPkt step that applies VJ compression, CCP-driven
// generic compression, and AC/protocol-field compression before handing
// one framed packet to the line driver. Grounded on if_ppp.c's
// pppoutput/ppp_dequeue/ppp_outpkt.
package xmit

import (
	"encoding/binary"

	"github.com/anphsw/ppp/internal/buffer"
	"github.com/anphsw/ppp/internal/ccp"
	"github.com/anphsw/ppp/internal/cfg"
	"github.com/anphsw/ppp/internal/queue"
	"github.com/anphsw/ppp/internal/unit"
	"github.com/anphsw/ppp/internal/vj"
)

// Family discriminates Output's destination argument (spec §4.2).
type Family int

const (
	FamilyIP Family = iota
	FamilyRaw
)

// Dest is the destination-address discriminator passed to Output. For
// FamilyRaw the PPP address/control/protocol bytes are supplied directly
// by the caller, matching "extracted from the socket-address payload".
type Dest struct {
	Family      Family
	RawAddr     byte
	RawControl  byte
	RawProtocol uint16
}

// Pipeline bundles everything the transmit path needs for one unit: the
// unit itself, the CCP observer, and an optional read-only packet-filter
// tap. The line driver itself is reached indirectly through Unit.LineStart,
// which the caller wires to pull frames back out via Dequeue.
type Pipeline struct {
	Unit     *unit.Unit
	CCP      *ccp.Observer
	Tap      func(*buffer.Chain)
	Schedule func()
}

// Output is the process-context transmit entry (spec §4.2).
func (p *Pipeline) Output(dest Dest, chain *buffer.Chain) error {
	u := p.Unit
	if !u.AttachedDevice() || !u.Running() || (!u.Up() && dest.Family != FamilyRaw) {
		return unit.ErrNetworkDown
	}

	var addr, ctrl byte
	var proto uint16
	var mode unit.NPMode

	switch dest.Family {
	case FamilyIP:
		addr, ctrl, proto = cfg.AllStations, cfg.UI, cfg.ProtoIP
		mode = u.NPMode(unit.NPProtoIP)
	case FamilyRaw:
		addr, ctrl, proto = dest.RawAddr, dest.RawControl, dest.RawProtocol
		mode = unit.NPPass
	default:
		return unit.ErrFamilyNotSupported
	}

	switch mode {
	case unit.NPError:
		return unit.ErrNetworkDown
	case unit.NPDrop:
		return nil
	case unit.NPPass, unit.NPQueue:
	}

	fast := false
	if dest.Family == FamilyIP {
		if src, dst, ok := peekTCPPorts(chain.PeekFront(24)); ok {
			fast = isInteractivePort(src) || isInteractivePort(dst)
		}
	}

	chain.PrependHeaderSpace(cfg.HeaderLen)
	chain.WriteAt(0, []byte{addr, ctrl, byte(proto >> 8), byte(proto)})

	if p.Tap != nil {
		p.Tap(chain)
	}

	q := u.NormalOutput
	if fast {
		q = u.FastOutput
	}
	if !q.Push(chain) {
		u.AddOutErrors(1)
		return unit.ErrOutOfBuffers
	}

	if mode == unit.NPPass && u.LineStart != nil {
		u.LineStart(u)
	}
	return nil
}

func isInteractivePort(port uint16) bool {
	for _, p := range cfg.InteractivePorts {
		if p == port {
			return true
		}
	}
	return false
}

// peekTCPPorts reads the source/destination TCP ports from an option-less
// IPv4/TCP header prefix, returning ok=false for anything else.
func peekTCPPorts(b []byte) (src, dst uint16, ok bool) {
	if len(b) < 24 {
		return 0, 0, false
	}
	if b[0]>>4 != 4 {
		return 0, 0, false
	}
	ihl := int(b[0]&0x0F) * 4
	if b[9] != 6 || len(b) < ihl+4 {
		return 0, 0, false
	}
	return binary.BigEndian.Uint16(b[ihl : ihl+2]), binary.BigEndian.Uint16(b[ihl+2 : ihl+4]), true
}

// Dequeue is the hard-interrupt entry the line driver calls when it can
// accept a new frame (spec §4.3). It never allocates or compresses.
func (p *Pipeline) Dequeue() *buffer.Chain {
	u := p.Unit
	if c := u.TakeStaged(); c != nil {
		return c
	}
	if p.Schedule != nil {
		p.Schedule()
	}
	return nil
}

// header holds the parsed 4-byte PPP header fields.
type header struct {
	addr, ctrl byte
	proto      uint16
}

func parseHeader(c *buffer.Chain) header {
	b := c.ReadAt(0, cfg.HeaderLen)
	return header{addr: b[0], ctrl: b[1], proto: binary.BigEndian.Uint16(b[2:4])}
}

// OutPkt is the deferred soft-interrupt step that prepares the next
// staged packet (spec §4.3 steps 1-8).
func (p *Pipeline) OutPkt() {
	u := p.Unit
	if u.HasStaged() {
		return
	}

	chain := selectNext(u)
	if chain == nil {
		return
	}

	h := parseHeader(chain)

	if u.Has(unit.FlagCompTCP) && h.proto == cfg.ProtoIP {
		body := chain.BytesFrom(cfg.HeaderLen)
		if looksLikeTCP(body) {
			typ, _, encoded := u.VJTx.CompressTCP(body)
			switch typ {
			case vj.TypeCompressedTCP:
				h.proto = cfg.ProtoVJCompTCP
				chain = rebuildWithHeader(h, encoded)
			case vj.TypeUncompressedTCP:
				h.proto = cfg.ProtoVJUncompTCP
				chain = rebuildWithHeader(h, encoded)
			}
		}
	}

	if h.proto == cfg.ProtoCCP && p.CCP != nil {
		p.CCP.Observe("sending", chain.BytesFrom(cfg.HeaderLen))
	}

	if h.proto != cfg.ProtoLCP && h.proto != cfg.ProtoCCP && u.TxCompressor() != nil && u.Has(unit.FlagCompRun) {
		if out, ok := u.TxCompressor().Compress(chain.Bytes()); ok {
			chain = buffer.NewFromBytes(out, 0)
			h = parseHeader(chain)
		}
	}

	acStripped := false
	if u.Has(unit.FlagCompAC) && h.addr == cfg.AllStations && h.ctrl == cfg.UI &&
		h.proto != cfg.AllStations && h.proto != cfg.ProtoLCP {
		chain.TrimHead(2)
		acStripped = true
	}
	if u.Has(unit.FlagCompProt) && h.proto < 0x100 {
		protoOff := 2
		if acStripped {
			protoOff = 0
		}
		full := chain.Bytes()
		spliced := make([]byte, 0, len(full)-1)
		spliced = append(spliced, full[:protoOff]...)
		spliced = append(spliced, full[protoOff+1:]...)
		chain = buffer.NewFromBytes(spliced, 0)
	}

	u.AddOutPackets(1)
	u.AddOutBytes(uint64(chain.Len()))
	if u.Has(unit.FlagLogOutPkt) {
		u.DumpFrame("out", chain.Bytes())
	}
	u.StageChain(chain)
	if u.LineStart != nil {
		u.LineStart(u)
	}
}

// rebuildWithHeader builds a fresh chain consisting of the 4-byte PPP
// header followed by body, used whenever VJ compression replaces a
// packet's payload wholesale.
func rebuildWithHeader(h header, body []byte) *buffer.Chain {
	full := make([]byte, 0, cfg.HeaderLen+len(body))
	full = append(full, h.addr, h.ctrl, byte(h.proto>>8), byte(h.proto))
	full = append(full, body...)
	return buffer.NewFromBytes(full, 0)
}

func looksLikeTCP(b []byte) bool {
	if len(b) < 40 {
		return false
	}
	if b[0] != 0x45 {
		return false
	}
	return b[9] == 6 && b[32]>>4 == 5
}

// selectNext implements step 1's scan-and-filter over the fast then
// normal output queues.
func selectNext(u *unit.Unit) *buffer.Chain {
	if c := scanQueue(u, u.FastOutput); c != nil {
		return c
	}
	return scanQueue(u, u.NormalOutput)
}

func scanQueue(u *unit.Unit, q *queue.FIFO) *buffer.Chain {
	return q.ScanSelect(func(c *buffer.Chain) queue.ScanDecision {
		switch modeFor(u, protocolOf(c)) {
		case unit.NPDrop, unit.NPError:
			return queue.ScanDrop
		case unit.NPQueue:
			return queue.ScanSkip
		default: // NPPass
			return queue.ScanTake
		}
	})
}

func protocolOf(c *buffer.Chain) uint16 {
	b := c.ReadAt(2, 2)
	return binary.BigEndian.Uint16(b)
}

func modeFor(u *unit.Unit, proto uint16) unit.NPMode {
	if proto == cfg.ProtoIP {
		return u.NPMode(unit.NPProtoIP)
	}
	return unit.NPPass
}
