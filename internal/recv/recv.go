// Package recv implements the receive pipeline: the hard-interrupt PktIn
// entry (spec §4.4) and the deferred InProc step that runs generic
// decompression, VJ uncompression, and dispatch to the kernel IP input
// queue or the user-read queue. Grounded on if_ppp.c's ppppktin/
// ppp_inproc.
//
// SPEC_FULL.md's Open Question resolution: ilen (the chain's total
// length) is computed before any log statement references it, fixing
// the original's use-before-compute bug rather than preserving it.
package recv

import (
	"encoding/binary"

	"github.com/anphsw/ppp/internal/buffer"
	"github.com/anphsw/ppp/internal/ccp"
	"github.com/anphsw/ppp/internal/cfg"
	"github.com/anphsw/ppp/internal/logx"
	"github.com/anphsw/ppp/internal/unit"
	"github.com/anphsw/ppp/internal/vj"
)

// Pipeline bundles what the receive path needs for one unit: the unit
// itself, the CCP observer, an optional packet-filter tap, and the
// handoff into the kernel IP stack stand-in.
type Pipeline struct {
	Unit    *unit.Unit
	CCP     *ccp.Observer
	Tap     func(*buffer.Chain)
	IPInput func(payload []byte)
}

// PktIn is the hard-interrupt entry the line driver calls once a complete
// frame with verified FCS has been assembled (spec §4.4). Non-blocking:
// it only marks the loss flag and enqueues.
func (p *Pipeline) PktIn(chain *buffer.Chain, lost bool) {
	if lost {
		chain.MarkLost()
	}
	if !p.Unit.RawReceive.Push(chain) {
		p.Unit.AddInErrors(1)
	}
}

type header struct {
	addr, ctrl byte
	proto      uint16
}

func parseHeader(c *buffer.Chain) header {
	b := c.ReadAt(0, cfg.HeaderLen)
	return header{addr: b[0], ctrl: b[1], proto: binary.BigEndian.Uint16(b[2:4])}
}

// InProc is the deferred soft-interrupt step (spec §4.4 steps 1-8).
func (p *Pipeline) InProc(chain *buffer.Chain) {
	u := p.Unit
	ilen := chain.Len()
	u.AddInPackets(1)
	u.AddInBytes(uint64(ilen))

	h := parseHeader(chain)

	if chain.TakeLost() {
		u.SetFlagBits(unit.FlagVJReset)
	}

	if u.Has(unit.FlagLogInPkt) {
		logx.Stat(u.Index, "in pkt proto=%#x len=%d", h.proto, ilen)
		u.DumpFrame("in", chain.Bytes())
	}

	if h.proto == cfg.ProtoCompressed {
		if d := u.RxDecompressor(); d != nil && u.Has(unit.FlagDecompRun) && !u.Has(unit.FlagDCError) && !u.Has(unit.FlagDCFError) {
			out, result := d.Decompress(chain.BytesFrom(cfg.HeaderLen))
			switch result {
			case ccp.DecompOK:
				if out == nil {
					return
				}
				chain = rebuildWithHeader(h, out)
				h = parseHeader(chain)
			case ccp.DecompError:
				u.SetFlagBits(unit.FlagDCError | unit.FlagVJReset)
				deliverToUser(u, chain)
				return
			case ccp.DecompFatalError:
				u.SetFlagBits(unit.FlagDCFError | unit.FlagVJReset)
				deliverToUser(u, chain)
				return
			}
		} else if d != nil && u.Has(unit.FlagDecompRun) {
			d.Incomp(chain.BytesFrom(cfg.HeaderLen))
		}
	} else {
		if d := u.RxDecompressor(); d != nil && u.Has(unit.FlagDecompRun) {
			d.Incomp(chain.BytesFrom(cfg.HeaderLen))
		}
		// CCP packets reach the observer regardless of DECOMP_RUN: that
		// flag gates Incomp only, and a received Configure-Ack is exactly
		// what flips DECOMP_RUN on in the first place (if_ppp.c's
		// ppp_inproc calls ppp_ccp for any PPP_CCP frame unconditionally).
		if h.proto == cfg.ProtoCCP && p.CCP != nil {
			p.CCP.Observe("received", chain.BytesFrom(cfg.HeaderLen))
		}
	}

	if u.Has(unit.FlagVJReset) {
		for cid := 0; cid < 256; cid++ {
			u.VJRx.UncompressTCPCore(vj.TypeError, byte(cid), nil)
		}
		u.ClearFlagBits(unit.FlagVJReset)
	}

	switch h.proto {
	case cfg.ProtoVJCompTCP:
		if u.Has(unit.FlagRejCompTCP) {
			u.AddInErrors(1)
			return
		}
		body := chain.BytesFrom(cfg.HeaderLen)
		if len(body) < 1 {
			u.AddInErrors(1)
			return
		}
		cid := body[0]
		data := body[1:]
		rebuiltHdr, consumed, err := u.VJRx.UncompressTCPCore(vj.TypeCompressedTCP, cid, data)
		if err != nil {
			u.AddInErrors(1)
			return
		}
		chain = spliceReconstructed(h, rebuiltHdr, data[consumed:])
		h.proto = cfg.ProtoIP
	case cfg.ProtoVJUncompTCP:
		body := chain.BytesFrom(cfg.HeaderLen)
		if len(body) < 1 {
			u.AddInErrors(1)
			return
		}
		cid := body[0]
		data := body[1:]
		rebuiltHdr, consumed, err := u.VJRx.UncompressTCPCore(vj.TypeUncompressedTCP, cid, data)
		if err != nil {
			u.AddInErrors(1)
			return
		}
		chain = spliceReconstructed(h, rebuiltHdr, data[consumed:])
		h.proto = cfg.ProtoIP
	}

	chain.CopyDown()

	if p.Tap != nil {
		p.Tap(chain)
	}

	switch h.proto {
	case cfg.ProtoIP:
		if u.Up() && u.NPMode(unit.NPProtoIP) == unit.NPPass {
			chain.TrimHead(cfg.HeaderLen)
			if p.IPInput != nil {
				p.IPInput(chain.Bytes())
			}
		}
	default:
		deliverToUser(u, chain)
	}
}

func deliverToUser(u *unit.Unit, c *buffer.Chain) {
	if !u.PushUserRead(c) {
		u.AddInErrors(1)
		return
	}
	if u.LineCtlNotify != nil {
		u.LineCtlNotify(u)
	}
}

func rebuildWithHeader(h header, body []byte) *buffer.Chain {
	full := make([]byte, 0, cfg.HeaderLen+len(body))
	full = append(full, h.addr, h.ctrl, byte(h.proto>>8), byte(h.proto))
	full = append(full, body...)
	return buffer.NewFromBytes(full, 0)
}

// spliceReconstructed rebuilds the PPP header (protocol now IP) followed
// by the VJ-reconstructed IP/TCP header and the remaining payload (spec
// §4.4 step 5: "synthesize a new segment holding the PPP header plus the
// reconstructed IP/TCP header, splice the remaining payload after it").
func spliceReconstructed(h header, reconstructedHdr, payload []byte) *buffer.Chain {
	full := make([]byte, 0, cfg.HeaderLen+len(reconstructedHdr)+len(payload))
	full = append(full, h.addr, h.ctrl, byte(cfg.ProtoIP>>8), byte(cfg.ProtoIP))
	full = append(full, reconstructedHdr...)
	full = append(full, payload...)
	return buffer.NewFromBytes(full, 0)
}
