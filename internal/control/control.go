// Package control implements the request/response control surface spec.md
// §6 names: the user-space daemon's interface for setting flags,
// installing compressors, setting per-protocol modes, reading statistics,
// and transferring ownership of a unit, plus the network-interface ioctl
// equivalents SPEC_FULL.md's supplemented-features section adds back from
// original_source/ultrix/if_ppp.c's pppsioctl. Grounded on if_ppp.c's
// pppioctl/pppsioctl dispatch shape, re-expressed as a plain Go method
// set any transport (in-process test, gRPC) can drive.
package control

import (
	"github.com/anphsw/ppp/internal/ccp"
	"github.com/anphsw/ppp/internal/cfg"
	"github.com/anphsw/ppp/internal/unit"
	"github.com/anphsw/ppp/internal/vj"
)

// Server implements every control operation spec.md §6 names, over a
// fixed unit.Pool. Each method corresponds 1:1 to a named control
// operation; privileged ones take a privileged bool supplied by the
// transport layer (the gRPC adapter in rpc.go passes the request's own
// Privileged field through).
type Server struct {
	Pool *Pool
}

// Pool is an alias for unit.Pool, so tests can construct a Server
// directly over a *unit.Pool without an import cycle.
type Pool = unit.Pool

// New wraps pool for control-surface use.
func New(pool *unit.Pool) *Server { return &Server{Pool: pool} }

func (s *Server) unit(index int) (*unit.Unit, error) {
	u := s.Pool.Get(index)
	if u == nil {
		return nil, unit.ErrInvalid
	}
	return u, nil
}

// GetReadableCount returns the number of bytes currently on the unit's
// user-read queue.
func (s *Server) GetReadableCount(unitIndex int) (int, error) {
	u, err := s.unit(unitIndex)
	if err != nil {
		return 0, err
	}
	return u.ReadableBytes(), nil
}

// GetUnitIndex returns index, trivially — present for API symmetry with
// the control operation list (spec §6: GET-UNIT-INDEX).
func (s *Server) GetUnitIndex(unitIndex int) (int, error) {
	u, err := s.unit(unitIndex)
	if err != nil {
		return 0, err
	}
	return u.Index, nil
}

// GetFlags returns the unit's full flag word.
func (s *Server) GetFlags(unitIndex int) (unit.Flags, error) {
	u, err := s.unit(unitIndex)
	if err != nil {
		return 0, err
	}
	return u.Flags(), nil
}

// SetFlags applies a SETFLAGS control call (spec §6: writable subset
// only, privileged). The unit's own CCPClosed is passed to
// unit.SetWritableFlags as its CCP-closed hook.
func (s *Server) SetFlags(unitIndex int, bits unit.Flags, privileged bool) error {
	if !privileged {
		return unit.ErrNotPermitted
	}
	u, err := s.unit(unitIndex)
	if err != nil {
		return err
	}
	u.SetWritableFlags(bits, u.CCPClosed)
	return nil
}

// GetMRU returns the unit's current maximum receive unit.
func (s *Server) GetMRU(unitIndex int) (int, error) {
	u, err := s.unit(unitIndex)
	if err != nil {
		return 0, err
	}
	return u.MRU(), nil
}

// SetMRU clamps and stores the requested MRU (spec §6, privileged).
func (s *Server) SetMRU(unitIndex, mru int, privileged bool) error {
	if !privileged {
		return unit.ErrNotPermitted
	}
	u, err := s.unit(unitIndex)
	if err != nil {
		return err
	}
	u.SetMRU(mru)
	return nil
}

// SetMaxCID passes n through to the unit's VJ state (spec §6: SET-MAX-CID,
// privileged). Applies to both the transmit and receive VJ dictionaries,
// matching if_ppp.c's single sc_comp.maxcid field governing both
// directions.
func (s *Server) SetMaxCID(unitIndex, n int, privileged bool) error {
	if !privileged {
		return unit.ErrNotPermitted
	}
	u, err := s.unit(unitIndex)
	if err != nil {
		return err
	}
	if u.VJTx != nil {
		u.VJTx.SetMaxCID(n)
	}
	if u.VJRx != nil {
		u.VJRx.SetMaxCID(n)
	}
	return nil
}

// TransferUnit records callerPID as the unit's next owner (spec §6:
// TRANSFER-UNIT, privileged).
func (s *Server) TransferUnit(unitIndex, callerPID int, privileged bool) error {
	if !privileged {
		return unit.ErrNotPermitted
	}
	u, err := s.unit(unitIndex)
	if err != nil {
		return err
	}
	u.RequestTransfer(callerPID)
	return nil
}

// Direction selects which side SetCompressor installs.
type Direction int

const (
	DirTransmit Direction = iota
	DirReceive
)

// SetCompressor installs a compressor looked up by protocol id (spec §6:
// SET-COMPRESSOR). options[0] is the compressor id, options[1] is the
// option length and must be >= 2; failures are ErrInvalid (unknown id,
// short length) or ErrOutOfBuffers (factory returned nil, standing in for
// "allocator failed").
func (s *Server) SetCompressor(unitIndex int, dir Direction, options []byte) error {
	u, err := s.unit(unitIndex)
	if err != nil {
		return err
	}
	if len(options) < 2 || options[1] < 2 {
		return unit.ErrInvalid
	}
	id := options[0]
	desc, ok := ccp.Lookup(id)
	if !ok {
		return unit.ErrInvalid
	}
	switch dir {
	case DirTransmit:
		if desc.NewCompressor == nil {
			return unit.ErrOutOfBuffers
		}
		c := desc.NewCompressor()
		if c == nil {
			return unit.ErrOutOfBuffers
		}
		u.SetTxCompressor(c)
	case DirReceive:
		if desc.NewDecompressor == nil {
			return unit.ErrOutOfBuffers
		}
		d := desc.NewDecompressor()
		if d == nil {
			return unit.ErrOutOfBuffers
		}
		u.SetRxDecompressor(d)
	default:
		return unit.ErrInvalid
	}
	return nil
}

// Stats bundles everything GET-PPP-STATS returns: interface counters plus
// both directions' VJ counters.
type Stats struct {
	unit.Counters
	VJTx, VJRx vj.Stats
}

// GetPPPStats returns the unit's interface counters plus VJ counters
// (spec §6: GET-PPP-STATS).
func (s *Server) GetPPPStats(unitIndex int) (Stats, error) {
	u, err := s.unit(unitIndex)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Counters: u.Counters()}
	if u.VJTx != nil {
		st.VJTx = u.VJTx.Stats()
	}
	if u.VJRx != nil {
		st.VJRx = u.VJRx.Stats()
	}
	return st, nil
}

// CompStats bundles GET-COMP-STATS's transmit/receive compressor
// statistics.
type CompStats struct {
	Tx, Rx ccp.CompressorStat
}

// GetCompStats returns the installed compressors' statistics (spec §6:
// GET-COMP-STATS). A side with no compressor installed reports a zero
// CompressorStat.
func (s *Server) GetCompStats(unitIndex int) (CompStats, error) {
	u, err := s.unit(unitIndex)
	if err != nil {
		return CompStats{}, err
	}
	var cs CompStats
	if tx := u.TxCompressor(); tx != nil {
		cs.Tx = tx.Stat()
	}
	if rx := u.RxDecompressor(); rx != nil {
		cs.Rx = rx.Stat()
	}
	return cs, nil
}

// GetNPMode returns the gate for the given protocol (spec §6:
// GET-NP-MODE). Only IP is currently recognized; anything else is
// ErrInvalid.
func (s *Server) GetNPMode(unitIndex int, proto unit.NPProto) (unit.NPMode, error) {
	u, err := s.unit(unitIndex)
	if err != nil {
		return 0, err
	}
	if proto != unit.NPProtoIP {
		return 0, unit.ErrInvalid
	}
	return u.NPMode(proto), nil
}

// SetNPMode records the gate for proto, kicking the start callback if the
// new mode isn't QUEUE (spec §6: SET-NP-MODE; "no-op if unchanged" is
// handled by unit.SetNPMode, "kicks the start callback" handled here).
func (s *Server) SetNPMode(unitIndex int, proto unit.NPProto, mode unit.NPMode, start func(*unit.Unit)) error {
	u, err := s.unit(unitIndex)
	if err != nil {
		return err
	}
	if proto != unit.NPProtoIP {
		return unit.ErrInvalid
	}
	changed := u.SetNPMode(proto, mode)
	if changed && mode != unit.NPQueue && start != nil {
		start(u)
	}
	return nil
}

// --- Network-interface ioctl equivalents (SPEC_FULL.md supplemented
// features, grounded on pppsioctl's SIOCSIFMTU/SIOCSIFADDR/
// SIOCSIFDSTADDR/SIOCSIFFLAGS cases). Only the IP family is accepted,
// matching spec.md §4.2's Output precondition. ---

// GetMTU returns the unit's MRU, which doubles as its MTU for this
// point-to-point interface (spec.md uses one size for both directions).
func (s *Server) GetMTU(unitIndex int) (int, error) { return s.GetMRU(unitIndex) }

// SetMTU clamps and stores the requested MTU (SIOCSIFMTU equivalent).
func (s *Server) SetMTU(unitIndex, mtu int, privileged bool) error {
	return s.SetMRU(unitIndex, mtu, privileged)
}

// SetAddress and SetDestAddress are no-ops beyond validating the family
// is IP: the core doesn't store interface addressing itself (that lives
// in internal/netstack's protocol-address table); they exist so the
// control surface can reject non-IP families the way pppsioctl's
// SIOCSIFADDR/SIOCSIFDSTADDR cases do.
func (s *Server) SetAddress(unitIndex int, family string) error {
	if family != "ip" {
		return unit.ErrFamilyNotSupported
	}
	return nil
}

func (s *Server) SetDestAddress(unitIndex int, family string) error {
	if family != "ip" {
		return unit.ErrFamilyNotSupported
	}
	return nil
}

// SetIfFlags applies SIOCSIFFLAGS: forcing the interface administratively
// up or down, with the spec's "if not RUNNING, force UP off" rule.
func (s *Server) SetIfFlags(unitIndex int, up bool) error {
	u, err := s.unit(unitIndex)
	if err != nil {
		return err
	}
	if !u.Running() {
		up = false
	}
	u.SetUp(up)
	return nil
}

// HeaderLen re-exports cfg.HeaderLen for transports that need the PPP
// header size without importing internal/cfg directly.
const HeaderLen = cfg.HeaderLen
