// Package vj implements Van Jacobson TCP/IP header compression (spec
// §4.3/§4.4, §9 "Pluggable compressors"): initialize, set-max-cid,
// compress-tcp, and uncompress-tcp-core, each keeping a small
// per-connection dictionary indexed by a one-byte connection id (CID).
//
// This is the spec's one external, out-of-scope collaborator given a
// concrete body because nothing in the retrieved example pack implements
// RFC 1144 header compression; it is grounded on the algorithm's own
// design (slcompress.c, as referenced from original_source/ultrix/if_ppp.c's
// sl_compress_tcp/sl_uncompress_tcp calls) rather than on any pack file.
// To keep the implementation self-contained it assumes IPv4/TCP headers
// without options (20+20 bytes), which covers every packet shape the
// core's own transmit/receive pipeline constructs or accepts; this
// simplification is recorded in DESIGN.md.
package vj

import (
	"encoding/binary"
	"errors"
)

// Packet classification returned by Compress and expected by Uncompress.
type Type int

const (
	// TypeError signals a reset/flush request (spec §4.4 step 5: VJ_RESET
	// drives "invoke VJ-uncompress with type=ERROR to flush state").
	TypeError Type = iota
	TypeUncompressedTCP
	TypeCompressedTCP
)

const (
	ipHeaderLen  = 20
	tcpHeaderLen = 20
	maxStatesCap = 256 // CID is one byte
)

// Change-mask bits describing which compressed-header fields are present
// in the variable-length encoding, mirroring slcompress.c's TCP_*_BIT.
const (
	bitFlags = 1 << iota // low 4 bits of TCP flags (PSH) changed/present
	bitWindow
	bitAck
	bitSeq
	bitID
	bitURG
)

var (
	// ErrUnknownCID is returned by UncompressTCPCore when the CID has no
	// established dictionary entry (spec: "the connection id").
	ErrUnknownCID = errors.New("vj: unknown connection id")
	// ErrShort is returned when a compressed header's varints run past
	// the supplied buffer.
	ErrShort = errors.New("vj: truncated compressed header")
)

// conn is the per-CID dictionary entry: the last IP/TCP header seen on
// that connection, used as the basis for delta-encoding the next one.
type conn struct {
	valid bool
	cid   byte

	ipTOS    byte
	ipTTL    byte
	ipID     uint16
	ipSrc    [4]byte
	ipDst    [4]byte
	ipProto  byte
	ipChksum uint16

	tcpSrcPort uint16
	tcpDstPort uint16
	tcpSeq     uint32
	tcpAck     uint32
	tcpWindow  uint16
	tcpFlags   byte
	tcpUrgent  uint16
	tcpChksum  uint16
}

// Stats mirrors the VJ counters exposed through GET-PPP-STATS (spec §6).
type Stats struct {
	Packets      uint64 // total compress-tcp calls
	Compressed   uint64 // produced TYPE_COMPRESSED_TCP
	Uncompressed uint64 // produced TYPE_UNCOMPRESSED_TCP
	SearchMiss   uint64 // compress-tcp CID lookup missed the last-used slot
	Errors       uint64 // uncompress-tcp-core failures
}

// State is one direction's VJ dictionary (either the transmit side's
// compressor or the receive side's decompressor). A unit owns one of
// each (spec §3: "transmit compressor handle + state" / "receive
// decompressor handle + state" — VJ is layered underneath those for the
// IP protocol specifically).
type State struct {
	conns    []conn
	lastUsed int
	maxCID   int
	stats    Stats
}

// Init allocates a fresh VJ state with the default number of connection
// slots (spec: "initialize").
func Init() *State {
	s := &State{conns: make([]conn, 16), maxCID: 15}
	return s
}

// SetMaxCID bounds the connection id space to [0, n] (spec: "set-max-cid",
// driven by the control surface's SET-MAX-CID operation).
func (s *State) SetMaxCID(n int) {
	if n < 0 {
		n = 0
	}
	if n >= maxStatesCap {
		n = maxStatesCap - 1
	}
	s.maxCID = n
	if len(s.conns) <= n {
		grown := make([]conn, n+1)
		copy(grown, s.conns)
		s.conns = grown
	} else {
		s.conns = s.conns[:n+1]
		if s.lastUsed > n {
			s.lastUsed = 0
		}
	}
}

// Stats returns a snapshot of this state's counters.
func (s *State) Stats() Stats { return s.stats }

// findConn locates the dictionary entry matching the 4-tuple in hdr,
// preferring the last-used slot first as slcompress.c does, and falling
// back to a linear scan (recording a search miss) or allocating a free
// slot.
func (s *State) findConn(c conn) (*conn, bool) {
	if s.lastUsed < len(s.conns) && s.conns[s.lastUsed].valid && sameFlow(s.conns[s.lastUsed], c) {
		return &s.conns[s.lastUsed], true
	}
	s.stats.SearchMiss++
	for i := range s.conns {
		if s.conns[i].valid && sameFlow(s.conns[i], c) {
			s.lastUsed = i
			return &s.conns[i], true
		}
	}
	for i := range s.conns {
		if !s.conns[i].valid {
			s.conns[i].cid = byte(i)
			s.lastUsed = i
			return &s.conns[i], false
		}
	}
	// No free slot: evict the last-used one, matching slcompress's
	// behavior of always making forward progress rather than failing.
	s.conns[s.lastUsed] = conn{cid: byte(s.lastUsed)}
	return &s.conns[s.lastUsed], false
}

func sameFlow(a, b conn) bool {
	return a.ipSrc == b.ipSrc && a.ipDst == b.ipDst && a.ipProto == b.ipProto &&
		a.tcpSrcPort == b.tcpSrcPort && a.tcpDstPort == b.tcpDstPort
}

func parseIPTCP(hdr []byte) (conn, []byte, bool) {
	if len(hdr) < ipHeaderLen+tcpHeaderLen {
		return conn{}, nil, false
	}
	ihl := int(hdr[0]&0x0F) * 4
	if ihl != ipHeaderLen || hdr[9] != 6 { // protocol 6 = TCP
		return conn{}, nil, false
	}
	var c conn
	c.ipTOS = hdr[1]
	c.ipID = binary.BigEndian.Uint16(hdr[4:6])
	c.ipTTL = hdr[8]
	c.ipProto = hdr[9]
	c.ipChksum = binary.BigEndian.Uint16(hdr[10:12])
	copy(c.ipSrc[:], hdr[12:16])
	copy(c.ipDst[:], hdr[16:20])

	tcp := hdr[ipHeaderLen:]
	c.tcpSrcPort = binary.BigEndian.Uint16(tcp[0:2])
	c.tcpDstPort = binary.BigEndian.Uint16(tcp[2:4])
	c.tcpSeq = binary.BigEndian.Uint32(tcp[4:8])
	c.tcpAck = binary.BigEndian.Uint32(tcp[8:12])
	c.tcpFlags = tcp[13]
	c.tcpWindow = binary.BigEndian.Uint16(tcp[14:16])
	c.tcpChksum = binary.BigEndian.Uint16(tcp[16:18])
	c.tcpUrgent = binary.BigEndian.Uint16(tcp[18:20])
	return c, hdr[ipHeaderLen+tcpHeaderLen:], true
}

func putUvarint16(buf []byte, v uint16) []byte {
	if v != 0 && v < 256 {
		return append(buf, byte(v))
	}
	return append(buf, 0, byte(v>>8), byte(v))
}

func putUvarint32(buf []byte, v uint32) []byte {
	if v < 65536 {
		return putUvarint16(buf, uint16(v))
	}
	return append(buf, 0, 0, 0, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// CompressTCP attempts to compress the IP/TCP header at the front of hdr
// (which must be exactly one full, option-less IP+TCP header) against
// the dictionary entry for its flow. It returns the packet Type, the CID
// assigned to the flow, and the encoded bytes to use in place of the
// header (for TypeUncompressedTCP this is the original header with only
// the IP id's delta-friendliness recorded; for TypeCompressedTCP it is
// the changemask-prefixed delta encoding).
func (s *State) CompressTCP(hdr []byte) (Type, byte, []byte) {
	s.stats.Packets++
	cur, rest, ok := parseIPTCP(hdr)
	if !ok {
		return TypeUncompressedTCP, 0, hdr
	}
	// non-final segments or non-ACK/PSH-only flags fall back to
	// uncompressed so the receiver always has a baseline to diff against.
	entry, existed := s.findConn(cur)
	prev := *entry
	cid := entry.cid
	*entry = cur
	entry.cid = cid
	entry.valid = true

	if !existed || cur.tcpFlags&0x07 != 0 { // SYN|RST|FIN forces uncompressed
		s.stats.Uncompressed++
		out := append([]byte{cid}, hdr...)
		return TypeUncompressedTCP, cid, out
	}

	var mask byte
	// Checksums are effectively random per packet and carried verbatim
	// rather than delta-encoded, matching slcompress's own treatment of
	// the TCP checksum field.
	deltas := []byte{byte(cur.ipChksum >> 8), byte(cur.ipChksum), byte(cur.tcpChksum >> 8), byte(cur.tcpChksum)}
	if cur.ipID != prev.ipID+1 {
		mask |= bitID
		deltas = putUvarint16(deltas, cur.ipID)
	}
	if cur.tcpFlags&0x08 != 0 { // PSH
		mask |= bitFlags
	}
	if cur.tcpUrgent != prev.tcpUrgent {
		mask |= bitURG
		deltas = putUvarint16(deltas, cur.tcpUrgent)
	}
	if cur.tcpWindow != prev.tcpWindow {
		mask |= bitWindow
		deltas = putUvarint16(deltas, cur.tcpWindow)
	}
	if cur.tcpAck != prev.tcpAck {
		mask |= bitAck
		deltas = putUvarint32(deltas, cur.tcpAck-prev.tcpAck)
	}
	if cur.tcpSeq != prev.tcpSeq {
		mask |= bitSeq
		deltas = putUvarint32(deltas, cur.tcpSeq-prev.tcpSeq)
	}

	out := make([]byte, 0, 2+len(deltas)+2+len(rest))
	out = append(out, cid, mask)
	out = append(out, deltas...)
	dataLen := uint16(len(rest))
	out = append(out, byte(dataLen>>8), byte(dataLen))
	out = append(out, rest...)
	s.stats.Compressed++
	return TypeCompressedTCP, cid, out
}

func takeUvarint16(buf []byte) (uint16, []byte, bool) {
	if len(buf) < 1 {
		return 0, nil, false
	}
	if buf[0] != 0 {
		return uint16(buf[0]), buf[1:], true
	}
	if len(buf) < 3 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint16(buf[1:3]), buf[3:], true
}

func takeUvarint32(buf []byte) (uint32, []byte, bool) {
	v16, rest, ok := takeUvarint16(buf)
	if !ok {
		return 0, nil, false
	}
	if len(buf) > 0 && buf[0] == 0 && v16 == 0 {
		if len(rest) < 4 {
			return 0, nil, false
		}
		return binary.BigEndian.Uint32(rest[0:4]), rest[4:], true
	}
	return uint32(v16), rest, true
}

// UncompressTCPCore is the receive-side counterpart to CompressTCP.
// typ selects the decoding path: TypeError flushes the named connection's
// dictionary entry (spec §4.4: VJ_RESET forces this before the next
// VJC_COMP frame), TypeUncompressedTCP re-synchronizes the dictionary
// from a full header carrying a leading CID byte, and TypeCompressedTCP
// reconstructs a full header from a changemask-encoded delta.
// It returns the reconstructed IP+TCP header (option-less, ipHeaderLen+
// tcpHeaderLen bytes) and the number of input bytes consumed.
func (s *State) UncompressTCPCore(typ Type, cid byte, data []byte) ([]byte, int, error) {
	if typ == TypeError {
		if int(cid) < len(s.conns) {
			s.conns[cid] = conn{}
		}
		return nil, 0, nil
	}
	if int(cid) >= len(s.conns) {
		s.stats.Errors++
		return nil, 0, ErrUnknownCID
	}

	if typ == TypeUncompressedTCP {
		if len(data) < ipHeaderLen+tcpHeaderLen {
			s.stats.Errors++
			return nil, 0, ErrShort
		}
		hdr := data[:ipHeaderLen+tcpHeaderLen]
		c, _, ok := parseIPTCP(hdr)
		if !ok {
			s.stats.Errors++
			return nil, 0, ErrShort
		}
		c.cid = cid
		c.valid = true
		s.conns[cid] = c
		out := make([]byte, len(hdr))
		copy(out, hdr)
		return out, len(hdr), nil
	}

	entry := &s.conns[cid]
	if !entry.valid {
		s.stats.Errors++
		return nil, 0, ErrUnknownCID
	}
	if len(data) < 1 {
		s.stats.Errors++
		return nil, 0, ErrShort
	}
	mask := data[0]
	rest := data[1:]
	c := *entry

	if len(rest) < 4 {
		s.stats.Errors++
		return nil, 0, ErrShort
	}
	c.ipChksum = binary.BigEndian.Uint16(rest[0:2])
	c.tcpChksum = binary.BigEndian.Uint16(rest[2:4])
	rest = rest[4:]

	if mask&bitID != 0 {
		v, r, ok := takeUvarint16(rest)
		if !ok {
			s.stats.Errors++
			return nil, 0, ErrShort
		}
		c.ipID = v
		rest = r
	} else {
		c.ipID++
	}
	if mask&bitURG != 0 {
		v, r, ok := takeUvarint16(rest)
		if !ok {
			s.stats.Errors++
			return nil, 0, ErrShort
		}
		c.tcpUrgent = v
		rest = r
	}
	if mask&bitWindow != 0 {
		v, r, ok := takeUvarint16(rest)
		if !ok {
			s.stats.Errors++
			return nil, 0, ErrShort
		}
		c.tcpWindow = v
		rest = r
	}
	if mask&bitAck != 0 {
		v, r, ok := takeUvarint32(rest)
		if !ok {
			s.stats.Errors++
			return nil, 0, ErrShort
		}
		c.tcpAck += v
		rest = r
	}
	if mask&bitSeq != 0 {
		v, r, ok := takeUvarint32(rest)
		if !ok {
			s.stats.Errors++
			return nil, 0, ErrShort
		}
		c.tcpSeq += v
		rest = r
	}
	if mask&bitFlags != 0 {
		c.tcpFlags |= 0x08
	} else {
		c.tcpFlags &^= 0x08
	}
	if len(rest) < 2 {
		s.stats.Errors++
		return nil, 0, ErrShort
	}
	dataLen := int(binary.BigEndian.Uint16(rest[0:2]))
	rest = rest[2:]
	consumed := len(data) - len(rest)

	*entry = c
	hdr := encodeIPTCP(c, dataLen)
	return hdr, consumed, nil
}

func encodeIPTCP(c conn, dataLen int) []byte {
	hdr := make([]byte, ipHeaderLen+tcpHeaderLen)
	totalLen := ipHeaderLen + tcpHeaderLen + dataLen
	hdr[0] = 0x45
	hdr[1] = c.ipTOS
	binary.BigEndian.PutUint16(hdr[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(hdr[4:6], c.ipID)
	hdr[8] = c.ipTTL
	hdr[9] = c.ipProto
	binary.BigEndian.PutUint16(hdr[10:12], c.ipChksum)
	copy(hdr[12:16], c.ipSrc[:])
	copy(hdr[16:20], c.ipDst[:])

	tcp := hdr[ipHeaderLen:]
	binary.BigEndian.PutUint16(tcp[0:2], c.tcpSrcPort)
	binary.BigEndian.PutUint16(tcp[2:4], c.tcpDstPort)
	binary.BigEndian.PutUint32(tcp[4:8], c.tcpSeq)
	binary.BigEndian.PutUint32(tcp[8:12], c.tcpAck)
	tcp[12] = 5 << 4
	tcp[13] = c.tcpFlags | 0x10 // ACK always set on a compressed stream
	binary.BigEndian.PutUint16(tcp[14:16], c.tcpWindow)
	binary.BigEndian.PutUint16(tcp[16:18], c.tcpChksum)
	binary.BigEndian.PutUint16(tcp[18:20], c.tcpUrgent)
	return hdr
}
