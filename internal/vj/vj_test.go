package vj

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildHeader constructs a minimal, option-less IPv4/TCP header (40 bytes,
// no payload) with the given sequence/ack numbers, as CompressTCP expects.
func buildHeader(seq, ack uint32, window uint16) []byte {
	hdr := make([]byte, ipHeaderLen+tcpHeaderLen)
	hdr[0] = 0x45 // version 4, IHL 5 (20 bytes)
	hdr[9] = 6    // protocol = TCP
	binary.BigEndian.PutUint16(hdr[2:4], ipHeaderLen+tcpHeaderLen)
	binary.BigEndian.PutUint16(hdr[4:6], 100) // IP id
	copy(hdr[12:16], []byte{10, 0, 0, 1})
	copy(hdr[16:20], []byte{10, 0, 0, 2})

	tcp := hdr[ipHeaderLen:]
	binary.BigEndian.PutUint16(tcp[0:2], 4000)
	binary.BigEndian.PutUint16(tcp[2:4], 23)
	binary.BigEndian.PutUint32(tcp[4:8], seq)
	binary.BigEndian.PutUint32(tcp[8:12], ack)
	tcp[12] = 5 << 4
	tcp[13] = 0x10 // ACK only
	binary.BigEndian.PutUint16(tcp[14:16], window)
	return hdr
}

func TestCompressTCPFirstPacketIsUncompressed(t *testing.T) {
	s := Init()
	typ, cid, out := s.CompressTCP(buildHeader(1000, 1, 4096))
	assert.Equal(t, TypeUncompressedTCP, typ)
	assert.Equal(t, out[0], cid)
	assert.Equal(t, 1+ipHeaderLen+tcpHeaderLen, len(out))
}

func TestCompressUncompressRoundTrip(t *testing.T) {
	tx := Init()
	rx := Init()

	// First packet establishes the dictionary entry on both sides.
	typ, cid, out := tx.CompressTCP(buildHeader(1000, 1, 4096))
	require.Equal(t, TypeUncompressedTCP, typ)
	rebuilt, consumed, err := rx.UncompressTCPCore(typ, cid, out[1:])
	require.NoError(t, err)
	assert.Equal(t, buildHeader(1000, 1, 4096), rebuilt)
	assert.Equal(t, len(out)-1, consumed)

	// Second packet on the same flow should compress against the dictionary.
	next := buildHeader(1100, 1, 4096)
	typ, cid, out = tx.CompressTCP(next)
	require.Equal(t, TypeCompressedTCP, typ)

	rebuilt, _, err = rx.UncompressTCPCore(typ, cid, out[1:])
	require.NoError(t, err)
	assert.Equal(t, next, rebuilt, "reconstructed header must match the original")
}

func TestUncompressUnknownCIDErrors(t *testing.T) {
	rx := Init()
	_, _, err := rx.UncompressTCPCore(TypeCompressedTCP, 250, []byte{0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrUnknownCID)
}

func TestUncompressTypeErrorFlushesDictionary(t *testing.T) {
	tx := Init()
	rx := Init()
	typ, cid, out := tx.CompressTCP(buildHeader(1, 1, 1))
	_, _, err := rx.UncompressTCPCore(typ, cid, out[1:])
	require.NoError(t, err)

	_, _, err = rx.UncompressTCPCore(TypeError, cid, nil)
	require.NoError(t, err)

	// With the dictionary entry cleared, a compressed packet for the same
	// CID must fail rather than decode against stale state.
	_, _, err = rx.UncompressTCPCore(TypeCompressedTCP, cid, []byte{0, 0, 0, 0, 0})
	assert.Error(t, err)
}

func TestSetMaxCIDClamps(t *testing.T) {
	s := Init()
	s.SetMaxCID(-5)
	assert.Equal(t, 0, s.maxCID)
	s.SetMaxCID(1000)
	assert.Equal(t, maxStatesCap-1, s.maxCID)
}
