package xmit

import (
	"encoding/binary"
	"testing"

	"github.com/anphsw/ppp/internal/buffer"
	"github.com/anphsw/ppp/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ipTCPPacket builds a minimal option-less IPv4/TCP payload (no PPP
// header) with the given ports, as Output expects for a FamilyIP send.
func ipTCPPacket(srcPort, dstPort uint16) *buffer.Chain {
	hdr := make([]byte, 40)
	hdr[0] = 0x45
	hdr[9] = 6 // TCP
	tcp := hdr[20:]
	binary.BigEndian.PutUint16(tcp[0:2], srcPort)
	binary.BigEndian.PutUint16(tcp[2:4], dstPort)
	return buffer.NewFromBytes(hdr, 4)
}

func newTestUnit(t *testing.T) *unit.Unit {
	t.Helper()
	p := unit.NewPool()
	u, err := p.Allocate(1)
	require.NoError(t, err)
	u.SetUp(true)
	u.SetNPMode(unit.NPProtoIP, unit.NPPass)
	return u
}

// TestInteractiveClassification mirrors spec.md §8 scenario 1: a TCP/IP
// packet destined for telnet (port 23) must land on the fast-output queue,
// not the normal-output queue.
func TestInteractiveClassification(t *testing.T) {
	u := newTestUnit(t)
	p := &Pipeline{Unit: u}

	err := p.Output(Dest{Family: FamilyIP}, ipTCPPacket(40000, 23))
	require.NoError(t, err)
	assert.Equal(t, 1, u.FastOutput.Len())
	assert.Equal(t, 0, u.NormalOutput.Len())
}

// TestNonInteractiveClassification mirrors spec.md §8 scenario 2: a
// TCP/IP packet to port 80 must land on the normal-output queue.
func TestNonInteractiveClassification(t *testing.T) {
	u := newTestUnit(t)
	p := &Pipeline{Unit: u}

	err := p.Output(Dest{Family: FamilyIP}, ipTCPPacket(40000, 80))
	require.NoError(t, err)
	assert.Equal(t, 0, u.FastOutput.Len())
	assert.Equal(t, 1, u.NormalOutput.Len())
}

// TestQueueGating mirrors spec.md §8 scenario 3: with IP mode QUEUE, OutPkt
// must not stage anything; after SET-NP-MODE(IP, PASS) it must stage the
// packet and invoke the start callback exactly once.
func TestQueueGating(t *testing.T) {
	u := newTestUnit(t)
	u.SetNPMode(unit.NPProtoIP, unit.NPQueue)
	starts := 0
	u.LineStart = func(*unit.Unit) { starts++ }
	p := &Pipeline{Unit: u}

	err := p.Output(Dest{Family: FamilyIP}, ipTCPPacket(1, 80))
	require.NoError(t, err)
	assert.Equal(t, 0, starts, "QUEUE mode must not invoke the start callback")

	p.OutPkt()
	assert.False(t, u.HasStaged(), "out_pkt must not stage a QUEUE-moded packet")

	u.SetNPMode(unit.NPProtoIP, unit.NPPass)
	p.OutPkt()
	assert.True(t, u.HasStaged())
	assert.Equal(t, 1, starts, "start callback must fire exactly once once the mode becomes PASS")
}

// TestFastQueueAlwaysPrecedesNormalQueue mirrors spec.md §8's ordering
// guarantee: fast-queue packets are always delivered before any
// concurrently-enqueued normal-queue packet.
func TestFastQueueAlwaysPrecedesNormalQueue(t *testing.T) {
	u := newTestUnit(t)
	p := &Pipeline{Unit: u}

	require.NoError(t, p.Output(Dest{Family: FamilyIP}, ipTCPPacket(1, 80)))   // normal
	require.NoError(t, p.Output(Dest{Family: FamilyIP}, ipTCPPacket(1, 23)))   // fast

	p.OutPkt()
	require.True(t, u.HasStaged())
	staged := u.TakeStaged()
	assert.Equal(t, 1, u.NormalOutput.Len(), "normal-queue entry must still be waiting")
	// Staged chain should be the fast one; distinguish by protocol byte
	// remaining IP (both do), so check the normal queue still holds its
	// one entry and the fast queue drained to zero.
	assert.Equal(t, 0, u.FastOutput.Len())
	assert.NotNil(t, staged)
}

func TestOutputRejectsWhenNetworkDown(t *testing.T) {
	u := newTestUnit(t)
	u.SetNPMode(unit.NPProtoIP, unit.NPError)
	p := &Pipeline{Unit: u}

	err := p.Output(Dest{Family: FamilyIP}, ipTCPPacket(1, 80))
	assert.ErrorIs(t, err, unit.ErrNetworkDown)
}

func TestOutputDropModeFreesAndSucceeds(t *testing.T) {
	u := newTestUnit(t)
	u.SetNPMode(unit.NPProtoIP, unit.NPDrop)
	p := &Pipeline{Unit: u}

	err := p.Output(Dest{Family: FamilyIP}, ipTCPPacket(1, 80))
	require.NoError(t, err)
	assert.Equal(t, 0, u.NormalOutput.Len())
	assert.Equal(t, 0, u.FastOutput.Len())
}
