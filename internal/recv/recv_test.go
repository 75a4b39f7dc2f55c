package recv

import (
	"encoding/binary"
	"testing"

	"github.com/anphsw/ppp/internal/buffer"
	"github.com/anphsw/ppp/internal/ccp"
	"github.com/anphsw/ppp/internal/cfg"
	"github.com/anphsw/ppp/internal/unit"
	"github.com/anphsw/ppp/internal/xmit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUnit(t *testing.T) *unit.Unit {
	t.Helper()
	p := unit.NewPool()
	u, err := p.Allocate(1)
	require.NoError(t, err)
	u.SetUp(true)
	u.SetNPMode(unit.NPProtoIP, unit.NPPass)
	return u
}

func pppFrame(proto uint16, body []byte) *buffer.Chain {
	full := make([]byte, 0, cfg.HeaderLen+len(body))
	full = append(full, cfg.AllStations, cfg.UI, byte(proto>>8), byte(proto))
	full = append(full, body...)
	return buffer.NewFromBytes(full, 0)
}

// erroringDecompressor always rejects with a configurable DecompressResult.
type erroringDecompressor struct{ result ccp.DecompressResult }

func (d *erroringDecompressor) Init([]byte) error  { return nil }
func (d *erroringDecompressor) Free()              {}
func (d *erroringDecompressor) Reset()             {}
func (d *erroringDecompressor) Stat() ccp.CompressorStat { return ccp.CompressorStat{} }
func (d *erroringDecompressor) Incomp([]byte)      {}
func (d *erroringDecompressor) Decompress([]byte) ([]byte, ccp.DecompressResult) {
	return nil, d.result
}

// TestDecompressionErrorDeliversCompressedFrameToUserRead mirrors spec.md
// §8 scenario 5: with DECOMP_RUN set, a PPP-COMP frame the decompressor
// rejects with DECOMP_ERROR must land on the user-read queue, set
// DC_ERROR and VJ_RESET, and must not touch in-errors.
func TestDecompressionErrorDeliversCompressedFrameToUserRead(t *testing.T) {
	u := newTestUnit(t)
	u.SetRxDecompressor(&erroringDecompressor{result: ccp.DecompError})
	u.SetFlagBits(unit.FlagDecompRun)

	p := &Pipeline{Unit: u}
	before := u.Counters().InErrors

	p.InProc(pppFrame(cfg.ProtoCompressed, []byte{1, 2, 3}))

	assert.True(t, u.Has(unit.FlagDCError))
	assert.True(t, u.Has(unit.FlagVJReset))
	assert.Equal(t, before, u.Counters().InErrors, "a decompression error must not touch in-errors")
	assert.Greater(t, u.ReadableBytes(), 0)
	assert.NotNil(t, u.PopUserRead(), "the compressed frame must be delivered to the user-read queue")
}

// TestLostFlagForcesNextVJCompressedFrameDropped mirrors spec.md §8's
// property: a frame arriving with lost_flag=true guarantees the next
// VJC_COMP frame is dropped (flushed) before any further VJC_COMP frames
// are accepted. It establishes a real VJ dictionary entry via the
// transmit/receive pipelines first, so the flush this test observes is
// genuinely clearing live state rather than an already-empty slot.
func TestLostFlagForcesNextVJCompressedFrameDropped(t *testing.T) {
	u := newTestUnit(t)
	u.SetFlagBits(unit.FlagCompTCP)
	tx := &xmit.Pipeline{Unit: u}
	var delivered [][]byte
	rx := &Pipeline{Unit: u, IPInput: func(b []byte) { delivered = append(delivered, append([]byte{}, b...)) }}

	send := func(seq uint32) {
		hdr := buildIPTCP(seq, 1, 4096)
		require.NoError(t, tx.Output(xmit.Dest{Family: xmit.FamilyIP}, buffer.NewFromBytes(hdr, 4)))
		tx.OutPkt()
		require.True(t, u.HasStaged())
		rx.InProc(u.TakeStaged())
	}

	send(1000) // establishes the dictionary entry (uncompressed baseline)
	send(1010) // compresses against it; delivered via the happy path
	require.Len(t, delivered, 2)

	lossy := pppFrame(cfg.ProtoIP, make([]byte, 4))
	lossy.MarkLost()
	rx.InProc(lossy)
	assert.False(t, u.Has(unit.FlagVJReset), "VJ_RESET must already have been consumed by the flush")

	before := u.Counters().InErrors
	send(1020) // tx still compresses against its own (unflushed) dictionary
	assert.Greater(t, u.Counters().InErrors, before, "the receive-side dictionary was flushed, so this compressed frame must be dropped")
}

// TestVJRoundTripThroughTransmitAndReceive mirrors spec.md §8 scenario 6:
// configuring both VJ compressors and pushing TCP/IP packets through the
// transmit pipeline then looping the framed output into the receive
// pipeline must reconstruct bit-identical IP/TCP headers.
func TestVJRoundTripThroughTransmitAndReceive(t *testing.T) {
	u := newTestUnit(t)
	u.SetFlagBits(unit.FlagCompTCP)
	u.VJTx.SetMaxCID(15)
	u.VJRx.SetMaxCID(15)

	var delivered [][]byte
	tx := &xmit.Pipeline{Unit: u}
	rx := &Pipeline{Unit: u, IPInput: func(b []byte) { delivered = append(delivered, append([]byte{}, b...)) }}

	for i := 0; i < 20; i++ {
		hdr := buildIPTCP(uint32(1000+i*10), 1, 4096)
		require.NoError(t, tx.Output(xmit.Dest{Family: xmit.FamilyIP}, buffer.NewFromBytes(hdr, 4)))
		tx.OutPkt()
		require.True(t, u.HasStaged())
		framed := u.TakeStaged()

		rx.InProc(framed)
	}

	require.Len(t, delivered, 20)
	for i, got := range delivered {
		want := buildIPTCP(uint32(1000+i*10), 1, 4096)
		assert.Equal(t, want, got, "packet %d must round-trip bit-identical", i)
	}
}

func buildIPTCP(seq, ack uint32, window uint16) []byte {
	hdr := make([]byte, 40)
	hdr[0] = 0x45
	hdr[9] = 6
	binary.BigEndian.PutUint16(hdr[2:4], 40)
	binary.BigEndian.PutUint16(hdr[4:6], 100)
	copy(hdr[12:16], []byte{10, 0, 0, 1})
	copy(hdr[16:20], []byte{10, 0, 0, 2})
	tcp := hdr[20:]
	binary.BigEndian.PutUint16(tcp[0:2], 4000)
	binary.BigEndian.PutUint16(tcp[2:4], 23)
	binary.BigEndian.PutUint32(tcp[4:8], seq)
	binary.BigEndian.PutUint32(tcp[8:12], ack)
	tcp[12] = 5 << 4
	tcp[13] = 0x10
	binary.BigEndian.PutUint16(tcp[14:16], window)
	return hdr
}

// TestIPDispatchStripsHeaderAndDeliversWhenUpAndPass covers plain IP
// dispatch (spec §4.4 step 8) without any compression involved.
func TestIPDispatchStripsHeaderAndDeliversWhenUpAndPass(t *testing.T) {
	u := newTestUnit(t)
	var got []byte
	p := &Pipeline{Unit: u, IPInput: func(b []byte) { got = b }}

	payload := []byte{1, 2, 3, 4, 5}
	p.InProc(pppFrame(cfg.ProtoIP, payload))
	assert.Equal(t, payload, got)
}

func TestIPDispatchDroppedWhenModeNotPass(t *testing.T) {
	u := newTestUnit(t)
	u.SetNPMode(unit.NPProtoIP, unit.NPDrop)
	called := false
	p := &Pipeline{Unit: u, IPInput: func(b []byte) { called = true }}

	p.InProc(pppFrame(cfg.ProtoIP, []byte{1, 2, 3, 4}))
	assert.False(t, called)
}

// newTestCCPObserver wires an Observer the same way cmd/pppd's
// newCCPObserver does, so InProc exercises the real gating logic instead
// of a fake.
func newTestCCPObserver(u *unit.Unit) *ccp.Observer {
	return &ccp.Observer{
		IsCCPOpen:          func() bool { return u.Has(unit.FlagCCPOpen) },
		IsCCPUp:            func() bool { return u.Has(unit.FlagCCPUp) },
		IsCompRun:          func() bool { return u.Has(unit.FlagCompRun) },
		IsDecompRun:        func() bool { return u.Has(unit.FlagDecompRun) },
		ClearUpAndRunFlags: func() { u.ClearFlagBits(unit.FlagCCPUp | unit.FlagCompRun | unit.FlagDecompRun) },
		SetCompRun: func(v bool) {
			if v {
				u.SetFlagBits(unit.FlagCompRun | unit.FlagCCPUp)
			} else {
				u.ClearFlagBits(unit.FlagCompRun)
			}
		},
		SetDecompRun: func(v bool) {
			if v {
				u.SetFlagBits(unit.FlagDecompRun | unit.FlagCCPUp)
			} else {
				u.ClearFlagBits(unit.FlagDecompRun)
			}
		},
		ClearDCErrors:  func() { u.ClearFlagBits(unit.FlagDCError | unit.FlagDCFError) },
		TxCompressor:   func() ccp.Compressor { return u.TxCompressor() },
		RxDecompressor: func() ccp.Decompressor { return u.RxDecompressor() },
	}
}

// TestInProcReceivedConfigureAckStartsDecompRun exercises the exact
// bring-up state a CCP Configure-Ack must escape through InProc: CCP_OPEN
// set, a decompressor installed, DECOMP_RUN not yet set. The observer must
// still be invoked (spec §4.5 / §8 scenario 4) even though DECOMP_RUN,
// which only gates Incomp, is false.
func TestInProcReceivedConfigureAckStartsDecompRun(t *testing.T) {
	u := newTestUnit(t)
	u.SetRxDecompressor(&nullDecompressorStub{})
	u.SetFlagBits(unit.FlagCCPOpen)
	observer := newTestCCPObserver(u)
	p := &Pipeline{Unit: u, CCP: observer}

	body := []byte{1, 2}
	length := uint16(4 + len(body))
	ccpBody := make([]byte, 0, length)
	ccpBody = append(ccpBody, ccp.CodeConfigureAck, 0)
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], length)
	ccpBody = append(ccpBody, lb[:]...)
	ccpBody = append(ccpBody, body...)

	p.InProc(pppFrame(cfg.ProtoCCP, ccpBody))
	assert.True(t, u.Has(unit.FlagDecompRun), "a received Configure-Ack must start DECOMP_RUN through InProc")
}

// nullDecompressorStub is a minimal ccp.Decompressor, standing in for the
// registered null decompressor without importing internal/ccp's
// unexported type.
type nullDecompressorStub struct{}

func (d *nullDecompressorStub) Init([]byte) error { return nil }
func (d *nullDecompressorStub) Free()             {}
func (d *nullDecompressorStub) Reset()            {}
func (d *nullDecompressorStub) Stat() ccp.CompressorStat { return ccp.CompressorStat{} }
func (d *nullDecompressorStub) Incomp([]byte)            {}
func (d *nullDecompressorStub) Decompress(ppp []byte) ([]byte, ccp.DecompressResult) {
	return ppp, ccp.DecompOK
}

func TestRejCompTCPDropsCompressedFrame(t *testing.T) {
	u := newTestUnit(t)
	u.SetFlagBits(unit.FlagRejCompTCP)
	p := &Pipeline{Unit: u}

	before := u.Counters().InErrors
	p.InProc(pppFrame(cfg.ProtoVJCompTCP, []byte{0, 1, 2, 3}))
	assert.Greater(t, u.Counters().InErrors, before)
}
