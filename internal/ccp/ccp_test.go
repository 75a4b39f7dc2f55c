package ccp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUnit stands in for the small slice of unit.Unit state an Observer
// closes over, letting the CCP lifecycle table be exercised without an
// import cycle on internal/unit.
type fakeUnit struct {
	ccpOpen, ccpUp, compRun, decompRun, dcError bool
	tx                                          Compressor
	rx                                          Decompressor
}

func newObserver(u *fakeUnit) *Observer {
	return &Observer{
		IsCCPOpen:   func() bool { return u.ccpOpen },
		IsCCPUp:     func() bool { return u.ccpUp },
		IsCompRun:   func() bool { return u.compRun },
		IsDecompRun: func() bool { return u.decompRun },
		ClearUpAndRunFlags: func() {
			u.ccpUp, u.compRun, u.decompRun = false, false, false
		},
		SetCompRun:     func(v bool) { u.compRun = v; u.ccpUp = u.ccpUp || v },
		SetDecompRun:   func(v bool) { u.decompRun = v; u.ccpUp = u.ccpUp || v },
		ClearDCErrors:  func() { u.dcError = false },
		TxCompressor:   func() Compressor { return u.tx },
		RxDecompressor: func() Decompressor { return u.rx },
	}
}

func ccpPacket(code byte, body []byte) []byte {
	length := uint16(4 + len(body))
	out := make([]byte, 0, length)
	out = append(out, code, 0)
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], length)
	out = append(out, lb[:]...)
	out = append(out, body...)
	return out
}

func TestObserveConfigureAckSentStartsCompRun(t *testing.T) {
	u := &fakeUnit{ccpOpen: true, tx: &nullCompressor{}}
	o := newObserver(u)

	ok := o.Observe("sending", ccpPacket(CodeConfigureAck, []byte{1, 2}))
	require.True(t, ok)
	assert.True(t, u.compRun)
}

func TestObserveConfigureAckReceivedStartsDecompRunAndClearsDCError(t *testing.T) {
	u := &fakeUnit{ccpOpen: true, rx: &nullDecompressor{}, dcError: true}
	o := newObserver(u)

	ok := o.Observe("received", ccpPacket(CodeConfigureAck, []byte{1, 2}))
	require.True(t, ok)
	assert.True(t, u.decompRun)
	assert.False(t, u.dcError)
}

// TestCCPLifecycleScenario mirrors spec.md §8 scenario 4 exactly: with
// CCP_OPEN set and both sides' compressors installed, a received CCP
// Configure-Ack sets DECOMP_RUN and clears DC_ERROR; a subsequent
// Terminate-Req clears CCP_UP, COMP_RUN, and DECOMP_RUN together.
func TestCCPLifecycleScenario(t *testing.T) {
	u := &fakeUnit{ccpOpen: true, tx: &nullCompressor{}, rx: &nullDecompressor{}, dcError: true}
	o := newObserver(u)

	require.True(t, o.Observe("received", ccpPacket(CodeConfigureAck, []byte{1, 2})))
	assert.True(t, u.decompRun)
	assert.False(t, u.dcError)

	require.True(t, o.Observe("received", ccpPacket(CodeTerminateReq, nil)))
	assert.False(t, u.ccpUp)
	assert.False(t, u.compRun)
	assert.False(t, u.decompRun)
}

// countingCompressor records Reset calls on top of the null compressor.
type countingCompressor struct {
	nullCompressor
	resets int
}

func (c *countingCompressor) Reset() { c.resets++ }

func TestObserveResetAckResetsInstalledSide(t *testing.T) {
	tx := &countingCompressor{}
	u := &fakeUnit{ccpOpen: true, tx: tx, compRun: true}
	o := newObserver(u)

	ok := o.Observe("sending", ccpPacket(CodeResetAck, nil))
	require.True(t, ok)
	assert.Equal(t, 1, tx.resets)
}

// TestObserveResetAckIgnoredBeforeRunStarts mirrors spec §4.5's Reset-Ack
// guard: a Reset-Ack arriving before the corresponding RUN flag is set
// must not reset the compressor or clear DC_ERROR.
func TestObserveResetAckIgnoredBeforeRunStarts(t *testing.T) {
	u := &fakeUnit{ccpOpen: true, rx: &nullDecompressor{}, dcError: true}
	o := newObserver(u)

	require.True(t, o.Observe("received", ccpPacket(CodeResetAck, nil)))
	assert.True(t, u.dcError, "DC_ERROR must not be cleared while DECOMP_RUN is unset")
}

func TestObserveRejectsMalformedLength(t *testing.T) {
	u := &fakeUnit{ccpOpen: true}
	o := newObserver(u)

	bad := ccpPacket(CodeConfigureAck, []byte{1, 2})
	binary.BigEndian.PutUint16(bad[2:4], 0xFFFF)
	assert.False(t, o.Observe("sending", bad))
}

func TestObserveTooShortIsIgnored(t *testing.T) {
	u := &fakeUnit{}
	o := newObserver(u)
	assert.False(t, o.Observe("sending", []byte{1, 2}))
}
