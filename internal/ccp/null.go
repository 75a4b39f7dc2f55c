package ccp

import "sync"

// NullProtocolID is the protocol id for the reference passthrough
// compressor registered by init(). It performs no real compression; it
// exists so the CCP lifecycle (init/compress/reset/stat) and the
// transmit/receive pipelines have a concrete, always-available
// compressor to exercise end to end, the same role BSD-Compress plays
// in if_ppp.c but left, per spec §1, as an external interface.
const NullProtocolID = 0x01

func init() {
	Register(Descriptor{
		ID:              NullProtocolID,
		Name:            "null",
		NewCompressor:   func() Compressor { return &nullCompressor{} },
		NewDecompressor: func() Decompressor { return &nullDecompressor{} },
	})
}

type nullCompressor struct {
	mu   sync.Mutex
	stat CompressorStat
}

func (c *nullCompressor) Init(options []byte) error {
	if len(options) < 1 {
		return errInvalidOption
	}
	return nil
}

func (c *nullCompressor) Free() {}

func (c *nullCompressor) Compress(ppp []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stat.InPackets++
	c.stat.InBytes += uint64(len(ppp))
	c.stat.UnCompressibleCount++
	return nil, false
}

func (c *nullCompressor) Reset() {}

func (c *nullCompressor) Stat() CompressorStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stat
}

type nullDecompressor struct {
	mu   sync.Mutex
	stat CompressorStat
}

func (d *nullDecompressor) Init(options []byte) error {
	if len(options) < 1 {
		return errInvalidOption
	}
	return nil
}

func (d *nullDecompressor) Free() {}

func (d *nullDecompressor) Decompress(ppp []byte) ([]byte, DecompressResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stat.InPackets++
	d.stat.InBytes += uint64(len(ppp))
	return nil, DecompOK
}

func (d *nullDecompressor) Incomp(ppp []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stat.InPackets++
	d.stat.InBytes += uint64(len(ppp))
}

func (d *nullDecompressor) Reset() {}

func (d *nullDecompressor) Stat() CompressorStat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stat
}
