// Package controlpb defines the wire messages for the PPP control
// surface (spec §6) and a JSON-based grpc.Codec so internal/control can
// register a hand-written grpc.ServiceDesc without a .proto/protoc step
// (SPEC_FULL.md §6, DESIGN.md: no protoc in this build environment).
//
// Field numbers in each comment follow the numbering a protoc-gen-go
// schema for the same message would use, so a future migration to a real
// .proto is a rename, not a redesign — the same discipline
// google.golang.org/protobuf's wire format imposes, carried into a plain
// encoding/json codec.
package controlpb

// Req is the envelope every control-surface call sends: a unit index and
// a oneof-style set of optional fields, only the ones relevant to Op
// populated.
type Req struct {
	UnitIndex int    `json:"unit_index"`   // 1
	Op        string `json:"op"`           // 2

	Flags       uint32 `json:"flags,omitempty"`        // 3
	MRU         int    `json:"mru,omitempty"`          // 4
	MaxCID      int    `json:"max_cid,omitempty"`      // 5
	CallerPID   int    `json:"caller_pid,omitempty"`   // 6
	Privileged  bool   `json:"privileged,omitempty"`   // 7
	Direction   string `json:"direction,omitempty"`    // 8: "transmit" | "receive"
	Options     []byte `json:"options,omitempty"`      // 9
	NPProto     int    `json:"np_proto,omitempty"`     // 10
	NPMode      int    `json:"np_mode,omitempty"`      // 11
	MTU         int    `json:"mtu,omitempty"`          // 12
	Address     string `json:"address,omitempty"`      // 13
	DestAddress string `json:"dest_address,omitempty"` // 14
	IfUp        bool   `json:"if_up,omitempty"`        // 15
}

// Resp is the envelope every control-surface call returns.
type Resp struct {
	Ok    bool   `json:"ok"`              // 1
	Error string `json:"error,omitempty"` // 2

	Flags         uint32     `json:"flags,omitempty"`          // 3
	MRU           int        `json:"mru,omitempty"`            // 4
	UnitIndex     int        `json:"unit_index,omitempty"`     // 5
	ReadableCount int        `json:"readable_count,omitempty"` // 6
	NPMode        int        `json:"np_mode,omitempty"`        // 7
	Stats         *PPPStats  `json:"stats,omitempty"`          // 8
	CompStats     *CompStats `json:"comp_stats,omitempty"`     // 9
}

// PPPStats mirrors GET-PPP-STATS: per-unit interface counters plus VJ
// counters (spec §6).
type PPPStats struct {
	InPackets    uint64 `json:"in_packets"`    // 1
	OutPackets   uint64 `json:"out_packets"`   // 2
	InBytes      uint64 `json:"in_bytes"`      // 3
	OutBytes     uint64 `json:"out_bytes"`     // 4
	InErrors     uint64 `json:"in_errors"`     // 5
	OutErrors    uint64 `json:"out_errors"`    // 6
	VJSearches   uint64 `json:"vj_searches"`   // 7
	VJMisses     uint64 `json:"vj_misses"`     // 8
	VJCompressed uint64 `json:"vj_compressed"` // 9
	VJErrors     uint64 `json:"vj_errors"`     // 10
}

// CompStats mirrors GET-COMP-STATS: transmit and receive generic
// compressor statistics (spec §6).
type CompStats struct {
	TxInBytes        uint64 `json:"tx_in_bytes"`        // 1
	TxOutBytes       uint64 `json:"tx_out_bytes"`       // 2
	RxInBytes        uint64 `json:"rx_in_bytes"`        // 3
	RxOutBytes       uint64 `json:"rx_out_bytes"`       // 4
	TxPackets        uint64 `json:"tx_packets"`         // 5
	TxErrors         uint64 `json:"tx_errors"`          // 6
	RxPackets        uint64 `json:"rx_packets"`         // 7
	RxErrors         uint64 `json:"rx_errors"`          // 8
	TxUncompressible uint64 `json:"tx_uncompressible"`  // 9
}
