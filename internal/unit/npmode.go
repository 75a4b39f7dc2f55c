package unit

// NPMode is the per-network-protocol gate (spec §3, GLOSSARY "NP mode").
type NPMode int

const (
	NPPass NPMode = iota
	NPDrop
	NPError
	NPQueue
)

// NPProto enumerates the network-layer protocols the core recognizes for
// per-protocol mode gating. Only IP is recognized today (spec §4.1:
// "Currently only IP recognized; others return invalid").
type NPProto int

const (
	NPProtoIP NPProto = iota
	npProtoCount
)
