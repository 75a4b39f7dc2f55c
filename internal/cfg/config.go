// Package cfg holds the network and performance constants shared across the
// PPP core: frame/header sizes, MRU bounds, queue capacities, the gVisor
// stand-in NIC addressing, and CPU-affinity core assignments for the
// deferred dispatcher.
package cfg

import "gvisor.dev/gvisor/pkg/tcpip"

// Protocol field values carried in the PPP header (spec §6).
const (
	ProtoIP          = 0x0021
	ProtoVJCompTCP   = 0x002D
	ProtoVJUncompTCP = 0x002F
	ProtoCompressed  = 0x00FD
	ProtoCCP         = 0x80FD
	ProtoLCP         = 0xC021
)

// PPP address/control field values.
const (
	AllStations = 0xFF
	UI          = 0x03
)

// Frame shape.
const (
	HeaderLen    = 4 // address, control, protocol-hi, protocol-lo
	MinMRU       = 1500
	MaxMRU       = 65000
	DefaultMTU   = MinMRU
	CCPMaxOption = 32 // CCP_MAX_OPTION_LENGTH
)

// Queue capacities (spec §3: bounded packet queues).
const (
	OutputQueueLen   = 256
	FastQueueLen     = 256
	RawRecvQueueLen  = 256
	UserReadQueueLen = 256
)

// InteractivePorts are the TCP ports that route onto the fast-output queue
// (spec §4.2): ftp-data, ftp-control, telnet, rlogin.
var InteractivePorts = [...]uint16{20, 21, 23, 513}

// NumUnits is the size of the fixed unit allocation pool.
const NumUnits = 8

// gVisor stand-in "kernel IP stack" addressing (internal/netstack). Mirrors
// the teacher's NetNicID/NetLocalIP/NetGateway/NetMTU block.
const (
	NICLocalAddr   = "10.0.0.1"
	NICGatewayAddr = "10.0.0.2"
)

// NICID returns the gVisor NIC identifier for a unit's channel endpoint,
// offset by unit index so several units can share one stack.Stack in tests.
func NICID(unitIndex int) tcpip.NICID {
	return tcpip.NICID(unitIndex + 1)
}

// Dispatcher adaptive-sleep bounds, ported from the teacher's
// StartPacketProcessing sleep ramp.
const (
	DispatchMinSleepNanos = 100
	DispatchMaxSleepNanos = 10_000
)

// DispatchCPUCore is the core the deferred dispatcher goroutine is pinned to
// when the host has enough cores to make pinning worthwhile (teacher:
// CpuRXProcessing et al).
const DispatchCPUCore = 0

// MinCoresForAffinity is the floor below which CPU pinning is skipped.
const MinCoresForAffinity = 4
