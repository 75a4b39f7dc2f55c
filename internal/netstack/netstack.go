// Package netstack stands in for "the kernel's IP input queue and
// routing" that SPEC_FULL.md §1 treats as an external collaborator: a
// gVisor userspace network stack, one NIC per PPP unit, that receives
// decompressed IP payloads from internal/recv's Pipeline.IPInput and
// supplies the reverse path for internal/xmit's Pipeline.Output.
//
// Grounded on the teacher's CreateNetstack/NetstackBridge
// (internal/core/grpc_netstack.go): same stack.Options, same
// channel.Endpoint-as-virtual-NIC shape, same protocol-address/
// default-route setup, adapted from a single shared NIC to one NIC per
// unit index so the bundled daemon can run several PPP links side by
// side against one gvisor.dev/gvisor/pkg/tcpip/stack.Stack.
package netstack

import (
	"net"

	"github.com/anphsw/ppp/internal/cfg"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/adapters/gonet"
	"gvisor.dev/gvisor/pkg/tcpip/header"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"

	gbuffer "gvisor.dev/gvisor/pkg/buffer"
)

// Bridge couples one unit's gVisor NIC to the PPP core: DeliverIP (the
// receive pipeline's IPInput callback) injects inbound datagrams into
// LinkEP, and cmd/pppd reads the packets the stack wants to send from
// LinkEP and hands each to the unit's Output entry.
type Bridge struct {
	Stack  *stack.Stack
	LinkEP *channel.Endpoint
	NICID  tcpip.NICID
}

// New creates a gVisor stack with one NIC for unitIndex, an IPv4 address
// on the point-to-point /24 the teacher's NetLocalIP/NetGateway pair
// describes, and a default route via the peer address. mtu bounds the
// channel endpoint's frame size (spec §6: network-interface "set/get
// MTU").
func New(unitIndex, mtu int) (*Bridge, error) {
	s := stack.New(stack.Options{
		NetworkProtocols:   []stack.NetworkProtocolFactory{ipv4.NewProtocol},
		TransportProtocols: []stack.TransportProtocolFactory{tcp.NewProtocol, udp.NewProtocol},
	})

	linkEP := channel.New(64, uint32(mtu), "")
	nicID := cfg.NICID(unitIndex)
	if err := s.CreateNIC(nicID, linkEP); err != nil {
		return nil, fullErr("create NIC", err)
	}

	addr := tcpip.ProtocolAddress{
		Protocol: ipv4.ProtocolNumber,
		AddressWithPrefix: tcpip.AddressWithPrefix{
			Address:   tcpip.AddrFromSlice(net.ParseIP(cfg.NICLocalAddr).To4()),
			PrefixLen: 24,
		},
	}
	if err := s.AddProtocolAddress(nicID, addr, stack.AddressProperties{}); err != nil {
		return nil, fullErr("add protocol address", err)
	}

	s.SetRouteTable([]tcpip.Route{
		{
			Destination: header.IPv4EmptySubnet,
			Gateway:     tcpip.AddrFromSlice(net.ParseIP(cfg.NICGatewayAddr).To4()),
			NIC:         nicID,
		},
	})

	return &Bridge{Stack: s, LinkEP: linkEP, NICID: nicID}, nil
}

// DeliverIP hands a raw IPv4 datagram (as stripped of its PPP header by
// internal/recv's dispatch to the IP path) up into the stack, the role
// spec §4.4 step 8 assigns to "schedule IP soft-interrupt".
func (b *Bridge) DeliverIP(payload []byte) {
	pkt := stack.NewPacketBuffer(stack.PacketBufferOptions{
		Payload: bufferFromBytes(payload),
	})
	defer pkt.DecRef()
	b.LinkEP.InjectInbound(ipv4.ProtocolNumber, pkt)
}

// Listen opens a TLS-free TCP listener on the stack for diagnostic tools,
// mirroring
// the teacher's gonet.ListenTCP call in SetupGRPCServer but without mTLS
// — the PPP control surface itself is served on a plain host listener,
// not tunneled through the link it manages.
func (b *Bridge) Listen(port uint16) (net.Listener, error) {
	return gonet.ListenTCP(b.Stack, tcpip.FullAddress{
		NIC:  b.NICID,
		Addr: tcpip.AddrFromSlice(net.ParseIP(cfg.NICLocalAddr).To4()),
		Port: port,
	}, ipv4.ProtocolNumber)
}

// Close removes the NIC's endpoint.
func (b *Bridge) Close() {
	b.LinkEP.Close()
}

func bufferFromBytes(b []byte) gbuffer.Buffer {
	return gbuffer.MakeWithData(append([]byte(nil), b...))
}

func fullErr(op string, err tcpip.Error) error {
	return &netstackError{op: op, err: err}
}

type netstackError struct {
	op  string
	err tcpip.Error
}

func (e *netstackError) Error() string { return e.op + ": " + e.err.String() }
