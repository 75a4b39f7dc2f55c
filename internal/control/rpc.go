// rpc.go wires internal/control.Server onto google.golang.org/grpc
// without a protoc-generated service: a single hand-written
// grpc.ServiceDesc whose one method, Call, dispatches on the request's Op
// field to the matching Server method. This keeps every control
// operation (GET-FLAGS, SET-NP-MODE, ...) addressable over the same mTLS
// channel the teacher's SetupGRPCServer establishes, without fabricating
// a .proto-shaped Go file this environment has no protoc to check
// (DESIGN.md).
package control

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"github.com/anphsw/ppp/internal/controlpb"
	"github.com/anphsw/ppp/internal/unit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Op names accepted by RPCServer.Call, one per spec §6 control operation
// plus the ioctl-equivalent additions SPEC_FULL.md supplements.
const (
	OpGetReadableCount = "GET-READABLE-COUNT"
	OpGetUnitIndex     = "GET-UNIT-INDEX"
	OpGetFlags         = "GET-FLAGS"
	OpSetFlags         = "SET-FLAGS"
	OpGetMRU           = "GET-MRU"
	OpSetMRU           = "SET-MRU"
	OpSetMaxCID        = "SET-MAX-CID"
	OpTransferUnit     = "TRANSFER-UNIT"
	OpSetCompressor    = "SET-COMPRESSOR"
	OpGetPPPStats      = "GET-PPP-STATS"
	OpGetCompStats     = "GET-COMP-STATS"
	OpGetNPMode        = "GET-NP-MODE"
	OpSetNPMode        = "SET-NP-MODE"
	OpGetMTU           = "GET-MTU"
	OpSetMTU           = "SET-MTU"
	OpSetIfFlags       = "SET-IF-FLAGS"
)

// RPCServer adapts Server to the grpc.ServiceDesc below. StartFor, if
// set, is invoked by SET-NP-MODE the same way internal/xmit's LineStart
// upcall would be, so the daemon can wire "kick the line driver" without
// internal/control importing internal/xmit.
type RPCServer struct {
	*Server
	StartFor func(unitIndex int)
}

// errResp turns err into a Resp carrying ok=false and its message,
// matching spec §7's "errors ... returned to the caller" propagation
// policy translated onto the RPC envelope.
func errResp(err error) (*controlpb.Resp, error) {
	if err == nil {
		return &controlpb.Resp{Ok: true}, nil
	}
	return &controlpb.Resp{Ok: false, Error: err.Error()}, nil
}

// Call dispatches req.Op to the matching Server method.
func (s *RPCServer) Call(ctx context.Context, req *controlpb.Req) (*controlpb.Resp, error) {
	switch req.Op {
	case OpGetReadableCount:
		n, err := s.GetReadableCount(req.UnitIndex)
		if err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true, ReadableCount: n}, nil

	case OpGetUnitIndex:
		n, err := s.GetUnitIndex(req.UnitIndex)
		if err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true, UnitIndex: n}, nil

	case OpGetFlags:
		f, err := s.GetFlags(req.UnitIndex)
		if err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true, Flags: uint32(f)}, nil

	case OpSetFlags:
		if err := s.SetFlags(req.UnitIndex, unit.Flags(req.Flags), req.Privileged); err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true}, nil

	case OpGetMRU:
		m, err := s.GetMRU(req.UnitIndex)
		if err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true, MRU: m}, nil

	case OpSetMRU:
		if err := s.SetMRU(req.UnitIndex, req.MRU, req.Privileged); err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true}, nil

	case OpSetMaxCID:
		if err := s.SetMaxCID(req.UnitIndex, req.MaxCID, req.Privileged); err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true}, nil

	case OpTransferUnit:
		if err := s.TransferUnit(req.UnitIndex, req.CallerPID, req.Privileged); err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true}, nil

	case OpSetCompressor:
		dir := DirTransmit
		if req.Direction == "receive" {
			dir = DirReceive
		}
		if err := s.SetCompressor(req.UnitIndex, dir, req.Options); err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true}, nil

	case OpGetPPPStats:
		st, err := s.GetPPPStats(req.UnitIndex)
		if err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true, Stats: &controlpb.PPPStats{
			InPackets: st.InPackets, OutPackets: st.OutPackets,
			InBytes: st.InBytes, OutBytes: st.OutBytes,
			InErrors: st.InErrors, OutErrors: st.OutErrors,
			VJSearches: st.VJTx.SearchMiss + st.VJRx.SearchMiss,
			VJMisses:   st.VJTx.SearchMiss,
			VJCompressed: st.VJTx.Compressed,
			VJErrors:     st.VJTx.Errors + st.VJRx.Errors,
		}}, nil

	case OpGetCompStats:
		cs, err := s.GetCompStats(req.UnitIndex)
		if err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true, CompStats: &controlpb.CompStats{
			TxInBytes: cs.Tx.InBytes, TxOutBytes: cs.Tx.OutBytes,
			RxInBytes: cs.Rx.InBytes, RxOutBytes: cs.Rx.OutBytes,
			TxPackets: cs.Tx.InPackets, TxErrors: cs.Tx.Errors,
			RxPackets: cs.Rx.InPackets, RxErrors: cs.Rx.Errors,
			TxUncompressible: cs.Tx.UnCompressibleCount,
		}}, nil

	case OpGetNPMode:
		m, err := s.GetNPMode(req.UnitIndex, unit.NPProto(req.NPProto))
		if err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true, NPMode: int(m)}, nil

	case OpSetNPMode:
		var start func(*unit.Unit)
		if s.StartFor != nil {
			idx := req.UnitIndex
			start = func(*unit.Unit) { s.StartFor(idx) }
		}
		if err := s.SetNPMode(req.UnitIndex, unit.NPProto(req.NPProto), unit.NPMode(req.NPMode), start); err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true}, nil

	case OpGetMTU:
		m, err := s.GetMTU(req.UnitIndex)
		if err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true, MRU: m}, nil

	case OpSetMTU:
		if err := s.SetMTU(req.UnitIndex, req.MTU, req.Privileged); err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true}, nil

	case OpSetIfFlags:
		if err := s.SetIfFlags(req.UnitIndex, req.IfUp); err != nil {
			return errResp(err)
		}
		return &controlpb.Resp{Ok: true}, nil
	}
	return errResp(unit.ErrUnknownControl)
}

func callHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(controlpb.Req)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*RPCServer).Call(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Call"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*RPCServer).Call(ctx, req.(*controlpb.Req))
	}
	return interceptor(ctx, req, info, handler)
}

// ServiceName is the gRPC service path (no .proto package to derive it
// from, so it's declared directly, matching the one RPCServer.Call
// entry point).
const ServiceName = "ppp.control.Control"

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit for a service with a single "Call" unary RPC. Registering
// it with grpc.NewServer is the same call a generated
// RegisterControlServer helper makes under the hood.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RPCServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: callHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/control/rpc.go",
}

// Listen wraps lis in TLS with the given certificate, requiring a client
// cert signed by caPEM, and serves srv on it, mirroring the teacher's
// SetupGRPCServer (internal/core/grpc_netstack.go) minus the gonet
// tunnel — see internal/netstack's doc comment for why the control
// channel is a plain host listener instead.
func Listen(lis net.Listener, srv *RPCServer, certPEM, keyPEM, caPEM []byte) (*grpc.Server, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("control: load server cert/key: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("control: failed to load CA cert")
	}
	tlsConfig := &tls.Config{
		Certificates:             []tls.Certificate{cert},
		MinVersion:               tls.VersionTLS12,
		PreferServerCipherSuites: true,
		ClientAuth:               tls.RequireAndVerifyClientCert,
		ClientCAs:                caPool,
		NextProtos:               []string{"h2"},
	}
	tlsListener := tls.NewListener(lis, tlsConfig)

	grpcServer := grpc.NewServer(grpc.ForceServerCodec(encoding.GetCodec(controlpb.CodecName)))
	grpcServer.RegisterService(&ServiceDesc, srv)

	go func() {
		_ = grpcServer.Serve(tlsListener)
	}()
	return grpcServer, nil
}
