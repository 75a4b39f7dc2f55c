package control

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/anphsw/ppp/internal/controlpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding"
)

// Client is a thin wrapper cmd/pppctl dials against, grounded on the
// teacher's cmd/cli/main.go grpc.NewClient + mTLS credentials setup.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr with mTLS using certPEM/keyPEM (client identity)
// and caPEM (server verification).
func Dial(addr string, certPEM, keyPEM, caPEM []byte) (*Client, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("control client: load client cert/key: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("control client: failed to load CA cert")
	}
	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"h2"},
	})

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(encoding.GetCodec(controlpb.CodecName))),
	)
	if err != nil {
		return nil, fmt.Errorf("control client: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Call invokes the named control operation, matching the Op constants
// internal/control.RPCServer.Call dispatches on.
func (c *Client) Call(ctx context.Context, req *controlpb.Req) (*controlpb.Resp, error) {
	resp := new(controlpb.Resp)
	err := c.conn.Invoke(ctx, "/"+ServiceName+"/Call", req, resp)
	return resp, err
}
