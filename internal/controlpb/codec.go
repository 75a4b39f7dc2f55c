package controlpb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is registered with google.golang.org/grpc/encoding so the
// control gRPC server and client pick encoding/json over grpc's default
// proto codec for every message on the control service (no generated
// proto.Message types exist to satisfy the default codec).
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements encoding.Codec (Marshal/Unmarshal/Name) over
// encoding/json, the same three-method shape
// google.golang.org/protobuf/proto's codec satisfies for grpc's default
// transport path.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }
