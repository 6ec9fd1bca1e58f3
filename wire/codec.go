package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the grpc content-subtype this codec registers under. A client selects it per call
// via grpc.CallContentSubtype(CodecName); the server negotiates per RPC from the inbound
// content-type header, so one grpc.Server can serve RegistryService over this codec and every
// other RPC (DirectAddress/ReverseSession forwarding, default proto codec via emptypb.Empty) side
// by side without grpc.ForceServerCodec, which would apply globally and break that coexistence.
const CodecName = "json"

// init registers jsonCodec globally, the same way mwitkow-grpc-proxy registers its raw codec
// (encoding.RegisterCodec), so any grpc.Server/ClientConn in the process can opt into it by name.
func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc/encoding.Codec over plain JSON-tagged Go structs (RegisterRequest,
// ConnectionMessage, ...) instead of protobuf. Grounded on mwitkow-grpc-proxy's proxy/codec.go
// rawCodec, substituting JSON marshal/unmarshal for raw-byte passthrough: unlike mwitkow's blind
// proxy, RegistryService's own handlers need to read these messages, not just relay them.
type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal %T: %w", v, err)
	}
	return nil
}
