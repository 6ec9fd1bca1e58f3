package helpers

import (
	"google.golang.org/grpc/metadata"
)

// HeaderAuthorization is the gRPC metadata key carrying the bearer token for RegisterRequest's
// api_key equivalent on plain forwarded calls (not used by RegistryService itself, whose api_key
// travels in the message body per SPEC_FULL.md §7).
const HeaderAuthorization = "authorization"

// MetadataToHeaders flattens incoming gRPC metadata into the map[string]string carried on a
// ForwardRequest (SPEC_FULL.md §5.5): multi-valued keys are joined with ", " the way HTTP does,
// since ForwardRequest.Headers has no room for repeated values.
func MetadataToHeaders(md metadata.MD) map[string]string {
	out := make(map[string]string, md.Len())
	for k, vals := range md {
		if len(vals) == 0 {
			continue
		}
		joined := vals[0]
		for _, v := range vals[1:] {
			joined += ", " + v
		}
		out[k] = joined
	}
	return out
}

// HeadersToMetadata is the inverse of MetadataToHeaders, used when a ForwardResponse's headers
// need to be reattached to the outgoing gRPC response.
func HeadersToMetadata(h map[string]string) metadata.MD {
	md := metadata.MD{}
	for k, v := range h {
		md.Append(k, v)
	}
	return md
}
