// Package wire defines the RegistryService wire messages (SPEC_FULL.md §7). No protoc-generated
// code exists for this protocol in the reference corpus, so the messages are plain Go structs with
// JSON tags, carried over grpc by the codec in codec.go instead of protobuf marshaling.
package wire

// RegisterRequest is the unary Register RPC's request: api_key plus the advertised address and
// service names of a DirectAddress instance.
type RegisterRequest struct {
	APIKey   string   `json:"api_key"`
	Address  string   `json:"address"`
	Services []string `json:"services"`
}

// RegisterResponse is the unary Register RPC's reply.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessageKind discriminates the ConnectionMessage oneof (SPEC_FULL.md §5.5/§7).
type MessageKind string

const (
	KindRegister     MessageKind = "register"
	KindStatus       MessageKind = "status"
	KindHeartbeat    MessageKind = "heartbeat"
	KindRequest      MessageKind = "request"
	KindResponse     MessageKind = "response"
	KindSubscription MessageKind = "subscription"
	KindEvent        MessageKind = "event"
)

// ConnectionMessage is the tagged union exchanged on the bidirectional EstablishConnection stream.
// Exactly one of the pointer fields matching Kind is expected to be non-nil; the others are left
// zero. This mirrors a protobuf oneof without requiring generated code.
type ConnectionMessage struct {
	Kind MessageKind `json:"kind"`

	Register     *ConnectionRegister     `json:"register,omitempty"`
	Status       *ConnectionStatus       `json:"status,omitempty"`
	Heartbeat    *Heartbeat              `json:"heartbeat,omitempty"`
	Request      *ForwardRequest         `json:"request,omitempty"`
	Response     *ForwardResponse        `json:"response,omitempty"`
	Subscription *SubscriptionRequest    `json:"subscription,omitempty"`
	Event        *EventMessage           `json:"event,omitempty"`
}

// ConnectionRegister is the backend's first message on a reverse stream: auth token plus the
// services it intends to serve. It carries no connection id; the gateway assigns one in its
// ConnectionStatus reply.
type ConnectionRegister struct {
	APIKey   string   `json:"api_key"`
	Services []string `json:"services"`
}

// ConnectionStatusCode is one of the values a ConnectionStatus message can report.
type ConnectionStatusCode string

const (
	StatusConnected    ConnectionStatusCode = "CONNECTED"
	StatusDisconnected ConnectionStatusCode = "DISCONNECTED"
	StatusError        ConnectionStatusCode = "ERROR"
)

// ConnectionStatus is sent gateway→backend: assigns ConnectionID on success, or reports an error.
type ConnectionStatus struct {
	Status       ConnectionStatusCode `json:"status"`
	ConnectionID string               `json:"connection_id"`
	Message      string               `json:"message,omitempty"`
}

// Heartbeat is a backend keep-alive; ConnectionID must equal the session's assigned id or the
// message is ignored (SPEC_FULL.md §5.5 "Heartbeat").
type Heartbeat struct {
	ConnectionID string `json:"connection_id"`
}

// ForwardRequest is a forwarded external RPC, gateway→backend.
type ForwardRequest struct {
	RequestID  string            `json:"request_id"`
	MethodPath string            `json:"method_path"`
	Headers    map[string]string `json:"headers"`
	Payload    []byte            `json:"payload"`
	TimeoutS   float64           `json:"timeout_s"`
}

// ForwardResponse is the backend's reply to a ForwardRequest, correlated by RequestID.
type ForwardResponse struct {
	RequestID    string `json:"request_id"`
	StatusCode   int32  `json:"status_code"`
	Payload      []byte `json:"payload"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SubscriptionRequest subscribes or unsubscribes the sending session from an event type (C9,
// SPEC_FULL.md §5.9). Accepted and routed to the event relay but never consulted by the router.
type SubscriptionRequest struct {
	EventType string `json:"event_type"`
	Subscribe bool   `json:"subscribe"`
}

// EventMessage is a published event, fanned out by the event relay to current subscribers of
// EventType (C9).
type EventMessage struct {
	EventType string `json:"event_type"`
	Payload   []byte `json:"payload"`
}
