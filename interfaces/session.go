package interfaces

import "context"

// ForwardResult is what a reverse session delivers back to the Router for a forwarded request,
// mirroring ForwardResponse's payload fields (SPEC_FULL.md §5.5).
type ForwardResult struct {
	StatusCode   int32
	Payload      []byte
	ErrorMessage string
}

// Session is one live reverse-connection stream (C5). Implemented by service.session. Called from
// service.Router when dispatching to a ReverseSession instance.
type Session interface {
	// ConnectionID returns the id this session was assigned at registration.
	ConnectionID() string

	// Forward sends a ForwardRequest built from methodPath/headers/payload and blocks for the
	// matching ForwardResponse, honoring ctx's deadline/cancellation. Returns domain.ErrUnavailable
	// if the session closes while the request is in flight, domain.ErrDeadlineExceeded if ctx's
	// deadline fires first, or domain.ErrCancelled if ctx is cancelled.
	Forward(ctx context.Context, methodPath string, headers map[string]string, payload []byte) (ForwardResult, error)

	// Close forcibly tears the session down: fails every in-flight Forward call with
	// domain.ErrUnavailable, unregisters it from the SessionManager and Registry, and causes the
	// blocked EstablishConnection RPC to return. Called by the Janitor when the owning registry
	// entry expires (SPEC_FULL.md §5.3 expire_sweep). Idempotent and safe to call even if the
	// session is already closing on its own.
	Close()
}

// SessionManager tracks live sessions by connection_id so the Router can locate the session owning
// a ReverseSession instance. Implemented by service.sessionManager.
type SessionManager interface {
	// Get returns the live session for connectionID, or ok=false if none is registered.
	Get(connectionID string) (Session, bool)

	// Register installs s under its ConnectionID, replacing any prior entry for that id.
	Register(s Session)

	// Unregister removes the session for connectionID, if present.
	Unregister(connectionID string)
}
