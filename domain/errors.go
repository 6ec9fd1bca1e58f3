package domain

import "errors"

// Error kinds from SPEC_FULL.md §8. These are abstract sentinels shared across components; each
// component wraps them with context via fmt.Errorf("...: %w", ...) and server/ maps them to gRPC
// status codes at the boundary (see service/grpc_error.go).
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrMalformedPath     = errors.New("malformed path")
	ErrServiceNotFound   = errors.New("service not registered")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrDeadlineExceeded  = errors.New("deadline exceeded")
	ErrCancelled         = errors.New("cancelled")
	ErrPoolExhausted     = errors.New("pool exhausted")
	ErrConnectFailed     = errors.New("connect failed")
	ErrUnavailable       = errors.New("unavailable")
	ErrInternal          = errors.New("internal error")
)
