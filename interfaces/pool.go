package interfaces

import (
	"context"

	"google.golang.org/grpc"
)

// Pool is the outbound connection pool (C2): supplies a reusable *grpc.ClientConn for an address
// with TTL and idle eviction, single-flight creation, and a capacity bound (SPEC_FULL.md §5.2).
// Implemented by service.connectionPool. Called from service.Router for DirectAddress forwarding
// and by service.Janitor (Sweep) on each tick.
type Pool interface {
	// Acquire returns an existing healthy channel for address, creates one if none exists, or
	// fails with domain.ErrPoolExhausted if creating would exceed the configured capacity and no
	// idle channel can be evicted, or domain.ErrConnectFailed if dialing fails.
	Acquire(ctx context.Context, address string) (*grpc.ClientConn, error)

	// Sweep evicts channels past their TTL or idle timeout. Called by the janitor (C7).
	Sweep()

	// Close closes every pooled channel; idempotent.
	Close() error
}
