package interfaces

import (
	"time"

	"botgateway/domain"
)

// Registry is the service registry (C3): maps service_name → instances, with a reverse index by
// connection_id for O(1) heartbeat lookup (SPEC_FULL.md §3, §5.3). Implemented by
// service.serviceRegistry. Called from server.RegistryServer (RegisterDirect), service.RunSession
// and its session (RegisterSession, Heartbeat, Remove), service.Router (Lookup) and
// service.Janitor (ExpireSweep).
type Registry interface {
	// RegisterDirect upserts a DirectAddress instance keyed by address, replacing any prior
	// advertisement for the same address (idempotent per SPEC_FULL.md §9). Returns
	// domain.ErrUnauthenticated if token is not in the configured set.
	RegisterDirect(token, address string, services []string) error

	// RegisterSession installs a fresh ReverseSession instance and returns its minted
	// connection_id. Returns domain.ErrUnauthenticated if token is not in the configured set.
	RegisterSession(token string, services []string) (connectionID string, err error)

	// Heartbeat refreshes last_heartbeat for connectionID and re-marks it Healthy. Returns
	// domain.ErrUnknownConnection for an empty or non-matching id; never rehomes by service name.
	Heartbeat(connectionID string) error

	// Lookup returns one healthy instance for serviceName, preferring ReverseSession over
	// DirectAddress and, within a kind, the most recently-heartbeated instance. Returns
	// domain.ErrServiceNotFound if none is healthy.
	Lookup(serviceName string) (domain.ServiceInstance, error)

	// ExpireSweep removes every instance whose last_heartbeat is older than timeout relative to
	// now, signaling onExpire for each removed ReverseSession connection_id so the owning session
	// can close.
	ExpireSweep(now time.Time, timeout time.Duration, onExpire func(connectionID string))

	// Remove deletes the instance with the given connectionID (used when a reverse session closes
	// on its own, outside of ExpireSweep).
	Remove(connectionID string)

	// Snapshot returns every currently-registered instance, for the admin HTTP surface (C8
	// extension). Not consulted by the router.
	Snapshot() []domain.ServiceInstance
}
