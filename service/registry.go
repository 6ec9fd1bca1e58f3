package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"botgateway/domain"
	"botgateway/helpers"
	"botgateway/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
)

// ErrEmptyServices is returned by RegisterDirect/RegisterSession when the services list is empty
// (SPEC_FULL.md §9 "Empty services list in Register is rejected").
var ErrEmptyServices = errors.New("services list must not be empty")

// serviceRegistry implements interfaces.Registry (C3). It maps service_name to the set of
// instances advertising it and keeps a reverse index connection_id → instance for O(1) heartbeat
// lookup, per SPEC_FULL.md §3. Grounded on original_source's MyRegistryService
// (cleanup_expired_services sweep shape, get_healthy_services/update_service_health/
// unregister_service) translated from a sharded DashMap to a single RWMutex, matching the
// teacher's own connectionPool locking granularity (one mutex guarding all maps); there is no
// per-key lock sharding, and Lookup takes the read lock.
type serviceRegistry struct {
	auth   interfaces.Authenticator
	clock  interfaces.TimeProvider
	logger log.Logger

	mu           sync.RWMutex
	byService    map[string]map[string]*domain.ServiceInstance // serviceName -> instanceKey -> instance
	byAddress    map[string]*domain.ServiceInstance             // DirectAddress instances, keyed by address
	byConnection map[string]*domain.ServiceInstance             // ReverseSession instances, keyed by connection_id
}

// NewServiceRegistry creates an empty Registry. Panics on nil auth, clock or logger.
func NewServiceRegistry(auth interfaces.Authenticator, clock interfaces.TimeProvider, logger log.Logger) interfaces.Registry {
	return &serviceRegistry{
		auth:         helpers.NilPanic(auth, "service.registry.go: auth is required"),
		clock:        helpers.NilPanic(clock, "service.registry.go: clock is required"),
		logger:       log.With(helpers.NilPanic(logger, "service.registry.go: logger is required"), "component", "registry"),
		byService:    make(map[string]map[string]*domain.ServiceInstance),
		byAddress:    make(map[string]*domain.ServiceInstance),
		byConnection: make(map[string]*domain.ServiceInstance),
	}
}

// dedupeServices removes duplicate service names while preserving first-seen order
// (SPEC_FULL.md §9 "Duplicate services in a single Register are deduplicated").
func dedupeServices(services []string) []string {
	seen := make(map[string]struct{}, len(services))
	out := make([]string, 0, len(services))
	for _, s := range services {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// RegisterDirect upserts a DirectAddress instance keyed by address, replacing any prior
// advertisement for the same address (SPEC_FULL.md §9: replace, not augment).
func (r *serviceRegistry) RegisterDirect(token, address string, services []string) error {
	if !r.auth.Validate(token) {
		return domain.ErrUnauthenticated
	}
	services = dedupeServices(services)
	if len(services) == 0 {
		return ErrEmptyServices
	}
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byAddress[address]; ok {
		r.removeLocked(existing)
	}
	inst := &domain.ServiceInstance{
		Address:       address,
		Services:      services,
		Kind:          domain.KindDirectAddress,
		Health:        domain.HealthHealthy,
		LastHeartbeat: now,
	}
	r.byAddress[address] = inst
	r.indexLocked(inst, address)
	return nil
}

// RegisterSession installs a fresh ReverseSession instance and returns its minted connection_id.
func (r *serviceRegistry) RegisterSession(token string, services []string) (string, error) {
	if !r.auth.Validate(token) {
		return "", domain.ErrUnauthenticated
	}
	services = dedupeServices(services)
	if len(services) == 0 {
		return "", ErrEmptyServices
	}
	connectionID := uuid.NewString()
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	inst := &domain.ServiceInstance{
		ConnectionID:  connectionID,
		Services:      services,
		Kind:          domain.KindReverseSession,
		Health:        domain.HealthHealthy,
		LastHeartbeat: now,
	}
	r.byConnection[connectionID] = inst
	r.indexLocked(inst, connectionID)
	return connectionID, nil
}

// indexLocked adds inst to byService under every service it advertises, keyed by instanceKey
// (address for DirectAddress, connection_id for ReverseSession). Caller must hold r.mu for write.
func (r *serviceRegistry) indexLocked(inst *domain.ServiceInstance, instanceKey string) {
	for _, svc := range inst.Services {
		set := r.byService[svc]
		if set == nil {
			set = make(map[string]*domain.ServiceInstance)
			r.byService[svc] = set
		}
		set[instanceKey] = inst
	}
}

// removeLocked removes inst from every service set, and from byAddress/byConnection. Caller must
// hold r.mu for write.
func (r *serviceRegistry) removeLocked(inst *domain.ServiceInstance) {
	instanceKey := inst.Address
	if inst.Kind == domain.KindReverseSession {
		instanceKey = inst.ConnectionID
	}
	for _, svc := range inst.Services {
		set := r.byService[svc]
		if set == nil {
			continue
		}
		delete(set, instanceKey)
		if len(set) == 0 {
			delete(r.byService, svc)
		}
	}
	delete(r.byAddress, inst.Address)
	delete(r.byConnection, inst.ConnectionID)
}

// Heartbeat refreshes last_heartbeat for connectionID. An empty or non-matching id returns
// domain.ErrUnknownConnection and is never rehomed by service name (SPEC_FULL.md §5.5 — the rule
// the codebase explicitly guards against; original_source's "compatibility fix" fallback is not
// carried forward).
func (r *serviceRegistry) Heartbeat(connectionID string) error {
	if connectionID == "" {
		return domain.ErrUnknownConnection
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.byConnection[connectionID]
	if !ok {
		return domain.ErrUnknownConnection
	}
	inst.LastHeartbeat = r.clock.Now()
	inst.Health = domain.HealthHealthy
	return nil
}

// Lookup returns one healthy instance for serviceName, preferring ReverseSession over
// DirectAddress and, within a kind, the most recently-heartbeated instance.
func (r *serviceRegistry) Lookup(serviceName string) (domain.ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byService[serviceName]
	var best *domain.ServiceInstance
	for _, inst := range set {
		if inst.Health != domain.HealthHealthy {
			continue
		}
		if best == nil || betterCandidate(inst, best) {
			best = inst
		}
	}
	if best == nil {
		return domain.ServiceInstance{}, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, serviceName)
	}
	return *best, nil
}

// betterCandidate reports whether a should be preferred over the current best b: ReverseSession
// beats DirectAddress regardless of heartbeat recency; within the same kind, the more recent
// heartbeat wins (SPEC_FULL.md §5.3).
func betterCandidate(a, b *domain.ServiceInstance) bool {
	if a.Kind != b.Kind {
		return a.Kind == domain.KindReverseSession
	}
	return a.LastHeartbeat.After(b.LastHeartbeat)
}

// ExpireSweep removes every instance whose last_heartbeat is older than timeout, invoking
// onExpire for each removed ReverseSession connection_id.
func (r *serviceRegistry) ExpireSweep(now time.Time, timeout time.Duration, onExpire func(connectionID string)) {
	r.mu.Lock()
	var expiredConnections []string
	for _, inst := range r.byAddress {
		if now.Sub(inst.LastHeartbeat) > timeout {
			r.removeLocked(inst)
		}
	}
	for _, inst := range r.byConnection {
		if now.Sub(inst.LastHeartbeat) > timeout {
			expiredConnections = append(expiredConnections, inst.ConnectionID)
			r.removeLocked(inst)
		}
	}
	r.mu.Unlock()

	for _, connID := range expiredConnections {
		level.Warn(r.logger).Log("msg", "reverse session expired", "connection_id", connID)
		if onExpire != nil {
			onExpire(connID)
		}
	}
}

// Remove deletes the instance with the given connectionID, if any.
func (r *serviceRegistry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.byConnection[connectionID]; ok {
		r.removeLocked(inst)
	}
}

// Snapshot returns a copy of every currently-registered instance, for the admin HTTP surface.
func (r *serviceRegistry) Snapshot() []domain.ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ServiceInstance, 0, len(r.byAddress)+len(r.byConnection))
	for _, inst := range r.byAddress {
		out = append(out, *inst)
	}
	for _, inst := range r.byConnection {
		out = append(out, *inst)
	}
	return out
}
