package service

import (
	"context"
	"math/rand"
	"time"

	"botgateway/helpers"
	"botgateway/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Janitor runs the periodic sweep that expires stale registry entries (C3) and evicts pool
// connections past their TTL or idle timeout (C2). Grounded on original_source's tokio::spawn
// periodic cleanup loop, translated to the teacher's refreshLoop ticker idiom
// (service/connection_pool.go::refreshLoop).
type Janitor struct {
	registry         interfaces.Registry
	sessions         interfaces.SessionManager
	pool             interfaces.Pool
	clock            interfaces.TimeProvider
	heartbeatTimeout time.Duration
	interval         time.Duration
	logger           log.Logger
}

// NewJanitor creates a Janitor. Panics on nil registry/sessions/pool/clock/logger.
func NewJanitor(registry interfaces.Registry, sessions interfaces.SessionManager, pool interfaces.Pool, clock interfaces.TimeProvider, heartbeatTimeout, interval time.Duration, logger log.Logger) *Janitor {
	return &Janitor{
		registry:         helpers.NilPanic(registry, "service.janitor.go: registry is required"),
		sessions:         helpers.NilPanic(sessions, "service.janitor.go: sessions is required"),
		pool:             helpers.NilPanic(pool, "service.janitor.go: pool is required"),
		clock:            helpers.NilPanic(clock, "service.janitor.go: clock is required"),
		heartbeatTimeout: heartbeatTimeout,
		interval:         interval,
		logger:           log.With(helpers.NilPanic(logger, "service.janitor.go: logger is required"), "component", "janitor"),
	}
}

// Run sweeps once and then every interval (with +/-10% jitter) until ctx is cancelled. Intended to
// be started in its own goroutine from cmd/gateway.
func (j *Janitor) Run(ctx context.Context) {
	j.sweepOnce()
	for {
		select {
		case <-time.After(jitter(j.interval)):
			j.sweepOnce()
		case <-ctx.Done():
			return
		}
	}
}

// sweepOnce runs one registry expiry pass and one pool eviction pass. Each expired reverse-session
// connection_id has its owning session closed, so the backend's stream and goroutines are torn down
// rather than left dangling once the registry entry disappears (SPEC_FULL.md §5.3, §3 destroy
// condition (a)).
func (j *Janitor) sweepOnce() {
	j.registry.ExpireSweep(j.clock.Now(), j.heartbeatTimeout, func(connectionID string) {
		level.Info(j.logger).Log("msg", "expired reverse session", "connection_id", connectionID)
		if sess, ok := j.sessions.Get(connectionID); ok {
			sess.Close()
		}
	})
	j.pool.Sweep()
}

// jitter returns d scaled by a uniform random factor in [0.9, 1.1), so many gateway instances
// sweeping on the same interval don't all wake at once.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	factor := 0.9 + rand.Float64()*0.2
	return time.Duration(float64(d) * factor)
}
