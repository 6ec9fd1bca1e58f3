package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botgateway/domain"
	"botgateway/helpers"
	"botgateway/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
)

// pooledConn is one cached *grpc.ClientConn plus the bookkeeping needed for TTL and idle eviction.
type pooledConn struct {
	conn      *grpc.ClientConn
	createdAt time.Time
	lastUsed  time.Time
}

// connectionPool implements interfaces.Pool (C2): a capacity-bounded, TTL-and-idle-evicted cache
// of *grpc.ClientConn keyed by backend address, used only for DirectAddress forwarding (reverse
// sessions never go through this — they already own a live stream). Grounded on
// service/connection_pool.go's lock/map bookkeeping, with the teacher's discoverer-driven refresh
// replaced by the spec's TTL/idle/capacity policy from original_source's ConnectionPoolConfig.
type connectionPool struct {
	dial           func(ctx context.Context, address string) (*grpc.ClientConn, error)
	maxConnections int
	ttl            time.Duration
	idleTimeout    time.Duration
	clock          interfaces.TimeProvider
	logger         log.Logger

	sf singleflight.Group

	mu     sync.Mutex
	conns  map[string]*pooledConn
	closed bool
}

// NewConnectionPool creates a Pool that dials new connections with dial, bounded to maxConnections
// concurrently-open addresses. Panics on nil dial/clock/logger.
func NewConnectionPool(
	dial func(ctx context.Context, address string) (*grpc.ClientConn, error),
	maxConnections int,
	ttl, idleTimeout time.Duration,
	clock interfaces.TimeProvider,
	logger log.Logger,
) interfaces.Pool {
	return &connectionPool{
		dial:           helpers.NilPanic(dial, "service.pool.go: dial is required"),
		maxConnections: maxConnections,
		ttl:            ttl,
		idleTimeout:    idleTimeout,
		clock:          helpers.NilPanic(clock, "service.pool.go: clock is required"),
		logger:         log.With(helpers.NilPanic(logger, "service.pool.go: logger is required"), "component", "pool"),
		conns:          make(map[string]*pooledConn),
	}
}

// Acquire returns a cached connection for address, dialing one if none exists. Concurrent Acquire
// calls for the same address collapse onto a single dial via singleflight (spec §4.2, §9).
func (p *connectionPool) Acquire(ctx context.Context, address string) (*grpc.ClientConn, error) {
	if conn := p.touchExisting(address); conn != nil {
		return conn, nil
	}

	v, err, _ := p.sf.Do(address, func() (any, error) {
		if conn := p.touchExisting(address); conn != nil {
			return conn, nil
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, domain.ErrUnavailable
		}
		var evicted *grpc.ClientConn
		if p.maxConnections > 0 && len(p.conns) >= p.maxConnections {
			evicted = p.evictLRULocked(address)
			if evicted == nil {
				p.mu.Unlock()
				return nil, domain.ErrPoolExhausted
			}
		}
		p.mu.Unlock()
		if evicted != nil {
			if err := evicted.Close(); err != nil {
				level.Warn(p.logger).Log("msg", "failed to close connection evicted under capacity pressure", "err", err)
			}
		}

		conn, dialErr := p.dial(ctx, address)
		if dialErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConnectFailed, dialErr)
		}

		now := p.clock.Now()
		p.mu.Lock()
		p.conns[address] = &pooledConn{conn: conn, createdAt: now, lastUsed: now}
		p.mu.Unlock()
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*grpc.ClientConn), nil
}

// evictLRULocked deletes and returns the least-recently-used cached connection other than address
// itself, making room for a new dial under capacity pressure (SPEC_FULL.md §5.2: "Under capacity
// pressure, evict least-recently-used idle channel first"). Returns nil if there is nothing to
// evict. Must be called with p.mu held.
func (p *connectionPool) evictLRULocked(address string) *grpc.ClientConn {
	var lruAddress string
	var lru *pooledConn
	for a, pc := range p.conns {
		if a == address {
			continue
		}
		if lru == nil || pc.lastUsed.Before(lru.lastUsed) {
			lruAddress, lru = a, pc
		}
	}
	if lru == nil {
		return nil
	}
	delete(p.conns, lruAddress)
	return lru.conn
}

// touchExisting returns the cached connection for address, bumping lastUsed, or nil if absent.
func (p *connectionPool) touchExisting(address string) *grpc.ClientConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc, ok := p.conns[address]
	if !ok {
		return nil
	}
	pc.lastUsed = p.clock.Now()
	return pc.conn
}

// Sweep evicts and closes every connection whose age exceeds ttl or whose idle time exceeds
// idleTimeout. Called periodically by the janitor (C7).
func (p *connectionPool) Sweep() {
	now := p.clock.Now()
	var evicted []*grpc.ClientConn

	p.mu.Lock()
	for address, pc := range p.conns {
		expired := p.ttl > 0 && now.Sub(pc.createdAt) > p.ttl
		idle := p.idleTimeout > 0 && now.Sub(pc.lastUsed) > p.idleTimeout
		if expired || idle {
			evicted = append(evicted, pc.conn)
			delete(p.conns, address)
		}
	}
	p.mu.Unlock()

	for _, conn := range evicted {
		if err := conn.Close(); err != nil {
			level.Warn(p.logger).Log("msg", "failed to close evicted connection", "err", err)
		}
	}
}

// Close closes every cached connection and marks the pool unusable for future Acquire calls.
func (p *connectionPool) Close() error {
	p.mu.Lock()
	p.closed = true
	conns := p.conns
	p.conns = make(map[string]*pooledConn)
	p.mu.Unlock()

	for _, pc := range conns {
		if err := pc.conn.Close(); err != nil {
			level.Warn(p.logger).Log("msg", "failed to close connection on shutdown", "err", err)
		}
	}
	return nil
}
