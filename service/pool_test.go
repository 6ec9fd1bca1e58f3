package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"botgateway/domain"
	"botgateway/helpers"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// fakeDial returns a *grpc.ClientConn via grpc.NewClient, which never blocks on the network (the
// actual TCP dial happens lazily on first RPC), so tests can exercise pool bookkeeping without a
// real backend listening.
func fakeDial(dialCount *atomic.Int32) func(context.Context, string) (*grpc.ClientConn, error) {
	return func(_ context.Context, address string) (*grpc.ClientConn, error) {
		dialCount.Add(1)
		return grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
}

func TestPool_Acquire_CachesConnectionPerAddress(t *testing.T) {
	var dials atomic.Int32
	clock := &movableClock{t: helpers.TestNow()}
	pool := NewConnectionPool(fakeDial(&dials), 0, time.Hour, time.Hour, clock, log.NewNopLogger())

	conn1, err := pool.Acquire(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)
	conn2, err := pool.Acquire(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)

	assert.Same(t, conn1, conn2)
	assert.EqualValues(t, 1, dials.Load())
}

func TestPool_Acquire_EvictsLRUUnderCapacityPressureInsteadOfFailing(t *testing.T) {
	var dials atomic.Int32
	clock := &movableClock{t: helpers.TestNow()}
	pool := NewConnectionPool(fakeDial(&dials), 1, time.Hour, time.Hour, clock, log.NewNopLogger())

	_, err := pool.Acquire(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)

	_, err = pool.Acquire(context.Background(), "127.0.0.1:9001")
	require.NoError(t, err)
	assert.EqualValues(t, 2, dials.Load())

	// 9000's connection was evicted (LRU) to make room for 9001 under maxConnections=1; acquiring
	// it again dials fresh rather than failing with ErrPoolExhausted.
	_, err = pool.Acquire(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)
	assert.EqualValues(t, 3, dials.Load())
}

func TestPool_Sweep_EvictsExpiredByTTL(t *testing.T) {
	var dials atomic.Int32
	clock := &movableClock{t: helpers.TestNow()}
	pool := NewConnectionPool(fakeDial(&dials), 0, time.Minute, time.Hour, clock, log.NewNopLogger())

	_, err := pool.Acquire(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	pool.Sweep()

	_, err = pool.Acquire(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)
	assert.EqualValues(t, 2, dials.Load())
}

func TestPool_Sweep_KeepsFreshConnections(t *testing.T) {
	var dials atomic.Int32
	clock := &movableClock{t: helpers.TestNow()}
	pool := NewConnectionPool(fakeDial(&dials), 0, time.Hour, time.Hour, clock, log.NewNopLogger())

	_, err := pool.Acquire(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)

	pool.Sweep()

	_, err = pool.Acquire(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)
	assert.EqualValues(t, 1, dials.Load())
}

func TestPool_Close_RejectsFurtherAcquire(t *testing.T) {
	var dials atomic.Int32
	clock := &movableClock{t: helpers.TestNow()}
	pool := NewConnectionPool(fakeDial(&dials), 0, time.Hour, time.Hour, clock, log.NewNopLogger())

	require.NoError(t, pool.Close())

	_, err := pool.Acquire(context.Background(), "127.0.0.1:9000")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
