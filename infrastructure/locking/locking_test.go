package locking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryLocker_SerializesPerProject(t *testing.T) {
	locker := NewMemoryLocker()

	var (
		wg      sync.WaitGroup
		active  int32
		maxSeen int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "p1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Empty(t, locker.slots, "slots are dropped once nobody waits")
}

func TestMemoryLocker_ProjectsAreIndependent(t *testing.T) {
	locker := NewMemoryLocker()

	unlockA, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestMemoryLocker_WaitHonorsContext(t *testing.T) {
	locker := NewMemoryLocker()
	unlock, err := locker.Lock(context.Background(), "p1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "p1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op

	again, err := locker.Lock(context.Background(), "p1")
	require.NoError(t, err)
	again()
}

func TestNoopLocker(t *testing.T) {
	unlock, err := NoopLocker{}.Lock(context.Background(), "p1")
	require.NoError(t, err)
	unlock()
}

func newRedisLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLockerWithClient(client, 10*time.Second, wait, zap.NewNop()), server
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	locker, server := newRedisLocker(t, time.Second)

	unlock, err := locker.Lock(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, server.Exists("reqgraph:lock:p1"))
	assert.Equal(t, 10*time.Second, server.TTL("reqgraph:lock:p1"))

	unlock()
	assert.False(t, server.Exists("reqgraph:lock:p1"))
}

func TestRedisLocker_TimesOutWhileHeld(t *testing.T) {
	locker, server := newRedisLocker(t, 50*time.Millisecond)
	require.NoError(t, server.Set("reqgraph:lock:p1", "someone-else"))

	_, err := locker.Lock(context.Background(), "p1")

	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	locker, server := newRedisLocker(t, time.Second)

	unlock, err := locker.Lock(context.Background(), "p1")
	require.NoError(t, err)

	// our lease expired and another process took the lock
	require.NoError(t, server.Set("reqgraph:lock:p1", "other-owner"))
	unlock()

	value, err := server.Get("reqgraph:lock:p1")
	require.NoError(t, err)
	assert.Equal(t, "other-owner", value)
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	locker, _ := newRedisLocker(t, 2*time.Second)

	unlock, err := locker.Lock(context.Background(), "p1")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		unlock()
	}()

	second, err := locker.Lock(context.Background(), "p1")
	require.NoError(t, err)
	second()
}

func TestNewRedisLocker_FromURL(t *testing.T) {
	server := miniredis.RunT(t)

	locker, err := NewRedisLocker("redis://"+server.Addr(), time.Second, time.Second, zap.NewNop())
	require.NoError(t, err)
	defer locker.Close()

	_, err = NewRedisLocker("://bad", time.Second, time.Second, zap.NewNop())
	assert.Error(t, err)
}

func TestNewRedisLocker_Unreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	locker, err := NewRedisLocker("redis://"+addr, time.Second, time.Second, zap.NewNop())

	assert.Nil(t, locker)
	assert.ErrorContains(t, err, "connect to redis")
}
