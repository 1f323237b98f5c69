package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameAccount(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "a1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestKeyedMutexIndependentAccounts(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	r1, err := m.Acquire(ctx, "a1")
	require.NoError(t, err)
	r2, err := m.Acquire(ctx, "a2")
	require.NoError(t, err)
	require.NoError(t, r1(ctx))
	require.NoError(t, r2(ctx))
	// double release is harmless
	require.NoError(t, r1(ctx))
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	m := NewKeyedMutex()
	release, err := m.Acquire(context.Background(), "a1")
	require.NoError(t, err)
	defer release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "a1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	locker, err := NewRedisLocker(rdb, WithTTL(200*time.Millisecond))
	require.NoError(t, err)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "lock-test")
	require.NoError(t, err)
	require.NoError(t, release(ctx))

	release, err = locker.Acquire(ctx, "lock-test")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "releasing an expired or released lock is not an error")
}
