// Package lock serializes forecast regeneration per account.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL        = 30 * time.Second
	defaultRetryEvery = 100 * time.Millisecond
	keyPrefix         = "hydrospark:forecast:"
)

// ErrNotObtained is returned when the lock is held elsewhere past the retry budget.
var ErrNotObtained = errors.New("lock: not obtained")

// Release frees a held lock.
type Release func(ctx context.Context) error

// RedisLocker takes per-account locks in Redis so that regenerations
// running in different processes do not interleave.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets the lock lease.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// NewRedisLocker wraps a go-redis client.
func NewRedisLocker(rdb redis.UniversalClient, opts ...RedisOption) (*RedisLocker, error) {
	if rdb == nil {
		return nil, errors.New("redis locker: nil client")
	}
	l := &RedisLocker{client: redislock.New(rdb), ttl: defaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.retries = int(l.ttl / defaultRetryEvery)
	return l, nil
}

// Acquire blocks, retrying for at most one lease, until the account lock is held.
func (l *RedisLocker) Acquire(ctx context.Context, accountID string) (Release, error) {
	lock, err := l.client.Obtain(ctx, keyPrefix+accountID, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(defaultRetryEvery), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: account %s", ErrNotObtained, accountID)
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}

// KeyedMutex is the single-process locker used when Redis is not configured.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewKeyedMutex constructs an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]chan struct{})}
}

// Acquire waits for the account lock or the context.
func (m *KeyedMutex) Acquire(ctx context.Context, accountID string) (Release, error) {
	for {
		m.mu.Lock()
		held, busy := m.locks[accountID]
		if !busy {
			done := make(chan struct{})
			m.locks[accountID] = done
			m.mu.Unlock()
			return m.releaser(accountID, done), nil
		}
		m.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *KeyedMutex) releaser(accountID string, done chan struct{}) Release {
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			m.mu.Lock()
			delete(m.locks, accountID)
			m.mu.Unlock()
			close(done)
		})
		return nil
	}
}
