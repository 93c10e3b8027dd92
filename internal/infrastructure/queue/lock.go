package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Locker runs work under a Redis lock so that one instance at a time drains
// the outbox or scans for stale jobs.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewLocker creates a locker whose locks expire after ttl.
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: redislock.New(rdb), ttl: ttl}
}

// RunExclusive runs fn while holding key. It returns false without calling fn
// when another holder owns the lock. fn's context is cancelled when the lock
// expires.
func (l *Locker) RunExclusive(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	defer func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return true, fn(lockCtx)
}
