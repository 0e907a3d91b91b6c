package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultLockTTL = 4 * time.Minute

// Lock coordinates exclusive cron runs across workers.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// extendableLock is implemented by locks whose lease can be renewed between
// jobs.
type extendableLock interface {
	Extend(ctx context.Context) (bool, error)
}

type redisLocker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	ExtendLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// RedisLock holds a named redis lock for at most ttl. The TTL should be
// shorter than the tick interval so a crashed worker never blocks the next
// tick.
type RedisLock struct {
	client redisLocker
	name   string
	ttl    time.Duration
	token  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisLocker, name string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, name: name, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token, ok, err := l.client.AcquireLock(ctx, l.name, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.name, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Extend renews the lease for another ttl. It reports false once this
// worker no longer owns the lock.
func (l *RedisLock) Extend(ctx context.Context) (bool, error) {
	if l.token == "" {
		return false, nil
	}
	ok, err := l.client.ExtendLock(ctx, l.name, l.token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("extend %s: %w", l.name, err)
	}
	if !ok {
		l.token = ""
	}
	return ok, nil
}

// Release frees the lock only while this worker still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	if err := l.client.ReleaseLock(ctx, l.name, l.token); err != nil {
		return fmt.Errorf("release %s: %w", l.name, err)
	}
	l.token = ""
	return nil
}
