package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "proofs:user-1", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 1, count)
	require.Len(t, mock.expireCalls, 1)
	require.Equal(t, "sf:rate_limit:proofs:user-1", mock.expireCalls[0].key)
	require.Equal(t, time.Minute, mock.expireCalls[0].ttl)

	allowed, count, err = client.FixedWindowAllow(ctx, "proofs:user-1", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 2, count)
	require.Len(t, mock.expireCalls, 1, "expire should only be set on the first hit")

	allowed, _, err = client.FixedWindowAllow(ctx, "proofs:user-1", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	token, ok, err := client.AcquireLock(ctx, "cron:auto_confirm", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = client.AcquireLock(ctx, "cron:auto_confirm", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "second acquire must fail while held")

	extended, err := client.ExtendLock(ctx, "cron:auto_confirm", token, 2*time.Minute)
	require.NoError(t, err)
	require.True(t, extended)
	extended, err = client.ExtendLock(ctx, "cron:auto_confirm", "someone-else", 2*time.Minute)
	require.NoError(t, err)
	require.False(t, extended)

	require.NoError(t, client.ReleaseLock(ctx, "cron:auto_confirm", "someone-else"))
	_, held := mock.data["sf:lock:cron:auto_confirm"]
	require.True(t, held, "foreign token must not release the lock")

	require.NoError(t, client.ReleaseLock(ctx, "cron:auto_confirm", token))
	_, held = mock.data["sf:lock:cron:auto_confirm"]
	require.False(t, held)

	_, ok, err = client.AcquireLock(ctx, "cron:auto_confirm", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "sf:idempotency:orders.create:user:key", client.IdempotencyKey("orders.create:user", "key"))
	require.Equal(t, "sf:rate_limit:scope", client.RateLimitKey("scope"))
	require.Equal(t, "sf:lock:cron", client.LockKey("cron"))
	require.Equal(t, "sf:idempotency:id", client.IdempotencyKey("", "id"))
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	require.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	_, err := client.Get(context.Background(), "k")
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/0", DB: 3, PoolSize: 7})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6380", Password: "pw", DB: 1})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, "pw", opts.Password)
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval emulates the three scripts the client sends.
func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	owns := len(args) > 0 && m.data[key] == fmt.Sprint(args[0])
	switch script {
	case windowScript:
		m.incr[key]++
		if m.incr[key] == 1 {
			m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: time.Duration(args[0].(int64)) * time.Millisecond})
		}
		return redis.NewCmdResult(m.incr[key], nil)
	case extendScript:
		if owns {
			m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: time.Duration(args[1].(int64)) * time.Millisecond})
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	case releaseScript:
		if owns {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}
