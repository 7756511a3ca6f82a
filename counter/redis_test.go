package counter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedis(rdb)
}

func TestRedisIncrArmsTTLOnFirstHitOnly(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	n, err := store.IncrWithTTL(ctx, "auth:login:ip:1.2.3.4:60s", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, time.Minute, mr.TTL("auth:login:ip:1.2.3.4:60s"))

	mr.FastForward(20 * time.Second)

	n, err = store.IncrWithTTL(ctx, "auth:login:ip:1.2.3.4:60s", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	// The second hit must not push the window boundary out.
	require.Equal(t, 40*time.Second, mr.TTL("auth:login:ip:1.2.3.4:60s"))

	ttl, err := store.TTL(ctx, "auth:login:ip:1.2.3.4:60s")
	require.NoError(t, err)
	require.Equal(t, 40*time.Second, ttl)
}

func TestRedisWindowResetsAfterExpiry(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.IncrWithTTL(ctx, "k", time.Minute)
		require.NoError(t, err)
	}
	mr.FastForward(time.Minute)

	n, err := store.IncrWithTTL(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestRedisRearmsKeyWithoutTTL(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("k", "7"))

	n, err := store.IncrWithTTL(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(8), n)
	require.Equal(t, 30*time.Second, mr.TTL("k"))
}

func TestRedisTTLMissingKeyIsZero(t *testing.T) {
	_, store := newTestRedis(t)

	ttl, err := store.TTL(context.Background(), "absent")
	require.NoError(t, err)
	require.Zero(t, ttl)
}

func TestRedisErrorsWrapUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedis(rdb)
	mr.Close()
	ctx := context.Background()

	_, err = store.IncrWithTTL(ctx, "k", time.Minute)
	require.True(t, errors.Is(err, ErrUnavailable), "got %v", err)

	_, err = store.TTL(ctx, "k")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestRedisRejectsSubMillisecondWindow(t *testing.T) {
	_, store := newTestRedis(t)

	_, err := store.IncrWithTTL(context.Background(), "k", time.Microsecond)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnavailable)
}
