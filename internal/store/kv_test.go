package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisKV(client), mr
}

func TestRedisKV_GetSet(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "session:abc", `{"user_id":1}`, time.Minute))

	val, err := kv.Get(ctx, "session:abc")
	require.NoError(t, err)
	require.Equal(t, `{"user_id":1}`, val)
}

func TestRedisKV_Del(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "session:abc", "v", time.Minute))
	require.NoError(t, kv.Del(ctx, "session:abc"))

	_, err := kv.Get(ctx, "session:abc")
	require.ErrorIs(t, err, ErrMiss)

	// Del without keys is a no-op
	require.NoError(t, kv.Del(ctx))
}

func TestRedisKV_ScanKeys(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "drone:latest:DRONE-1", "a", 0))
	require.NoError(t, kv.Set(ctx, "drone:latest:DRONE-2", "b", 0))
	require.NoError(t, kv.Set(ctx, "session:abc", "c", 0))

	keys, err := kv.ScanKeys(ctx, "drone:latest:*")
	require.NoError(t, err)
	require.Len(t, keys, 2)
}
