package ledger

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *BalanceCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBalanceCache(client, time.Minute)
}

func TestBalanceCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	accountID := uuid.New()

	_, _, ok, err := cache.Get(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, accountID, 12_345, 7))
	balance, seq, ok, err := cache.Get(ctx, accountID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(12_345), balance)
	assert.Equal(t, int64(7), seq)
}

func TestBalanceCacheBumpOrphansOldEntries(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	accountID := uuid.New()

	require.NoError(t, cache.Put(ctx, accountID, 500, 1))
	require.NoError(t, cache.Bump(ctx))

	_, _, ok, err := cache.Get(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, ok, "entries under the old version must be unreachable")

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ver)
}

func TestBalanceCacheNilIsNoop(t *testing.T) {
	var cache *BalanceCache
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, uuid.New(), 1, 1))
	_, _, ok, err := cache.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, cache.Bump(ctx))
}
