package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "ledger:balance:version"

// BalanceCache wraps Redis-based balance caching with versioning. Every
// commit bumps the version, orphaning all keys written under the old one,
// and each cached value also carries the commit sequence it was computed
// at so the reader can verify freshness explicitly.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache instantiates the cache helper.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

type cachedBalance struct {
	Balance int64 `json:"balance"`
	Seq     int64 `json:"seq"`
}

// Version returns the current cache version, initialising when missing.
func (c *BalanceCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *BalanceCache) key(ctx context.Context, accountID uuid.UUID) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ledger:balance:%s:%d", accountID, ver), nil
}

// Get loads a cached balance and the sequence it was computed at.
func (c *BalanceCache) Get(ctx context.Context, accountID uuid.UUID) (int64, int64, bool, error) {
	if c == nil || c.client == nil {
		return 0, 0, false, nil
	}
	key, err := c.key(ctx, accountID)
	if err != nil {
		return 0, 0, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	var cached cachedBalance
	if err := json.Unmarshal(payload, &cached); err != nil {
		return 0, 0, false, err
	}
	return cached.Balance, cached.Seq, true, nil
}

// Put stores a balance computed at the given commit sequence.
func (c *BalanceCache) Put(ctx context.Context, accountID uuid.UUID, balance, seq int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, accountID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(cachedBalance{Balance: balance, Seq: seq})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Bump invalidates every cached balance by incrementing the version.
func (c *BalanceCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
