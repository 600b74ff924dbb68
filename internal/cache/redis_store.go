// internal/cache/redis_store.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "venuetrust:snapshot:"

// RedisStore keeps snapshots in redis. Keys carry a native TTL matching the
// entry expiry; the embedded ExpiresAt stays authoritative.
type RedisStore struct {
	client *redis.Client
	clock  Clock
}

func NewRedisStore(client *redis.Client, clock Clock) *RedisStore {
	if clock == nil {
		clock = SystemClock
	}
	return &RedisStore{client: client, clock: clock}
}

func redisKey(storeID uint64) string {
	return redisKeyPrefix + strconv.FormatUint(storeID, 10)
}

func (s *RedisStore) Get(ctx context.Context, storeID uint64) (*Entry, error) {
	raw, err := s.client.Get(ctx, redisKey(storeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &e, nil
}

func (s *RedisStore) Put(ctx context.Context, e *Entry) error {
	ttl := e.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(e.StoreID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, storeID uint64) error {
	if err := s.client.Del(ctx, redisKey(storeID)).Err(); err != nil {
		return fmt.Errorf("redis delete snapshot: %w", err)
	}
	return nil
}

// Ping checks connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
