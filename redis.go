package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis. Each operation is a single Lua
// script, so it is atomic on one node and on a cluster shard.
type RedisStore struct {
	redis      func(ctx context.Context) redis.UniversalClient
	newVersion func() string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStoreWithDynamicCtx resolves the client per call, which lets
// callers route by context (tenants, shards). Scripts are loaded eagerly so
// misconfiguration surfaces at construction.
func NewRedisStoreWithDynamicCtx(ctx context.Context, redisFunc func(context.Context) redis.UniversalClient) (*RedisStore, error) {
	if redisFunc == nil {
		return nil, errors.New("quota: redis client is required")
	}

	client := redisFunc(ctx)
	for _, s := range []*redis.Script{luaReadScript, luaInsertScript, luaCompareAndSwapScript} {
		if err := s.Load(ctx, client).Err(); err != nil {
			return nil, fmt.Errorf("failed to load counter script: %w", err)
		}
	}

	return &RedisStore{
		redis:      redisFunc,
		newVersion: uuid.NewString,
	}, nil
}

func NewRedisStore(ctx context.Context, r redis.UniversalClient) (*RedisStore, error) {
	return NewRedisStoreWithDynamicCtx(ctx, func(ctx context.Context) redis.UniversalClient {
		return r
	})
}

func (s *RedisStore) VersionedRead(ctx context.Context, key string) (Counter, bool, error) {
	res, err := luaReadScript.Run(ctx, s.redis(ctx), []string{key}).Slice()
	if errors.Is(err, redis.Nil) {
		return Counter{}, false, nil
	}
	if err != nil {
		return Counter{}, false, err
	}
	if len(res) != 3 {
		return Counter{}, false, fmt.Errorf("unexpected counter reply of length %d", len(res))
	}

	c := Counter{
		Value:   toInt64(res[0]),
		Version: Version(toString(res[1])),
	}
	if ttl := toInt64(res[2]); ttl > 0 {
		c.TTL = time.Duration(ttl) * time.Millisecond
	}
	return c, true, nil
}

func (s *RedisStore) InsertIfAbsent(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	ms := ttlMillis(ttl)
	if ms <= 0 {
		return false, fmt.Errorf("ttl must be positive, got %v", ttl)
	}

	n, err := luaInsertScript.Run(ctx, s.redis(ctx), []string{key}, value, ms, s.newVersion()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, value int64, version Version, ttl time.Duration) (bool, error) {
	n, err := luaCompareAndSwapScript.Run(ctx, s.redis(ctx), []string{key},
		string(version), value, s.newVersion(), ttlMillis(ttl)).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
