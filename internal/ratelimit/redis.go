package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces window keys in a shared redis.
const DefaultKeyPrefix = "mockflow:ratelimit:"

// hitScript applies the lazy reset and the increment in one round trip.
// KEYS[1] window hash, ARGV[1] now in ms, ARGV[2] window in ms.
// The key outlives resetAt by a full window so expiry never hides state
// the reset rule still needs.
var hitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local span = tonumber(ARGV[2])
local count = 0
local reset_at = now + span
if redis.call('EXISTS', key) == 1 then
  count = tonumber(redis.call('HGET', key, 'count'))
  reset_at = tonumber(redis.call('HGET', key, 'reset_at'))
  if now > reset_at then
    count = 0
    reset_at = now + span
  end
end
count = count + 1
redis.call('HSET', key, 'count', count, 'reset_at', reset_at)
redis.call('PEXPIRE', key, (reset_at - now) + span + 1000)
return {count, reset_at}
`)

// RedisStore keeps windows in redis so several processes share them.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	ownsClient bool
}

// NewRedisStore uses an existing client. The caller keeps ownership of it.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedisStore connects using cfg and verifies the connection.
func DialRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	store := NewRedisStore(client, cfg.KeyPrefix)
	store.ownsClient = true
	return store, nil
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) Hit(ctx context.Context, key string, span time.Duration, now time.Time) (int, time.Time, error) {
	res, err := hitScript.Run(ctx, r.client, []string{r.key(key)}, now.UnixMilli(), span.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("run hit script: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected hit script result %v", res)
	}
	return int(res[0]), time.UnixMilli(res[1]), nil
}

func (r *RedisStore) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("delete window %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) ResetAll(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan windows: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete windows: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if r.ownsClient {
		return r.client.Close()
	}
	return nil
}
