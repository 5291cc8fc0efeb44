package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore speaks the Redis protocol through go-redis.  It is used when the
// service runs next to a plain Redis deployment instead of the REST gateway.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing client.  The client is owned by the caller.
func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return v, true, nil
}

// Set writes value under key.  With OnlyIfAbsent the write is a single
// SET ... NX command so two concurrent creators can never both succeed.
func (s *RedisStore) Set(ctx context.Context, key, value string, opts SetOptions) (bool, error) {
	if opts.OnlyIfAbsent {
		ok, err := s.rdb.SetNX(ctx, key, value, opts.TTL).Result()
		if err != nil {
			return false, unavailable("set", key, err)
		}
		return ok, nil
	}
	if err := s.rdb.Set(ctx, key, value, opts.TTL).Err(); err != nil {
		return false, unavailable("set", key, err)
	}
	return true, nil
}

var redisSwap = redis.NewScript(swapScript)

// Swap runs the compare-and-set script so no other writer can slip in
// between the comparison and the write.
func (s *RedisStore) Swap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	n, err := redisSwap.Run(ctx, s.rdb, []string{key}, old, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, unavailable("swap", key, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return unavailable("del", key, err)
	}
	return nil
}

// TTL returns the remaining lifetime.  Redis answers -2 for a missing key and
// -1 for a key without expiry; both map to known=false.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, unavailable("ttl", key, err)
	}
	if d <= 0 {
		return 0, false, nil
	}
	return d, true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}
