package nonce

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var reserveScript = redis.NewScript(`
local cur = 0
local v = redis.call('GET', KEYS[1])
if v then cur = tonumber(v) end
local remote = tonumber(ARGV[1])
if remote > cur then cur = remote end
if tonumber(ARGV[2]) > 0 then
	redis.call('SET', KEYS[1], cur + 1, 'PX', ARGV[2])
else
	redis.call('SET', KEYS[1], cur + 1)
end
return cur
`)

var advanceScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
local target = tonumber(ARGV[1])
if (not v) or tonumber(v) < target then
	if tonumber(ARGV[2]) > 0 then
		redis.call('SET', KEYS[1], target, 'PX', ARGV[2])
	else
		redis.call('SET', KEYS[1], target)
	end
end
return 1
`)

// RedisStore shares counters between processes. Reserve and Advance run as
// Lua scripts so they are atomic on the server.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

type RedisConfig struct {
	Client redis.UniversalClient
	// Prefix is prepended to every key, defaults to "tomo:nonce"
	Prefix string
	// TTL expires idle counters so they reseed from the remote value.
	// Zero keeps them forever.
	TTL time.Duration
}

func NewRedisStore(c RedisConfig) *RedisStore {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "tomo:nonce"
	}
	return &RedisStore{
		client: c.Client,
		prefix: prefix,
		ttl:    c.TTL,
	}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, remote uint64) (uint64, error) {
	n, err := reserveScript.Run(
		ctx,
		s.client,
		[]string{s.key(key)},
		remote,
		s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis reserve %s: %w", key, err)
	}
	return uint64(n), nil
}

func (s *RedisStore) Advance(ctx context.Context, key string, next uint64) error {
	err := advanceScript.Run(
		ctx,
		s.client,
		[]string{s.key(key)},
		next,
		s.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis advance %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis reset %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}
