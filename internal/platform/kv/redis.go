package kv

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"gmq/internal/platform/metrics"
	"gmq/pkg/platform/sentinel"
)

var moveDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
  redis.call('ZREM', KEYS[1], member)
  redis.call('RPUSH', KEYS[2], member)
end
return #due
`)

// RedisStore implements Store on go-redis.
type RedisStore struct {
	client  redis.UniversalClient
	metrics *metrics.Metrics
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithMetrics records pipeline latency and operation results.
func WithMetrics(m *metrics.Metrics) RedisOption {
	return func(s *RedisStore) {
		s.metrics = m
	}
}

// NewRedis wraps an existing client. The client owns the pool; the store
// never closes it.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveStoreOp(op, err)
	}
}

func (s *RedisStore) mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return sentinel.ErrNotFound
	}
	s.observe(op, err)
	return unavailable(op, err)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, s.mapErr("get", err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.mapErr("set", s.client.Set(ctx, key, value, ttl).Err())
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.mapErr("expire", s.client.Expire(ctx, key, ttl).Err())
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	return s.mapErr("del", s.client.Del(ctx, keys...).Err())
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	return n, s.mapErr("incr", err)
}

func (s *RedisStore) Decr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Decr(ctx, key).Result()
	return n, s.mapErr("decr", err)
}

func (s *RedisStore) LPush(ctx context.Context, key string, values ...[]byte) error {
	return s.mapErr("lpush", s.client.LPush(ctx, key, toAny(values)...).Err())
}

func (s *RedisStore) RPush(ctx context.Context, key string, values ...[]byte) error {
	return s.mapErr("rpush", s.client.RPush(ctx, key, toAny(values)...).Err())
}

func (s *RedisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.mapErr("ltrim", s.client.LTrim(ctx, key, start, stop).Err())
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.mapErr("lrange", err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	return n, s.mapErr("llen", err)
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, s.mapErr("ttl", err)
	}
	// -2 means the key does not exist.
	if d == -2*time.Nanosecond || d == -2*time.Second {
		return 0, sentinel.ErrNotFound
	}
	return d, nil
}

func (s *RedisStore) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return s.mapErr("scan", iter.Err())
}

func (s *RedisStore) Pipeline(ctx context.Context, fn func(Cmd) error) error {
	start := time.Now()
	var fnErr error
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fnErr = fn(&redisCmd{ctx: ctx, pipe: pipe})
		return fnErr
	})
	if s.metrics != nil {
		s.metrics.ObservePipeline(time.Since(start).Seconds())
	}
	if fnErr != nil {
		return fnErr
	}
	return s.mapErr("pipeline", err)
}

func (s *RedisStore) BLMove(ctx context.Context, src, dst string, timeout time.Duration) ([]byte, error) {
	val, err := s.client.BLMove(ctx, src, dst, "LEFT", "RIGHT", timeout).Bytes()
	if err != nil {
		return nil, s.mapErr("blmove", err)
	}
	return val, nil
}

func (s *RedisStore) LMove(ctx context.Context, src, dst string) ([]byte, error) {
	val, err := s.client.LMove(ctx, src, dst, "LEFT", "RIGHT").Bytes()
	if err != nil {
		return nil, s.mapErr("lmove", err)
	}
	return val, nil
}

func (s *RedisStore) MoveDue(ctx context.Context, zset, list string, now time.Time, limit int) (int, error) {
	n, err := moveDueScript.Run(ctx, s.client, []string{zset, list},
		strconv.FormatInt(now.UnixMilli(), 10), limit).Int()
	if err != nil {
		return 0, s.mapErr("movedue", err)
	}
	return n, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.mapErr("ping", s.client.Ping(ctx).Err())
}

// redisCmd binds queued commands to one MULTI/EXEC pipeline.
type redisCmd struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (c *redisCmd) Set(key string, value []byte)  { c.pipe.Set(c.ctx, key, value, 0) }
func (c *redisCmd) SetNX(key string, value []byte) { c.pipe.SetNX(c.ctx, key, value, 0) }
func (c *redisCmd) Expire(key string, ttl time.Duration) {
	c.pipe.Expire(c.ctx, key, ttl)
}
func (c *redisCmd) Del(keys ...string)                 { c.pipe.Del(c.ctx, keys...) }
func (c *redisCmd) Incr(key string)                    { c.pipe.Incr(c.ctx, key) }
func (c *redisCmd) Decr(key string)                    { c.pipe.Decr(c.ctx, key) }
func (c *redisCmd) LPush(key string, values ...[]byte) { c.pipe.LPush(c.ctx, key, toAny(values)...) }
func (c *redisCmd) RPush(key string, values ...[]byte) { c.pipe.RPush(c.ctx, key, toAny(values)...) }
func (c *redisCmd) LTrim(key string, start, stop int64) {
	c.pipe.LTrim(c.ctx, key, start, stop)
}
func (c *redisCmd) LRem(key string, count int64, value []byte) {
	c.pipe.LRem(c.ctx, key, count, value)
}
func (c *redisCmd) ZAdd(key string, score float64, member []byte) {
	c.pipe.ZAdd(c.ctx, key, redis.Z{Score: score, Member: member})
}
func (c *redisCmd) ZRem(key string, member []byte) { c.pipe.ZRem(c.ctx, key, member) }

func toAny(values [][]byte) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
