//go:build integration

package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gmq/internal/platform/kv"
	"gmq/pkg/platform/sentinel"
	"gmq/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *kv.RedisStore
	ctx   context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = kv.NewRedis(s.redis.Client.Client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisStoreSuite) TestPipelineIsAtomic() {
	err := s.store.Pipeline(s.ctx, func(c kv.Cmd) error {
		c.Set("gmq:cap:tx:A", []byte(`{"id":"A"}`))
		c.Expire("gmq:cap:tx:A", time.Hour)
		c.LPush("gmq:cap:tx:list", []byte("A"))
		c.LTrim("gmq:cap:tx:list", 0, 49)
		c.RPush("gmq:queue:prgov_cap", []byte(`{"class":"ReceiptEmailWorker"}`))
		c.Incr("gmq:cap:stats:pending")
		return nil
	})
	s.Require().NoError(err)

	v, err := s.store.Get(s.ctx, "gmq:cap:tx:A")
	s.Require().NoError(err)
	s.JSONEq(`{"id":"A"}`, string(v))

	ttl, err := s.store.TTL(s.ctx, "gmq:cap:tx:A")
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute)

	n, err := s.store.LLen(s.ctx, "gmq:queue:prgov_cap")
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	raw, err := s.store.Get(s.ctx, "gmq:cap:stats:pending")
	s.Require().NoError(err)
	s.Equal("1", string(raw))
}

func (s *RedisStoreSuite) TestMissingKey() {
	_, err := s.store.Get(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.TTL(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestBLMoveAndMoveDue() {
	now := time.Now()
	s.Require().NoError(s.store.Pipeline(s.ctx, func(c kv.Cmd) error {
		c.ZAdd("z", float64(now.Add(-time.Second).UnixMilli()), []byte("due"))
		c.ZAdd("z", float64(now.Add(time.Hour).UnixMilli()), []byte("later"))
		return nil
	}))

	moved, err := s.store.MoveDue(s.ctx, "z", "q", now, 100)
	s.Require().NoError(err)
	s.Equal(1, moved)

	v, err := s.store.BLMove(s.ctx, "q", "q:processing", time.Second)
	s.Require().NoError(err)
	s.Equal("due", string(v))

	_, err = s.store.BLMove(s.ctx, "q", "q:processing", 100*time.Millisecond)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestScan() {
	s.Require().NoError(s.store.Set(s.ctx, "gmq:cap:tx:1", []byte("x"), 0))
	s.Require().NoError(s.store.Set(s.ctx, "gmq:cap:stats:visits", []byte("1"), 0))

	var keys []string
	s.Require().NoError(s.store.Scan(s.ctx, "gmq:cap:tx:*", func(k string) error {
		keys = append(keys, k)
		return nil
	}))
	s.Equal([]string{"gmq:cap:tx:1"}, keys)
}
