package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"gmq/pkg/platform/sentinel"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type MemoryStoreSuite struct {
	suite.Suite
	clock *fakeClock
	store *MemoryStore
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.clock = &fakeClock{now: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	s.store = NewMemory(WithClock(s.clock.Now))
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) TestGetMissingIsNotFound() {
	_, err := s.store.Get(s.ctx, "gmq:cap:tx:missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestTTLExpiry() {
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("v"), 10*time.Second))

	v, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("v", string(v))

	ttl, err := s.store.TTL(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal(10*time.Second, ttl)

	s.clock.Advance(10 * time.Second)
	_, err = s.store.Get(s.ctx, "k")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.TTL(s.ctx, "k")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestSetClearsTTL() {
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("v"), time.Second))
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("w"), 0))
	ttl, err := s.store.TTL(s.ctx, "k")
	s.Require().NoError(err)
	s.Less(ttl, time.Duration(0))
}

func (s *MemoryStoreSuite) TestCounters() {
	n, err := s.store.Incr(s.ctx, "c")
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	n, err = s.store.Decr(s.ctx, "c")
	s.Require().NoError(err)
	s.Equal(int64(0), n)
	n, err = s.store.Decr(s.ctx, "c")
	s.Require().NoError(err)
	s.Equal(int64(-1), n)
}

func (s *MemoryStoreSuite) TestListOperations() {
	s.Require().NoError(s.store.LPush(s.ctx, "l", []byte("a")))
	s.Require().NoError(s.store.LPush(s.ctx, "l", []byte("b")))
	s.Require().NoError(s.store.RPush(s.ctx, "l", []byte("c")))

	vals, err := s.store.LRange(s.ctx, "l", 0, -1)
	s.Require().NoError(err)
	s.Equal([]string{"b", "a", "c"}, asStrings(vals))

	s.Require().NoError(s.store.LTrim(s.ctx, "l", 0, 1))
	vals, err = s.store.LRange(s.ctx, "l", 0, -1)
	s.Require().NoError(err)
	s.Equal([]string{"b", "a"}, asStrings(vals))

	n, err := s.store.LLen(s.ctx, "l")
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *MemoryStoreSuite) TestPipelineAppliesEverything() {
	err := s.store.Pipeline(s.ctx, func(c Cmd) error {
		c.Set("blob", []byte("{}"))
		c.Expire("blob", time.Minute)
		c.LPush("list", []byte("id"))
		c.LTrim("list", 0, 49)
		c.RPush("queue", []byte("job"))
		c.Incr("pending")
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]string{"blob", "list", "pending", "queue"}, s.store.Keys())
	s.Equal(1, s.store.PipelineCount())
}

func (s *MemoryStoreSuite) TestPipelineDroppedConnectionAppliesNothing() {
	s.store.FailPipelines(1)
	err := s.store.Pipeline(s.ctx, func(c Cmd) error {
		c.Set("blob", []byte("{}"))
		c.Expire("blob", time.Minute)
		c.LPush("list", []byte("id"))
		c.RPush("queue", []byte("job"))
		c.Incr("pending")
		return nil
	})
	s.Require().Error(err)
	s.True(IsUnavailable(err))
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Empty(s.store.Keys())
}

func (s *MemoryStoreSuite) TestPipelineCallbackErrorAppliesNothing() {
	boom := errors.New("encode failed")
	err := s.store.Pipeline(s.ctx, func(c Cmd) error {
		c.Set("blob", []byte("{}"))
		return boom
	})
	s.ErrorIs(err, boom)
	s.Empty(s.store.Keys())
}

func (s *MemoryStoreSuite) TestDownStore() {
	s.store.SetDown(true)
	_, err := s.store.Get(s.ctx, "k")
	s.True(IsUnavailable(err))
	s.store.SetDown(false)
	s.NoError(s.store.Ping(s.ctx))
}

func (s *MemoryStoreSuite) TestLRem() {
	for _, v := range []string{"a", "b", "a", "c", "a"} {
		s.Require().NoError(s.store.RPush(s.ctx, "l", []byte(v)))
	}
	s.Require().NoError(s.store.Pipeline(s.ctx, func(c Cmd) error {
		c.LRem("l", 1, []byte("a"))
		return nil
	}))
	vals, _ := s.store.LRange(s.ctx, "l", 0, -1)
	s.Equal([]string{"b", "a", "c", "a"}, asStrings(vals))

	s.Require().NoError(s.store.Pipeline(s.ctx, func(c Cmd) error {
		c.LRem("l", -1, []byte("a"))
		return nil
	}))
	vals, _ = s.store.LRange(s.ctx, "l", 0, -1)
	s.Equal([]string{"b", "a", "c"}, asStrings(vals))

	s.Require().NoError(s.store.Pipeline(s.ctx, func(c Cmd) error {
		c.LRem("l", 0, []byte("a"))
		return nil
	}))
	vals, _ = s.store.LRange(s.ctx, "l", 0, -1)
	s.Equal([]string{"b", "c"}, asStrings(vals))
}

func (s *MemoryStoreSuite) TestBLMoveTimesOut() {
	_, err := s.store.BLMove(s.ctx, "q", "p", 10*time.Millisecond)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestBLMoveWakesOnPush() {
	done := make(chan []byte, 1)
	go func() {
		v, err := s.store.BLMove(s.ctx, "q", "p", 2*time.Second)
		if err == nil {
			done <- v
		}
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	s.Require().NoError(s.store.RPush(s.ctx, "q", []byte("job")))

	select {
	case v := <-done:
		s.Equal("job", string(v))
	case <-time.After(time.Second):
		s.Fail("BLMove did not wake up")
	}
	n, _ := s.store.LLen(s.ctx, "p")
	s.Equal(int64(1), n)
}

func (s *MemoryStoreSuite) TestMoveDue() {
	now := s.clock.Now()
	s.Require().NoError(s.store.Pipeline(s.ctx, func(c Cmd) error {
		c.ZAdd("z", float64(now.Add(-time.Second).UnixMilli()), []byte("old"))
		c.ZAdd("z", float64(now.UnixMilli()), []byte("now"))
		c.ZAdd("z", float64(now.Add(time.Minute).UnixMilli()), []byte("later"))
		return nil
	}))

	n, err := s.store.MoveDue(s.ctx, "z", "q", now, 10)
	s.Require().NoError(err)
	s.Equal(2, n)
	vals, _ := s.store.LRange(s.ctx, "q", 0, -1)
	s.Equal([]string{"old", "now"}, asStrings(vals))
	s.Equal(1, s.store.ZCard("z"))
}

func (s *MemoryStoreSuite) TestScan() {
	for _, k := range []string{"gmq:cap:tx:1", "gmq:cap:tx:2", "gmq:cap:stats:pending"} {
		s.Require().NoError(s.store.Set(s.ctx, k, []byte("x"), 0))
	}
	var seen []string
	err := s.store.Scan(s.ctx, "gmq:cap:tx:*", func(key string) error {
		seen = append(seen, key)
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]string{"gmq:cap:tx:1", "gmq:cap:tx:2"}, seen)
}

func TestSpan(t *testing.T) {
	lo, hi, ok := span(5, 0, -1)
	require.True(t, ok)
	assert.Equal(t, int64(0), lo)
	assert.Equal(t, int64(4), hi)

	_, _, ok = span(5, 6, 10)
	assert.False(t, ok)

	lo, hi, ok = span(5, -2, 100)
	require.True(t, ok)
	assert.Equal(t, int64(3), lo)
	assert.Equal(t, int64(4), hi)
}

func asStrings(vals [][]byte) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}
