package kv

import (
	"context"
	"errors"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"gmq/pkg/platform/sentinel"
)

var errConnectionDropped = errors.New("connection dropped")

type entryKind int

const (
	kindString entryKind = iota
	kindList
	kindZSet
)

type entry struct {
	kind      entryKind
	str       []byte
	list      [][]byte
	zset      map[string]float64
	expiresAt time.Time
}

// MemoryStore implements Store in process. Expiry is evaluated lazily
// against an injectable clock, and connection failures can be injected to
// exercise atomicity.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]*entry
	now     func() time.Time
	changed chan struct{}

	down          bool
	failPipelines int
	pipelines     int
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock used for TTL evaluation.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		data:    make(map[string]*entry),
		now:     time.Now,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDown makes every subsequent operation fail as if the connection were lost.
func (s *MemoryStore) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// FailPipelines makes the next n pipelines drop the connection before EXEC.
// Queued commands are discarded, as Redis discards a MULTI block whose
// connection closes before EXEC.
func (s *MemoryStore) FailPipelines(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPipelines = n
}

// PipelineCount reports how many pipelines executed successfully.
func (s *MemoryStore) PipelineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipelines
}

// Keys returns every live key, sorted.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if s.lookup(k) != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// ZCard returns the size of a sorted set.
func (s *MemoryStore) ZCard(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil || e.kind != kindZSet {
		return 0
	}
	return len(e.zset)
}

// ZScores returns a copy of a sorted set's members and scores.
func (s *MemoryStore) ZScores(key string) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]float64{}
	if e := s.lookup(key); e != nil && e.kind == kindZSet {
		for m, sc := range e.zset {
			out[m] = sc
		}
	}
	return out
}

// lookup returns the live entry for key, evicting it if expired. Caller holds mu.
func (s *MemoryStore) lookup(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *MemoryStore) check(op string) error {
	if s.down {
		return unavailable(op, errConnectionDropped)
	}
	return nil
}

func (s *MemoryStore) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get"); err != nil {
		return nil, err
	}
	e := s.lookup(key)
	if e == nil || e.kind != kindString {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), e.str...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("set"); err != nil {
		return err
	}
	s.set(key, value)
	if ttl > 0 {
		s.expire(key, ttl)
	}
	return nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("expire"); err != nil {
		return err
	}
	s.expire(key, ttl)
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("del"); err != nil {
		return err
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("incr"); err != nil {
		return 0, err
	}
	return s.add(key, 1)
}

func (s *MemoryStore) Decr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("decr"); err != nil {
		return 0, err
	}
	return s.add(key, -1)
}

func (s *MemoryStore) LPush(_ context.Context, key string, values ...[]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("lpush"); err != nil {
		return err
	}
	s.push(key, true, values)
	return nil
}

func (s *MemoryStore) RPush(_ context.Context, key string, values ...[]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("rpush"); err != nil {
		return err
	}
	s.push(key, false, values)
	return nil
}

func (s *MemoryStore) LTrim(_ context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ltrim"); err != nil {
		return err
	}
	s.trim(key, start, stop)
	return nil
}

func (s *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("lrange"); err != nil {
		return nil, err
	}
	e := s.lookup(key)
	if e == nil || e.kind != kindList {
		return [][]byte{}, nil
	}
	lo, hi, ok := span(int64(len(e.list)), start, stop)
	if !ok {
		return [][]byte{}, nil
	}
	out := make([][]byte, 0, hi-lo+1)
	for _, v := range e.list[lo : hi+1] {
		out = append(out, append([]byte(nil), v...))
	}
	return out, nil
}

func (s *MemoryStore) LLen(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("llen"); err != nil {
		return 0, err
	}
	e := s.lookup(key)
	if e == nil || e.kind != kindList {
		return 0, nil
	}
	return int64(len(e.list)), nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ttl"); err != nil {
		return 0, err
	}
	e := s.lookup(key)
	if e == nil {
		return 0, sentinel.ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(s.now()), nil
}

// Scan matches keys with path.Match, which agrees with Redis globbing for
// keys that contain no '/'.
func (s *MemoryStore) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	s.mu.Lock()
	if err := s.check("scan"); err != nil {
		s.mu.Unlock()
		return err
	}
	var matched []string
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok && s.lookup(k) != nil {
			matched = append(matched, k)
		}
	}
	s.mu.Unlock()

	sort.Strings(matched)
	for _, k := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Pipeline(_ context.Context, fn func(Cmd) error) error {
	cmd := &memoryCmd{}
	if err := fn(cmd); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("pipeline"); err != nil {
		return err
	}
	if s.failPipelines > 0 {
		s.failPipelines--
		return unavailable("pipeline", errConnectionDropped)
	}
	for _, op := range cmd.ops {
		op(s)
	}
	s.pipelines++
	return nil
}

func (s *MemoryStore) BLMove(ctx context.Context, src, dst string, timeout time.Duration) ([]byte, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		s.mu.Lock()
		if err := s.check("blmove"); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if v, ok := s.move(src, dst); ok {
			s.mu.Unlock()
			return v, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-deadline:
			return nil, sentinel.ErrNotFound
		case <-ctx.Done():
			return nil, unavailable("blmove", ctx.Err())
		}
	}
}

func (s *MemoryStore) LMove(_ context.Context, src, dst string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("lmove"); err != nil {
		return nil, err
	}
	if v, ok := s.move(src, dst); ok {
		return v, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) MoveDue(_ context.Context, zset, list string, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("movedue"); err != nil {
		return 0, err
	}
	e := s.lookup(zset)
	if e == nil || e.kind != kindZSet {
		return 0, nil
	}

	type scored struct {
		member string
		score  float64
	}
	cutoff := float64(now.UnixMilli())
	var due []scored
	for m, sc := range e.zset {
		if sc <= cutoff {
			due = append(due, scored{m, sc})
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].score == due[j].score {
			return due[i].member < due[j].member
		}
		return due[i].score < due[j].score
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, d := range due {
		delete(e.zset, d.member)
		s.push(list, false, [][]byte{[]byte(d.member)})
	}
	if len(e.zset) == 0 {
		delete(s.data, zset)
	}
	return len(due), nil
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check("ping")
}

// Primitive operations below assume mu is held.

func (s *MemoryStore) set(key string, value []byte) {
	s.data[key] = &entry{kind: kindString, str: append([]byte(nil), value...)}
}

func (s *MemoryStore) setNX(key string, value []byte) {
	if s.lookup(key) == nil {
		s.set(key, value)
	}
}

func (s *MemoryStore) expire(key string, ttl time.Duration) {
	if e := s.lookup(key); e != nil {
		if ttl <= 0 {
			delete(s.data, key)
			return
		}
		e.expiresAt = s.now().Add(ttl)
	}
}

func (s *MemoryStore) add(key string, delta int64) (int64, error) {
	e := s.lookup(key)
	var n int64
	if e != nil {
		if e.kind != kindString {
			return 0, errors.New("WRONGTYPE operation against a key holding the wrong kind of value")
		}
		parsed, err := strconv.ParseInt(string(e.str), 10, 64)
		if err != nil {
			return 0, errors.New("ERR value is not an integer or out of range")
		}
		n = parsed
	}
	n += delta
	if e != nil {
		e.str = []byte(strconv.FormatInt(n, 10))
	} else {
		s.set(key, []byte(strconv.FormatInt(n, 10)))
	}
	return n, nil
}

func (s *MemoryStore) list(key string) *entry {
	e := s.lookup(key)
	if e == nil {
		e = &entry{kind: kindList}
		s.data[key] = e
	}
	return e
}

func (s *MemoryStore) push(key string, head bool, values [][]byte) {
	e := s.list(key)
	if e.kind != kindList {
		return
	}
	for _, v := range values {
		cp := append([]byte(nil), v...)
		if head {
			e.list = append([][]byte{cp}, e.list...)
		} else {
			e.list = append(e.list, cp)
		}
	}
	s.notify()
}

func (s *MemoryStore) trim(key string, start, stop int64) {
	e := s.lookup(key)
	if e == nil || e.kind != kindList {
		return
	}
	lo, hi, ok := span(int64(len(e.list)), start, stop)
	if !ok {
		delete(s.data, key)
		return
	}
	e.list = append([][]byte(nil), e.list[lo:hi+1]...)
}

func (s *MemoryStore) lrem(key string, count int64, value []byte) {
	e := s.lookup(key)
	if e == nil || e.kind != kindList {
		return
	}
	target := string(value)
	removed := int64(0)
	limit := count
	if limit < 0 {
		limit = -limit
	}
	keep := make([][]byte, 0, len(e.list))
	if count >= 0 {
		for _, v := range e.list {
			if string(v) == target && (limit == 0 || removed < limit) {
				removed++
				continue
			}
			keep = append(keep, v)
		}
	} else {
		for i := len(e.list) - 1; i >= 0; i-- {
			v := e.list[i]
			if string(v) == target && removed < limit {
				removed++
				continue
			}
			keep = append([][]byte{v}, keep...)
		}
	}
	if len(keep) == 0 {
		delete(s.data, key)
		return
	}
	e.list = keep
}

func (s *MemoryStore) zadd(key string, score float64, member []byte) {
	e := s.lookup(key)
	if e == nil {
		e = &entry{kind: kindZSet, zset: map[string]float64{}}
		s.data[key] = e
	}
	if e.kind == kindZSet {
		e.zset[string(member)] = score
	}
}

func (s *MemoryStore) zrem(key string, member []byte) {
	if e := s.lookup(key); e != nil && e.kind == kindZSet {
		delete(e.zset, string(member))
	}
}

func (s *MemoryStore) move(src, dst string) ([]byte, bool) {
	e := s.lookup(src)
	if e == nil || e.kind != kindList || len(e.list) == 0 {
		return nil, false
	}
	v := e.list[0]
	e.list = e.list[1:]
	if len(e.list) == 0 {
		delete(s.data, src)
	}
	s.push(dst, false, [][]byte{v})
	return append([]byte(nil), v...), true
}

// span converts Redis-style inclusive, possibly negative, indices into a
// valid [lo, hi] range over a list of length n.
func span(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

// memoryCmd buffers pipeline operations until EXEC.
type memoryCmd struct {
	ops []func(*MemoryStore)
}

func (c *memoryCmd) queue(op func(*MemoryStore)) { c.ops = append(c.ops, op) }

func (c *memoryCmd) Set(key string, value []byte) {
	v := append([]byte(nil), value...)
	c.queue(func(s *MemoryStore) { s.set(key, v) })
}

func (c *memoryCmd) SetNX(key string, value []byte) {
	v := append([]byte(nil), value...)
	c.queue(func(s *MemoryStore) { s.setNX(key, v) })
}

func (c *memoryCmd) Expire(key string, ttl time.Duration) {
	c.queue(func(s *MemoryStore) { s.expire(key, ttl) })
}

func (c *memoryCmd) Del(keys ...string) {
	c.queue(func(s *MemoryStore) {
		for _, k := range keys {
			delete(s.data, k)
		}
	})
}

func (c *memoryCmd) Incr(key string) {
	c.queue(func(s *MemoryStore) { _, _ = s.add(key, 1) })
}

func (c *memoryCmd) Decr(key string) {
	c.queue(func(s *MemoryStore) { _, _ = s.add(key, -1) })
}

func (c *memoryCmd) LPush(key string, values ...[]byte) {
	c.queue(func(s *MemoryStore) { s.push(key, true, values) })
}

func (c *memoryCmd) RPush(key string, values ...[]byte) {
	c.queue(func(s *MemoryStore) { s.push(key, false, values) })
}

func (c *memoryCmd) LTrim(key string, start, stop int64) {
	c.queue(func(s *MemoryStore) { s.trim(key, start, stop) })
}

func (c *memoryCmd) LRem(key string, count int64, value []byte) {
	c.queue(func(s *MemoryStore) { s.lrem(key, count, value) })
}

func (c *memoryCmd) ZAdd(key string, score float64, member []byte) {
	c.queue(func(s *MemoryStore) { s.zadd(key, score, member) })
}

func (c *memoryCmd) ZRem(key string, member []byte) {
	c.queue(func(s *MemoryStore) { s.zrem(key, member) })
}
