// Package kv is the adapter over the shared key-value store. Every other
// component persists through it.
//
// Atomic batches go through Store.Pipeline. The callback only receives a Cmd,
// which can queue writes on the bound connection but cannot read or open a
// second pipeline, so nested code cannot escape the batch onto a different
// pooled connection.
package kv

import (
	"context"
	"errors"
	"time"

	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/sentinel"
)

// Cmd queues write commands on a pipeline's bound connection. Nothing is
// applied until the pipeline callback returns nil and the batch executes.
type Cmd interface {
	Set(key string, value []byte)
	SetNX(key string, value []byte)
	Expire(key string, ttl time.Duration)
	Del(keys ...string)
	Incr(key string)
	Decr(key string)
	LPush(key string, values ...[]byte)
	RPush(key string, values ...[]byte)
	LTrim(key string, start, stop int64)
	LRem(key string, count int64, value []byte)
	ZAdd(key string, score float64, member []byte)
	ZRem(key string, member []byte)
}

// Store is the full adapter contract.
type Store interface {
	// Get returns sentinel.ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value; a zero ttl leaves the key without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	LPush(ctx context.Context, key string, values ...[]byte) error
	RPush(ctx context.Context, key string, values ...[]byte) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	LLen(ctx context.Context, key string) (int64, error)
	// TTL returns sentinel.ErrNotFound for a missing key and a negative
	// duration for a key without expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Scan calls fn for every key matching the glob pattern.
	Scan(ctx context.Context, pattern string, fn func(key string) error) error

	// Pipeline runs fn's queued commands as one MULTI/EXEC unit on one
	// connection. If fn returns an error nothing is executed.
	Pipeline(ctx context.Context, fn func(Cmd) error) error

	// BLMove pops the head of src onto the tail of dst, blocking up to
	// timeout. It returns sentinel.ErrNotFound when nothing arrived.
	BLMove(ctx context.Context, src, dst string, timeout time.Duration) ([]byte, error)
	// LMove is the non-blocking form; sentinel.ErrNotFound when src is empty.
	LMove(ctx context.Context, src, dst string) ([]byte, error)
	// MoveDue atomically moves up to limit members of zset scored at or
	// before now onto the tail of list, returning how many moved.
	MoveDue(ctx context.Context, zset, list string, now time.Time, limit int) (int, error)

	Ping(ctx context.Context) error
}

// unavailable wraps a connection-level failure. Callers may map it to a
// 502 upstream; the adapter itself never retries.
func unavailable(op string, err error) error {
	return &dErrors.Error{
		Code:    dErrors.CodeStoreUnavailable,
		AppCode: dErrors.AppStoreUnavailable,
		Message: "kv " + op,
		Err:     errors.Join(sentinel.ErrUnavailable, err),
	}
}

// IsUnavailable reports whether err came from a store connectivity failure.
func IsUnavailable(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeStoreUnavailable)
}
