// Package store persists transactions as JSON blobs in the key-value store.
//
// Every save is a single pipeline: the blob, its expiry, and whatever jobs and
// counter moves the caller attached either all commit or none do.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gmq/internal/jobs"
	"gmq/internal/platform/config"
	"gmq/internal/platform/kv"
	"gmq/internal/queue"
	"gmq/internal/stats"
	"gmq/internal/transaction/models"
	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/sentinel"
)

const (
	keyPrefix    = "gmq:cap:tx:"
	listKey      = keyPrefix + "list"
	numericIDKey = keyPrefix + "numeric_id"
)

// Key returns the store key of transaction id.
func Key(id string) string { return keyPrefix + id }

// ListKey is the recent-transactions list.
func ListKey() string { return listKey }

// Store reads and writes transactions.
type Store struct {
	kv         kv.Store
	jobs       *queue.Client
	ttl        time.Duration
	recentSize int64
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the blob retention.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the clock used for updated_at and history.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a transaction store. Jobs attached to saves are pushed through client.
func New(store kv.Store, client *queue.Client, opts ...Option) *Store {
	s := &Store{
		kv:         store,
		jobs:       client,
		ttl:        config.DefaultTransactionTTL,
		recentSize: config.DefaultRecentListSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type saveOptions struct {
	jobs  []jobs.Job
	stats []stats.Op
}

// SaveOption attaches work to a save's pipeline.
type SaveOption func(*saveOptions)

// WithJobs enqueues jobs in the same pipeline as the save.
func WithJobs(js ...jobs.Job) SaveOption {
	return func(o *saveOptions) {
		o.jobs = append(o.jobs, js...)
	}
}

// WithStats applies counter moves in the same pipeline as the save.
func WithStats(ops ...stats.Op) SaveOption {
	return func(o *saveOptions) {
		o.stats = append(o.stats, ops...)
	}
}

// Find loads a transaction.
func (s *Store) Find(ctx context.Context, id string) (*models.Transaction, error) {
	raw, err := s.kv.Get(ctx, Key(id))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, (&dErrors.Error{
			Code:    dErrors.CodeNotFound,
			Message: "transaction " + id + " not found",
			Err:     sentinel.ErrNotFound,
		}).WithAppCode(dErrors.AppItemNotFound)
	}
	if err != nil {
		return nil, err
	}
	var tx models.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, (&dErrors.Error{
			Code:    dErrors.CodeCorruptRecord,
			Message: "transaction " + id + " is not valid JSON",
			Err:     err,
		}).WithAppCode(dErrors.AppInvalidNonJSONRecord)
	}
	return &tx, nil
}

// Exists reports whether a transaction is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.kv.Get(ctx, Key(id))
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Save writes tx and everything attached to it atomically.
//
// A first save (state New) also lists the id as recent, counts it as
// pending, enqueues the receipt email, and moves it to Received. If the
// pipeline fails tx is restored to its pre-save contents, except for a
// numeric id that was already allocated.
func (s *Store) Save(ctx context.Context, tx *models.Transaction, opts ...SaveOption) error {
	if tx == nil || tx.ID == "" {
		return dErrors.NewField(dErrors.AppMissingID, "id", "transaction id is required")
	}
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	first := tx.IsNew()
	if first && tx.NumericID == 0 {
		n, err := s.kv.Incr(ctx, numericIDKey)
		if err != nil {
			return err
		}
		tx.NumericID = n
	}
	prev := tx.Clone()

	now := s.now()
	if first {
		if tx.State == "" {
			tx.State = models.StateNew
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}
		if err := tx.Apply(models.EventSaveFirst, now); err != nil {
			*tx = *prev
			return err
		}
		tx.Status = models.StatusReceived
	}
	tx.UpdatedAt = now

	blob, err := json.Marshal(tx)
	if err != nil {
		*tx = *prev
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode transaction")
	}

	err = s.kv.Pipeline(ctx, func(cmd kv.Cmd) error {
		cmd.Set(Key(tx.ID), blob)
		cmd.Expire(Key(tx.ID), s.ttl)
		if first {
			cmd.LPush(listKey, []byte(tx.ID))
			cmd.LTrim(listKey, 0, s.recentSize-1)
			if _, err := s.jobs.EnqueueCmd(cmd, jobs.ReceiptEmail, jobs.IDArgs{ID: tx.ID}); err != nil {
				return err
			}
			stats.AddPending(cmd)
		}
		for _, j := range o.jobs {
			if _, err := s.jobs.EnqueueCmd(cmd, j.Class, j.Payload); err != nil {
				return err
			}
		}
		for _, op := range o.stats {
			op(cmd)
		}
		return nil
	})
	if err != nil {
		*tx = *prev
		return err
	}
	return nil
}

// Recent returns up to n of the most recently created transaction ids.
func (s *Store) Recent(ctx context.Context, n int) ([]string, error) {
	if n <= 0 || int64(n) > s.recentSize {
		n = int(s.recentSize)
	}
	raw, err := s.kv.LRange(ctx, listKey, 0, int64(n)-1)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(raw))
	for i, r := range raw {
		ids[i] = string(r)
	}
	return ids, nil
}
