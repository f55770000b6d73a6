// Package store persists validation requests. They expire after fifteen
// minutes and never touch the transaction counters.
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
	"gmq/internal/validator/models"
	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/sentinel"
)

const (
	keyPrefix = "gmq:cap:validation:"
	listKey   = keyPrefix + "list"
)

func Key(id string) string { return keyPrefix + id }

func ListKey() string { return listKey }

type Store struct {
	kv         kv.Store
	jobs       *queue.Client
	ttl        time.Duration
	recentSize int64
	now        func() time.Time
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(store kv.Store, client *queue.Client, opts ...Option) *Store {
	s := &Store{
		kv:         store,
		jobs:       client,
		ttl:        config.DefaultValidatorTTL,
		recentSize: config.DefaultRecentListSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Find(ctx context.Context, id string) (*models.Validator, error) {
	raw, err := s.kv.Get(ctx, Key(id))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, (&dErrors.Error{
			Code:    dErrors.CodeNotFound,
			Message: "validator " + id + " not found",
			Err:     sentinel.ErrNotFound,
		}).WithAppCode(dErrors.AppItemNotFound)
	}
	if err != nil {
		return nil, err
	}
	var v models.Validator
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, (&dErrors.Error{
			Code:    dErrors.CodeCorruptRecord,
			Message: "validator " + id + " is not valid JSON",
			Err:     err,
		}).WithAppCode(dErrors.AppInvalidNonJSONRecord)
	}
	return &v, nil
}

// Save writes v. The first save also lists it and enqueues the RCI check.
func (s *Store) Save(ctx context.Context, v *models.Validator) error {
	if v == nil || v.ID == "" {
		return dErrors.NewField(dErrors.AppMissingID, "id", "validator id is required")
	}
	prev := v.Clone()
	first := v.IsNew()
	now := s.now()
	if first {
		v.State = models.StateReceived
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
	}
	v.UpdatedAt = now

	blob, err := json.Marshal(v)
	if err != nil {
		*v = *prev
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode validator")
	}
	err = s.kv.Pipeline(ctx, func(cmd kv.Cmd) error {
		cmd.Set(Key(v.ID), blob)
		cmd.Expire(Key(v.ID), s.ttl)
		if !first {
			return nil
		}
		cmd.LPush(listKey, []byte(v.ID))
		cmd.LTrim(listKey, 0, s.recentSize-1)
		_, err := s.jobs.EnqueueCmd(cmd, jobs.CertificateValidation, jobs.IDArgs{ID: v.ID})
		return err
	})
	if err != nil {
		*v = *prev
		return err
	}
	return nil
}
