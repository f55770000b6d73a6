package queue

import (
	"context"
	"time"

	"gmq/internal/platform/kv"
)

// DeadLetters inspects and re-drives the dead list of a queue. Nothing
// re-drives dead jobs automatically.
type DeadLetters struct {
	store kv.Store
	now   func() time.Time
}

// NewDeadLetters creates a dead-list accessor.
func NewDeadLetters(store kv.Store) *DeadLetters {
	return &DeadLetters{store: store, now: time.Now}
}

// List returns up to n most recent dead jobs of queue.
func (d *DeadLetters) List(ctx context.Context, queue string, n int) ([]Job, error) {
	if n <= 0 {
		n = 50
	}
	raws, err := d.store.LRange(ctx, DeadKey(queue), 0, int64(n-1))
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(raws))
	for _, raw := range raws {
		job, err := Decode(raw)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Retry pushes up to n of the most recent dead jobs back onto queue with
// their attempt counter reset. Each job moves in its own pipeline.
func (d *DeadLetters) Retry(ctx context.Context, queue string, n int) (int, error) {
	raws, err := d.store.LRange(ctx, DeadKey(queue), 0, int64(n-1))
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, raw := range raws {
		job, err := Decode(raw)
		if err != nil {
			continue
		}
		job.RetryAttempt = 0
		job.Error = ""
		job.FailedAt = ""
		job.EnqueuedAt = d.now().UTC().Format(time.RFC3339Nano)
		fresh, err := job.Encode()
		if err != nil {
			return moved, err
		}
		err = d.store.Pipeline(ctx, func(c kv.Cmd) error {
			c.LRem(DeadKey(queue), 1, raw)
			c.RPush(Key(queue), fresh)
			return nil
		})
		if err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
