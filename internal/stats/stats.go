// Package stats keeps the process-wide counters. Counters only move through
// INCR/DECR, and whenever a record save is involved they move inside the
// same pipeline so they cannot drift from transaction state.
package stats

import (
	"context"
	"errors"
	"strconv"

	"gmq/internal/platform/kv"
	"gmq/internal/platform/metrics"
	"gmq/pkg/platform/sentinel"
)

const prefix = "gmq:cap:stats:"

// Counter names.
const (
	Visits    = "visits"
	Pending   = "pending"
	Completed = "completed"
	Failed    = "failed"
)

var all = []string{Visits, Pending, Completed, Failed}

// Key returns the store key of counter name.
func Key(name string) string { return prefix + name }

// Snapshot is a point-in-time read of every counter.
type Snapshot struct {
	Visits    int64 `json:"visits"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Counters reads and mutates the statistics counters.
type Counters struct {
	store   kv.Store
	metrics *metrics.Metrics
}

// New creates a counters handle. m may be nil.
func New(store kv.Store, m *metrics.Metrics) *Counters {
	return &Counters{store: store, metrics: m}
}

// Init creates missing counters at zero; existing values are kept.
func (c *Counters) Init(ctx context.Context) error {
	return c.store.Pipeline(ctx, func(cmd kv.Cmd) error {
		for _, name := range all {
			cmd.SetNX(Key(name), []byte("0"))
		}
		return nil
	})
}

// Get reads every counter. Missing counters read as zero.
func (c *Counters) Get(ctx context.Context) (Snapshot, error) {
	vals := make(map[string]int64, len(all))
	for _, name := range all {
		raw, err := c.store.Get(ctx, Key(name))
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return Snapshot{}, err
		}
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			continue
		}
		vals[name] = n
		if c.metrics != nil {
			c.metrics.SetCounter(name, n)
		}
	}
	return Snapshot{
		Visits:    vals[Visits],
		Pending:   vals[Pending],
		Completed: vals[Completed],
		Failed:    vals[Failed],
	}, nil
}

// IncrVisits counts an API visit. It is the only counter mutated outside a save.
func (c *Counters) IncrVisits(ctx context.Context) error {
	_, err := c.store.Incr(ctx, Key(Visits))
	return err
}

// Op is a counter mutation queued inside a record save.
type Op func(kv.Cmd)

func AddPending(cmd kv.Cmd)      { cmd.Incr(Key(Pending)) }
func RemovePending(cmd kv.Cmd)   { cmd.Decr(Key(Pending)) }
func AddCompleted(cmd kv.Cmd)    { cmd.Incr(Key(Completed)) }
func RemoveCompleted(cmd kv.Cmd) { cmd.Decr(Key(Completed)) }
func AddFailed(cmd kv.Cmd)       { cmd.Incr(Key(Failed)) }
