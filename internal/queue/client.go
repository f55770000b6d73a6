package queue

import (
	"context"
	"time"

	"gmq/internal/platform/kv"
)

// Client pushes jobs onto queues, either directly or inside a caller's pipeline.
type Client struct {
	store        kv.Store
	routes       map[string]string
	defaultQueue string
	now          func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRoute sends jobs of class to queue instead of the default queue.
func WithRoute(class, queue string) ClientOption {
	return func(c *Client) {
		c.routes[class] = queue
	}
}

// WithDefaultQueue overrides Main as the fallback queue.
func WithDefaultQueue(queue string) ClientOption {
	return func(c *Client) {
		if queue != "" {
			c.defaultQueue = queue
		}
	}
}

// WithClientClock sets the clock stamped into enqueued_at.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a producer bound to store.
func NewClient(store kv.Store, opts ...ClientOption) *Client {
	c := &Client{
		store:        store,
		routes:       map[string]string{},
		defaultQueue: Main,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueueFor returns the queue that class is routed to.
func (c *Client) QueueFor(class string) string {
	if q, ok := c.routes[class]; ok {
		return q
	}
	return c.defaultQueue
}

// Enqueue pushes a job directly. Use EnqueueCmd whenever the push must commit
// together with a record write.
func (c *Client) Enqueue(ctx context.Context, class string, payload any) (Job, error) {
	job, raw, err := c.build(class, payload)
	if err != nil {
		return Job{}, err
	}
	if err := c.store.RPush(ctx, Key(job.Queue), raw); err != nil {
		return Job{}, err
	}
	observeEnqueued(class)
	return job, nil
}

// EnqueueCmd queues the push on an open pipeline. The job becomes visible
// only if the pipeline commits.
func (c *Client) EnqueueCmd(cmd kv.Cmd, class string, payload any) (Job, error) {
	job, raw, err := c.build(class, payload)
	if err != nil {
		return Job{}, err
	}
	cmd.RPush(Key(job.Queue), raw)
	observeEnqueued(class)
	return job, nil
}

func (c *Client) build(class string, payload any) (Job, []byte, error) {
	job, err := NewJob(class, payload, c.now())
	if err != nil {
		return Job{}, nil, err
	}
	job.Queue = c.QueueFor(class)
	raw, err := job.Encode()
	if err != nil {
		return Job{}, nil, err
	}
	return job, raw, nil
}
