package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"gmq/internal/platform/kv"
	"gmq/pkg/platform/sentinel"
)

const (
	deadListSize      = 1000
	heartbeatInterval = 10 * time.Second
	heartbeatTTL      = 3 * heartbeatInterval
	settleTimeout     = 5 * time.Second
)

// DeadJob describes a job that will not run again.
type DeadJob struct {
	Queue    string
	Job      Job
	Raw      []byte
	Reason   string
	Outcome  string // OutcomeFatal or OutcomeExhausted
	FailedAt time.Time
}

// DeadHook observes dead jobs after they are parked. Hooks are best-effort.
type DeadHook func(ctx context.Context, dead DeadJob)

// Dispatcher runs consumers that pop jobs, execute their worker, and settle
// the outcome: ack, retry with backoff, park as dead, or requeue on shutdown.
type Dispatcher struct {
	store       kv.Store
	registry    *Registry
	queues      []string
	concurrency int
	pollTimeout time.Duration
	consumerID  string
	logger      *slog.Logger
	tracer      trace.Tracer
	rnd         func() float64
	now         func() time.Time
	deadHooks   []DeadHook
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueues sets the queues consumed, in priority order.
func WithQueues(queues ...string) Option {
	return func(d *Dispatcher) {
		if len(queues) > 0 {
			d.queues = queues
		}
	}
}

// WithConcurrency sets the number of consumers.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithPollTimeout bounds how long a consumer blocks waiting for a job.
func WithPollTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.pollTimeout = t
		}
	}
}

// WithConsumerID sets the prefix identifying this process's consumers.
func WithConsumerID(id string) Option {
	return func(d *Dispatcher) {
		if id != "" {
			d.consumerID = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRand sets the jitter source; it must return values in [0,1).
func WithRand(rnd func() float64) Option {
	return func(d *Dispatcher) {
		if rnd != nil {
			d.rnd = rnd
		}
	}
}

// WithClock sets the clock used to schedule retries.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithDeadHook registers an observer of dead jobs.
func WithDeadHook(h DeadHook) Option {
	return func(d *Dispatcher) {
		if h != nil {
			d.deadHooks = append(d.deadHooks, h)
		}
	}
}

// NewDispatcher creates a dispatcher over registry's workers.
func NewDispatcher(store kv.Store, registry *Registry, opts ...Option) *Dispatcher {
	host, _ := os.Hostname()
	d := &Dispatcher{
		store:       store,
		registry:    registry,
		queues:      []string{Main},
		concurrency: 1,
		pollTimeout: 2 * time.Second,
		consumerID:  defaultConsumerID(host),
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer("gmq/queue"),
		rnd:         rand.Float64,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// defaultConsumerID is unique per start: a restarted process must not
// inherit the live-looking heartbeat of the one it replaces.
func defaultConsumerID(host string) string {
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Run starts the consumers and blocks until ctx is cancelled. In-flight jobs
// interrupted by cancellation are pushed back unchanged before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range d.concurrency {
		consumer := fmt.Sprintf("%s-%d", d.consumerID, i)
		g.Go(func() error {
			d.heartbeat(ctx, consumer)
			return d.consume(ctx, consumer)
		})
	}
	g.Go(func() error {
		d.keepAlive(ctx)
		return nil
	})
	return g.Wait()
}

// Consumers lists the consumer ids this dispatcher runs.
func (d *Dispatcher) Consumers() []string {
	out := make([]string, d.concurrency)
	for i := range d.concurrency {
		out[i] = fmt.Sprintf("%s-%d", d.consumerID, i)
	}
	return out
}

func (d *Dispatcher) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range d.Consumers() {
				d.heartbeat(ctx, c)
			}
		}
	}
}

func (d *Dispatcher) heartbeat(ctx context.Context, consumer string) {
	if err := d.store.Set(ctx, heartbeatKey(consumer), []byte(d.now().UTC().Format(time.RFC3339)), heartbeatTTL); err != nil && ctx.Err() == nil {
		d.logger.WarnContext(ctx, "consumer heartbeat failed", "consumer", consumer, "error", err)
	}
}

func (d *Dispatcher) consume(ctx context.Context, consumer string) error {
	turn := 0
	for ctx.Err() == nil {
		queue, raw, err := d.fetch(ctx, consumer, turn)
		turn++
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) || ctx.Err() != nil {
				continue
			}
			d.logger.ErrorContext(ctx, "fetch job failed", "consumer", consumer, "error", err)
			sleep(ctx, time.Second)
			continue
		}
		d.Process(ctx, queue, consumer, raw)
	}
	return nil
}

// fetch takes the first ready job across queues without blocking, then
// blocks on one queue chosen round-robin.
func (d *Dispatcher) fetch(ctx context.Context, consumer string, turn int) (string, []byte, error) {
	for _, q := range d.queues {
		raw, err := d.store.LMove(ctx, Key(q), ProcessingKey(q, consumer))
		if err == nil {
			return q, raw, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return "", nil, err
		}
	}
	q := d.queues[turn%len(d.queues)]
	raw, err := d.store.BLMove(ctx, Key(q), ProcessingKey(q, consumer), d.pollTimeout)
	return q, raw, err
}

// Process executes one job already moved onto consumer's processing list
// and settles it.
func (d *Dispatcher) Process(ctx context.Context, queue, consumer string, raw []byte) {
	start := d.now()
	job, err := Decode(raw)
	if err != nil {
		d.logger.ErrorContext(ctx, "undecodable job", "queue", queue, "error", err)
		d.bury(ctx, queue, consumer, raw, Job{Class: "unknown"}, err, OutcomeFatal)
		return
	}

	txID := transactionID(job.Payload())
	log := d.logger.With("job_class", job.Class, "jid", job.JID, "queue", queue, "attempt", job.RetryAttempt, "tx_id", txID)

	reg, ok := d.registry.lookup(job.Class)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownClass, job.Class)
		log.ErrorContext(ctx, "no worker registered for job")
		d.bury(ctx, queue, consumer, raw, job, err, OutcomeFatal)
		return
	}

	spanCtx, span := d.tracer.Start(ctx, "gmq.job "+job.Class, trace.WithAttributes(
		attribute.String("gmq.class", job.Class),
		attribute.String("gmq.queue", queue),
		attribute.Int("gmq.attempt", job.RetryAttempt),
		attribute.String("gmq.tx_id", txID),
	))
	err = d.run(spanCtx, reg.worker, job.Payload())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	elapsed := d.now().Sub(start).Seconds()

	switch {
	case err == nil:
		d.settle(ctx, func(c kv.Cmd) { c.LRem(ProcessingKey(queue, consumer), 1, raw) })
		observeOutcome(job.Class, OutcomeSucceeded, elapsed)
		log.InfoContext(ctx, "job succeeded", "duration_s", elapsed)

	case ctx.Err() != nil:
		// Shutdown interrupted the job: put it back exactly as it was.
		d.settle(ctx, func(c kv.Cmd) {
			c.LRem(ProcessingKey(queue, consumer), 1, raw)
			c.RPush(Key(queue), raw)
		})
		observeOutcome(job.Class, OutcomeRequeued, elapsed)
		log.WarnContext(ctx, "job interrupted by shutdown, requeued", "error", err)

	case reg.policy.IsFatal(err):
		log.ErrorContext(ctx, "job failed fatally, not retrying", "error", err)
		d.bury(ctx, queue, consumer, raw, job, err, OutcomeFatal)
		observeOutcome(job.Class, OutcomeFatal, elapsed)

	default:
		d.retry(ctx, log, queue, consumer, raw, job, reg, err, elapsed)
	}
}

func (d *Dispatcher) retry(ctx context.Context, log *slog.Logger, queue, consumer string, raw []byte, job Job, reg registration, cause error, elapsed float64) {
	delay, ok := reg.policy.Delay(job.RetryAttempt, d.rnd)
	if !ok {
		log.ErrorContext(ctx, "job retries exhausted", "error", cause)
		if h, isHandler := reg.worker.(ExhaustedHandler); isHandler {
			if err := h.Exhausted(ctx, job.Payload(), cause); err != nil {
				log.ErrorContext(ctx, "exhausted handler failed", "error", err)
			}
		}
		d.bury(ctx, queue, consumer, raw, job, cause, OutcomeExhausted)
		observeOutcome(job.Class, OutcomeExhausted, elapsed)
		return
	}

	next := job
	next.RetryAttempt++
	next.Error = cause.Error()
	nextRaw, err := next.Encode()
	if err != nil {
		log.ErrorContext(ctx, "encode retry failed", "error", err)
		return
	}

	at := d.now().Add(delay)
	d.settle(ctx, func(c kv.Cmd) {
		c.LRem(ProcessingKey(queue, consumer), 1, raw)
		if delay <= 0 {
			c.RPush(Key(queue), nextRaw)
			return
		}
		c.ZAdd(ScheduleKey(queue), float64(at.UnixMilli()), nextRaw)
	})
	observeOutcome(job.Class, OutcomeRetried, elapsed)
	log.WarnContext(ctx, "job failed, retry scheduled", "error", cause, "delay_s", delay.Seconds(), "retry_at", at)
}

func (d *Dispatcher) bury(ctx context.Context, queue, consumer string, raw []byte, job Job, cause error, outcome string) {
	now := d.now()
	dead := job
	dead.Error = cause.Error()
	dead.FailedAt = now.UTC().Format(time.RFC3339Nano)
	deadRaw, err := dead.Encode()
	if err != nil {
		deadRaw = raw
	}

	d.settle(ctx, func(c kv.Cmd) {
		c.LRem(ProcessingKey(queue, consumer), 1, raw)
		c.LPush(DeadKey(queue), deadRaw)
		c.LTrim(DeadKey(queue), 0, deadListSize-1)
	})

	info := DeadJob{Queue: queue, Job: dead, Raw: deadRaw, Reason: cause.Error(), Outcome: outcome, FailedAt: now}
	hookCtx := context.WithoutCancel(ctx)
	for _, h := range d.deadHooks {
		h(hookCtx, info)
	}
}

// settle commits a job's outcome. It runs detached from ctx so that a
// shutdown in progress cannot strand the job between lists.
func (d *Dispatcher) settle(ctx context.Context, fn func(kv.Cmd)) {
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	err := d.store.Pipeline(settleCtx, func(c kv.Cmd) error {
		fn(c)
		return nil
	})
	if err != nil {
		// The job stays on the processing list; recovery picks it up once
		// this consumer stops heartbeating.
		d.logger.ErrorContext(ctx, "settle job failed", "error", err)
	}
}

// run invokes the worker, converting a panic into a retryable error.
func (d *Dispatcher) run(ctx context.Context, w Worker, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return w.Handle(ctx, payload)
}

// transactionID peeks the "id" argument most job payloads carry.
func transactionID(payload json.RawMessage) string {
	var args struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(payload, &args) != nil {
		return ""
	}
	return args.ID
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
