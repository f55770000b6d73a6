package queue

import (
	"context"
	"log/slog"
	"time"

	"gmq/internal/platform/kv"
)

const promoteBatch = 100

// Scheduler promotes delayed retries whose time has come back onto their
// queue, and periodically returns the jobs of dead consumers.
type Scheduler struct {
	store        kv.Store
	queues       []string
	interval     time.Duration
	recoverEvery time.Duration
	lastRecover  time.Time
	now          func() time.Time
	logger       *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithRecoverEvery sets how often stranded processing lists are swept.
// Zero or less disables the sweep.
func WithRecoverEvery(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.recoverEvery = d }
}

// WithSchedulerClock sets the clock used for due times and the sweep.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler creates a scheduler polling every interval.
func NewScheduler(store kv.Store, queues []string, interval time.Duration, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Scheduler{
		store:        store,
		queues:       queues,
		interval:     interval,
		recoverEvery: heartbeatTTL,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one promote pass and, when the sweep is due, one recovery pass.
// Failures are logged; the next tick tries again.
func (s *Scheduler) Tick(ctx context.Context) {
	if _, err := s.Promote(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "promote scheduled jobs failed", "error", err)
	}
	if s.recoverEvery <= 0 {
		return
	}
	now := s.now()
	if !s.lastRecover.IsZero() && now.Sub(s.lastRecover) < s.recoverEvery {
		return
	}
	s.lastRecover = now
	n, err := Recover(ctx, s.store, s.queues, s.logger)
	if err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "recover stranded jobs failed", "error", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "stranded jobs returned to queue", "count", n)
	}
}

// Promote moves every due retry onto its queue and returns how many moved.
func (s *Scheduler) Promote(ctx context.Context) (int, error) {
	total := 0
	for _, q := range s.queues {
		for {
			n, err := s.store.MoveDue(ctx, ScheduleKey(q), Key(q), s.now(), promoteBatch)
			if err != nil {
				return total, err
			}
			total += n
			jobsPromoted.Add(float64(n))
			if n < promoteBatch {
				break
			}
		}
	}
	return total, nil
}
