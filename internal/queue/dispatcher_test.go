package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gmq/internal/platform/kv"
	dErrors "gmq/pkg/domain-errors"
)

const testConsumer = "test-0"

type recordingWorker struct {
	mu        sync.Mutex
	calls     int
	err       error
	panicMsg  string
	block     chan struct{}
	exhausted []error
}

func (w *recordingWorker) Handle(ctx context.Context, _ json.RawMessage) error {
	w.mu.Lock()
	w.calls++
	err, panicMsg, block := w.err, w.panicMsg, w.block
	w.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if block != nil {
		close(block)
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (w *recordingWorker) Exhausted(_ context.Context, _ json.RawMessage, cause error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exhausted = append(w.exhausted, cause)
	return nil
}

type DispatcherSuite struct {
	suite.Suite
	store    *kv.MemoryStore
	registry *Registry
	worker   *recordingWorker
	client   *Client
	now      time.Time
	dead     []DeadJob
	ctx      context.Context
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.store = kv.NewMemory(kv.WithClock(func() time.Time { return s.now }))
	s.registry = NewRegistry()
	s.worker = &recordingWorker{}
	s.Require().NoError(s.registry.Register("RapsheetWorker", s.worker, DefaultPolicy()))
	s.client = NewClient(s.store, WithClientClock(func() time.Time { return s.now }))
	s.dead = nil
}

func (s *DispatcherSuite) dispatcher(opts ...Option) *Dispatcher {
	base := []Option{
		WithClock(func() time.Time { return s.now }),
		WithRand(func() float64 { return 0.5 }),
		WithDeadHook(func(_ context.Context, d DeadJob) { s.dead = append(s.dead, d) }),
		WithPollTimeout(10 * time.Millisecond),
	}
	return NewDispatcher(s.store, s.registry, append(base, opts...)...)
}

// take moves the next job onto the test consumer's processing list.
func (s *DispatcherSuite) take() []byte {
	raw, err := s.store.LMove(s.ctx, Key(Main), ProcessingKey(Main, testConsumer))
	s.Require().NoError(err)
	return raw
}

func (s *DispatcherSuite) llen(key string) int64 {
	n, err := s.store.LLen(s.ctx, key)
	s.Require().NoError(err)
	return n
}

func (s *DispatcherSuite) enqueue() {
	_, err := s.client.Enqueue(s.ctx, "RapsheetWorker", map[string]string{"id": "PRCAP1"})
	s.Require().NoError(err)
}

func (s *DispatcherSuite) TestSuccessAcks() {
	s.enqueue()
	s.dispatcher().Process(s.ctx, Main, testConsumer, s.take())

	s.Equal(1, s.worker.calls)
	s.Zero(s.llen(ProcessingKey(Main, testConsumer)))
	s.Zero(s.llen(Key(Main)))
	s.Zero(s.store.ZCard(ScheduleKey(Main)))
}

func (s *DispatcherSuite) TestJobLogsCarryTransactionID() {
	var buf bytes.Buffer
	s.enqueue()
	s.dispatcher(WithLogger(slog.New(slog.NewJSONHandler(&buf, nil)))).Process(s.ctx, Main, testConsumer, s.take())

	var rec map[string]any
	s.Require().NoError(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	s.Equal("job succeeded", rec["msg"])
	s.Equal("PRCAP1", rec["tx_id"])
	s.Equal("RapsheetWorker", rec["job_class"])

	s.Empty(transactionID(nil))
	s.Empty(transactionID(json.RawMessage(`"not an object"`)))
}

func (s *DispatcherSuite) TestFatalErrorIsNeverRetried() {
	s.worker.err = dErrors.NewField(dErrors.AppMissingID, "id", "id is required")
	s.enqueue()
	s.dispatcher().Process(s.ctx, Main, testConsumer, s.take())

	s.Zero(s.llen(Key(Main)), "no re-enqueue")
	s.Zero(s.store.ZCard(ScheduleKey(Main)), "no scheduled retry")
	s.Equal(int64(1), s.llen(DeadKey(Main)))
	s.Require().Len(s.dead, 1)
	s.Equal(OutcomeFatal, s.dead[0].Outcome)
	s.Contains(s.dead[0].Reason, "id is required")
	s.Empty(s.worker.exhausted)
}

func (s *DispatcherSuite) TestRetryableErrorSchedulesBackoff() {
	s.worker.err = dErrors.New(dErrors.CodeRemoteUnavailable, "rci timeout")
	s.enqueue()
	s.dispatcher().Process(s.ctx, Main, testConsumer, s.take())

	s.Zero(s.llen(ProcessingKey(Main, testConsumer)))
	scores := s.store.ZScores(ScheduleKey(Main))
	s.Require().Len(scores, 1)
	for member, score := range scores {
		// First delay is 10s * (1.0 + 0.5*(2.0-1.0)) = 15s.
		s.Equal(float64(s.now.Add(15*time.Second).UnixMilli()), score)
		job, err := Decode([]byte(member))
		s.Require().NoError(err)
		s.Equal(1, job.RetryAttempt)
		s.Contains(job.Error, "rci timeout")
	}
	s.Empty(s.dead)
}

func (s *DispatcherSuite) TestScheduledRetryIsPromotedWhenDue() {
	s.worker.err = errors.New("transient")
	s.enqueue()
	s.dispatcher().Process(s.ctx, Main, testConsumer, s.take())

	sched := NewScheduler(s.store, []string{Main}, time.Second, nil)
	sched.now = func() time.Time { return s.now }

	n, err := sched.Promote(s.ctx)
	s.Require().NoError(err)
	s.Zero(n, "not due yet")

	s.now = s.now.Add(16 * time.Second)
	n, err = sched.Promote(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal(int64(1), s.llen(Key(Main)))
}

func (s *DispatcherSuite) TestExhaustedRetriesRunHookAndBury() {
	s.registry = NewRegistry()
	s.Require().NoError(s.registry.Register("RapsheetWorker", s.worker, Policy{Backoff: seconds(5)}))
	s.worker.err = errors.New("still down")

	s.enqueue()
	d := s.dispatcher()
	d.Process(s.ctx, Main, testConsumer, s.take())
	s.Equal(1, s.store.ZCard(ScheduleKey(Main)))

	s.now = s.now.Add(time.Minute)
	_, err := s.store.MoveDue(s.ctx, ScheduleKey(Main), Key(Main), s.now, 10)
	s.Require().NoError(err)
	d.Process(s.ctx, Main, testConsumer, s.take())

	s.Require().Len(s.worker.exhausted, 1)
	s.Require().Len(s.dead, 1)
	s.Equal(OutcomeExhausted, s.dead[0].Outcome)
	s.Zero(s.store.ZCard(ScheduleKey(Main)))
	s.Zero(s.llen(Key(Main)))
}

func (s *DispatcherSuite) TestPanicIsRetried() {
	s.worker.panicMsg = "nil map"
	s.enqueue()
	s.dispatcher().Process(s.ctx, Main, testConsumer, s.take())

	s.Equal(1, s.store.ZCard(ScheduleKey(Main)))
	s.Empty(s.dead)
}

func (s *DispatcherSuite) TestUnknownClassIsBuried() {
	_, err := s.client.Enqueue(s.ctx, "NoSuchWorker", map[string]string{})
	s.Require().NoError(err)
	s.dispatcher().Process(s.ctx, Main, testConsumer, s.take())

	s.Require().Len(s.dead, 1)
	s.Contains(s.dead[0].Reason, "unknown job class")
}

func (s *DispatcherSuite) TestUndecodableJobIsBuried() {
	s.Require().NoError(s.store.RPush(s.ctx, Key(Main), []byte("{{{")))
	s.dispatcher().Process(s.ctx, Main, testConsumer, s.take())

	s.Zero(s.llen(ProcessingKey(Main, testConsumer)))
	s.Equal(int64(1), s.llen(DeadKey(Main)))
}

func (s *DispatcherSuite) TestShutdownRequeuesUnchanged() {
	s.worker.block = make(chan struct{})
	s.enqueue()
	raw := s.take()

	ctx, cancel := context.WithCancel(s.ctx)
	go func() {
		<-s.worker.block
		cancel()
	}()
	s.dispatcher().Process(ctx, Main, testConsumer, raw)

	vals, err := s.store.LRange(s.ctx, Key(Main), 0, -1)
	s.Require().NoError(err)
	s.Require().Len(vals, 1)
	s.Equal(string(raw), string(vals[0]), "job must be requeued byte for byte")
	s.Zero(s.llen(ProcessingKey(Main, testConsumer)))
	s.Zero(s.store.ZCard(ScheduleKey(Main)))
	s.Empty(s.dead)
}

func (s *DispatcherSuite) TestRunProcessesAndStops() {
	s.enqueue()
	s.enqueue()

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.dispatcher(WithConcurrency(2)).Run(ctx) }()

	s.Eventually(func() bool {
		s.worker.mu.Lock()
		defer s.worker.mu.Unlock()
		return s.worker.calls == 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.Fail("dispatcher did not stop")
	}
	s.Zero(s.llen(Key(Main)))
}

func (s *DispatcherSuite) TestRecoverMovesStrandedJobs() {
	s.enqueue()
	s.take()
	s.Zero(s.llen(Key(Main)))

	n, err := Recover(s.ctx, s.store, []string{Main}, nil)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal(int64(1), s.llen(Key(Main)))
	s.Zero(s.llen(ProcessingKey(Main, testConsumer)))
}

func (s *DispatcherSuite) TestRecoverSkipsLiveConsumers() {
	s.enqueue()
	s.take()
	s.Require().NoError(s.store.Set(s.ctx, heartbeatKey(testConsumer), []byte("alive"), time.Minute))

	n, err := Recover(s.ctx, s.store, []string{Main}, nil)
	s.Require().NoError(err)
	s.Zero(n)
	s.Equal(int64(1), s.llen(ProcessingKey(Main, testConsumer)))
}

// A consumer that crashed while another process keeps running is swept once
// its heartbeat lapses, without waiting for a restart.
func (s *DispatcherSuite) TestSchedulerRecoversCrashedConsumerWhileRunning() {
	crashed := "host-1-0"
	s.enqueue()
	_, err := s.store.LMove(s.ctx, Key(Main), ProcessingKey(Main, crashed))
	s.Require().NoError(err)
	s.dispatcher().heartbeat(s.ctx, crashed)

	sched := NewScheduler(s.store, []string{Main}, time.Second, nil,
		WithSchedulerClock(func() time.Time { return s.now }))

	sched.Tick(s.ctx)
	s.Equal(int64(1), s.llen(ProcessingKey(Main, crashed)), "heartbeat still live")

	s.now = s.now.Add(heartbeatTTL + time.Second)
	sched.Tick(s.ctx)
	s.Zero(s.llen(ProcessingKey(Main, crashed)))
	s.Equal(int64(1), s.llen(Key(Main)))
}

func (s *DispatcherSuite) TestSchedulerSweepsAtMostOncePerInterval() {
	sched := NewScheduler(s.store, []string{Main}, time.Second, nil,
		WithSchedulerClock(func() time.Time { return s.now }),
		WithRecoverEvery(time.Minute))
	sched.Tick(s.ctx)

	s.enqueue()
	s.take()
	s.now = s.now.Add(30 * time.Second)
	sched.Tick(s.ctx)
	s.Equal(int64(1), s.llen(ProcessingKey(Main, testConsumer)), "sweep not due yet")

	s.now = s.now.Add(31 * time.Second)
	sched.Tick(s.ctx)
	s.Zero(s.llen(ProcessingKey(Main, testConsumer)))
}

func (s *DispatcherSuite) TestConsumerIDsDifferPerStart() {
	a := NewDispatcher(s.store, s.registry).Consumers()
	b := NewDispatcher(s.store, s.registry).Consumers()
	s.NotEqual(a[0], b[0])
}

func (s *DispatcherSuite) TestDeadLettersRetry() {
	s.worker.err = dErrors.New(dErrors.CodeValidation, "bad")
	s.enqueue()
	s.dispatcher().Process(s.ctx, Main, testConsumer, s.take())

	dl := NewDeadLetters(s.store)
	jobs, err := dl.List(s.ctx, Main, 10)
	s.Require().NoError(err)
	s.Require().Len(jobs, 1)
	s.Equal("bad", jobs[0].Error)

	moved, err := dl.Retry(s.ctx, Main, 10)
	s.Require().NoError(err)
	s.Equal(1, moved)
	s.Zero(s.llen(DeadKey(Main)))

	raw, err := s.store.LRange(s.ctx, Key(Main), 0, 0)
	s.Require().NoError(err)
	job, err := Decode(raw[0])
	s.Require().NoError(err)
	s.Zero(job.RetryAttempt)
	s.Empty(job.Error)
}

func (s *DispatcherSuite) TestEnqueueCmdOnlyVisibleAfterCommit() {
	s.store.FailPipelines(1)
	err := s.store.Pipeline(s.ctx, func(c kv.Cmd) error {
		_, err := s.client.EnqueueCmd(c, "RapsheetWorker", map[string]string{"id": "PRCAP1"})
		return err
	})
	s.Require().Error(err)
	s.Zero(s.llen(Key(Main)))
}

func (s *DispatcherSuite) TestRoutes() {
	c := NewClient(s.store, WithRoute("CertificateValidationWorker", "prgov_cap_validation"))
	s.Equal("prgov_cap_validation", c.QueueFor("CertificateValidationWorker"))
	s.Equal(Main, c.QueueFor("RapsheetWorker"))
}
