// Package workers implements the job classes of the certificate pipeline.
//
// Every worker loads its record, checks that the transition it is about to
// make is legal (a job whose record has already moved on is a replay and is
// skipped), calls out at most once, and persists the result together with
// the next job in a single save.
package workers

import (
	"context"
	"log/slog"
	"time"

	"gmq/internal/certificate"
	"gmq/internal/jobs"
	"gmq/internal/mailer"
	"gmq/internal/notify"
	"gmq/internal/platform/config"
	"gmq/internal/queue"
	"gmq/internal/rci"
	"gmq/internal/stats"
	"gmq/internal/transaction/models"
	"gmq/internal/transaction/store"
	valmodels "gmq/internal/validator/models"
	dErrors "gmq/pkg/domain-errors"
	audit "gmq/pkg/platform/audit"
)

// Transactions loads and persists certificate requests.
type Transactions interface {
	Find(ctx context.Context, id string) (*models.Transaction, error)
	Save(ctx context.Context, tx *models.Transaction, opts ...store.SaveOption) error
}

// Validators loads and persists certificate validation requests.
type Validators interface {
	Find(ctx context.Context, id string) (*valmodels.Validator, error)
	Save(ctx context.Context, v *valmodels.Validator) error
}

type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// RCI is the criminal records service.
type RCI interface {
	Request(ctx context.Context, req rci.RapRequest) (*rci.Response, error)
	Retrieve(ctx context.Context, txID string, callback bool) (*rci.Response, error)
	Validate(ctx context.Context, txID string) (*rci.Response, error)
}

// Renderer stores certificate files.
type Renderer interface {
	PathFor(id string) string
	DecodeAndWrite(b64, path string) error
	ValidateIsPDF(path string) error
	Exists(path string) bool
	Read(path string) ([]byte, error)
	Remove(path string) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var _ Renderer = (*certificate.Renderer)(nil)

// Set holds the collaborators shared by every worker.
type Set struct {
	tx         Transactions
	validators Validators
	mail       Mailer
	rci        RCI
	renderer   Renderer
	clock      Clock
	auditor    audit.Emitter
	logger     *slog.Logger

	validationEnabled bool
	retrieveMode      bool
	callbackEnabled   bool
}

type Option func(*Set)

func WithClock(c Clock) Option {
	return func(s *Set) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Set) {
		if a != nil {
			s.auditor = a
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Set) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPipeline configures the optional stages: rap-sheet validation after
// the receipt, active retrieval instead of waiting, and the RCI callback.
func WithPipeline(cfg config.WorkerConfig) Option {
	return func(s *Set) {
		s.validationEnabled = cfg.ValidationEnabled
		s.retrieveMode = cfg.RetrieveMode
		s.callbackEnabled = cfg.CallbackEnabled
	}
}

func New(tx Transactions, validators Validators, mail Mailer, client RCI, renderer Renderer, opts ...Option) *Set {
	s := &Set{
		tx:                tx,
		validators:        validators,
		mail:              mail,
		rci:               client,
		renderer:          renderer,
		clock:             systemClock{},
		auditor:           audit.Nop{},
		logger:            slog.New(slog.DiscardHandler),
		validationEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds every worker to r. Per-class overrides replace the
// built-in backoff; the fatal classification never changes.
func (s *Set) Register(r *queue.Registry, overrides config.RetryPolicies) error {
	entries := []struct {
		class  string
		worker queue.Worker
		policy queue.Policy
	}{
		{jobs.ReceiptEmail, &ReceiptEmailWorker{s}, queue.DefaultPolicy()},
		{jobs.Rapsheet, &RapsheetWorker{s}, queue.DefaultPolicy()},
		{jobs.RetrieveCertificate, &RetrieveCertificateWorker{s}, queue.DefaultPolicy()},
		{jobs.GenerateCertificate, &GenerateCertificateWorker{s}, queue.DefaultPolicy()},
		{jobs.FinalEmail, &FinalEmailWorker{s}, queue.DefaultPolicy()},
		{jobs.Email, &EmailWorker{s}, queue.DefaultPolicy()},
		{jobs.CertificateValidation, &CertificateValidationWorker{s}, queue.ValidationPolicy()},
	}
	for _, e := range entries {
		policy := e.policy
		if o, ok := overrides.For(e.class); ok {
			policy.Backoff = o.Delays()
			policy.MinMultiplier = o.MinMultiplier
			policy.MaxMultiplier = o.MaxMultiplier
		}
		if err := r.Register(e.class, e.worker, policy); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) find(ctx context.Context, id string) (*models.Transaction, error) {
	if id == "" {
		return nil, dErrors.NewField(dErrors.AppMissingID, "id", "job carries no transaction id")
	}
	return s.tx.Find(ctx, id)
}

// replay reports whether event is no longer legal for tx, logging the skip.
func (s *Set) replay(ctx context.Context, tx *models.Transaction, event models.Event, class string) bool {
	if tx.Can(event) {
		return false
	}
	s.logger.InfoContext(ctx, "job replay skipped",
		"job_class", class,
		"tx_id", tx.ID,
		"state", tx.State,
		"event", event,
	)
	return true
}

type source int

const (
	sourceRCI source = iota
	sourceMail
	sourceLocal
)

// retrying records the failure telemetry on tx, moves it to the stage's
// retrying state, and saves it best-effort with opts. It returns cause so
// the dispatcher schedules the retry.
func (s *Set) retrying(ctx context.Context, tx *models.Transaction, from source, kind string, cause error, opts ...store.SaveOption) error {
	s.logger.WarnContext(ctx, "job step failed, will retry",
		"tx_id", tx.ID,
		"state", tx.State,
		"step", kind,
		"error", cause,
	)
	now := s.clock.Now()
	switch from {
	case sourceRCI:
		tx.RecordRCIError(kind, cause.Error(), now)
	case sourceMail:
		tx.RecordEmailError(kind, cause.Error(), now)
	default:
		tx.RecordError(kind, cause.Error(), now)
	}
	if tx.Can(models.EventRetry) {
		_ = tx.Apply(models.EventRetry, now)
	}
	tx.Status = models.StatusRetrying
	if err := s.tx.Save(ctx, tx, opts...); err != nil {
		s.logger.WarnContext(ctx, "record retry telemetry failed", "tx_id", tx.ID, "error", err)
	}
	return cause
}

// exhaust fails tx once its job ran out of retries. A transaction that is
// already failed or finished is left alone so counters move once.
func (s *Set) exhaust(ctx context.Context, id, class string, failed models.State, cause error, notifyUser bool) error {
	tx, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.fail(ctx, tx, class, failed, "exhausted", cause, notifyUser)
}

// fatal fails tx for an error no retry can fix and returns cause so the
// dispatcher parks the job.
func (s *Set) fatal(ctx context.Context, tx *models.Transaction, class string, failed models.State, cause error, notifyUser bool) error {
	s.logger.ErrorContext(ctx, "job step failed permanently",
		"tx_id", tx.ID,
		"job_class", class,
		"error", cause,
	)
	if err := s.fail(ctx, tx, class, failed, "fatal", cause, notifyUser); err != nil {
		s.logger.WarnContext(ctx, "record permanent failure failed", "tx_id", tx.ID, "error", err)
	}
	return cause
}

func (s *Set) fail(ctx context.Context, tx *models.Transaction, class string, failed models.State, kind string, cause error, notifyUser bool) error {
	if tx.State.IsTerminal() {
		return nil
	}
	now := s.clock.Now()
	if err := tx.Apply(models.EventFail, now); err != nil {
		tx.Force(failed, models.EventFail, now)
	}
	tx.Status = models.StatusFailed
	if cause != nil {
		tx.RecordError(kind, cause.Error(), now)
	}

	opts := []store.SaveOption{store.WithStats(stats.RemovePending, stats.AddFailed)}
	if notifyUser {
		job, err := notify.Job(tx, mailer.TemplateFailure, "")
		if err != nil {
			return err
		}
		opts = append(opts, store.WithJobs(job))
	}
	if err := s.tx.Save(ctx, tx, opts...); err != nil {
		return err
	}
	s.emit(ctx, audit.Event{Action: audit.ActionTransactionFailed, TransactionID: tx.ID, JobClass: class, Reason: string(tx.State)})
	return nil
}

func (s *Set) emit(ctx context.Context, e audit.Event) {
	if err := s.auditor.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", e.Action, "tx_id", e.TransactionID, "error", err)
	}
}

// remoteAnswer wraps an RCI answer the worker cannot act on. It is retryable.
func remoteAnswer(resp *rci.Response) error {
	code, msg := 0, "unexpected rci answer"
	if resp.Remote != nil {
		code, msg = resp.Remote.Code, resp.Remote.Message
	}
	return dErrors.NewRemote(dErrors.CodeRemoteService, resp.Status, code, msg)
}
