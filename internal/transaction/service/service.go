// Package service is the write side of certificate requests: creation from
// API payloads, the RCI certificate callback, analyst review results, and
// administrative requeues.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"gmq/internal/jobs"
	"gmq/internal/mailer"
	"gmq/internal/notify"
	"gmq/internal/stats"
	"gmq/internal/transaction/models"
	"gmq/internal/transaction/store"
	dErrors "gmq/pkg/domain-errors"
	audit "gmq/pkg/platform/audit"
	"gmq/pkg/platform/params"
	"gmq/pkg/platform/sentinel"
)

// Store persists transactions.
type Store interface {
	Find(ctx context.Context, id string) (*models.Transaction, error)
	Save(ctx context.Context, tx *models.Transaction, opts ...store.SaveOption) error
	Recent(ctx context.Context, n int) ([]string, error)
}

type Service struct {
	store           Store
	auditor         audit.Emitter
	logger          *slog.Logger
	now             func() time.Time
	loc             *time.Location
	retrieveMode    bool
	callbackEnabled bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone birth dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithRetrieveMode makes approved reviews fetch the certificate actively
// instead of waiting for the RCI callback.
func WithRetrieveMode(enabled, callback bool) Option {
	return func(s *Service) {
		s.retrieveMode = enabled
		s.callbackEnabled = callback
	}
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		auditor: audit.Nop{},
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Find loads a transaction.
func (s *Service) Find(ctx context.Context, id string) (*models.Transaction, error) {
	if id == "" {
		return nil, dErrors.NewField(dErrors.AppMissingID, "id", "id is required")
	}
	return s.store.Find(ctx, id)
}

// Save persists tx. A first save also starts the pipeline.
func (s *Service) Save(ctx context.Context, tx *models.Transaction) error {
	first := tx.IsNew()
	if err := s.store.Save(ctx, tx); err != nil {
		return err
	}
	if first {
		s.emit(ctx, audit.Event{Action: audit.ActionTransactionCreated, TransactionID: tx.ID})
	}
	return nil
}

// Recent loads up to n of the newest transactions, skipping expired ones.
func (s *Service) Recent(ctx context.Context, n int) ([]*models.Transaction, error) {
	ids, err := s.store.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Transaction, 0, len(ids))
	for _, id := range ids {
		tx, err := s.store.Find(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// CertificateReady records the RCI callback for a transaction. Only the
// readiness flag is kept; the generation worker fetches the bytes itself.
func (s *Service) CertificateReady(ctx context.Context, id string, p params.Params) (*models.Transaction, error) {
	if err := p.Whitelist("id", "certificate_base64"); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, dErrors.NewField(dErrors.AppMissingID, "id", "id is required")
	}
	b64, ok := p.String("certificate_base64")
	if !ok {
		return nil, dErrors.NewField(dErrors.AppMissingCertificateBase64, "certificate_base64", "certificate_base64 is required")
	}
	if _, err := base64.StdEncoding.DecodeString(b64); err != nil {
		return nil, dErrors.NewField(dErrors.AppInvalidCertificate, "certificate_base64", "certificate_base64 is not valid base64")
	}

	tx, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Apply(models.EventCertificateReady, s.now()); err != nil {
		return nil, err
	}
	tx.CertificateBase64 = true
	tx.Location = models.LocationGMQ
	tx.Status = models.StatusProcessing
	err = s.store.Save(ctx, tx, store.WithJobs(jobs.Job{
		Class:   jobs.GenerateCertificate,
		Payload: jobs.IDArgs{ID: tx.ID},
	}))
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// RequeueJob restarts stage for transaction id. It forces the stage's entry
// state without checking the current one, so requeueing while a worker is
// still processing the same transaction can run the stage twice.
func (s *Service) RequeueJob(ctx context.Context, id string, stage models.Stage, actor string) (*models.Transaction, error) {
	entry, ok := stage.EntryState()
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown stage "+strconv.Quote(string(stage))).WithAppCode(dErrors.AppInvalidParameters)
	}
	tx, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	var job jobs.Job
	switch stage {
	case models.StageReceipt:
		job = jobs.Job{Class: jobs.ReceiptEmail, Payload: jobs.IDArgs{ID: tx.ID}}
	case models.StageRapsheet:
		job = jobs.Job{Class: jobs.Rapsheet, Payload: jobs.IDArgs{ID: tx.ID}}
	case models.StageRetrieval:
		job = jobs.Job{Class: jobs.RetrieveCertificate, Payload: jobs.RetrieveArgs{ID: tx.ID, CallbackRequested: s.callbackEnabled}}
	case models.StageGeneration:
		if !tx.CertificateBase64 {
			return nil, dErrors.NewField(dErrors.AppMissingCertificateBase64, "certificate_base64", "certificate has not been received for "+tx.ID)
		}
		job = jobs.Job{Class: jobs.GenerateCertificate, Payload: jobs.IDArgs{ID: tx.ID}}
	}

	tx.Force(entry, models.EventRequeue, s.now())
	tx.Status = models.StatusProcessing
	if err := s.store.Save(ctx, tx, store.WithJobs(job)); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "transaction requeued", "tx_id", tx.ID, "stage", stage, "actor", actor)
	s.emit(ctx, audit.Event{
		Action:        audit.ActionTransactionRequeued,
		TransactionID: tx.ID,
		JobClass:      job.Class,
		ActorID:       actor,
		Reason:        string(stage),
	})
	return tx, nil
}

var reviewFields = []string{
	"id", "analyst_id", "analyst_fullname", "analyst_approval_datetime",
	"analyst_transaction_id", "analyst_internal_status_id", "decision_code",
}

// ReviewComplete records an analyst's decision on a transaction in manual
// review and moves it on: an approval continues to certificate retrieval
// (or waits for the callback), a rejection notifies the citizen.
func (s *Service) ReviewComplete(ctx context.Context, id string, p params.Params) (*models.Transaction, error) {
	if err := p.Whitelist(reviewFields...); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, dErrors.NewField(dErrors.AppMissingID, "id", "id is required")
	}
	r, err := parseReview(p)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := tx.Apply(models.EventReviewComplete, now); err != nil {
		return nil, err
	}
	tx.AnalystID = r.analystID
	tx.AnalystFullname = r.fullname
	tx.AnalystApprovalDatetime = &r.approvedAt
	tx.AnalystTransactionID = r.analystTxID
	tx.AnalystInternalStatusID = r.internalStatus
	tx.AnalystDecision = strconv.Itoa(r.decision)
	tx.DecisionCode = r.decision
	tx.Location = models.LocationPRPD

	var opts []store.SaveOption
	if r.decision == models.DecisionRejected {
		if err := tx.Apply(models.EventValidationRejected, now); err != nil {
			return nil, err
		}
		tx.SetIdentityValidated(false)
		tx.Status = models.StatusCompleted
		job, err := notify.Job(tx, mailer.TemplateRejection, "")
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			store.WithJobs(job),
			store.WithStats(stats.RemovePending, stats.AddCompleted),
		)
	} else if s.retrieveMode {
		tx.Status = models.StatusProcessing
		opts = append(opts, store.WithJobs(jobs.Job{
			Class:   jobs.RetrieveCertificate,
			Payload: jobs.RetrieveArgs{ID: tx.ID, CallbackRequested: s.callbackEnabled},
		}))
	} else {
		if err := tx.Apply(models.EventAwaitCertificate, now); err != nil {
			return nil, err
		}
		tx.Status = models.StatusProcessing
	}

	if err := s.store.Save(ctx, tx, opts...); err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Event{
		Action:        audit.ActionReviewCompleted,
		TransactionID: tx.ID,
		ActorID:       tx.AnalystID,
		Reason:        tx.AnalystDecision,
	})
	return tx, nil
}

func (s *Service) emit(ctx context.Context, e audit.Event) {
	if err := s.auditor.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", e.Action, "tx_id", e.TransactionID, "error", err)
	}
}
