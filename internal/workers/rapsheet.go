package workers

import (
	"context"
	"encoding/json"
	"net/http"

	"gmq/internal/jobs"
	"gmq/internal/mailer"
	"gmq/internal/notify"
	"gmq/internal/queue"
	"gmq/internal/rci"
	"gmq/internal/stats"
	"gmq/internal/transaction/models"
	"gmq/internal/transaction/store"
	audit "gmq/pkg/platform/audit"
)

// RapsheetWorker asks RCI whether the citizen has a criminal record.
type RapsheetWorker struct{ *Set }

func (w *RapsheetWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	args, err := queue.DecodeArgs[jobs.IDArgs](raw)
	if err != nil {
		return err
	}
	tx, err := w.find(ctx, args.ID)
	if err != nil {
		return err
	}
	if w.replay(ctx, tx, models.EventStartValidation, jobs.Rapsheet) {
		return nil
	}
	if err := tx.Apply(models.EventStartValidation, w.clock.Now()); err != nil {
		return err
	}

	resp, err := w.rci.Request(ctx, rci.RapRequest{
		TxID:           tx.ID,
		FirstName:      tx.FirstName,
		MiddleName:     tx.MiddleName,
		LastName:       tx.LastName,
		MotherLastName: tx.MotherLastName,
		SSN:            tx.SSN,
		License:        tx.LicenseNumber,
		BirthDate:      tx.BirthDate,
	})
	if err != nil {
		if queue.DefaultFatal(err) {
			// The stored record cannot be sent as is; retrying will not help.
			return w.fatal(ctx, tx, jobs.Rapsheet, models.StateFailedRapsheet, err, true)
		}
		return w.retrying(ctx, tx, sourceRCI, "rci_request", err)
	}

	switch {
	case resp.OK():
		return w.validated(ctx, tx)
	case resp.Status == http.StatusBadRequest && resp.Remote != nil:
		switch rci.Classify(resp.Remote.Code) {
		case rci.OutcomeRejected:
			return w.rejected(ctx, tx, resp.Remote.Code)
		case rci.OutcomeManualReview:
			return w.manualReview(ctx, tx, resp.Remote.Code)
		}
	}
	return w.retrying(ctx, tx, sourceRCI, "rci_request", remoteAnswer(resp))
}

func (w *RapsheetWorker) validated(ctx context.Context, tx *models.Transaction) error {
	now := w.clock.Now()
	tx.SetIdentityValidated(true)
	tx.Location = models.LocationRCI
	if err := tx.Apply(models.EventValidationOK, now); err != nil {
		return err
	}

	var opts []store.SaveOption
	if w.retrieveMode {
		tx.CallbackRequested = w.callbackEnabled
		opts = append(opts, store.WithJobs(jobs.Job{
			Class:   jobs.RetrieveCertificate,
			Payload: jobs.RetrieveArgs{ID: tx.ID, CallbackRequested: w.callbackEnabled},
		}))
	} else if err := tx.Apply(models.EventAwaitCertificate, now); err != nil {
		return err
	}
	if err := w.tx.Save(ctx, tx, opts...); err != nil {
		return err
	}
	w.emit(ctx, audit.Event{Action: audit.ActionIdentityValidated, TransactionID: tx.ID, JobClass: jobs.Rapsheet})
	return nil
}

// rejected closes the request and tells the citizen why. It is a business
// outcome, not a failure: the job succeeds.
func (w *RapsheetWorker) rejected(ctx context.Context, tx *models.Transaction, code int) error {
	tx.SetIdentityValidated(false)
	tx.DecisionCode = code
	tx.Status = models.StatusCompleted
	if err := tx.Apply(models.EventValidationRejected, w.clock.Now()); err != nil {
		return err
	}
	reason := rci.Message(code, tx.Language == models.LanguageEnglish)
	job, err := notify.Job(tx, mailer.TemplateRejection, reason)
	if err != nil {
		return err
	}
	err = w.tx.Save(ctx, tx,
		store.WithJobs(job),
		store.WithStats(stats.RemovePending, stats.AddCompleted),
	)
	if err != nil {
		return err
	}
	w.emit(ctx, audit.Event{
		Action:        audit.ActionIdentityRejected,
		TransactionID: tx.ID,
		JobClass:      jobs.Rapsheet,
		RemoteStatus:  http.StatusBadRequest,
		Reason:        reason,
	})
	return nil
}

// manualReview parks the request for an analyst; it stays pending.
func (w *RapsheetWorker) manualReview(ctx context.Context, tx *models.Transaction, code int) error {
	tx.DecisionCode = code
	tx.Status = models.StatusProcessing
	if err := tx.Apply(models.EventValidationFuzzy, w.clock.Now()); err != nil {
		return err
	}
	job, err := notify.Job(tx, mailer.TemplateManualReview, rci.Message(code, tx.Language == models.LanguageEnglish))
	if err != nil {
		return err
	}
	if err := w.tx.Save(ctx, tx, store.WithJobs(job)); err != nil {
		return err
	}
	w.emit(ctx, audit.Event{Action: audit.ActionManualReview, TransactionID: tx.ID, JobClass: jobs.Rapsheet})
	return nil
}

func (w *RapsheetWorker) Exhausted(ctx context.Context, raw json.RawMessage, cause error) error {
	args, err := queue.DecodeArgs[jobs.IDArgs](raw)
	if err != nil {
		return err
	}
	return w.exhaust(ctx, args.ID, jobs.Rapsheet, models.StateFailedRapsheet, cause, true)
}
