package workers

import (
	"context"
	"encoding/json"

	"gmq/internal/jobs"
	"gmq/internal/mailer"
	"gmq/internal/notify"
	"gmq/internal/queue"
	"gmq/internal/transaction/models"
	"gmq/internal/transaction/store"
	audit "gmq/pkg/platform/audit"
)

// ReceiptEmailWorker acknowledges a new request to the citizen. The next
// stage is enqueued only after the mail went out, so the citizen never gets
// a later notification before the receipt.
type ReceiptEmailWorker struct{ *Set }

func (w *ReceiptEmailWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	args, err := queue.DecodeArgs[jobs.IDArgs](raw)
	if err != nil {
		return err
	}
	tx, err := w.find(ctx, args.ID)
	if err != nil {
		return err
	}
	if w.replay(ctx, tx, models.EventStartReceipt, jobs.ReceiptEmail) {
		return nil
	}
	now := w.clock.Now()
	if err := tx.Apply(models.EventStartReceipt, now); err != nil {
		return err
	}

	content, err := notify.Render(tx, mailer.TemplateReceipt, "")
	if err != nil {
		return err
	}
	err = w.mail.Send(ctx, mailer.Message{
		To:      tx.Email,
		Subject: content.Subject,
		Text:    content.Text,
		HTML:    content.HTML,
	})
	if err != nil {
		return w.retrying(ctx, tx, sourceMail, "receipt_email", err)
	}

	now = w.clock.Now()
	if err := tx.Apply(models.EventReceiptSent, now); err != nil {
		return err
	}
	tx.Status = models.StatusProcessing

	var opts []store.SaveOption
	if w.validationEnabled {
		opts = append(opts, store.WithJobs(jobs.Job{Class: jobs.Rapsheet, Payload: jobs.IDArgs{ID: tx.ID}}))
	} else if err := tx.Apply(models.EventAwaitCertificate, now); err != nil {
		return err
	}
	if err := w.tx.Save(ctx, tx, opts...); err != nil {
		return err
	}
	w.emit(ctx, audit.Event{Action: audit.ActionReceiptSent, TransactionID: tx.ID, JobClass: jobs.ReceiptEmail})
	return nil
}

// Exhausted fails the transaction without another email; mail is what kept failing.
func (w *ReceiptEmailWorker) Exhausted(ctx context.Context, raw json.RawMessage, cause error) error {
	args, err := queue.DecodeArgs[jobs.IDArgs](raw)
	if err != nil {
		return err
	}
	return w.exhaust(ctx, args.ID, jobs.ReceiptEmail, models.StateFailedReceipt, cause, false)
}
