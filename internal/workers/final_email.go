package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"gmq/internal/jobs"
	"gmq/internal/mailer"
	"gmq/internal/queue"
	"gmq/internal/stats"
	"gmq/internal/transaction/models"
	"gmq/internal/transaction/store"
	dErrors "gmq/pkg/domain-errors"
	audit "gmq/pkg/platform/audit"
)

// FinalEmailWorker mails the certificate and closes the transaction.
//
// The saved done state is the sent marker; the file is removed only after
// it. A missing file before that point means the certificate is not on this
// host, which is retried rather than skipped.
type FinalEmailWorker struct{ *Set }

func (w *FinalEmailWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	args, err := queue.DecodeArgs[jobs.FinalEmailArgs](raw)
	if err != nil {
		return err
	}
	if args.Text == "" && args.HTML == "" {
		return dErrors.NewField(dErrors.AppIncorrectEmailParams, "text", "final email has no body")
	}
	tx, err := w.find(ctx, args.ID)
	if err != nil {
		return err
	}
	if tx.State == models.StateDone {
		w.logger.InfoContext(ctx, "certificate already mailed", "tx_id", tx.ID)
		if w.renderer.Exists(args.FilePath) {
			w.cleanup(ctx, args.FilePath)
		}
		return nil
	}
	if w.replay(ctx, tx, models.EventStartMailing, jobs.FinalEmail) {
		return nil
	}
	if err := tx.Apply(models.EventStartMailing, w.clock.Now()); err != nil {
		return err
	}

	if !w.renderer.Exists(args.FilePath) {
		w.logger.WarnContext(ctx, "certificate file missing before send",
			"tx_id", tx.ID,
			"path", args.FilePath,
			"certificate_path", tx.CertificatePath,
		)
		return w.retrying(ctx, tx, sourceLocal, "certificate_missing",
			dErrors.New(dErrors.CodeInternal, "certificate file not found: "+args.FilePath))
	}
	pdf, err := w.renderer.Read(args.FilePath)
	if err != nil {
		return w.retrying(ctx, tx, sourceLocal, "certificate_read", err)
	}
	err = w.mail.Send(ctx, mailer.Message{
		To:             tx.Email,
		Subject:        args.Subject,
		Text:           args.Text,
		HTML:           args.HTML,
		AttachmentName: fmt.Sprintf("certificado_%d.pdf", tx.NumericID),
		Attachment:     pdf,
	})
	if err != nil {
		return w.retrying(ctx, tx, sourceMail, "final_email", err)
	}

	if err := tx.Apply(models.EventMailSent, w.clock.Now()); err != nil {
		return err
	}
	tx.Status = models.StatusFinished
	tx.Location = models.LocationMail
	tx.CertificatePath = ""
	err = w.tx.Save(ctx, tx, store.WithStats(stats.RemovePending, stats.AddCompleted))
	if err != nil {
		return err
	}
	w.cleanup(ctx, args.FilePath)
	w.emit(ctx, audit.Event{Action: audit.ActionCertificateMailed, TransactionID: tx.ID, JobClass: jobs.FinalEmail})
	return nil
}

func (w *FinalEmailWorker) cleanup(ctx context.Context, path string) {
	if filepath.Ext(path) != ".pdf" {
		return
	}
	if err := w.renderer.Remove(path); err != nil {
		w.logger.WarnContext(ctx, "remove mailed certificate failed", "path", path, "error", err)
	}
}

func (w *FinalEmailWorker) Exhausted(ctx context.Context, raw json.RawMessage, cause error) error {
	args, err := queue.DecodeArgs[jobs.FinalEmailArgs](raw)
	if err != nil {
		return err
	}
	return w.exhaust(ctx, args.ID, jobs.FinalEmail, models.StateFailedMailing, cause, false)
}
