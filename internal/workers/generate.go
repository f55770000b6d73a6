package workers

import (
	"context"
	"encoding/json"

	"gmq/internal/jobs"
	"gmq/internal/mailer"
	"gmq/internal/notify"
	"gmq/internal/queue"
	"gmq/internal/rci"
	"gmq/internal/transaction/models"
	"gmq/internal/transaction/store"
	dErrors "gmq/pkg/domain-errors"
	audit "gmq/pkg/platform/audit"
)

// GenerateCertificateWorker writes the certificate PDF to disk and hands it
// to the final email.
type GenerateCertificateWorker struct{ *Set }

func (w *GenerateCertificateWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	args, err := queue.DecodeArgs[jobs.IDArgs](raw)
	if err != nil {
		return err
	}
	tx, err := w.find(ctx, args.ID)
	if err != nil {
		return err
	}
	if !tx.CertificateBase64 {
		return dErrors.NewField(dErrors.AppMissingCertificateBase64, "certificate_base64", "certificate has not been received for "+tx.ID)
	}
	path := w.renderer.PathFor(tx.ID)
	if (tx.State == models.StateDone || tx.State == models.StateMailingCertificate) && w.renderer.Exists(path) {
		w.logger.InfoContext(ctx, "certificate already generated", "tx_id", tx.ID, "state", tx.State)
		return nil
	}
	if w.replay(ctx, tx, models.EventStartGeneration, jobs.GenerateCertificate) {
		return nil
	}
	if err := tx.Apply(models.EventStartGeneration, w.clock.Now()); err != nil {
		return err
	}

	// The callback only flagged readiness; the bytes always come fresh.
	resp, err := w.rci.Retrieve(ctx, tx.ID, false)
	if err != nil {
		return w.retrying(ctx, tx, sourceRCI, "rci_retrieve", err)
	}
	if !resp.OK() {
		return w.retrying(ctx, tx, sourceRCI, "rci_retrieve", remoteAnswer(resp))
	}
	cert, err := rci.DecodeCertificate(resp.Body)
	if err != nil {
		return w.retrying(ctx, tx, sourceRCI, "rci_retrieve", err)
	}

	if err := w.renderer.DecodeAndWrite(cert.CertificateBase64, path); err != nil {
		w.discard(ctx, path)
		return w.retrying(ctx, tx, sourceLocal, "certificate_render", err)
	}
	if err := w.renderer.ValidateIsPDF(path); err != nil {
		w.discard(ctx, path)
		return w.retrying(ctx, tx, sourceLocal, "certificate_render", err)
	}

	content, err := notify.Render(tx, mailer.TemplateCertificate, "")
	if err != nil {
		return err
	}
	tx.CertificatePath = path
	if err := tx.Apply(models.EventPDFWritten, w.clock.Now()); err != nil {
		return err
	}
	err = w.tx.Save(ctx, tx, store.WithJobs(jobs.Job{
		Class: jobs.FinalEmail,
		Payload: jobs.FinalEmailArgs{
			ID:       tx.ID,
			FilePath: path,
			Subject:  content.Subject,
			Text:     content.Text,
			HTML:     content.HTML,
		},
	}))
	if err != nil {
		return err
	}
	w.emit(ctx, audit.Event{Action: audit.ActionCertificateGenerated, TransactionID: tx.ID, JobClass: jobs.GenerateCertificate})
	return nil
}

func (w *GenerateCertificateWorker) discard(ctx context.Context, path string) {
	if err := w.renderer.Remove(path); err != nil {
		w.logger.WarnContext(ctx, "remove invalid certificate failed", "path", path, "error", err)
	}
}

func (w *GenerateCertificateWorker) Exhausted(ctx context.Context, raw json.RawMessage, cause error) error {
	args, err := queue.DecodeArgs[jobs.IDArgs](raw)
	if err != nil {
		return err
	}
	return w.exhaust(ctx, args.ID, jobs.GenerateCertificate, models.StateFailedGeneration, cause, true)
}
