package workers

import (
	"context"
	"encoding/json"

	"gmq/internal/jobs"
	"gmq/internal/queue"
	"gmq/internal/rci"
	"gmq/internal/stats"
	"gmq/internal/transaction/models"
	"gmq/internal/transaction/store"
)

// RetrieveCertificateWorker asks RCI to issue the certificate. With the
// callback requested RCI posts it back later; otherwise the answer carries
// it and generation starts right away.
type RetrieveCertificateWorker struct{ *Set }

func (w *RetrieveCertificateWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	args, err := queue.DecodeArgs[jobs.RetrieveArgs](raw)
	if err != nil {
		return err
	}
	tx, err := w.find(ctx, args.ID)
	if err != nil {
		return err
	}
	if w.replay(ctx, tx, models.EventStartRetrieval, jobs.RetrieveCertificate) {
		return nil
	}
	// A finished request being delivered again is pending once more. The
	// counters move with whichever save first takes it out of done, so a
	// failed first attempt still carries them.
	var opts []store.SaveOption
	if tx.State == models.StateDone {
		opts = append(opts, store.WithStats(stats.RemoveCompleted, stats.AddPending))
	}
	if err := tx.Apply(models.EventStartRetrieval, w.clock.Now()); err != nil {
		return err
	}

	resp, err := w.rci.Retrieve(ctx, tx.ID, args.CallbackRequested)
	if err != nil {
		return w.retrying(ctx, tx, sourceRCI, "rci_retrieve", err, opts...)
	}
	if !resp.OK() {
		return w.retrying(ctx, tx, sourceRCI, "rci_retrieve", remoteAnswer(resp), opts...)
	}

	if !args.CallbackRequested {
		if _, err := rci.DecodeCertificate(resp.Body); err != nil {
			return w.retrying(ctx, tx, sourceRCI, "rci_retrieve", err, opts...)
		}
	}

	now := w.clock.Now()
	tx.SetIdentityValidated(true)
	tx.Location = models.LocationRCI
	tx.CallbackRequested = args.CallbackRequested
	tx.Status = models.StatusProcessing
	if err := tx.Apply(models.EventRetrieved, now); err != nil {
		return err
	}
	if args.CallbackRequested {
		if err := tx.Apply(models.EventAwaitCertificate, now); err != nil {
			return err
		}
	} else {
		tx.CertificateBase64 = true
		if err := tx.Apply(models.EventCertificateReady, now); err != nil {
			return err
		}
		opts = append(opts, store.WithJobs(jobs.Job{Class: jobs.GenerateCertificate, Payload: jobs.IDArgs{ID: tx.ID}}))
	}
	return w.tx.Save(ctx, tx, opts...)
}

func (w *RetrieveCertificateWorker) Exhausted(ctx context.Context, raw json.RawMessage, cause error) error {
	args, err := queue.DecodeArgs[jobs.RetrieveArgs](raw)
	if err != nil {
		return err
	}
	return w.exhaust(ctx, args.ID, jobs.RetrieveCertificate, models.StateFailedRetrieval, cause, true)
}
