package workers

import (
	"context"
	"encoding/json"

	"gmq/internal/jobs"
	"gmq/internal/mailer"
	"gmq/internal/queue"
	dErrors "gmq/pkg/domain-errors"
)

// EmailWorker delivers a prerendered citizen notification.
type EmailWorker struct{ *Set }

func (w *EmailWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	args, err := queue.DecodeArgs[jobs.EmailArgs](raw)
	if err != nil {
		return err
	}
	switch {
	case args.To == "":
		return dErrors.NewField(dErrors.AppIncorrectEmailParams, "to", "notification has no recipient")
	case args.Text == "" && args.HTML == "":
		return dErrors.NewField(dErrors.AppIncorrectEmailParams, "text", "notification has no body")
	}
	err = w.mail.Send(ctx, mailer.Message{
		To:      args.To,
		Subject: args.Subject,
		Text:    args.Text,
		HTML:    args.HTML,
	})
	if err != nil {
		w.logger.WarnContext(ctx, "notification send failed", "tx_id", args.ID, "error", err)
		return err
	}
	return nil
}
