package deadletter

import (
	"context"
	"encoding/json"
	"log/slog"

	"gmq/internal/queue"
	audit "gmq/pkg/platform/audit"
)

// Inserter is the write side of the archive.
type Inserter interface {
	Insert(ctx context.Context, e Entry) error
}

// FromDead converts a parked job into an archive entry.
func FromDead(d queue.DeadJob) Entry {
	return Entry{
		JID:           d.Job.JID,
		Queue:         d.Queue,
		Class:         d.Job.Class,
		TransactionID: transactionID(d.Job),
		Payload:       d.Raw,
		Reason:        d.Reason,
		Outcome:       d.Outcome,
		Attempts:      d.Job.RetryAttempt,
		FailedAt:      d.FailedAt,
	}
}

// Hook archives every dead job and emits a job_dead audit event. archive
// may be nil when no database is configured. Failures are logged only.
func Hook(archive Inserter, auditor audit.Emitter, logger *slog.Logger) queue.DeadHook {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(ctx context.Context, d queue.DeadJob) {
		e := FromDead(d)
		if archive != nil {
			if err := archive.Insert(ctx, e); err != nil {
				logger.WarnContext(ctx, "archive dead job failed", "job_class", e.Class, "jid", e.JID, "error", err)
			}
		}
		err := auditor.Emit(ctx, audit.Event{
			Action:        audit.ActionJobDead,
			TransactionID: e.TransactionID,
			JobClass:      e.Class,
			Reason:        e.Outcome + ": " + e.Reason,
			Timestamp:     e.FailedAt,
		})
		if err != nil {
			logger.WarnContext(ctx, "audit emit failed", "action", audit.ActionJobDead, "jid", e.JID, "error", err)
		}
	}
}

// transactionID digs the record id out of the job arguments. Every job
// class carries it as "id"; plain notifications may not.
func transactionID(j queue.Job) string {
	var args struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(j.Payload(), &args); err != nil {
		return ""
	}
	return args.ID
}
