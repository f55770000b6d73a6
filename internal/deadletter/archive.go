// Package deadletter archives dead jobs in Postgres. Redis keeps only a
// capped list of the newest dead jobs per queue; the archive keeps all of
// them for operators.
package deadletter

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS dead_jobs (
		id             BIGSERIAL PRIMARY KEY,
		jid            TEXT NOT NULL DEFAULT '',
		queue          TEXT NOT NULL,
		class          TEXT NOT NULL,
		transaction_id TEXT NOT NULL DEFAULT '',
		payload        TEXT NOT NULL,
		reason         TEXT NOT NULL,
		outcome        TEXT NOT NULL,
		attempts       INT NOT NULL DEFAULT 0,
		failed_at      TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS dead_jobs_queue_failed_at ON dead_jobs (queue, failed_at DESC);
	CREATE INDEX IF NOT EXISTS dead_jobs_transaction_id ON dead_jobs (transaction_id);
`

// Entry is one archived dead job. Payload is the job exactly as it was
// parked, which may not be valid JSON for undecodable entries.
type Entry struct {
	JID           string
	Queue         string
	Class         string
	TransactionID string
	Payload       []byte
	Reason        string
	Outcome       string
	Attempts      int
	FailedAt      time.Time
}

// Archive stores entries in the dead_jobs table.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive wraps an open pool.
func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// EnsureSchema creates the table and its indexes if they are missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create dead_jobs schema: %w", err)
	}
	return nil
}

// Insert appends e. The same job may be archived more than once if it is
// retried from the dead list and dies again.
func (a *Archive) Insert(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO dead_jobs (jid, queue, class, transaction_id, payload, reason, outcome, attempts, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := a.pool.Exec(ctx, query,
		e.JID,
		e.Queue,
		e.Class,
		e.TransactionID,
		string(e.Payload),
		e.Reason,
		e.Outcome,
		e.Attempts,
		e.FailedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert dead job: %w", err)
	}
	return nil
}

// List returns up to limit entries of queue, newest first.
func (a *Archive) List(ctx context.Context, queue string, limit int) ([]Entry, error) {
	query := `
		SELECT jid, queue, class, transaction_id, payload, reason, outcome, attempts, failed_at
		FROM dead_jobs
		WHERE queue = $1
		ORDER BY failed_at DESC, id DESC
		LIMIT $2
	`
	rows, err := a.pool.Query(ctx, query, queue, limit)
	if err != nil {
		return nil, fmt.Errorf("query dead jobs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			payload string
		)
		if err := rows.Scan(&e.JID, &e.Queue, &e.Class, &e.TransactionID, &payload, &e.Reason, &e.Outcome, &e.Attempts, &e.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead job: %w", err)
		}
		e.Payload = []byte(payload)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead jobs: %w", err)
	}
	return out, nil
}
