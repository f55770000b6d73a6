// Package httptransport serves the operator surface: health, metrics,
// counters, recent transactions, dead jobs, and manual requeues.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gmq/internal/deadletter"
	"gmq/internal/queue"
	"gmq/internal/stats"
	"gmq/internal/transaction/models"
	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/httputil"
	"gmq/pkg/platform/middleware/admin"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

type Transactions interface {
	Recent(ctx context.Context, n int) ([]*models.Transaction, error)
	RequeueJob(ctx context.Context, id string, stage models.Stage, actor string) (*models.Transaction, error)
}

type Counters interface {
	Get(ctx context.Context) (stats.Snapshot, error)
}

type DeadLetters interface {
	List(ctx context.Context, q string, n int) ([]queue.Job, error)
}

// Archive is the optional long-term dead job store.
type Archive interface {
	List(ctx context.Context, q string, limit int) ([]deadletter.Entry, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the ops endpoints.
type Handler struct {
	tx       Transactions
	counters Counters
	dead     DeadLetters
	archive  Archive
	store    Pinger
	logger   *slog.Logger
}

type Option func(*Handler)

// WithArchive enables ?source=archive on the dead job listing.
func WithArchive(a Archive) Option {
	return func(h *Handler) {
		h.archive = a
	}
}

func NewHandler(tx Transactions, counters Counters, dead DeadLetters, store Pinger, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{tx: tx, counters: counters, dead: dead, store: store, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Summary is the operator view of a transaction. Identity documents are
// never listed.
type Summary struct {
	ID              string        `json:"id"`
	NumericID       int64         `json:"numeric_id"`
	State           models.State  `json:"state"`
	Status          models.Status `json:"status"`
	Location        string        `json:"location,omitempty"`
	ErrorCount      int           `json:"error_count"`
	LastErrorType   string        `json:"last_error_type,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	CertificateSent bool          `json:"certificate_sent"`
}

func summarize(tx *models.Transaction) Summary {
	return Summary{
		ID:              tx.ID,
		NumericID:       tx.NumericID,
		State:           tx.State,
		Status:          tx.Status,
		Location:        tx.Location,
		ErrorCount:      tx.ErrorCount,
		LastErrorType:   tx.LastErrorType,
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
		CertificateSent: tx.State == models.StateDone,
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.counters.Get(r.Context())
	if err != nil {
		h.fail(w, r, "read counters failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	txs, err := h.tx.Recent(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list recent transactions failed", err)
		return
	}
	out := make([]Summary, len(txs))
	for i, tx := range txs {
		out[i] = summarize(tx)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (h *Handler) handleDead(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := chi.URLParam(r, "queue")

	if r.URL.Query().Get("source") == "archive" {
		if h.archive == nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no dead job archive is configured").WithAppCode(dErrors.AppItemNotFound))
			return
		}
		entries, err := h.archive.List(r.Context(), q, limit)
		if err != nil {
			h.fail(w, r, "list archived dead jobs failed", err)
			return
		}
		out := make([]deadView, len(entries))
		for i, e := range entries {
			out[i] = deadView{JID: e.JID, Class: e.Class, TransactionID: e.TransactionID, Error: e.Reason, Attempts: e.Attempts, FailedAt: e.FailedAt.Format(time.RFC3339Nano)}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"queue": q, "source": "archive", "jobs": out})
		return
	}

	jobs, err := h.dead.List(r.Context(), q, limit)
	if err != nil {
		h.fail(w, r, "list dead jobs failed", err)
		return
	}
	out := make([]deadView, len(jobs))
	for i, j := range jobs {
		out[i] = deadView{JID: j.JID, Class: j.Class, Error: j.Error, Attempts: j.RetryAttempt, FailedAt: j.FailedAt}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"queue": q, "source": "redis", "jobs": out})
}

type deadView struct {
	JID           string `json:"jid"`
	Class         string `json:"class"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error"`
	Attempts      int    `json:"attempts"`
	FailedAt      string `json:"failed_at"`
}

func (h *Handler) handleRequeue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	stage := models.Stage(r.URL.Query().Get("stage"))

	tx, err := h.tx.RequeueJob(ctx, id, stage, admin.Actor(r))
	if err != nil {
		h.logger.WarnContext(ctx, "requeue rejected",
			"request_id", middleware.GetReqID(ctx),
			"tx_id", id,
			"stage", stage,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, summarize(tx))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, "request_id", middleware.GetReqID(r.Context()), "error", err)
	httputil.WriteError(w, err)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		return 0, dErrors.NewField(dErrors.AppInvalidParameters, "limit", "limit must be between 1 and "+strconv.Itoa(maxLimit))
	}
	return n, nil
}
