// Package audit records business-significant actions on certificate
// requests. Emission is best-effort: sinks may fail without affecting the
// job or request that produced the event.
package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers actions with legal significance for the
	// citizen, such as identity decisions and certificate delivery.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for operators: dead jobs,
	// manual requeues, exhausted retries.
	CategoryOperations EventCategory = "operations"
)

// Action names what happened.
type Action string

const (
	ActionTransactionCreated   Action = "transaction_created"
	ActionReceiptSent          Action = "receipt_sent"
	ActionIdentityValidated    Action = "identity_validated"
	ActionIdentityRejected     Action = "identity_rejected"
	ActionManualReview         Action = "manual_review"
	ActionReviewCompleted      Action = "review_completed"
	ActionCertificateGenerated Action = "certificate_generated"
	ActionCertificateMailed    Action = "certificate_mailed"
	ActionTransactionFailed    Action = "transaction_failed"
	ActionTransactionRequeued  Action = "transaction_requeued"
	ActionJobDead              Action = "job_dead"
)

var actionCategories = map[Action]EventCategory{
	ActionTransactionCreated:   CategoryCompliance,
	ActionReceiptSent:          CategoryCompliance,
	ActionIdentityValidated:    CategoryCompliance,
	ActionIdentityRejected:     CategoryCompliance,
	ActionManualReview:         CategoryCompliance,
	ActionReviewCompleted:      CategoryCompliance,
	ActionCertificateGenerated: CategoryCompliance,
	ActionCertificateMailed:    CategoryCompliance,

	ActionTransactionFailed:   CategoryOperations,
	ActionTransactionRequeued: CategoryOperations,
	ActionJobDead:             CategoryOperations,
}

// Category returns the category of a, defaulting to operations.
func (a Action) Category() EventCategory {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from workers and services. It never carries the
// citizen's identity documents, only the transaction id.
type Event struct {
	ID            string        `json:"id"`
	Category      EventCategory `json:"category"`
	Action        Action        `json:"action"`
	TransactionID string        `json:"transaction_id,omitempty"`
	JobClass      string        `json:"job_class,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	RemoteStatus  int           `json:"remote_status,omitempty"`
	ActorID       string        `json:"actor_id,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Store persists events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is the producer-side contract held by services and workers.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
