package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDPrefix marks certificate-request transaction ids.
const IDPrefix = "PRCAP"

const historyLimit = 50

// Status is the coarse, user-facing lifecycle label.
type Status string

const (
	StatusReceived   Status = "received"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
	StatusFinished   Status = "finished"
)

// Language selects the locale of user-facing messages.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageSpanish Language = "spanish"
)

// ParseLanguage accepts the two supported languages, case-insensitively.
func ParseLanguage(s string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageEnglish:
		return LanguageEnglish, true
	case LanguageSpanish:
		return LanguageSpanish, true
	}
	return "", false
}

// HistoryEntry records one applied transition.
type HistoryEntry struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
}

// Transaction is one certificate request and its processing history. It is
// persisted as a single JSON blob and rewritten in full on every save.
//
// The certificate bytes are never kept here: CertificateBase64 is only the
// readiness flag, and the generation worker fetches the bytes from RCI.
type Transaction struct {
	ID        string `json:"id"`
	NumericID int64  `json:"numeric_id,omitempty"`

	Email               string   `json:"email"`
	SSN                 string   `json:"ssn,omitempty"`
	Passport            string   `json:"passport,omitempty"`
	LicenseNumber       string   `json:"license_number,omitempty"`
	FirstName           string   `json:"first_name"`
	MiddleName          string   `json:"middle_name,omitempty"`
	LastName            string   `json:"last_name"`
	MotherLastName      string   `json:"mother_last_name,omitempty"`
	BirthDate           string   `json:"birth_date"` // DD/MM/YYYY
	Residency           string   `json:"residency"`
	IP                  string   `json:"IP"`
	Reason              string   `json:"reason"`
	SystemAddress       string   `json:"system_address,omitempty"`
	EmitCertificateType string   `json:"emit_certificate_type,omitempty"`
	Language            Language `json:"language"`

	Status    Status    `json:"status"`
	State     State     `json:"state"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty"`

	CertificateBase64 bool   `json:"certificate_base64"`
	CertificatePath   string `json:"certificate_path,omitempty"`
	IdentityValidated *bool  `json:"identity_validated"`
	DecisionCode      int    `json:"decision_code,omitempty"`
	CallbackRequested bool   `json:"callback_requested,omitempty"`

	AnalystID               string     `json:"analyst_id,omitempty"`
	AnalystFullname         string     `json:"analyst_fullname,omitempty"`
	AnalystApprovalDatetime *time.Time `json:"analyst_approval_datetime,omitempty"`
	AnalystTransactionID    string     `json:"analyst_transaction_id,omitempty"`
	AnalystInternalStatusID string     `json:"analyst_internal_status_id,omitempty"`
	AnalystDecision         string     `json:"analyst_decision,omitempty"`

	ErrorCount       int        `json:"error_count"`
	RCIErrorCount    int        `json:"rci_error_count"`
	RCIErrorDate     *time.Time `json:"rci_error_date,omitempty"`
	EmailErrorCount  int        `json:"email_error_count"`
	EmailErrorDate   *time.Time `json:"email_error_date,omitempty"`
	LastErrorType    string     `json:"last_error_type,omitempty"`
	LastErrorDate    *time.Time `json:"last_error_date,omitempty"`
	LastErrorMessage string     `json:"last_error_message,omitempty"`

	History []HistoryEntry `json:"history,omitempty"`
}

// NewID generates an opaque transaction id.
func NewID() string {
	return IDPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// IsNew reports whether the transaction has never been saved.
func (t *Transaction) IsNew() bool {
	return t.State == StateNew || t.State == ""
}

// Can reports whether event is a legal transition from the current state.
func (t *Transaction) Can(event Event) bool {
	_, ok := Next(t.State, event)
	return ok
}

// Apply performs a transition, recording it in the history.
func (t *Transaction) Apply(event Event, at time.Time) error {
	to, ok := Next(t.State, event)
	if !ok {
		return invalidTransition(t.ID, t.State, event)
	}
	t.record(to, event, at)
	return nil
}

// Force moves to state without consulting the transition table. It exists
// for administrative requeues and for failing a transaction whose last
// retry could not be recorded.
func (t *Transaction) Force(state State, event Event, at time.Time) {
	t.record(state, event, at)
}

func (t *Transaction) record(to State, event Event, at time.Time) {
	t.History = append(t.History, HistoryEntry{From: t.State, To: to, Event: event, At: at})
	if len(t.History) > historyLimit {
		t.History = t.History[len(t.History)-historyLimit:]
	}
	t.State = to
}

// SetIdentityValidated stores the tri-state identity result.
func (t *Transaction) SetIdentityValidated(v bool) {
	t.IdentityValidated = &v
}

// RecordRCIError bumps the RCI error telemetry.
func (t *Transaction) RecordRCIError(kind, msg string, at time.Time) {
	t.RCIErrorCount++
	t.RCIErrorDate = &at
	t.RecordError(kind, msg, at)
}

// RecordEmailError bumps the mail error telemetry.
func (t *Transaction) RecordEmailError(kind, msg string, at time.Time) {
	t.EmailErrorCount++
	t.EmailErrorDate = &at
	t.RecordError(kind, msg, at)
}

// RecordError bumps the general error telemetry only.
func (t *Transaction) RecordError(kind, msg string, at time.Time) {
	t.ErrorCount++
	t.LastErrorType = kind
	t.LastErrorDate = &at
	t.LastErrorMessage = msg
}

// FullName joins the name parts that are present.
func (t *Transaction) FullName() string {
	parts := []string{t.FirstName, t.MiddleName, t.LastName, t.MotherLastName}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// Clone returns a deep copy, used to roll back a failed save.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	cp.History = append([]HistoryEntry(nil), t.History...)
	if t.IdentityValidated != nil {
		v := *t.IdentityValidated
		cp.IdentityValidated = &v
	}
	return &cp
}
