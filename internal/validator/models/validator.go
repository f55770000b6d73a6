// Package models defines the certificate validation request: a third party
// asks whether a certificate issued under some transaction id is genuine.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDPrefix marks validator ids.
const IDPrefix = "PRCAPV"

// State of a validation request.
type State string

const (
	StateNew        State = "new"
	StateReceived   State = "received"
	StateValidating State = "validating"
	StateRetrying   State = "retrying"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Result is the outcome reported back to the requester.
type Result string

const (
	ResultValid    Result = "valid"
	ResultInvalid  Result = "invalid"
	ResultNotFound Result = "not_found"
)

// Validator is persisted as a JSON blob with a short TTL.
type Validator struct {
	ID        string `json:"id"`
	TxID      string `json:"tx_id"`
	SSN       string `json:"ssn,omitempty"`
	Passport  string `json:"passport,omitempty"`
	BirthDate string `json:"birth_date"`

	State  State  `json:"state"`
	Result Result `json:"result,omitempty"`

	Name             string `json:"name,omitempty"`
	GeneratedDate    int64  `json:"generated_date,omitempty"`
	RemoteBirthDate  int64  `json:"remote_birth_date,omitempty"`
	RemoteCode       int    `json:"remote_code,omitempty"`
	Message          string `json:"message,omitempty"`
	ErrorCount       int    `json:"error_count"`
	LastErrorMessage string `json:"last_error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewID() string {
	return IDPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (v *Validator) IsNew() bool {
	return v.State == StateNew || v.State == ""
}

// Finished reports whether a result has been recorded.
func (v *Validator) Finished() bool {
	return v.State == StateDone || v.State == StateFailed
}

// Resolve records a final result.
func (v *Validator) Resolve(r Result, code int, msg string) {
	v.Result = r
	v.RemoteCode = code
	v.Message = msg
	v.State = StateDone
}

// Clone returns a copy; Validator holds no reference fields.
func (v *Validator) Clone() *Validator {
	cp := *v
	return &cp
}
