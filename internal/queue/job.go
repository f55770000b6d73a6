package queue

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	dErrors "gmq/pkg/domain-errors"
)

// ErrUnknownClass is returned when a job names a class with no registered worker.
var ErrUnknownClass = errors.New("unknown job class")

// Job is the wire descriptor pushed onto a queue list:
//
//	{"class":"RapsheetWorker","args":[{"id":"PRCAP..."}],"jid":"...","enqueued_at":"..."}
type Job struct {
	Class        string            `json:"class"`
	Args         []json.RawMessage `json:"args"`
	JID          string            `json:"jid,omitempty"`
	Queue        string            `json:"queue,omitempty"`
	RetryAttempt int               `json:"retry_attempt,omitempty"`
	EnqueuedAt   string            `json:"enqueued_at,omitempty"`
	Error        string            `json:"error,omitempty"`
	FailedAt     string            `json:"failed_at,omitempty"`
}

// NewJob builds a job for class with payload as its single argument.
func NewJob(class string, payload any, now time.Time) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode job arguments")
	}
	return Job{
		Class:      class,
		Args:       []json.RawMessage{raw},
		JID:        uuid.NewString(),
		EnqueuedAt: now.UTC().Format(time.RFC3339Nano),
	}, nil
}

// Encode serializes the job for a list push.
func (j Job) Encode() ([]byte, error) {
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode job")
	}
	return raw, nil
}

// Payload returns the first argument, or nil when the job carries none.
func (j Job) Payload() json.RawMessage {
	if len(j.Args) == 0 {
		return nil
	}
	return j.Args[0]
}

// Decode parses a raw list entry. Undecodable entries are validation errors,
// and therefore never retried.
func Decode(raw []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return Job{}, dErrors.Wrap(err, dErrors.CodeValidation, "decode job")
	}
	if j.Class == "" {
		return Job{}, dErrors.New(dErrors.CodeValidation, "job has no class")
	}
	return j, nil
}

// DecodeArgs unmarshals a job payload into T.
func DecodeArgs[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 || string(payload) == "null" {
		return v, dErrors.New(dErrors.CodeValidation, "job has no arguments")
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, dErrors.Wrap(err, dErrors.CodeValidation, "decode job arguments")
	}
	return v, nil
}
