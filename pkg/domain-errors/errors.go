// Package domainerrors defines the tagged error variants shared by every
// component. Stores return sentinel errors; services translate them into these.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the error variant. Retry classification, logging severity,
// and the boundary response shape are all derived from it.
type Code string

const (
	CodeValidation        Code = "validation"
	CodeBadRequest        Code = "bad_request"
	CodeNotFound          Code = "not_found"
	CodeCorruptRecord     Code = "corrupt_record"
	CodeRemoteService     Code = "remote_service"
	CodeRemoteUnavailable Code = "remote_unavailable"
	CodeStoreUnavailable  Code = "store_unavailable"
	CodeConfiguration     Code = "configuration"
	CodeMailDelivery      Code = "mail_delivery"
	CodeInvalidState      Code = "invalid_state"
	CodeUnauthorized      Code = "unauthorized"
	CodeInternal          Code = "internal"
)

// Remote carries the structured business error returned by an external system.
type Remote struct {
	Status  int
	Code    int
	Message string
}

// Error is the single error type crossing package boundaries.
type Error struct {
	Code    Code
	AppCode int    // stable numeric code exposed to API consumers
	Field   string // offending input field, for validation errors
	Message string
	Remote  *Remote
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a domain error with the given code.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// NewField creates a validation error for a single input field.
func NewField(appCode int, field, msg string) *Error {
	return &Error{Code: CodeValidation, AppCode: appCode, Field: field, Message: msg}
}

// NewRemote creates an error describing a structured response from a remote system.
func NewRemote(code Code, status, remoteCode int, msg string) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Remote:  &Remote{Status: status, Code: remoteCode, Message: msg},
	}
}

// WithAppCode returns a copy of e carrying the numeric application code.
func (e *Error) WithAppCode(appCode int) *Error {
	cp := *e
	cp.AppCode = appCode
	return &cp
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias for HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
