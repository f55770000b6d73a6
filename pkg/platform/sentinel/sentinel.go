package sentinel

import "errors"

// Sentinel errors for infrastructure facts. The KV adapter and record stores
// return these (optionally wrapped) so services can translate them into
// domain errors:
// - ErrNotFound: key or record does not exist (or has expired)
// - ErrInvalidState: record is in the wrong state for the requested transition
// - ErrUnavailable: the store or a remote system could not be reached
// - ErrConflict: a write lost against a concurrent writer
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
