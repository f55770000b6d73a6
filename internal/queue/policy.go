package queue

import (
	"errors"
	"time"

	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/sentinel"
)

func seconds(s ...int) []time.Duration {
	out := make([]time.Duration, len(s))
	for i, v := range s {
		out[i] = time.Duration(v) * time.Second
	}
	return out
}

// DefaultBackoff spreads retries from ten seconds out to eight weeks.
var DefaultBackoff = seconds(
	10, 60, 300, 600, 3600, 10800, 21600, 43200, 86400, 97200,
	108000, 140400, 172800, 183600, 194400, 216000, 259200, 302400, 345600, 388800,
	432000, 475200, 518400, 561600, 604800, 648000, 691200, 777600, 864000, 950400,
	1036800, 1123200, 1209600, 1814400, 2419200, 3024000, 3628800, 4233600, 4838400,
)

// ValidationBackoff is short: a certificate validation result is only
// useful while the caller is still waiting for it.
var ValidationBackoff = seconds(5, 10, 15, 20, 35)

// Policy is the retry configuration of one job class.
type Policy struct {
	Backoff       []time.Duration
	MinMultiplier float64
	MaxMultiplier float64
	// Fatal reports errors that retrying cannot fix. Nil means DefaultFatal.
	Fatal func(error) bool
}

// DefaultPolicy is the base backoff with 1.0-2.0 jitter.
func DefaultPolicy() Policy {
	return Policy{Backoff: DefaultBackoff, MinMultiplier: 1.0, MaxMultiplier: 2.0}
}

// ValidationPolicy is used by the certificate validation worker.
func ValidationPolicy() Policy {
	return Policy{Backoff: ValidationBackoff, MinMultiplier: 1.0, MaxMultiplier: 1.0}
}

// Delay returns the wait before retry number attempt (zero based). ok is false
// once the backoff sequence is exhausted. rnd must return values in [0,1).
func (p Policy) Delay(attempt int, rnd func() float64) (time.Duration, bool) {
	if attempt < 0 || attempt >= len(p.Backoff) {
		return 0, false
	}
	lo, hi := p.MinMultiplier, p.MaxMultiplier
	if lo <= 0 {
		lo = 1.0
	}
	if hi < lo {
		hi = lo
	}
	mult := lo
	if hi > lo && rnd != nil {
		mult = lo + rnd()*(hi-lo)
	}
	return time.Duration(float64(p.Backoff[attempt]) * mult), true
}

// IsFatal applies the policy's fatal classifier.
func (p Policy) IsFatal(err error) bool {
	if p.Fatal != nil {
		return p.Fatal(err)
	}
	return DefaultFatal(err)
}

// DefaultFatal covers missing or malformed input, absent records, corrupt
// records, invalid transitions, and jobs nobody can run.
func DefaultFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrUnknownClass), errors.Is(err, sentinel.ErrNotFound):
		return true
	case dErrors.HasCode(err, dErrors.CodeValidation),
		dErrors.HasCode(err, dErrors.CodeNotFound),
		dErrors.HasCode(err, dErrors.CodeCorruptRecord),
		dErrors.HasCode(err, dErrors.CodeInvalidState):
		return true
	default:
		return false
	}
}
