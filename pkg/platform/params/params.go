// Package params reads loosely typed request payloads (decoded JSON objects)
// against a whitelist of accepted keys.
package params

import (
	"slices"
	"strconv"
	"strings"

	dErrors "gmq/pkg/domain-errors"
)

// Params is a decoded JSON object.
type Params map[string]any

// Whitelist rejects the payload if it carries any key not in allowed.
func (p Params) Whitelist(allowed ...string) error {
	var unknown []string
	for k := range p {
		if !slices.Contains(allowed, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return (&dErrors.Error{
		Code:    dErrors.CodeValidation,
		Field:   unknown[0],
		Message: "invalid parameters: " + strings.Join(unknown, ", "),
	}).WithAppCode(dErrors.AppInvalidParameters)
}

// String returns the trimmed value of key. Numbers and booleans are
// formatted; absent, null, and blank values report ok=false.
func (p Params) String(key string) (string, bool) {
	var s string
	switch v := p[key].(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Bool reads a boolean, accepting "true"/"false" strings.
func (p Params) Bool(key string) (value, ok bool) {
	switch v := p[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

// Has reports whether key is present, even with a null value.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}
