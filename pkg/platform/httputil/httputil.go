// Package httputil renders JSON responses and domain errors.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "gmq/pkg/domain-errors"
)

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err through the boundary mapping.
func WriteError(w http.ResponseWriter, err error) {
	resp := dErrors.ToResponse(err)
	WriteJSON(w, resp.HTTPStatus, resp)
}
