// Package httpx holds the JSON request/response helpers shared by the
// handler packages.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON error envelope. Code is a stable machine-readable
// reason; Error is for humans.
type ErrorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{Code: code, Error: message})
}

// Decode decodes the request body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
