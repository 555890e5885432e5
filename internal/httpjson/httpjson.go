// Package httpjson holds the JSON response helpers shared by the HTTP handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps request bodies accepted by Decode.
const MaxBodyBytes = 1 << 20

// ErrorBody is the payload written for every failed request.
type ErrorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// Write encodes v as the JSON response body with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an ErrorBody with the given status.
func Error(w http.ResponseWriter, status int, body ErrorBody) {
	Write(w, status, body)
}

// Decode reads a single JSON value from the request body into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// RequireBearer rejects requests without "Authorization: Bearer <token>".
// An empty token disables the check.
func RequireBearer(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			Error(w, http.StatusUnauthorized, ErrorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
