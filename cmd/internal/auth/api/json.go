package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/autherr"
)

// Error codes are stable; clients branch on them, never on message.
const (
	codeInvalidJSON        = "invalid_json"
	codeBodyTooLarge       = "body_too_large"
	codeInvalidRequest     = "invalid_request"
	codeInvalidCredentials = "invalid_credentials"
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeRateLimited        = "rate_limited"
	codeNotFound           = "not_found"
	codeServerBusy         = "server_busy"
	codeInternal           = "internal"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// writeJSON never lets a response carrying credentials or identities be cached.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// statusCode is the default code for each status the auth boundary emits.
func statusCode(status int) string {
	switch status {
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusTooManyRequests:
		return codeRateLimited
	case http.StatusInternalServerError:
		return codeInternal
	default:
		return codeUnauthorized
	}
}

// writeAuthError renders an autherr failure through autherr.Status. A 401 is
// tagged with unauthenticated so login can answer invalid_credentials where
// the authorizer answers unauthorized.
func writeAuthError(w http.ResponseWriter, err error, unauthenticated string) {
	status, msg := autherr.Status(err)
	switch status {
	case http.StatusTooManyRequests:
		d, _ := autherr.RetryAfter(err)
		writeRateLimited(w, d, msg)
	case http.StatusUnauthorized:
		writeError(w, status, unauthenticated, msg)
	default:
		writeError(w, status, statusCode(status), msg)
	}
}

// writeDecodeError answers 413 for bodies over MaxBodyBytes and 400 otherwise.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, codeBodyTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid request body")
}

// decodeJSON reads exactly one JSON object of at most maxBytes, rejecting
// unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("trailing data after JSON object")
		}
		return err
	}
	return nil
}
