// Package autherr is the error taxonomy shared by the auth packages and the
// HTTP boundary.
//
// Every failure carries a Kind sentinel that decides the HTTP status, and a
// safe Msg that may be shown to the caller. Causes are kept for logs only.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrAuthentication: missing, invalid, expired or revoked credentials (401).
	ErrAuthentication = errors.New("authentication failed")

	// ErrAuthorization: authenticated, but missing the required scope (403).
	ErrAuthorization = errors.New("not authorized")

	// ErrRateLimited: too many failures from one client (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrConfiguration: invalid configuration; fatal at startup.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrTransientStore: the token store was unreachable or timed out.
	// Reported to callers as a 401 so outages never fail open.
	ErrTransientStore = errors.New("token store unavailable")
)

const (
	MsgUnauthenticated = "Authentication required"
	MsgForbidden       = "Insufficient scope"
	MsgRateLimited     = "Too many requests"
)

// OpError is a typed auth failure with a stable Op + Kind contract.
//   - Kind is one of the sentinels above.
//   - Msg is safe to return to clients. Never put secrets or token values in it.
//   - Err is the internal cause (store error, parse error, ...).
type OpError struct {
	Op         string
	Kind       error
	Msg        string
	RetryAfter time.Duration
	Err        error
}

func (e *OpError) Error() string {
	s := e.Op + ": " + fmt.Sprint(e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *OpError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// SafeMessage returns the client-facing message.
func (e *OpError) SafeMessage() string { return e.Msg }

// Unauthenticated builds a 401 failure.
func Unauthenticated(op, msg string, cause error) error {
	return &OpError{Op: op, Kind: ErrAuthentication, Msg: msg, Err: cause}
}

// Forbidden builds a 403 failure.
func Forbidden(op, msg string) error {
	return &OpError{Op: op, Kind: ErrAuthorization, Msg: msg}
}

// RateLimited builds a 429 failure.
func RateLimited(op string, retryAfter time.Duration) error {
	return &OpError{Op: op, Kind: ErrRateLimited, Msg: MsgRateLimited, RetryAfter: retryAfter}
}

// TransientStore wraps a store failure. msg is what the caller will see.
func TransientStore(op, msg string, cause error) error {
	return &OpError{Op: op, Kind: ErrTransientStore, Msg: msg, Err: cause}
}

// Configuration builds a startup failure.
func Configuration(op, msg string, cause error) error {
	return &OpError{Op: op, Kind: ErrConfiguration, Msg: msg, Err: cause}
}

// Status maps err to the HTTP status and safe message for the response.
// Unknown errors become a generic 401.
func Status(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	msg := MsgUnauthenticated
	var oe *OpError
	if errors.As(err, &oe) && oe.Msg != "" {
		msg = oe.Msg
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		if oe == nil || oe.Msg == "" {
			msg = MsgRateLimited
		}
		return http.StatusTooManyRequests, msg
	case errors.Is(err, ErrAuthorization):
		if oe == nil || oe.Msg == "" {
			msg = MsgForbidden
		}
		return http.StatusForbidden, msg
	case errors.Is(err, ErrConfiguration):
		return http.StatusInternalServerError, "Internal server error"
	default:
		// ErrAuthentication, ErrTransientStore and anything unexpected.
		return http.StatusUnauthorized, msg
	}
}

// RetryAfter reports the back-off carried by a rate-limit failure.
func RetryAfter(err error) (time.Duration, bool) {
	var oe *OpError
	if errors.As(err, &oe) && errors.Is(oe.Kind, ErrRateLimited) {
		return oe.RetryAfter, true
	}
	return 0, false
}
