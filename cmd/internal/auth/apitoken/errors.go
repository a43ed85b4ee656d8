package apitoken

import "errors"

var (
	// ErrInvalidFormat is the single parse failure.
	ErrInvalidFormat = errors.New("invalid api token format")

	// ErrInvalidInput is returned for bad issue/revoke arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned by Revoke when the owner has no such token.
	ErrNotFound = errors.New("api token not found")

	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("api token record corrupt")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// Internal validation causes. Callers only ever see "Invalid API token".
	errHashMismatch = errors.New("secret mismatch")
	errRevoked      = errors.New("token revoked")
	errExpired      = errors.New("token expired")
	errNoBearer     = errors.New("missing bearer token")
)
