package session

import "errors"

var (
	// ErrInvalidSession collapses every access-token failure: bad signature,
	// wrong issuer or audience, stale iat, expired.
	ErrInvalidSession = errors.New("invalid session")

	// ErrRefreshNotFound is returned when no live record matches a refresh token.
	ErrRefreshNotFound = errors.New("refresh token not found")

	// ErrRefreshMismatch is returned when the stored hash does not match the token.
	ErrRefreshMismatch = errors.New("refresh token mismatch")

	// ErrRefreshExpired is returned when a record is older than RefreshTTL.
	ErrRefreshExpired = errors.New("refresh token expired")

	// ErrRefreshCorrupt is returned when a stored record is missing fields.
	ErrRefreshCorrupt = errors.New("refresh record corrupt")

	// ErrBadCredentials is returned by Login for any credential failure.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
