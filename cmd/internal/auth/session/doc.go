// Package session implements browser sessions for checklists.
//
// A session is a pair of cookies: a short-lived HS256 access token that is
// re-verified on every request (signature, issuer, audience and a 15 minute
// staleness bound), and a long-lived opaque refresh token. Refresh tokens are
// stored hashed (PBKDF2 with a per-record salt) under a key that embeds the
// cleartext, so locating a record already requires the secret. Records are
// rotated near the end of their 30 day life: the replacement is created and
// read back before the old one is removed.
//
// Transport (cookies, redirects) lives in authapi.
package session
