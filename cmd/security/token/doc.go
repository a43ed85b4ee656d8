// Package token provides the secret-handling primitives shared by sessions and API tokens.
//
// It is the single source of truth for:
//   - timing-safe string comparison
//   - random opaque token generation (16 bytes, hex)
//   - slow salted hashing (PBKDF2-HMAC-SHA256) for refresh tokens and passwords
//   - fast unsalted SHA-256 for lookup keys and high-entropy API token secrets
//
// Randomness is read from an injected RandomSource so callers and tests can
// substitute deterministic or failing readers.
package token
