// Package apitoken issues and validates scoped bearer tokens for programmatic
// clients.
//
// A token string is prefix + owner + "." + id + "." + secret. Owner and id
// only route the lookup to user#<owner>#api-token#<id>; the secret is the
// credential, stored as a SHA-256 digest and compared in constant time.
// Revoked tokens are kept (soft delete) and listed.
//
// Every validation failure except a missing scope reports the same 401
// "Invalid API token", so callers cannot tell an unknown id from a wrong secret.
package apitoken
