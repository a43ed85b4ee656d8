// Package password hashes and verifies secrets with Argon2id.
//
// The login secret may be configured as an encoded hash
// ($argon2id$v=19$m=..,t=..,p=..$salt$key) instead of plaintext. Hash strings
// are treated as untrusted input: Verify refuses parameters far above the
// configured cost so a hostile hash cannot pin the CPU.
package password
