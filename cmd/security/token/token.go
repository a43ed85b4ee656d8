package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// TokenBytes is the entropy of every opaque token (128 bits).
	TokenBytes = 16

	// PBKDF2Iterations is the work factor for SecureHash.
	PBKDF2Iterations = 210_000

	// PBKDF2KeyLength is the derived key size in bytes.
	PBKDF2KeyLength = 32
)

// ErrRandomSource is returned when the random source fails or yields fewer
// than TokenBytes bytes.
var ErrRandomSource = errors.New("token random source failed")

// RandomSource supplies cryptographic randomness. crypto/rand.Reader satisfies it.
type RandomSource interface {
	Read(p []byte) (n int, err error)
}

// DefaultRandom returns the process CSPRNG.
func DefaultRandom() RandomSource { return rand.Reader }

// Hashed is the result of SecureHash.
type Hashed struct {
	Hash string
	Salt string
}

// ConstantTimeCompare reports whether a and b are equal.
// Length is not treated as secret: unequal lengths return false immediately.
// For equal lengths every byte is visited regardless of where they differ.
func ConstantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RandomToken returns 16 random bytes, hex-encoded (32 chars).
// A failing or empty source is an error; there is no retry.
func RandomToken(r RandomSource) (string, error) {
	if r == nil {
		r = DefaultRandom()
	}
	b := make([]byte, TokenBytes)
	n, err := r.Read(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	if n != TokenBytes {
		return "", fmt.Errorf("%w: read %d of %d bytes", ErrRandomSource, n, TokenBytes)
	}
	return hex.EncodeToString(b), nil
}

// SecureHash derives a PBKDF2-HMAC-SHA256 key from value and salt and returns it hex-encoded.
// An empty salt is replaced by a fresh RandomToken, which is returned alongside the hash.
// Verification must pass the stored salt back in.
func SecureHash(value, salt string, r RandomSource) (Hashed, error) {
	if salt == "" {
		s, err := RandomToken(r)
		if err != nil {
			return Hashed{}, err
		}
		salt = s
	}

	key := pbkdf2.Key([]byte(value), []byte(salt), PBKDF2Iterations, PBKDF2KeyLength, sha256.New)

	return Hashed{Hash: hex.EncodeToString(key), Salt: salt}, nil
}

// FastHash returns the hex SHA-256 digest of value. No salt, single pass.
func FastHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
