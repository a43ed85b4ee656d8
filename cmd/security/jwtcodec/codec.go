// Package jwtcodec mints and verifies compact HS256 tokens.
//
// The codec only proves integrity and expiry. Claim policy (issuer, audience,
// staleness) is layered on top by callers, so the same codec can back access
// tokens and narrower-purpose tokens with their own rules.
package jwtcodec

import (
	"errors"
	"fmt"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/token"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrConfig is returned when the codec is constructed without a signing secret.
	ErrConfig = errors.New("jwtcodec: signing secret not configured")

	// ErrInvalidToken covers bad signatures, wrong algorithms, malformed and expired tokens.
	ErrInvalidToken = errors.New("jwtcodec: invalid token")
)

// Codec signs and verifies HS256 tokens with a single shared secret.
type Codec struct {
	secret []byte
	clock  clock.Clock
	random token.RandomSource
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(c clock.Clock) Option {
	return func(cd *Codec) {
		if c != nil {
			cd.clock = c
		}
	}
}

// WithRandom overrides the randomness used for token ids.
func WithRandom(r token.RandomSource) Option {
	return func(cd *Codec) {
		if r != nil {
			cd.random = r
		}
	}
}

// New builds a Codec. An empty secret is a configuration failure.
func New(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrConfig
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		clock:  clock.Real(),
		random: token.DefaultRandom(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Sign returns a signed token for subject that expires ttl from now.
// iss and aud are emitted only when both are non-empty.
func (c *Codec) Sign(subject string, ttl time.Duration, issuer, audience string) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("jwtcodec: ttl must be positive")
	}

	jti, err := uuid.NewRandomFromReader(c.random)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwtcodec: token id: %w", err)
	}

	now := c.clock.Now()
	exp := now.Add(ttl)

	claims := jwt.MapClaims{
		"jti": jti.String(),
		"sub": subject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	if issuer != "" && audience != "" {
		// Plain strings, never arrays.
		claims["iss"] = issuer
		claims["aud"] = audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwtcodec: sign: %w", err)
	}

	return signed, time.Unix(exp.Unix(), 0).UTC(), nil
}

// Verify checks the signature (HS256 only) and expiry and returns the raw claims.
func (c *Codec) Verify(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
