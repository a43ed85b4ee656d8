package session

import (
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/username"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/jwtcodec"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the verified view of an access token.
type AccessClaims struct {
	Subject   string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// CheckIssuer passes when no issuer is configured, or when iss is a string
// equal to want. Arrays never match.
func CheckIssuer(claims jwt.MapClaims, want string) bool {
	return stringClaimMatches(claims, "iss", want)
}

// CheckAudience applies the issuer rule to aud.
func CheckAudience(claims jwt.MapClaims, want string) bool {
	return stringClaimMatches(claims, "aud", want)
}

func stringClaimMatches(claims jwt.MapClaims, name, want string) bool {
	if want == "" {
		return true
	}
	got, ok := claims[name].(string)
	return ok && got == want
}

// CheckStaleness requires a numeric iat no more than maxAge before now.
func CheckStaleness(claims jwt.MapClaims, now time.Time, maxAge time.Duration) bool {
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return false
	}
	return now.Sub(iat.Time) <= maxAge
}

// AccessPolicy layers claim checks over the codec.
type AccessPolicy struct {
	codec        *jwtcodec.Codec
	clock        clock.Clock
	issuer       string
	audience     string
	maxStaleness time.Duration
}

// NewAccessPolicy builds the verifier for access tokens minted with the same codec.
func NewAccessPolicy(codec *jwtcodec.Codec, c clock.Clock, issuer, audience string, maxStaleness time.Duration) *AccessPolicy {
	if c == nil {
		c = clock.Real()
	}
	return &AccessPolicy{
		codec:        codec,
		clock:        c,
		issuer:       issuer,
		audience:     audience,
		maxStaleness: maxStaleness,
	}
}

// Verify checks signature and expiry, then every claim rule.
// All rules are evaluated; any failure is ErrInvalidSession.
func (p *AccessPolicy) Verify(tokenString string) (AccessClaims, error) {
	claims, err := p.codec.Verify(tokenString)
	if err != nil {
		return AccessClaims{}, ErrInvalidSession
	}

	issOK := CheckIssuer(claims, p.issuer)
	audOK := CheckAudience(claims, p.audience)
	freshOK := CheckStaleness(claims, p.clock.Now(), p.maxStaleness)
	if !issOK || !audOK || !freshOK {
		return AccessClaims{}, ErrInvalidSession
	}

	sub, err := claims.GetSubject()
	if err != nil || !username.Valid(sub) {
		return AccessClaims{}, ErrInvalidSession
	}

	out := AccessClaims{Subject: sub}
	if jti, ok := claims["jti"].(string); ok {
		out.TokenID = jti
	}
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		out.IssuedAt = iat.Time.UTC()
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		out.ExpiresAt = exp.Time.UTC()
	}
	return out, nil
}
