package apitoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/autherr"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/username"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/store"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/token"

	"github.com/google/uuid"
)

// MsgInvalidToken is the only 401 message Validate produces.
const MsgInvalidToken = "Invalid API token"

// Identity is a validated API token caller.
type Identity struct {
	Owner   string
	TokenID string
	Scopes  []string
}

// IssueInput describes a new token. A nil ExpiresAt uses Config.DefaultTTL.
type IssueInput struct {
	Owner     string
	Name      string
	Scopes    []string
	ExpiresAt *time.Time
}

// Issued is returned once at creation. Token is the only copy of the secret.
type Issued struct {
	Token     string    `json:"token"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Parsed is a structurally valid token string.
type Parsed struct {
	Owner  string
	ID     string
	Secret string
}

// Service issues, lists, revokes and validates API tokens.
type Service struct {
	cfg    Config
	kv     store.TokenStore
	clock  clock.Clock
	random token.RandomSource
	log    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithRandom(r token.RandomSource) Option {
	return func(s *Service) {
		if r != nil {
			s.random = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService builds a Service over kv.
func NewService(cfg Config, kv store.TokenStore, opts ...Option) (*Service, error) {
	if kv == nil {
		return nil, ErrConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:    cfg,
		kv:     kv,
		clock:  clock.Real(),
		random: token.DefaultRandom(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Issue creates a token and returns its cleartext. The store keeps only the digest.
func (s *Service) Issue(ctx context.Context, in IssueInput) (Issued, error) {
	owner := strings.TrimSpace(in.Owner)
	if !username.Valid(owner) {
		return Issued{}, fmt.Errorf("%w: owner", ErrInvalidInput)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLen {
		return Issued{}, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidInput, maxNameLen)
	}
	scopes, err := normalizeScopes(in.Scopes)
	if err != nil {
		return Issued{}, err
	}

	now := s.clock.Now().UTC()
	exp := now.Add(s.cfg.DefaultTTL)
	if in.ExpiresAt != nil {
		exp = in.ExpiresAt.UTC()
	}
	if !exp.After(now) {
		return Issued{}, fmt.Errorf("%w: expiry must be in the future", ErrInvalidInput)
	}

	id, err := uuid.NewRandomFromReader(s.random)
	if err != nil {
		return Issued{}, fmt.Errorf("apitoken: id: %w", err)
	}
	secret, err := token.RandomToken(s.random)
	if err != nil {
		return Issued{}, err
	}

	t := Token{
		ID:        id.String(),
		Owner:     owner,
		Name:      name,
		Hash:      token.FastHash(secret),
		Scopes:    scopes,
		CreatedAt: now,
		ExpiresAt: exp,
	}
	f, err := t.fields()
	if err != nil {
		return Issued{}, err
	}
	if err := s.kv.Put(ctx, tokenKey(owner, t.ID), f, exp); err != nil {
		return Issued{}, fmt.Errorf("apitoken: persist: %w", err)
	}

	return Issued{
		Token:     s.cfg.Prefix + owner + "." + t.ID + "." + secret,
		ID:        t.ID,
		CreatedAt: now,
		ExpiresAt: exp,
	}, nil
}

// Get loads one of owner's tokens.
func (s *Service) Get(ctx context.Context, owner, id string) (Token, error) {
	if !username.Valid(owner) || !validID(id) {
		return Token{}, ErrNotFound
	}
	f, err := s.kv.Get(ctx, tokenKey(owner, id))
	if errors.Is(err, store.ErrNotFound) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, err
	}
	t, err := tokenFromFields(f)
	if err != nil {
		return Token{}, err
	}
	// The key already scopes by owner; a mismatch means a corrupt record.
	if t.Owner != owner || t.ID != id {
		return Token{}, ErrCorrupt
	}
	return t, nil
}

// Revoke marks the token revoked. The revocation timestamp is written at most
// once, so concurrent or repeated revokes all report the first one.
func (s *Service) Revoke(ctx context.Context, owner, id string) (Token, error) {
	t, err := s.Get(ctx, owner, id)
	if err != nil {
		return Token{}, err
	}
	if t.Revoked() {
		return t, nil
	}

	now := s.clock.Now().UTC()
	set, err := s.kv.SetFieldIfAbsent(ctx, tokenKey(owner, id), fieldRevokedAt, isoTime(now))
	if errors.Is(err, store.ErrNotFound) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, err
	}
	if !set {
		// Lost the race; report the winner's timestamp.
		return s.Get(ctx, owner, id)
	}
	t.RevokedAt = &now
	return t, nil
}

// List returns owner's live tokens, revoked ones included, oldest first.
func (s *Service) List(ctx context.Context, owner string) ([]Token, error) {
	if !username.Valid(owner) {
		return nil, fmt.Errorf("%w: owner", ErrInvalidInput)
	}
	keys, err := s.kv.Keys(ctx, ownerPrefix(owner))
	if err != nil {
		return nil, err
	}

	out := make([]Token, 0, len(keys))
	for _, k := range keys {
		f, err := s.kv.Get(ctx, k)
		if errors.Is(err, store.ErrNotFound) {
			continue // expired between Keys and Get
		}
		if err != nil {
			return nil, err
		}
		t, err := tokenFromFields(f)
		if err != nil {
			s.log.Warn("apitoken.list.skip_corrupt", "owner", owner, "err", err)
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Parse splits a token string. Any deviation is ErrInvalidFormat.
func (s *Service) Parse(raw string) (Parsed, error) {
	return Parse(s.cfg.Prefix, raw)
}

// Parse splits raw into owner, id and secret after checking prefix.
func Parse(prefix, raw string) (Parsed, error) {
	rest, ok := strings.CutPrefix(raw, prefix)
	if !ok || prefix == "" {
		return Parsed{}, ErrInvalidFormat
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return Parsed{}, ErrInvalidFormat
	}
	p := Parsed{Owner: parts[0], ID: parts[1], Secret: parts[2]}
	if p.Secret == "" || !username.Valid(p.Owner) || !validID(p.ID) {
		return Parsed{}, ErrInvalidFormat
	}
	return p, nil
}

// validID accepts only the canonical lower-case UUID form that Issue produces.
func validID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

// ValidateRequest validates the request's Authorization header.
func (s *Service) ValidateRequest(r *http.Request, requiredScope string) (Identity, error) {
	return s.Validate(r.Context(), r.Header.Get("Authorization"), requiredScope)
}

// Validate checks an Authorization header value. An empty requiredScope
// skips the scope check. Every failure except a missing scope is a 401 with
// MsgInvalidToken.
func (s *Service) Validate(ctx context.Context, authorization, requiredScope string) (Identity, error) {
	const op = "apitoken.Validate"

	raw := bearerToken(authorization)
	if raw == "" {
		return Identity{}, autherr.Unauthenticated(op, MsgInvalidToken, errNoBearer)
	}
	p, err := s.Parse(raw)
	if err != nil {
		return Identity{}, autherr.Unauthenticated(op, MsgInvalidToken, err)
	}

	t, err := s.Get(ctx, p.Owner, p.ID)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorrupt):
		return Identity{}, autherr.Unauthenticated(op, MsgInvalidToken, err)
	case err != nil:
		return Identity{}, autherr.TransientStore(op, MsgInvalidToken, err)
	}

	if !token.ConstantTimeCompare(token.FastHash(p.Secret), t.Hash) {
		return Identity{}, autherr.Unauthenticated(op, MsgInvalidToken, errHashMismatch)
	}
	if t.Revoked() {
		return Identity{}, autherr.Unauthenticated(op, MsgInvalidToken, errRevoked)
	}
	now := s.clock.Now()
	if t.Expired(now) {
		return Identity{}, autherr.Unauthenticated(op, MsgInvalidToken, errExpired)
	}
	if requiredScope != "" && !t.HasScope(requiredScope) {
		return Identity{}, autherr.Forbidden(op, autherr.MsgForbidden)
	}

	s.touch(ctx, t, now)
	return Identity{Owner: t.Owner, TokenID: t.ID, Scopes: append([]string(nil), t.Scopes...)}, nil
}

// touch records lastUsedAtIso at most once per LastUsedInterval. Failures are
// logged and never affect the request.
func (s *Service) touch(ctx context.Context, t Token, now time.Time) {
	if t.LastUsedAt != nil && now.Sub(*t.LastUsedAt) < s.cfg.LastUsedInterval {
		return
	}
	err := s.kv.Update(ctx, tokenKey(t.Owner, t.ID), store.Fields{fieldLastUsedAt: isoTime(now)})
	if err != nil {
		s.log.Warn("apitoken.touch.fail", "owner", t.Owner, "token_id", t.ID, "err", err)
	}
}

func bearerToken(header string) string {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return ""
	}
	scheme, value, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
