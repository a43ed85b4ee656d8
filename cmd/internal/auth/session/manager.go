package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/autherr"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/username"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/store"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/jwtcodec"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/password"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/token"
)

// Status distinguishes "found a live access token" from "had to mint one".
type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusRefreshed Status = "refreshed"
)

// Credentials is a login attempt.
type Credentials struct {
	Username string
	Secret   string
}

// Issued carries newly minted tokens. Refresh is nil when only the access
// token was renewed.
type Issued struct {
	User            string
	AccessToken     string
	AccessExpiresAt time.Time
	Refresh         *IssuedRefresh
}

// RefreshResult is the outcome of Refresh.
type RefreshResult struct {
	Status Status
	User   string
	// Issued is zero when Status is StatusUnchanged.
	Issued  Issued
	Rotated bool
}

// LogoutResult reports what Logout found. A zero value means there was no session.
type LogoutResult struct {
	User    string
	Revoked bool
}

// Manager runs the login, logout and refresh protocols.
type Manager struct {
	cfg      Config
	clock    clock.Clock
	codec    *jwtcodec.Codec
	policy   *AccessPolicy
	refresh  *RefreshStore
	password password.Config
	log      *slog.Logger
	users    map[string]struct{}
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	clock    clock.Clock
	random   token.RandomSource
	log      *slog.Logger
	password *password.Config
}

// WithClock injects the time source.
func WithClock(c clock.Clock) Option { return func(o *managerOptions) { o.clock = c } }

// WithRandom injects the randomness used for tokens, salts and ids.
func WithRandom(r token.RandomSource) Option { return func(o *managerOptions) { o.random = r } }

// WithLogger sets the logger for non-fatal failures.
func WithLogger(l *slog.Logger) Option { return func(o *managerOptions) { o.log = l } }

// WithPasswordConfig sets the argon2id bounds used when the login secret is a PHC hash.
func WithPasswordConfig(c password.Config) Option {
	return func(o *managerOptions) { o.password = &c }
}

// NewManager wires a Manager over kv. cfg must already be validated.
func NewManager(cfg Config, kv store.TokenStore, opts ...Option) (*Manager, error) {
	if kv == nil {
		return nil, ErrConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := managerOptions{clock: clock.Real(), random: token.DefaultRandom()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	pw := password.DefaultConfig()
	if o.password != nil {
		pw = *o.password
	}

	codec, err := jwtcodec.New([]byte(cfg.SigningSecret), jwtcodec.WithClock(o.clock), jwtcodec.WithRandom(o.random))
	if err != nil {
		return nil, ErrConfig
	}

	m := &Manager{
		cfg:      cfg,
		clock:    o.clock,
		codec:    codec,
		policy:   NewAccessPolicy(codec, o.clock, cfg.Issuer, cfg.Audience, cfg.MaxStaleness),
		refresh:  NewRefreshStore(kv, o.clock, o.random, cfg.RefreshTTL),
		password: pw,
		log:      o.log,
	}
	if len(cfg.Users) > 0 {
		m.users = make(map[string]struct{}, len(cfg.Users))
		for _, u := range cfg.Users {
			m.users[u] = struct{}{}
		}
	}
	return m, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() Config { return m.cfg }

// Authenticate verifies an access token without touching the store.
func (m *Manager) Authenticate(accessToken string) (AccessClaims, error) {
	c, err := m.policy.Verify(accessToken)
	if err != nil {
		return AccessClaims{}, err
	}
	if !m.allowed(c.Subject) {
		return AccessClaims{}, ErrInvalidSession
	}
	return c, nil
}

// Login checks credentials and starts a new refresh lineage. Any existing
// refresh token is ignored.
func (m *Manager) Login(ctx context.Context, cr Credentials) (Issued, error) {
	const op = "session.Login"

	user := strings.TrimSpace(cr.Username)
	// The secret is checked even for unknown usernames so both paths cost the same.
	secretOK := m.verifySecret(cr.Secret)
	if !secretOK || !username.Valid(user) || !m.allowed(user) {
		return Issued{}, autherr.Unauthenticated(op, "Invalid username or password", ErrBadCredentials)
	}

	access, exp, err := m.signAccess(user)
	if err != nil {
		return Issued{}, err
	}

	rt, err := m.refresh.Create(ctx, user)
	if err != nil {
		return Issued{}, autherr.TransientStore(op, autherr.MsgUnauthenticated, err)
	}

	return Issued{User: user, AccessToken: access, AccessExpiresAt: exp, Refresh: &rt}, nil
}

// Logout resolves the caller from the access token, or failing that from the
// refresh record, and deletes that refresh record. Calling it without a
// session is not an error.
func (m *Manager) Logout(ctx context.Context, accessToken, refreshToken string) (LogoutResult, error) {
	const op = "session.Logout"

	var res LogoutResult
	if c, err := m.Authenticate(accessToken); err == nil {
		res.User = c.Subject
	} else if refreshToken != "" {
		rec, err := m.refresh.Lookup(ctx, refreshToken)
		switch {
		case err == nil:
			res.User = rec.Owner
		case isRefreshRejection(err):
		default:
			return res, autherr.TransientStore(op, autherr.MsgUnauthenticated, err)
		}
	}

	if res.User == "" || refreshToken == "" {
		return res, nil
	}
	if err := m.refresh.Delete(ctx, refreshToken); err != nil {
		return res, autherr.TransientStore(op, autherr.MsgUnauthenticated, err)
	}
	res.Revoked = true
	return res, nil
}

// Refresh returns StatusUnchanged for a live access token. Otherwise it
// validates the refresh token and mints a new access token, rotating the
// refresh token once it is near the end of its life. A missing record is
// always a rejection.
func (m *Manager) Refresh(ctx context.Context, accessToken, refreshToken string) (RefreshResult, error) {
	const op = "session.Refresh"

	if accessToken != "" {
		if c, err := m.Authenticate(accessToken); err == nil {
			return RefreshResult{Status: StatusUnchanged, User: c.Subject}, nil
		}
	}
	if refreshToken == "" {
		return RefreshResult{}, autherr.Unauthenticated(op, autherr.MsgUnauthenticated, ErrRefreshNotFound)
	}

	rec, err := m.refresh.Lookup(ctx, refreshToken)
	if err != nil {
		if isRefreshRejection(err) {
			return RefreshResult{}, autherr.Unauthenticated(op, autherr.MsgUnauthenticated, err)
		}
		return RefreshResult{}, autherr.TransientStore(op, autherr.MsgUnauthenticated, err)
	}

	age := m.clock.Now().Sub(rec.CreatedAt)
	if age > m.cfg.RefreshTTL {
		return RefreshResult{}, autherr.Unauthenticated(op, autherr.MsgUnauthenticated, ErrRefreshExpired)
	}
	if !m.allowed(rec.Owner) {
		return RefreshResult{}, autherr.Unauthenticated(op, autherr.MsgUnauthenticated, ErrBadCredentials)
	}

	access, exp, err := m.signAccess(rec.Owner)
	if err != nil {
		return RefreshResult{}, err
	}
	res := RefreshResult{
		Status: StatusRefreshed,
		User:   rec.Owner,
		Issued: Issued{User: rec.Owner, AccessToken: access, AccessExpiresAt: exp},
	}

	if age < m.cfg.RotateAfter-m.cfg.RotationLeeway {
		return res, nil
	}

	next, err := m.rotate(ctx, refreshToken, rec)
	if err != nil {
		return RefreshResult{}, autherr.TransientStore(op, autherr.MsgUnauthenticated, err)
	}
	res.Issued.Refresh = &next
	res.Rotated = true
	return res, nil
}

// rotate creates the replacement, reads it back, and only then deletes the
// old record. Until the delete, both tokens are valid.
func (m *Manager) rotate(ctx context.Context, oldToken string, old RefreshRecord) (IssuedRefresh, error) {
	next, err := m.refresh.Create(ctx, old.Owner)
	if err != nil {
		return IssuedRefresh{}, err
	}

	if _, err := m.refresh.Lookup(ctx, next.Token); err != nil {
		// Best effort: the old record is still valid.
		if derr := m.refresh.Delete(ctx, next.Token); derr != nil {
			m.log.Warn("auth.refresh.rotate.cleanup_failed", "id", next.Record.ID, "err", derr)
		}
		return IssuedRefresh{}, err
	}

	if err := m.refresh.Delete(ctx, oldToken); err != nil {
		// The old record still expires by age and store TTL.
		m.log.Warn("auth.refresh.rotate.delete_old_failed",
			"user", old.Owner,
			"old_id", old.ID,
			"new_id", next.Record.ID,
			"err", err,
		)
	}

	m.log.Info("auth.refresh.rotated", "user", old.Owner, "old_id", old.ID, "new_id", next.Record.ID)
	return next, nil
}

func (m *Manager) signAccess(user string) (string, time.Time, error) {
	tok, exp, err := m.codec.Sign(user, m.cfg.AccessTTL, m.cfg.Issuer, m.cfg.Audience)
	if err != nil {
		return "", time.Time{}, autherr.Configuration("session.signAccess", "", err)
	}
	return tok, exp, nil
}

func (m *Manager) verifySecret(submitted string) bool {
	if strings.HasPrefix(m.cfg.LoginSecret, password.Prefix) {
		ok, err := m.password.Verify(m.cfg.LoginSecret, submitted)
		if err != nil {
			m.log.Error("auth.login.secret_verify_failed", "err", err)
			return false
		}
		return ok
	}
	return token.ConstantTimeCompare(submitted, m.cfg.LoginSecret)
}

func (m *Manager) allowed(user string) bool {
	if m.users == nil {
		return true
	}
	_, ok := m.users[user]
	return ok
}

func isRefreshRejection(err error) bool {
	return errors.Is(err, ErrRefreshNotFound) ||
		errors.Is(err, ErrRefreshMismatch) ||
		errors.Is(err, ErrRefreshCorrupt)
}
