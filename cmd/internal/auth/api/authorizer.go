package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/apitoken"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/autherr"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/session"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/metrics"
)

// Authentication mechanisms.
const (
	MechanismSession  = "session"
	MechanismAPIToken = "api_token"
)

// Identity is the caller resolved by the Authorizer.
type Identity struct {
	User      string   `json:"user"`
	Mechanism string   `json:"mechanism"`
	TokenID   string   `json:"token_id,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
}

// HasScope reports whether the caller may act with scope. Browser sessions
// belong to the data owner and carry every scope.
func (i Identity) HasScope(scope string) bool {
	if scope == "" || i.Mechanism == MechanismSession {
		return true
	}
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Rejection is the only failure shape that crosses the HTTP boundary.
type Rejection struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func writeRejection(w http.ResponseWriter, rej *Rejection) {
	if rej.Status == http.StatusTooManyRequests {
		writeRateLimited(w, rej.RetryAfter, rej.Message)
		return
	}
	writeError(w, rej.Status, statusCode(rej.Status), rej.Message)
}

func rejectionFor(err error) *Rejection {
	status, msg := autherr.Status(err)
	rej := &Rejection{Status: status, Message: msg}
	if d, ok := autherr.RetryAfter(err); ok {
		rej.RetryAfter = d
	}
	return rej
}

// Authorizer resolves a request to an Identity: bearer API tokens first,
// then session cookies (refreshing them when needed).
type Authorizer struct {
	log        *slog.Logger
	sessions   *session.Manager
	tokens     *apitoken.Service
	cookies    cookieJar
	limiter    *failureLimiter
	clock      clock.Clock
	metrics    *metrics.Metrics
	trustProxy bool
}

// NewAuthorizer wires an Authorizer. m may be nil.
func NewAuthorizer(log *slog.Logger, cfg Config, sessions *session.Manager, tokens *apitoken.Service, c clock.Clock, m *metrics.Metrics) *Authorizer {
	if log == nil {
		log = slog.Default()
	}
	if c == nil {
		c = clock.Real()
	}
	sc := sessions.Config()
	return &Authorizer{
		log:        log,
		sessions:   sessions,
		tokens:     tokens,
		cookies:    newCookieJar(cfg, c, sc.AccessTTL, sc.RefreshTTL),
		limiter:    newFailureLimiter(cfg.FailureMax, cfg.FailureWindow),
		clock:      c,
		metrics:    m,
		trustProxy: cfg.TrustProxy,
	}
}

// Authorize returns the caller's identity, or a rejection with a safe status
// and message. When the session had to be refreshed, new cookies are written to w.
func (a *Authorizer) Authorize(w http.ResponseWriter, r *http.Request, requiredScope string) (Identity, *Rejection) {
	ctx := r.Context()
	ipKey := clientKey(clientIP(r, a.trustProxy))
	now := a.clock.Now()

	if blocked, retryAfter := a.limiter.Blocked(ipKey, now); blocked {
		a.metrics.AuthDecision("any", "rate_limited")
		a.log.Warn("auth.authorize.rate_limited", "ip", ipKey, "retry_after", retryAfter)
		return Identity{}, &Rejection{Status: http.StatusTooManyRequests, Message: autherr.MsgRateLimited, RetryAfter: retryAfter}
	}

	if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
		id, err := a.tokens.ValidateRequest(r, requiredScope)
		if err != nil {
			a.recordFailure(ctx, MechanismAPIToken, ipKey, now, err)
			return Identity{}, rejectionFor(err)
		}
		a.metrics.AuthDecision(MechanismAPIToken, "ok")
		return Identity{User: id.Owner, Mechanism: MechanismAPIToken, TokenID: id.TokenID, Scopes: id.Scopes}, nil
	}

	access, refresh := a.cookies.read(r)
	res, err := a.sessions.Refresh(ctx, access, refresh)
	if err != nil {
		// No credentials at all is an anonymous visit, not a failed attempt.
		if access != "" || refresh != "" {
			a.recordFailure(ctx, MechanismSession, ipKey, now, err)
		} else {
			a.metrics.AuthDecision(MechanismSession, "anonymous")
		}
		return Identity{}, rejectionFor(err)
	}

	a.applyRefresh(w, res)
	a.metrics.AuthDecision(MechanismSession, "ok")
	return Identity{User: res.User, Mechanism: MechanismSession}, nil
}

// applyRefresh rewrites the cookies a refresh produced. The refresh cookie
// is only touched on rotation.
func (a *Authorizer) applyRefresh(w http.ResponseWriter, res session.RefreshResult) {
	a.metrics.RefreshOutcome(refreshOutcome(res))
	if res.Status != session.StatusRefreshed {
		return
	}
	a.cookies.setAccess(w, res.Issued.AccessToken)
	if res.Issued.Refresh != nil {
		a.cookies.setRefresh(w, res.Issued.Refresh.Token)
	}
}

func refreshOutcome(res session.RefreshResult) string {
	switch {
	case res.Status == session.StatusUnchanged:
		return "unchanged"
	case res.Rotated:
		return "rotated"
	default:
		return "refreshed"
	}
}

func (a *Authorizer) recordFailure(ctx context.Context, mechanism, ipKey string, now time.Time, err error) {
	outcome := "denied"
	switch {
	case errors.Is(err, autherr.ErrAuthorization):
		// Valid credential, wrong scope: not a guessing attempt.
		outcome = "forbidden"
	case errors.Is(err, autherr.ErrTransientStore):
		outcome = "store_error"
		a.log.ErrorContext(ctx, "auth.authorize.store_fail", "mechanism", mechanism, "err", err)
	default:
		a.limiter.Fail(ipKey, now)
	}
	a.metrics.AuthDecision(mechanism, outcome)
	if outcome == "denied" {
		a.log.InfoContext(ctx, "auth.authorize.denied", "mechanism", mechanism, "ip", ipKey, "err", err)
	}
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RequireAuth rejects requests without an identity carrying scope, and
// stores the identity in the request context for next.
func (a *Authorizer) RequireAuth(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, rej := a.Authorize(w, r, scope)
		if rej != nil {
			writeRejection(w, rej)
			return
		}
		if !id.HasScope(scope) {
			writeRejection(w, &Rejection{Status: http.StatusForbidden, Message: autherr.MsgForbidden})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func clientKey(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
