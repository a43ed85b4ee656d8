package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/apitoken"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/autherr"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/session"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/metrics"
)

// Handler wires HTTP auth endpoints to the session manager and API token service.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions *session.Manager
	tokens   *apitoken.Service
	authz    *Authorizer
	cookies  cookieJar

	loginLimiter *failureLimiter
	clock        clock.Clock
	metrics      *metrics.Metrics
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the time source used for rate limiting.
func WithClock(c clock.Clock) HandlerOption {
	return func(h *Handler) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithMetrics records auth decisions on m.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Manager, tokens *apitoken.Service, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil || tokens == nil {
		return nil, errors.New("authapi: nil session manager or token service")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		tokens:   tokens,
		clock:    clock.Real(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	sc := sessions.Config()
	h.cookies = newCookieJar(cfg, h.clock, sc.AccessTTL, sc.RefreshTTL)
	h.loginLimiter = newFailureLimiter(cfg.LoginMax, cfg.LoginWindow)
	h.authz = NewAuthorizer(log, cfg, sessions, tokens, h.clock, h.metrics)
	return h, nil
}

// Authorizer returns the request authorizer for use by other route handlers.
func (h *Handler) Authorizer() *Authorizer { return h.authz }

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.Handle("GET /me", h.authz.RequireAuth("", http.HandlerFunc(h.handleMe)))

	mux.Handle("POST /auth/api-tokens", h.requireSession(h.handleIssueToken))
	mux.Handle("GET /auth/api-tokens", h.requireSession(h.handleListTokens))
	mux.Handle("POST /auth/api-tokens/{id}/revoke", h.requireSession(h.handleRevokeToken))
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.clock.Now()
	ip := clientKey(clientIP(r, h.cfg.TrustProxy))

	if blocked, retryAfter := h.loginLimiter.Blocked(ip, now); blocked {
		h.auditLoginRateLimited(ctx, ip, retryAfter)
		writeRateLimited(w, retryAfter, autherr.MsgRateLimited)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "username and password are required")
		return
	}

	issued, err := h.sessions.Login(ctx, session.Credentials{Username: req.Username, Secret: req.Password})
	if err != nil {
		if !errors.Is(err, autherr.ErrTransientStore) {
			h.loginLimiter.Fail(ip, now)
		}
		h.auditLoginFailed(ctx, req.Username, ip, err)
		writeAuthError(w, err, codeInvalidCredentials)
		return
	}

	h.loginLimiter.Reset(ip)
	h.auditLoginSuccess(ctx, issued.User, ip)

	h.cookies.setAccess(w, issued.AccessToken)
	h.cookies.setRefresh(w, issued.Refresh.Token)
	writeJSON(w, http.StatusOK, loginResponse{User: issued.User, AccessExpiresAt: issued.AccessExpiresAt})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.clock.Now()
	ip := clientKey(clientIP(r, h.cfg.TrustProxy))

	if blocked, retryAfter := h.authz.limiter.Blocked(ip, now); blocked {
		writeRateLimited(w, retryAfter, autherr.MsgRateLimited)
		return
	}

	access, refresh := h.cookies.read(r)
	res, err := h.sessions.Refresh(ctx, access, refresh)
	if err != nil {
		h.auditRefreshFailed(ctx, err)
		if access != "" || refresh != "" {
			h.authz.recordFailure(ctx, MechanismSession, ip, now, err)
		}
		if errors.Is(err, autherr.ErrAuthentication) {
			h.cookies.clear(w)
		}
		writeAuthError(w, err, codeUnauthorized)
		return
	}

	h.authz.applyRefresh(w, res)
	writeJSON(w, http.StatusOK, refreshResponse{Status: string(res.Status), User: res.User})
}

// handleLogout always clears cookies and redirects, even without a session.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	access, refresh := h.cookies.read(r)

	res, err := h.sessions.Logout(ctx, access, refresh)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.logout.fail", "err", err)
	} else if res.User != "" {
		h.auditLogout(ctx, res.User, res.Revoked)
	}

	h.cookies.clear(w)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, h.cfg.LogoutRedirect, http.StatusSeeOther)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	writeJSON(w, http.StatusOK, meResponse{Identity: id})
}

// requireSession restricts token management to browser sessions so a leaked
// API token cannot mint more tokens.
func (h *Handler) requireSession(next http.HandlerFunc) http.Handler {
	return h.authz.RequireAuth("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFrom(r.Context())
		if id.Mechanism != MechanismSession {
			writeError(w, http.StatusForbidden, codeForbidden, "Session required")
			return
		}
		next(w, r)
	}))
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)

	var req issueTokenRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	issued, err := h.tokens.Issue(ctx, apitoken.IssueInput{
		Owner:     id.User,
		Name:      req.Name,
		Scopes:    req.Scopes,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, apitoken.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
			return
		}
		h.log.ErrorContext(ctx, "auth.api_token.issue.fail", "user", id.User, "err", err)
		writeError(w, http.StatusServiceUnavailable, codeServerBusy, "please retry later")
		return
	}

	h.auditTokenIssued(ctx, id.User, issued.ID)
	writeJSON(w, http.StatusCreated, issued)
}

func (h *Handler) handleListTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)

	tokens, err := h.tokens.List(ctx, id.User)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.api_token.list.fail", "user", id.User, "err", err)
		writeError(w, http.StatusServiceUnavailable, codeServerBusy, "please retry later")
		return
	}
	writeJSON(w, http.StatusOK, listTokensResponse{Tokens: tokens})
}

func (h *Handler) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)
	tokenID := r.PathValue("id")

	t, err := h.tokens.Revoke(ctx, id.User, tokenID)
	if err != nil {
		if errors.Is(err, apitoken.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "api token not found")
			return
		}
		h.log.ErrorContext(ctx, "auth.api_token.revoke.fail", "user", id.User, "token_id", tokenID, "err", err)
		writeError(w, http.StatusServiceUnavailable, codeServerBusy, "please retry later")
		return
	}

	h.auditTokenRevoked(ctx, id.User, tokenID)
	writeJSON(w, http.StatusOK, t)
}
