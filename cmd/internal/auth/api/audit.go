package authapi

import (
	"context"
	"errors"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/autherr"
)

// Audit events go to the structured log. Token values and secrets never do.

func (h *Handler) auditLoginFailed(ctx context.Context, username, ip string, err error) {
	outcome := "denied"
	if errors.Is(err, autherr.ErrTransientStore) {
		outcome = "store_error"
	}
	h.metrics.AuthDecision("login", outcome)
	h.log.WarnContext(ctx, "auth.login.fail", "username", username, "ip", ip, "outcome", outcome, "err", err)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, user, ip string) {
	h.metrics.AuthDecision("login", "ok")
	h.log.InfoContext(ctx, "auth.login.ok", "user", user, "ip", ip)
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip string, retryAfter time.Duration) {
	h.metrics.AuthDecision("login", "rate_limited")
	h.log.WarnContext(ctx, "auth.login.rate_limited", "ip", ip, "retry_after", retryAfter)
}

func (h *Handler) auditRefreshFailed(ctx context.Context, err error) {
	h.metrics.RefreshOutcome("rejected")
	h.log.InfoContext(ctx, "auth.refresh.fail", "err", err)
}

func (h *Handler) auditLogout(ctx context.Context, user string, revoked bool) {
	h.log.InfoContext(ctx, "auth.logout.ok", "user", user, "revoked", revoked)
}

func (h *Handler) auditTokenIssued(ctx context.Context, user, tokenID string) {
	h.log.InfoContext(ctx, "auth.api_token.issued", "user", user, "token_id", tokenID)
}

func (h *Handler) auditTokenRevoked(ctx context.Context, user, tokenID string) {
	h.log.InfoContext(ctx, "auth.api_token.revoked", "user", user, "token_id", tokenID)
}
