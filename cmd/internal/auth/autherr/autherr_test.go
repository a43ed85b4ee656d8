package autherr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	storeDown := errors.New("dial tcp: connection refused")

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"nil", nil, http.StatusOK, ""},
		{"authentication", Unauthenticated("op", "Invalid API token", nil), http.StatusUnauthorized, "Invalid API token"},
		{"transient store is 401", TransientStore("op", "Invalid API token", storeDown), http.StatusUnauthorized, "Invalid API token"},
		{"forbidden", Forbidden("op", ""), http.StatusForbidden, MsgForbidden},
		{"rate limited", RateLimited("op", 3*time.Second), http.StatusTooManyRequests, MsgRateLimited},
		{"configuration", Configuration("op", "bad secret", nil), http.StatusInternalServerError, "Internal server error"},
		{"unknown", errors.New("boom"), http.StatusUnauthorized, MsgUnauthenticated},
		{"wrapped", fmt.Errorf("handler: %w", Forbidden("op", "Nope")), http.StatusForbidden, "Nope"},
		{"deadline", context.DeadlineExceeded, http.StatusUnauthorized, MsgUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := Status(tt.err)
			if code != tt.wantCode || msg != tt.wantMsg {
				t.Fatalf("Status() = (%d, %q), want (%d, %q)", code, msg, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestOpError_UnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("redis: timeout")
	err := TransientStore("session.Refresh", "Authentication required", cause)

	if !errors.Is(err, ErrTransientStore) {
		t.Fatalf("expected ErrTransientStore")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if errors.Is(err, ErrAuthentication) {
		t.Fatalf("unexpected ErrAuthentication")
	}
	if !strings.Contains(err.Error(), "session.Refresh") || !strings.Contains(err.Error(), "redis: timeout") {
		t.Fatalf("Error() missing op or cause: %q", err.Error())
	}

	var oe *OpError
	if !errors.As(err, &oe) || oe.SafeMessage() != "Authentication required" {
		t.Fatalf("SafeMessage mismatch: %+v", oe)
	}
}

func TestRetryAfter(t *testing.T) {
	d, ok := RetryAfter(RateLimited("op", 7*time.Second))
	if !ok || d != 7*time.Second {
		t.Fatalf("RetryAfter() = (%v, %v)", d, ok)
	}
	if _, ok := RetryAfter(Unauthenticated("op", "", nil)); ok {
		t.Fatalf("expected no retry-after for 401")
	}
}
