package authapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/autherr"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestWriteAuthError_Codes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthenticated", autherr.Unauthenticated("op", "", nil), http.StatusUnauthorized, codeInvalidCredentials},
		{"store outage stays 401", autherr.TransientStore("op", "", errors.New("down")), http.StatusUnauthorized, codeInvalidCredentials},
		{"forbidden", autherr.Forbidden("op", ""), http.StatusForbidden, codeForbidden},
		{"rate limited", autherr.RateLimited("op", 1500*time.Millisecond), http.StatusTooManyRequests, codeRateLimited},
		{"configuration", autherr.Configuration("op", "secret missing", nil), http.StatusInternalServerError, codeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAuthError(rec, tc.err, codeInvalidCredentials)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if got := decodeError(t, rec); got.Code != tc.code {
				t.Fatalf("code = %q, want %q", got.Code, tc.code)
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Fatalf("missing no-store")
			}
		})
	}

	rec := httptest.NewRecorder()
	writeAuthError(rec, autherr.RateLimited("op", 1500*time.Millisecond), codeUnauthorized)
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q", got)
	}
	rec = httptest.NewRecorder()
	writeAuthError(rec, autherr.Configuration("op", "secret missing", nil), codeUnauthorized)
	if got := decodeError(t, rec).Message; strings.Contains(got, "secret") {
		t.Fatalf("configuration detail leaked: %q", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type body struct {
		Name string `json:"name"`
	}
	cases := []struct {
		name   string
		in     string
		status int
		code   string
	}{
		{"unknown field", `{"name":"a","extra":1}`, http.StatusBadRequest, codeInvalidJSON},
		{"trailing data", `{"name":"a"}{"name":"b"}`, http.StatusBadRequest, codeInvalidJSON},
		{"not json", `name=a`, http.StatusBadRequest, codeInvalidJSON},
		{"too large", `{"name":"` + strings.Repeat("a", 128) + `"}`, http.StatusRequestEntityTooLarge, codeBodyTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.in))
			rec := httptest.NewRecorder()

			var dst body
			err := decodeJSON(rec, r, 64, &dst)
			if err == nil {
				t.Fatalf("expected error")
			}
			writeDecodeError(rec, err)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if got := decodeError(t, rec).Code; got != tc.code {
				t.Fatalf("code = %q, want %q", got, tc.code)
			}
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
	var dst body
	if err := decodeJSON(httptest.NewRecorder(), r, 64, &dst); err != nil || dst.Name != "ok" {
		t.Fatalf("decode = %+v, %v", dst, err)
	}
}
