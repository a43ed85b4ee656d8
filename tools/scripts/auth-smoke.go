// Package main is a CI-friendly smoke test for the checklists auth surface.
//
// It validates:
//   - login sets session cookies
//   - /me resolves the session
//   - API token issue, bearer use, scope denial and revoke
//   - logout clears the session and the refresh token stops working
//
// With -hash it instead prints an argon2id hash of -secret, suitable for
// CHECKLISTS_AUTH_LOGIN_SECRET.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/security/password"
)

type smoke struct {
	base    *url.URL
	client  *http.Client
	timeout time.Duration
	verbose bool
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		user    = flag.String("user", "smoke", "Username to log in as")
		secret  = flag.String("secret", os.Getenv("CHECKLISTS_SMOKE_SECRET"), "Login secret (default $CHECKLISTS_SMOKE_SECRET)")
		hash    = flag.Bool("hash", false, "Print an argon2id hash of -secret and exit")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-request timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if *secret == "" {
		fatalf("missing -secret")
	}
	if *hash {
		printHash(*secret)
		return
	}

	u, err := url.Parse(*baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fatalf("invalid -url %q", *baseURL)
	}
	jar, _ := cookiejar.New(nil)
	s := &smoke{
		base: u,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: *timeout,
		verbose: *verbose,
	}

	s.expect("login", http.MethodPost, "/auth/login", "", map[string]string{"username": *user, "password": *secret}, http.StatusOK, nil)

	var me struct {
		Identity struct {
			User      string `json:"user"`
			Mechanism string `json:"mechanism"`
		} `json:"identity"`
	}
	s.expect("me (session)", http.MethodGet, "/me", "", nil, http.StatusOK, &me)
	if me.Identity.User != *user || me.Identity.Mechanism != "session" {
		fatalf("me (session): unexpected identity %+v", me.Identity)
	}

	var issued struct {
		Token string `json:"token"`
		ID    string `json:"id"`
	}
	s.expect("issue api token", http.MethodPost, "/auth/api-tokens", "",
		map[string]any{"name": "smoke", "scopes": []string{"checklists:read"}}, http.StatusCreated, &issued)

	s.expect("me (bearer)", http.MethodGet, "/me", issued.Token, nil, http.StatusOK, nil)
	s.expect("bearer cannot manage tokens", http.MethodGet, "/auth/api-tokens", issued.Token, nil, http.StatusForbidden, nil)
	s.expect("revoke api token", http.MethodPost, "/auth/api-tokens/"+issued.ID+"/revoke", "", nil, http.StatusOK, nil)
	s.expect("revoked bearer rejected", http.MethodGet, "/me", issued.Token, nil, http.StatusUnauthorized, nil)

	s.expect("logout", http.MethodPost, "/auth/logout", "", nil, http.StatusSeeOther, nil)
	s.expect("refresh after logout", http.MethodPost, "/auth/refresh", "", nil, http.StatusUnauthorized, nil)

	fmt.Printf("OK: user=%s token_id=%s\n", *user, issued.ID)
}

func (s *smoke) expect(step, method, path, bearer string, body any, want int, out any) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("%s: encode: %v", step, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base.JoinPath(path).String(), rdr)
	if err != nil {
		fatalf("%s: %v", step, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		fatalf("%s: %v", step, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != want {
		fatalf("%s: status=%d want=%d body=%s", step, resp.StatusCode, want, strings.TrimSpace(string(raw)))
	}
	if s.verbose {
		fmt.Printf("%-30s %s %s -> %d\n", step, method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("%s: decode: %v", step, err)
		}
	}
}

func printHash(secret string) {
	cfg, err := password.FromEnv()
	if err != nil {
		fatalf("password config: %v", err)
	}
	h, err := cfg.Hash(secret)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrSecretTooShort):
			fatalf("secret must be at least %d characters", cfg.Policy.MinLength)
		case errors.Is(err, password.ErrWeakSecret):
			fatalf("secret rejected: %v", err)
		}
		fatalf("hash: %v", err)
	}
	fmt.Println(h)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
