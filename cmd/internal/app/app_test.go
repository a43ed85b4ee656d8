package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	authapi "github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/api"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/apitoken"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/session"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/store"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/password"
)

func testDeps() Deps {
	sess := session.DefaultConfig()
	sess.SigningSecret = "0123456789abcdef0123456789abcdef"
	sess.LoginSecret = "correct horse battery staple"
	return Deps{
		Session:  sess,
		APIToken: apitoken.DefaultConfig(),
		AuthAPI:  authapi.DefaultConfig(),
		Password: password.DefaultConfig(),
	}
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	if cfg.StoreOpTimeout == 0 {
		cfg.StoreOpTimeout = time.Second
	}
	a, err := New(context.Background(), cfg, testDeps(), discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.backend.Close)
	return a
}

func TestApp_HealthReadyMetrics(t *testing.T) {
	a := newTestApp(t, Config{})
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status=%d", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("GET %s: security headers missing", path)
		}
	}
}

func TestApp_ReadyzRequiresStore(t *testing.T) {
	a := newTestApp(t, Config{ReadinessRequireStore: true})
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestApp_LoginThroughFullStack(t *testing.T) {
	a := newTestApp(t, Config{})
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	body := `{"username":"ann","password":"correct horse battery staple"}`
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d", resp.StatusCode)
	}
	if len(resp.Cookies()) != 2 {
		t.Fatalf("cookies=%v", resp.Cookies())
	}

	// Store metrics recorded through the instrumented store.
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `checklists_store_op_duration_seconds_count{op="put",result="ok"}`) {
		t.Fatalf("store metrics missing from /metrics")
	}
}

func TestNew_RejectsInsecureProductionConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Env: "production", StoreOpTimeout: time.Second}, testDeps(), discardLogger())
	if err == nil {
		t.Fatalf("expected production config error")
	}
}

type countingPruner struct {
	store.TokenStore
	calls atomic.Int32
}

func (c *countingPruner) PruneExpired(context.Context, time.Time) (int64, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestRunPruner_StopsWithContext(t *testing.T) {
	p := &countingPruner{TokenStore: store.NewMemoryStore(nil)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runPruner(ctx, p, 5*time.Millisecond, discardLogger())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("pruner did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pruner did not stop")
	}
}
