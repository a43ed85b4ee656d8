// Package app wires the server runtime: config, logging, the token store
// backend, auth routes and metrics.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	authapi "github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/api"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/apitoken"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/session"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/metrics"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/password"
)

// App owns the HTTP server and the token store backend.
type App struct {
	cfg     Config
	log     Logger
	metrics *metrics.Metrics

	backend backend
	auth    *authapi.Handler
}

// Deps carries the component configs New wires together.
type Deps struct {
	Session  session.Config
	APIToken apitoken.Config
	AuthAPI  authapi.Config
	Password password.Config
}

// LoadDeps reads every component config from the environment.
func LoadDeps() (Deps, error) {
	sess, err := session.LoadConfigFromEnv()
	if err != nil {
		return Deps{}, err
	}
	tok, err := apitoken.LoadConfigFromEnv()
	if err != nil {
		return Deps{}, err
	}
	web, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return Deps{}, err
	}
	pw, err := password.FromEnv()
	if err != nil {
		return Deps{}, err
	}
	return Deps{Session: sess, APIToken: tok, AuthAPI: web, Password: pw}, nil
}

// New constructs a fully wired App instance.
func New(ctx context.Context, cfg Config, deps Deps, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(cfg, deps.Session, deps.Password); err != nil {
		return nil, err
	}
	if cfg.Production() && plaintextLoginSecret(deps.Session) {
		log.Warn("security.login_secret.plaintext", "hint", "store an argon2id hash in CHECKLISTS_AUTH_LOGIN_SECRET")
	}

	m := metrics.New()
	b, err := openStore(ctx, cfg, log, m)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(deps.Session, b.store,
		session.WithLogger(log),
		session.WithPasswordConfig(deps.Password),
	)
	if err != nil {
		b.Close()
		return nil, err
	}
	tokens, err := apitoken.NewService(deps.APIToken, b.store, apitoken.WithLogger(log))
	if err != nil {
		b.Close()
		return nil, err
	}
	auth, err := authapi.NewHandler(log, deps.AuthAPI, sessions, tokens, authapi.WithMetrics(m))
	if err != nil {
		b.Close()
		return nil, err
	}

	return &App{cfg: cfg, log: log, metrics: m, backend: b, auth: auth}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.backend.store, a.backend.kind, a.metrics, a.auth)
	return WithSecurityHeaders(WithRequestLogging(mux, a.log, a.metrics))
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	if a.backend.kind != BackendRedis {
		go runPruner(pruneCtx, a.backend.store, a.cfg.PruneInterval, a.log)
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store", a.backend.kind, "env", a.cfg.Env)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.backend.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	stopPrune()
	a.backend.Close()

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
