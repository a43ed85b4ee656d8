package app

import (
	"context"
	"net/http"
	"time"

	authapi "github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/api"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/metrics"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/store"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	kv store.TokenStore,
	storeKind string,
	m *metrics.Metrics,
	auth *authapi.Handler,
) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireStore && storeKind == BackendMemory {
			http.Error(w, "persistent store not configured", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := kv.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			log.Info("readyz.store.not_ready", "backend", storeKind, "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", m.Handler())

	if auth != nil {
		auth.Register(mux)
	}
}
