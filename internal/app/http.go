package app

import (
	"net/http"
	"time"

	authapi "github.com/KhaledSayed04/Askfm-Clone/internal/auth/api"
	"github.com/KhaledSayed04/Askfm-Clone/internal/metrics"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	st *backend,
	auth *authapi.Handler,
	m *metrics.Metrics,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !st.postgres() {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if err := st.ping(r.Context(), 2*time.Second); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			log.Info("readyz.db.not_ready", "backend", st.name, "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	auth.Register(mux)
}
