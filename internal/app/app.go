// Package app wires the Askfm server runtime: config, logging, storage, the
// auth HTTP surface and metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	authapi "github.com/KhaledSayed04/Askfm-Clone/internal/auth/api"
	"github.com/KhaledSayed04/Askfm-Clone/internal/auth/session"
	"github.com/KhaledSayed04/Askfm-Clone/internal/metrics"
	"github.com/KhaledSayed04/Askfm-Clone/internal/security/password"
)

// App is the Askfm server runtime: it owns the storage backend, the HTTP
// server wiring and optional Redis client.
type App struct {
	cfg Config
	log Logger

	store   *backend
	redis   *redis.Client
	metrics *metrics.Metrics

	sessions *session.Service
	handler  http.Handler
}

// New constructs a fully wired App. Session, password and auth API settings
// are read from the environment.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	passwords, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	authCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	signer, err := session.NewSigner(sessCfg)
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, signer); err != nil {
		return nil, err
	}

	st, err := openBackend(ctx, cfg, log, passwords)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, store: st}

	svcOpts := []session.Option{session.WithLogger(log)}
	var handlerOpts []authapi.HandlerOption
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
		svcOpts = append(svcOpts, session.WithObserver(a.metrics))
		handlerOpts = append(handlerOpts, authapi.WithThrottleObserver(a.metrics))
	}

	if cfg.RedisAddr != "" {
		client, err := newRedisClient(ctx, cfg)
		if err != nil {
			a.closeResources()
			return nil, err
		}
		a.redis = client
		handlerOpts = append(handlerOpts, authapi.WithLoginLimiter(
			authapi.NewRedisLimiter(client, "askfm:", authCfg.LoginIPMax, authCfg.LoginIPWindow),
		))
		log.Info("throttle.redis", "addr", cfg.RedisAddr)
	}

	a.sessions, err = session.NewService(sessCfg, signer, st.users, passwords, st.ledger, svcOpts...)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	auth, err := authapi.NewHandler(log, authCfg, a.sessions, st.users, handlerOpts...)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, st, auth, a.metrics)

	var h http.Handler = mux
	if a.metrics != nil {
		h = WithMetrics(h, a.metrics)
	}
	a.handler = WithRequestLogging(h, log)

	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"backend", a.store.name,
		"metrics", a.metrics != nil,
		"redis", a.redis != nil,
	)

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
		a.closeResources()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.closeResources()
		return err
	}

	a.closeResources()
	a.log.Info("server.stopped")
	return nil
}

// Close releases storage and Redis resources without running the server.
func (a *App) Close() { a.closeResources() }

func (a *App) closeResources() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.redis = nil
	}
	if a.store != nil {
		if err := a.store.close(); err != nil {
			a.log.Error("store.close.fail", "err", err)
		}
		a.store = nil
	}
}

func newRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("app: redis ping %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
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
