// Package storagetest provides database fixtures for store tests.
//
// PostgreSQL fixtures are opt-in: they skip unless ASKFM_DATABASE_URL is set,
// and (outside CI) when the server is unreachable.
package storagetest

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/KhaledSayed04/Askfm-Clone/internal/storage"
)

// DatabaseURLEnv names the opt-in integration database.
const DatabaseURLEnv = "ASKFM_DATABASE_URL"

// SQLite returns a migrated in-memory database closed on test cleanup.
func SQLite(t testing.TB) *sql.DB {
	t.Helper()

	db, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Postgres returns a pool bound (via search_path) to a fresh, migrated schema.
// The schema is dropped on cleanup.
func Postgres(t testing.TB) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv(DatabaseURLEnv))
	if raw == "" {
		t.Skipf("integration test skipped: %s is not set", DatabaseURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	admin, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(admin.Close)

	if err := ping(ctx, admin); err != nil {
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (%s set): %v", DatabaseURLEnv, err)
		}
		t.Fatalf("acquire: %v", err)
	}

	schema := "askfm_it_" + strings.ToLower(ulid.Make().String())
	if err := storage.EnsurePostgresSchema(ctx, admin, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dcancel()
		_, _ = admin.Exec(dctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", DatabaseURLEnv, err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := storage.MigratePostgres(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func ping(parent context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(parent, 3*time.Second)
	defer cancel()

	c, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	c.Release()
	return nil
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
