package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KhaledSayed04/Askfm-Clone/internal/storage"
)

// NewDBPool builds a pgxpool bound to cfg.DBSchema, validates connectivity
// and brings the schema up to date.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	const op = "app.NewDBPool"

	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}
	// Store queries use unqualified table names.
	pcfg.ConnConfig.RuntimeParams["search_path"] = cfg.DBSchema

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}
	if err := storage.EnsurePostgresSchema(ctx, pool, cfg.DBSchema); err != nil {
		pool.Close()
		return nil, err
	}
	if err := storage.MigratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// PingSQLite is PingDB for the embedded backend.
func PingSQLite(parent context.Context, db *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	return db.PingContext(ctx)
}
