package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/KhaledSayed04/Askfm-Clone/migrations"
)

// MigrateSQLite applies the embedded SQLite migrations.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, goose.DialectSQLite3, db, migrations.SQLite, "sqlite")
}

// MigratePostgres applies the embedded PostgreSQL migrations through a
// database/sql view of pool. Tables land in the pool's search_path.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	return migrate(ctx, goose.DialectPostgres, db, migrations.Postgres, "postgres")
}

// EnsurePostgresSchema creates schema if it does not exist.
func EnsurePostgresSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return nil
	}
	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("storage.EnsurePostgresSchema: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, dialect goose.Dialect, db *sql.DB, embedded fs.FS, dir string) error {
	const op = "storage.migrate"

	fsys, err := fs.Sub(embedded, dir)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("%s: provider: %w", op, err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("%s: up: %w", op, err)
	}
	return nil
}
