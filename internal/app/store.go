package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KhaledSayed04/Askfm-Clone/internal/auth/session"
	"github.com/KhaledSayed04/Askfm-Clone/internal/identity"
	"github.com/KhaledSayed04/Askfm-Clone/internal/storage"
)

// backend owns the database handle behind the credential store and the
// refresh token ledger. The app owns its lifecycle; stores never close it.
type backend struct {
	name string

	users  identity.Store
	ledger session.Ledger

	pool *pgxpool.Pool
	db   *sql.DB
}

// openBackend decides between Postgres (DatabaseURL set) and embedded SQLite.
func openBackend(ctx context.Context, cfg Config, log Logger, passwords identity.PasswordHasher) (*backend, error) {
	if cfg.DatabaseURL == "" {
		db, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		users, err := identity.NewSQLiteStore(db, passwords)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("db.enabled.sqlite_store", "path", cfg.SQLitePath)
		return &backend{
			name:   "sqlite",
			users:  users,
			ledger: session.NewSQLiteLedger(db),
			db:     db,
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	users, err := identity.NewPostgresStore(pool, passwords)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return &backend{
		name:   "postgres",
		users:  users,
		ledger: session.NewPostgresLedger(pool),
		pool:   pool,
	}, nil
}

func (b *backend) postgres() bool { return b.pool != nil }

func (b *backend) ping(ctx context.Context, timeout time.Duration) error {
	if b.pool != nil {
		return PingDB(ctx, b.pool, timeout)
	}
	return PingSQLite(ctx, b.db, timeout)
}

func (b *backend) close() error {
	if b.pool != nil {
		b.pool.Close()
		return nil
	}
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
