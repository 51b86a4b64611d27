package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countUsers(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func insertUser(ctx context.Context, tx *sql.Tx, id, email string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email_norm, password_hash, created_at) VALUES (?, 'n', ?, 'h', 1)`,
		id, email,
	)
	return err
}

func TestOpenSQLite_Migrates(t *testing.T) {
	db := setupDB(t)

	for _, table := range []string{"users", "refresh_tokens"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}

	// Re-running is a no-op.
	require.NoError(t, MigrateSQLite(context.Background(), db))
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return insertUser(ctx, tx, "u1", "a@example.com")
	})
	require.NoError(t, err)
	require.Equal(t, 1, countUsers(t, db), "must commit on success")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		require.NoError(t, insertUser(ctx, tx, "u1", "a@example.com"))
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, countUsers(t, db), "must rollback when fn returns error")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countUsers(t, db), "must rollback on panic")
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		require.NoError(t, insertUser(ctx, tx, "u1", "a@example.com"))
		panic("kaput")
	})
}

func TestSQLiteIsUnique(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return insertUser(ctx, tx, "u1", "dup@example.com")
	}))

	err := WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return insertUser(ctx, tx, "u2", "dup@example.com")
	})
	require.Error(t, err)
	assert.True(t, SQLiteIsUnique(err))
	assert.False(t, SQLiteIsBusy(err))

	assert.False(t, SQLiteIsUnique(errors.New("plain")))
}

func TestSQLite_ForeignKeysEnforced(t *testing.T) {
	db := setupDB(t)

	_, err := db.Exec(`
		INSERT INTO refresh_tokens (id, user_id, device_id, token_hash, created_at, last_used_at, expires_at)
		VALUES ('r1', 'missing-user', 'd1', printf('%064d', 0), 1, 1, 2)
	`)
	require.Error(t, err)
}
