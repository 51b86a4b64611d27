package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KhaledSayed04/Askfm-Clone/internal/storage"
)

// PostgresLedger implements Ledger using PostgreSQL via pgxpool.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Rows read inside a transaction are locked with SELECT ... FOR UPDATE.
// Lookups by token hash do not wait: a row already locked by a concurrent
// refresh of the same token fails with ErrConflict.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

var _ Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger constructs a PostgresLedger.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// InTx implements Ledger.
func (l *PostgresLedger) InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	err := storage.WithPgxTx(ctx, l.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, pgLedgerTx{tx: tx})
	})
	return pgClassify(err)
}

// pgClassify maps races lost to a concurrent writer onto ErrConflict.
// Commit-time failures (deferred constraints) pass through here too.
func pgClassify(err error) error {
	if err == nil || errors.Is(err, ErrConflict) {
		return err
	}
	if _, ok := storage.PgUniqueViolation(err); ok {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if storage.PgSerializationFailure(err) || storage.PgLockNotAvailable(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

type pgLedgerTx struct {
	tx pgx.Tx
}

const pgRecordColumns = `
	id, user_id, device_id, token_hash,
	created_at, last_used_at, expires_at,
	revoked, revoked_at, revocation_reason, replaced_by_id, version`

func scanPgRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.DeviceID,
		&r.TokenHash,
		&r.CreatedAt,
		&r.LastUsedAt,
		&r.ExpiresAt,
		&r.Revoked,
		&r.RevokedAt,
		&r.RevocationReason,
		&r.ReplacedByID,
		&r.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, pgClassify(err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.LastUsedAt = r.LastUsedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	return r, nil
}

func (t pgLedgerTx) ActiveForDevice(ctx context.Context, userID, deviceID string) (Record, error) {
	return scanPgRecord(t.tx.QueryRow(ctx, `
		SELECT`+pgRecordColumns+`
		FROM refresh_tokens
		WHERE user_id = $1 AND device_id = $2 AND NOT revoked
		FOR UPDATE
	`, userID, deviceID))
}

func (t pgLedgerTx) ByHash(ctx context.Context, tokenHash string) (Record, error) {
	return scanPgRecord(t.tx.QueryRow(ctx, `
		SELECT`+pgRecordColumns+`
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE NOWAIT
	`, tokenHash))
}

func (t pgLedgerTx) Insert(ctx context.Context, rec Record) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO refresh_tokens (
			id, user_id, device_id, token_hash,
			created_at, last_used_at, expires_at,
			revoked, version
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			false, 1
		)
	`, rec.ID, rec.UserID, rec.DeviceID, rec.TokenHash,
		rec.CreatedAt.UTC(), rec.LastUsedAt.UTC(), rec.ExpiresAt.UTC())
	return pgClassify(err)
}

func (t pgLedgerTx) Reissue(ctx context.Context, id, tokenHash string, now, expiresAt time.Time, version int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET token_hash = $2,
		    expires_at = $3,
		    last_used_at = $4,
		    version = version + 1
		WHERE id = $1 AND version = $5 AND NOT revoked
	`, id, tokenHash, expiresAt.UTC(), now.UTC(), version)
	if err != nil {
		return pgClassify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (t pgLedgerTx) Revoke(ctx context.Context, id string, now time.Time, reason string, replacedBy *string, version int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked = true,
		    revoked_at = $2,
		    last_used_at = $2,
		    revocation_reason = $3,
		    replaced_by_id = $4,
		    version = version + 1
		WHERE id = $1 AND version = $5 AND NOT revoked
	`, id, now.UTC(), reason, replacedBy, version)
	if err != nil {
		return pgClassify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (t pgLedgerTx) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked = true,
		    revoked_at = $2,
		    last_used_at = $2,
		    revocation_reason = $3,
		    version = version + 1
		WHERE user_id = $1 AND NOT revoked
	`, userID, now.UTC(), reason)
	if err != nil {
		return 0, pgClassify(err)
	}
	return tag.RowsAffected(), nil
}
