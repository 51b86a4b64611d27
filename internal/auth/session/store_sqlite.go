package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/KhaledSayed04/Askfm-Clone/internal/storage"
)

// SQLiteLedger implements Ledger over an embedded SQLite database opened with
// storage.OpenSQLite. The single connection serializes transactions; the
// version guard and the active-device index still apply.
type SQLiteLedger struct {
	db *sql.DB
}

var _ Ledger = (*SQLiteLedger)(nil)

// NewSQLiteLedger constructs a SQLiteLedger. The caller owns db.
func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

// InTx implements Ledger.
func (l *SQLiteLedger) InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	err := storage.WithTx(ctx, l.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, sqliteLedgerTx{tx: tx})
	})
	return sqliteClassify(err)
}

func sqliteClassify(err error) error {
	if err == nil || errors.Is(err, ErrConflict) {
		return err
	}
	if storage.SQLiteIsUnique(err) || storage.SQLiteIsBusy(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

type sqliteLedgerTx struct {
	tx *sql.Tx
}

const sqliteRecordColumns = `
	id, user_id, device_id, token_hash,
	created_at, last_used_at, expires_at,
	revoked, revoked_at, revocation_reason, replaced_by_id, version`

func scanSQLiteRecord(row *sql.Row) (Record, error) {
	var (
		r                          Record
		created, lastUsed, expires int64
		revoked                    int64
		revokedAt                  sql.NullInt64
		reason, replacedBy         sql.NullString
	)
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.DeviceID,
		&r.TokenHash,
		&created,
		&lastUsed,
		&expires,
		&revoked,
		&revokedAt,
		&reason,
		&replacedBy,
		&r.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}

	r.CreatedAt = fromMicros(created)
	r.LastUsedAt = fromMicros(lastUsed)
	r.ExpiresAt = fromMicros(expires)
	r.Revoked = revoked != 0
	if revokedAt.Valid {
		t := fromMicros(revokedAt.Int64)
		r.RevokedAt = &t
	}
	if reason.Valid {
		r.RevocationReason = &reason.String
	}
	if replacedBy.Valid {
		r.ReplacedByID = &replacedBy.String
	}
	return r, nil
}

func toMicros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func (t sqliteLedgerTx) ActiveForDevice(ctx context.Context, userID, deviceID string) (Record, error) {
	return scanSQLiteRecord(t.tx.QueryRowContext(ctx, `
		SELECT`+sqliteRecordColumns+`
		FROM refresh_tokens
		WHERE user_id = ? AND device_id = ? AND revoked = 0
	`, userID, deviceID))
}

func (t sqliteLedgerTx) ByHash(ctx context.Context, tokenHash string) (Record, error) {
	return scanSQLiteRecord(t.tx.QueryRowContext(ctx, `
		SELECT`+sqliteRecordColumns+`
		FROM refresh_tokens
		WHERE token_hash = ?
	`, tokenHash))
}

func (t sqliteLedgerTx) Insert(ctx context.Context, rec Record) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (
			id, user_id, device_id, token_hash,
			created_at, last_used_at, expires_at,
			revoked, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1)
	`, rec.ID, rec.UserID, rec.DeviceID, rec.TokenHash,
		toMicros(rec.CreatedAt), toMicros(rec.LastUsedAt), toMicros(rec.ExpiresAt))
	return sqliteClassify(err)
}

func (t sqliteLedgerTx) Reissue(ctx context.Context, id, tokenHash string, now, expiresAt time.Time, version int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET token_hash = ?,
		    expires_at = ?,
		    last_used_at = ?,
		    version = version + 1
		WHERE id = ? AND version = ? AND revoked = 0
	`, tokenHash, toMicros(expiresAt), toMicros(now), id, version)
	return sqliteOneRow(res, err)
}

func (t sqliteLedgerTx) Revoke(ctx context.Context, id string, now time.Time, reason string, replacedBy *string, version int64) error {
	var replaced sql.NullString
	if replacedBy != nil {
		replaced = sql.NullString{String: *replacedBy, Valid: true}
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1,
		    revoked_at = ?,
		    last_used_at = ?,
		    revocation_reason = ?,
		    replaced_by_id = ?,
		    version = version + 1
		WHERE id = ? AND version = ? AND revoked = 0
	`, toMicros(now), toMicros(now), reason, replaced, id, version)
	return sqliteOneRow(res, err)
}

func (t sqliteLedgerTx) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1,
		    revoked_at = ?,
		    last_used_at = ?,
		    revocation_reason = ?,
		    version = version + 1
		WHERE user_id = ? AND revoked = 0
	`, toMicros(now), toMicros(now), reason, userID)
	if err != nil {
		return 0, sqliteClassify(err)
	}
	return res.RowsAffected()
}

func sqliteOneRow(res sql.Result, err error) error {
	if err != nil {
		return sqliteClassify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
