package session

import (
	"context"
	"time"
)

// Revocation reasons persisted in refresh_tokens.revocation_reason.
const (
	ReasonLogout        = "logout"
	ReasonLogoutAll     = "logout_all"
	ReasonRotated       = "rotated"
	ReasonReuseDetected = "reuse_detected"
)

// Record mirrors one refresh_tokens row: one session of one user on one device.
type Record struct {
	ID               string
	UserID           string
	DeviceID         string
	TokenHash        string
	CreatedAt        time.Time
	LastUsedAt       time.Time
	ExpiresAt        time.Time
	Revoked          bool
	RevokedAt        *time.Time
	RevocationReason *string
	ReplacedByID     *string
	Version          int64
}

// Rotated reports whether the record was consumed by a refresh.
func (r Record) Rotated() bool { return r.Revoked && r.ReplacedByID != nil }

// Ledger persists refresh token records.
//
// InTx runs fn in a single transaction. The transaction commits only when fn
// returns nil. fn must use tx exclusively; calling other stores from inside
// fn is not supported.
type Ledger interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the set of transactional ledger primitives.
//
// Writes guarded by version return ErrConflict when the row changed since it
// was read. Inserts that collide with another live session on the same device
// return ErrConflict.
type LedgerTx interface {
	// ActiveForDevice returns the non-revoked record for (userID, deviceID), locked for update.
	ActiveForDevice(ctx context.Context, userID, deviceID string) (Record, error)

	// ByHash returns the record (revoked or not) holding tokenHash, locked for update.
	ByHash(ctx context.Context, tokenHash string) (Record, error)

	// Insert writes a new live record. Version is set to 1.
	Insert(ctx context.Context, rec Record) error

	// Reissue replaces the hash and expiry of a live record in place.
	Reissue(ctx context.Context, id, tokenHash string, now, expiresAt time.Time, version int64) error

	// Revoke marks one record revoked.
	Revoke(ctx context.Context, id string, now time.Time, reason string, replacedBy *string, version int64) error

	// RevokeAllForUser revokes every live record of userID and returns how many changed.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int64, error)
}
