package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KhaledSayed04/Askfm-Clone/internal/storage"
)

// SQLiteStore implements Store over an embedded SQLite database.
// Timestamps are stored as unix microseconds.
type SQLiteStore struct {
	db        *sql.DB
	passwords PasswordHasher
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore constructs a SQLiteStore. The caller owns db.
func NewSQLiteStore(db *sql.DB, passwords PasswordHasher) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	if passwords == nil {
		return nil, fmt.Errorf("identity: nil password hasher")
	}
	return &SQLiteStore{db: db, passwords: passwords}, nil
}

// CreateUser implements Store.
func (s *SQLiteStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	row, err := prepareUser(op, s.passwords, in)
	if err != nil {
		return User{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email_norm, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, row.id, row.name, row.email, row.hash, row.createdAt.UnixMicro())
	if err != nil {
		if storage.SQLiteIsUnique(err) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	return User{ID: row.id, Name: row.name, Email: row.email, CreatedAt: row.createdAt}, nil
}

// FindByEmail implements Store.
func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.FindByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}

	var (
		u       UserAuth
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email_norm, password_hash, created_at
		FROM users
		WHERE email_norm = ?
	`, norm).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = time.UnixMicro(created).UTC()
	return u, nil
}

// FindByID implements Store.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (User, error) {
	const op = "identity.FindByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	var (
		u       User
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email_norm, created_at
		FROM users
		WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = time.UnixMicro(created).UTC()
	return u, nil
}
