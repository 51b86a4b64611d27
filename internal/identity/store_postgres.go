package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KhaledSayed04/Askfm-Clone/internal/storage"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Tables are unqualified and resolve through the pool's search_path.
type PostgresStore struct {
	pool      *pgxpool.Pool
	passwords PasswordHasher
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, passwords PasswordHasher) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	if passwords == nil {
		return nil, fmt.Errorf("identity: nil password hasher")
	}
	return &PostgresStore{pool: pool, passwords: passwords}, nil
}

// CreateUser implements Store.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	row, err := prepareUser(op, s.passwords, in)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email_norm, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, row.id, row.name, row.email, row.hash, row.createdAt)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	return User{ID: row.id, Name: row.name, Email: row.email, CreatedAt: row.createdAt}, nil
}

// FindByEmail implements Store.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.FindByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}

	var u UserAuth
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email_norm, password_hash, created_at
		FROM users
		WHERE email_norm = $1
	`, norm).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// FindByID implements Store.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	const op = "identity.FindByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email_norm, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	c, ok := storage.PgUniqueViolation(err)
	if !ok {
		return "", false
	}
	switch {
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
