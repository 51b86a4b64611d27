package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KhaledSayed04/Askfm-Clone/internal/security/password"
)

// User is an Askfm account as seen by the rest of the system.
// Email is always the normalized (lowercase) form.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// UserAuth is a User together with its stored password hash.
// It never leaves the auth core.
type UserAuth struct {
	User
	PasswordHash string
}

// CreateUserInput describes a registration.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Now      time.Time
}

// PasswordHasher hashes raw passwords before storage.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Store is the credential persistence boundary.
type Store interface {
	// CreateUser hashes the password and inserts the user.
	// Returns ConflictError{Field: "email"} when the normalized email exists.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// FindByEmail matches the normalized email. Returns NotFoundError when absent.
	FindByEmail(ctx context.Context, email string) (UserAuth, error)

	// FindByID returns NotFoundError when absent.
	FindByID(ctx context.Context, id string) (User, error)
}

// userRow is the normalized payload shared by the SQL stores.
type userRow struct {
	id        string
	name      string
	email     string
	hash      string
	createdAt time.Time
}

func prepareUser(op string, hasher PasswordHasher, in CreateUserInput) (userRow, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)

	if name == "" {
		return userRow{}, invalid(op, "name is required")
	}
	if email == "" {
		return userRow{}, invalid(op, "email is required")
	}
	if in.Password == "" {
		return userRow{}, invalid(op, "password is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	hash, err := hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) ||
			errors.Is(err, password.ErrPasswordTooLong) ||
			errors.Is(err, password.ErrWeakPassword) {
			return userRow{}, invalid(op, err.Error())
		}
		return userRow{}, fmt.Errorf("%s: hash password: %w", op, err)
	}

	id, err := NewULID(now)
	if err != nil {
		return userRow{}, err
	}

	return userRow{id: id, name: name, email: email, hash: hash, createdAt: now}, nil
}
