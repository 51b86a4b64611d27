package identity_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/KhaledSayed04/Askfm-Clone/internal/identity"
	"github.com/KhaledSayed04/Askfm-Clone/internal/security/password"
	"github.com/KhaledSayed04/Askfm-Clone/internal/storage/storagetest"
)

func testPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

// storeFactories yields every Store backend available in this run.
func storeFactories(t *testing.T) map[string]func(t *testing.T) identity.Store {
	t.Helper()

	return map[string]func(t *testing.T) identity.Store{
		"sqlite": func(t *testing.T) identity.Store {
			s, err := identity.NewSQLiteStore(storagetest.SQLite(t), testPasswords())
			require.NoError(t, err)
			return s
		},
		"postgres": func(t *testing.T) identity.Store {
			s, err := identity.NewPostgresStore(storagetest.Postgres(t), testPasswords())
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_CreateUser_NormalizesEmail(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			u, err := s.CreateUser(ctx, identity.CreateUserInput{
				Name:     "  Khaled ",
				Email:    "  Khaled@Example.COM ",
				Password: "hunter2-but-longer",
			})
			require.NoError(t, err)
			assert.Len(t, u.ID, 26)
			assert.Equal(t, "Khaled", u.Name)
			assert.Equal(t, "khaled@example.com", u.Email)

			got, err := s.FindByEmail(ctx, "KHALED@example.com")
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)
			assert.Equal(t, "khaled@example.com", got.Email)
			assert.NotContains(t, got.PasswordHash, "hunter2")

			ok, err := testPasswords().Verify(got.PasswordHash, "hunter2-but-longer")
			require.NoError(t, err)
			assert.True(t, ok)

			byID, err := s.FindByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, u.Email, byID.Email)
			assert.WithinDuration(t, u.CreatedAt, byID.CreatedAt, time.Millisecond)
		})
	}
}

func TestStore_CreateUser_DuplicateEmailAnyCase(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			_, err := s.CreateUser(ctx, identity.CreateUserInput{Name: "a", Email: "User@Example.com", Password: "pw-1"})
			require.NoError(t, err)

			_, err = s.CreateUser(ctx, identity.CreateUserInput{Name: "b", Email: "user@example.COM", Password: "pw-2"})
			require.Error(t, err)
			require.True(t, identity.IsConflict(err), "got %v", err)

			var ce identity.ConflictError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "email", ce.Field)
		})
	}
}

func TestStore_CreateUser_InvalidInput(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			cases := []identity.CreateUserInput{
				{Name: "", Email: "a@example.com", Password: "pw"},
				{Name: "a", Email: "   ", Password: "pw"},
				{Name: "a", Email: "a@example.com", Password: ""},
				{Name: "a", Email: "a@example.com", Password: strings.Repeat("x", 100)},
			}
			for _, in := range cases {
				_, err := s.CreateUser(ctx, in)
				assert.True(t, identity.IsInvalidInput(err), "input %+v: got %v", in, err)
			}
		})
	}
}

func TestStore_Find_NotFound(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			_, err := s.FindByEmail(ctx, "nobody@example.com")
			assert.True(t, identity.IsNotFound(err))

			_, err = s.FindByEmail(ctx, "")
			assert.True(t, identity.IsNotFound(err))

			_, err = s.FindByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
			assert.True(t, identity.IsNotFound(err))
		})
	}
}
