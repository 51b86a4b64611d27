package session

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/KhaledSayed04/Askfm-Clone/internal/identity"
	"github.com/KhaledSayed04/Askfm-Clone/internal/security/password"
	"github.com/KhaledSayed04/Askfm-Clone/internal/storage/storagetest"
)

const testSigningKey = "test-signing-key-0123456789abcdef-0123456789"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SigningKey = testSigningKey
	return cfg
}

func testPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

type harness struct {
	svc    *Service
	clock  *fakeClock
	db     *sql.DB
	users  identity.Store
	signer *Signer
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	db := storagetest.SQLite(t)
	users, err := identity.NewSQLiteStore(db, testPasswords())
	require.NoError(t, err)

	signer, err := NewSigner(cfg)
	require.NoError(t, err)

	clock := newFakeClock()
	svc, err := NewService(cfg, signer, users, testPasswords(), NewSQLiteLedger(db), WithClock(clock.Now))
	require.NoError(t, err)

	return &harness{svc: svc, clock: clock, db: db, users: users, signer: signer}
}

// register creates a user and returns its id.
func (h *harness) register(t *testing.T, email, pw string) string {
	t.Helper()

	out, err := h.svc.Register(context.Background(), RegisterInput{Name: "Test User", Email: email, Password: pw})
	require.NoError(t, err)
	require.True(t, out.Success, "register: %+v", out)
	return out.UserID
}

func (h *harness) login(t *testing.T, email, pw, device string) *Tokens {
	t.Helper()

	out, err := h.svc.Login(context.Background(), LoginInput{Email: email, Password: pw, DeviceID: device})
	require.NoError(t, err)
	require.True(t, out.Success, "login: %+v", out)
	require.NotNil(t, out.Tokens)
	return out.Tokens
}

func (h *harness) refresh(t *testing.T, raw string) Outcome {
	t.Helper()

	out, err := h.svc.RefreshToken(context.Background(), raw)
	require.NoError(t, err)
	return out
}

func (h *harness) activeHash(t *testing.T, userID, deviceID string) string {
	t.Helper()

	var hash string
	err := h.db.QueryRow(`
		SELECT token_hash FROM refresh_tokens
		WHERE user_id = ? AND device_id = ? AND revoked = 0
	`, userID, deviceID).Scan(&hash)
	require.NoError(t, err)
	return hash
}

func (h *harness) countRows(t *testing.T, where string, args ...any) int {
	t.Helper()

	var n int
	q := "SELECT COUNT(*) FROM refresh_tokens"
	if strings.TrimSpace(where) != "" {
		q += " WHERE " + where
	}
	require.NoError(t, h.db.QueryRow(q, args...).Scan(&n))
	return n
}
