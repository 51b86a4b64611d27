package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KhaledSayed04/Askfm-Clone/internal/identity"
	"github.com/KhaledSayed04/Askfm-Clone/internal/identity/ids"
)

const (
	maxDeviceIDLen     = 128
	maxRefreshTokenLen = 4096
	maxNameLen         = 100
	maxEmailLen        = 254
)

// Passwords hashes and verifies user passwords.
type Passwords interface {
	Hash(password string) (string, error)
	Verify(encodedHash, password string) (bool, error)
}

// Service implements register, login, refresh, logout and logout-all.
//
// Each ledger mutation runs in a single Ledger transaction. Business failures
// are Outcomes; a non-nil error always wraps ErrFatal.
type Service struct {
	cfg       Config
	signer    *Signer
	users     identity.Store
	passwords Passwords
	ledger    Ledger

	log      *slog.Logger
	now      func() time.Time
	observer Observer

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver sets the operation observer (metrics).
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewService constructs a Service. signer must be built from the same cfg.
func NewService(cfg Config, signer *Signer, users identity.Store, passwords Passwords, ledger Ledger, opts ...Option) (*Service, error) {
	if signer == nil || users == nil || passwords == nil || ledger == nil {
		return nil, errors.New("session: missing dependency")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		signer:    signer,
		users:     users,
		passwords: passwords,
		ledger:    ledger,
		log:       slog.Default(),
		now:       time.Now,
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signer returns the token signer used by s.
func (s *Service) Signer() *Signer { return s.signer }

func (s *Service) clock() time.Time { return s.now().UTC() }

func (s *Service) observe(op string, start time.Time, out Outcome, err error) {
	code := string(out.Code)
	if err != nil {
		code = "fatal"
	}
	s.observer.ObserveOperation(op, code, time.Since(start))
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a user. It never issues tokens.
func (s *Service) Register(ctx context.Context, in RegisterInput) (out Outcome, err error) {
	const op = "session.Register"
	start := time.Now()
	defer func() { s.observe("register", start, out, err) }()

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return fail(CodeInvalidInput, "name, email and password are required"), nil
	}
	if len(name) > maxNameLen {
		return fail(CodeInvalidInput, "name is too long"), nil
	}
	if len(email) > maxEmailLen {
		return fail(CodeInvalidInput, "email is too long"), nil
	}

	u, err := s.users.CreateUser(ctx, identity.CreateUserInput{
		Name:     name,
		Email:    email,
		Password: in.Password,
		Now:      s.clock(),
	})
	switch {
	case err == nil:
	case identity.IsConflict(err):
		s.log.Info("auth.register.duplicate_email")
		return fail(CodeDuplicateEmail, msgDuplicateEmail), nil
	case identity.IsInvalidInput(err):
		var oe identity.OpError
		msg := "invalid registration input"
		if errors.As(err, &oe) && oe.Msg != "" {
			msg = oe.Msg
		}
		return fail(CodeInvalidInput, msg), nil
	default:
		s.log.Error("auth.register.fail", "err", err)
		return Outcome{}, fatal(op, err)
	}

	s.log.Info("auth.register.success", "user_id", u.ID)
	out = success(msgRegistered)
	out.UserID = u.ID
	return out, nil
}

// LoginInput is the payload of Login. DeviceID is optional.
type LoginInput struct {
	Email    string
	Password string
	DeviceID string
}

// Login verifies credentials and starts (or replaces) the session of one device.
//
// When DeviceID is empty a new one is generated and returned in Tokens.DeviceID.
// A live session on the same device is reissued in place.
func (s *Service) Login(ctx context.Context, in LoginInput) (out Outcome, err error) {
	const op = "session.Login"
	start := time.Now()
	defer func() { s.observe("login", start, out, err) }()

	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return fail(CodeInvalidInput, "email and password are required"), nil
	}

	deviceID := strings.TrimSpace(in.DeviceID)
	if len(deviceID) > maxDeviceIDLen {
		return fail(CodeInvalidInput, "device id is too long"), nil
	}
	generated := deviceID == ""
	if generated {
		deviceID = uuid.NewString()
	}

	user, err := s.users.FindByEmail(ctx, email)
	if identity.IsNotFound(err) {
		s.burnPasswordCheck(in.Password)
		s.log.Info("auth.login.invalid_credentials")
		return fail(CodeInvalidCredentials, msgInvalidCredentials), nil
	}
	if err != nil {
		s.log.Error("auth.login.lookup.fail", "err", err)
		return Outcome{}, fatal(op, err)
	}

	match, err := s.passwords.Verify(user.PasswordHash, in.Password)
	if err != nil {
		s.log.Error("auth.login.verify.fail", "user_id", user.ID, "err", err)
		return Outcome{}, fatal(op, err)
	}
	if !match {
		s.log.Info("auth.login.invalid_credentials", "user_id", user.ID)
		return fail(CodeInvalidCredentials, msgInvalidCredentials), nil
	}

	now := s.clock()
	access, accessExp, err := s.signer.IssueAccessToken(user.User, now)
	if err != nil {
		s.log.Error("auth.login.sign.fail", "err", err)
		return Outcome{}, fatal(op, err)
	}
	refresh, err := s.signer.IssueRefreshToken()
	if err != nil {
		s.log.Error("auth.login.refresh_token.fail", "err", err)
		return Outcome{}, fatal(op, err)
	}
	refreshHash := s.signer.Hash(refresh)
	refreshExp := now.Add(s.cfg.RefreshTokenTTL)

	err = s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		rec, err := tx.ActiveForDevice(ctx, user.ID, deviceID)
		if err == nil {
			return tx.Reissue(ctx, rec.ID, refreshHash, now, refreshExp, rec.Version)
		}
		if !errors.Is(err, ErrRecordNotFound) {
			return err
		}

		id, err := ids.NewULID(now)
		if err != nil {
			return err
		}
		return tx.Insert(ctx, Record{
			ID:         id,
			UserID:     user.ID,
			DeviceID:   deviceID,
			TokenHash:  refreshHash,
			CreatedAt:  now,
			LastUsedAt: now,
			ExpiresAt:  refreshExp,
		})
	})
	if errors.Is(err, ErrConflict) {
		s.log.Warn("auth.login.conflict", "user_id", user.ID, "device_id", deviceID)
		return fail(CodeConflict, msgConflict), nil
	}
	if err != nil {
		s.log.Error("auth.login.issue_session.fail", "user_id", user.ID, "err", err)
		return Outcome{}, fatal(op, err)
	}

	s.log.Info("auth.login.success", "user_id", user.ID, "device_id", deviceID, "device_generated", generated)
	out = success(msgLoggedIn)
	out.Tokens = &Tokens{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshExp,
		DeviceID:              deviceID,
	}
	return out, nil
}

// burnPasswordCheck spends one hash verification so unknown emails take as
// long as wrong passwords.
func (s *Service) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		h, err := s.passwords.Hash("askfm-timing-equalizer-password")
		if err != nil {
			s.log.Warn("auth.login.dummy_hash.fail", "err", err)
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash != "" {
		_, _ = s.passwords.Verify(s.dummyHash, password)
	}
}

// RefreshToken exchanges a live refresh token for a new token pair on the same device.
//
// The presented token is consumed: its record is revoked with reason "rotated"
// and linked to the new record. A rotated token presented again within
// RotationGrace lost a race against a concurrent refresh and gets a retryable
// conflict. Later it is a replay: it fails and, when RevokeAllOnReuse is set,
// revokes every session of the user.
func (s *Service) RefreshToken(ctx context.Context, raw string) (out Outcome, err error) {
	const op = "session.RefreshToken"
	start := time.Now()
	defer func() { s.observe("refresh", start, out, err) }()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fail(CodeEmptyToken, msgEmptyToken), nil
	}
	if len(raw) > maxRefreshTokenLen {
		return fail(CodeInvalidToken, msgInvalidToken), nil
	}

	now := s.clock()
	presented := s.signer.Hash(raw)

	newRefresh, err := s.signer.IssueRefreshToken()
	if err != nil {
		s.log.Error("auth.refresh.refresh_token.fail", "err", err)
		return Outcome{}, fatal(op, err)
	}
	newHash := s.signer.Hash(newRefresh)
	newExp := now.Add(s.cfg.RefreshTokenTTL)

	var (
		failure  Code
		userID   string
		deviceID string
		revoked  int64
		reuse    bool
	)
	err = s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		rec, err := tx.ByHash(ctx, presented)
		if errors.Is(err, ErrRecordNotFound) {
			failure = CodeInvalidToken
			return nil
		}
		if err != nil {
			return err
		}
		userID, deviceID = rec.UserID, rec.DeviceID

		if rec.Revoked {
			if rec.Rotated() && rec.RevokedAt != nil && now.Sub(*rec.RevokedAt) < s.cfg.RotationGrace {
				failure = CodeConflict
				return nil
			}
			failure = CodeTokenExpiredOrRevoked
			if rec.Rotated() && s.cfg.RevokeAllOnReuse {
				reuse = true
				revoked, err = tx.RevokeAllForUser(ctx, rec.UserID, now, ReasonReuseDetected)
				return err
			}
			return nil
		}
		if !rec.ExpiresAt.After(now) {
			failure = CodeTokenExpiredOrRevoked
			return nil
		}

		newID, err := ids.NewULID(now)
		if err != nil {
			return err
		}
		// Revoke first: the live-device index admits one row at a time.
		if err := tx.Revoke(ctx, rec.ID, now, ReasonRotated, &newID, rec.Version); err != nil {
			return err
		}
		return tx.Insert(ctx, Record{
			ID:         newID,
			UserID:     rec.UserID,
			DeviceID:   rec.DeviceID,
			TokenHash:  newHash,
			CreatedAt:  now,
			LastUsedAt: now,
			ExpiresAt:  newExp,
		})
	})
	if errors.Is(err, ErrConflict) {
		s.log.Warn("auth.refresh.conflict", "user_id", userID, "device_id", deviceID)
		return fail(CodeConflict, msgConflict), nil
	}
	if err != nil {
		s.log.Error("auth.refresh.rotate.fail", "err", err)
		return Outcome{}, fatal(op, err)
	}

	switch failure {
	case "":
	case CodeInvalidToken:
		s.log.Info("auth.refresh.invalid_token")
		return fail(CodeInvalidToken, msgInvalidToken), nil
	case CodeConflict:
		s.log.Warn("auth.refresh.concurrent", "user_id", userID, "device_id", deviceID)
		return fail(CodeConflict, msgConflict), nil
	default:
		if reuse {
			s.log.Warn("auth.refresh.reuse_detected", "user_id", userID, "device_id", deviceID, "revoked", revoked)
		} else {
			s.log.Info("auth.refresh.expired_or_revoked", "user_id", userID, "device_id", deviceID)
		}
		return fail(CodeTokenExpiredOrRevoked, msgExpiredOrRevoked), nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if identity.IsNotFound(err) {
		// Nobody holds the token just inserted for this user.
		if rerr := s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
			_, err := tx.RevokeAllForUser(ctx, userID, now, ReasonLogoutAll)
			return err
		}); rerr != nil {
			s.log.Error("auth.refresh.orphan_revoke.fail", "user_id", userID, "err", rerr)
			return Outcome{}, fatal(op, rerr)
		}
		s.log.Warn("auth.refresh.user_missing", "user_id", userID, "device_id", deviceID)
		return fail(CodeInvalidToken, msgInvalidToken), nil
	}
	if err != nil {
		s.log.Error("auth.refresh.lookup.fail", "user_id", userID, "err", err)
		return Outcome{}, fatal(op, err)
	}

	access, accessExp, err := s.signer.IssueAccessToken(user, now)
	if err != nil {
		s.log.Error("auth.refresh.sign.fail", "err", err)
		return Outcome{}, fatal(op, err)
	}

	s.log.Info("auth.refresh.success", "user_id", userID, "device_id", deviceID)
	out = success(msgRefreshed)
	out.Tokens = &Tokens{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          newRefresh,
		RefreshTokenExpiresAt: newExp,
		DeviceID:              deviceID,
	}
	return out, nil
}

// Logout revokes the live session of (userID, deviceID).
func (s *Service) Logout(ctx context.Context, userID, deviceID string) (out Outcome, err error) {
	const op = "session.Logout"
	start := time.Now()
	defer func() { s.observe("logout", start, out, err) }()

	userID = strings.TrimSpace(userID)
	deviceID = strings.TrimSpace(deviceID)
	if userID == "" || deviceID == "" {
		return fail(CodeInvalidInput, "user id and device id are required"), nil
	}
	if len(deviceID) > maxDeviceIDLen {
		return fail(CodeInvalidInput, "device id is too long"), nil
	}

	now := s.clock()
	found := false
	err = s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		rec, err := tx.ActiveForDevice(ctx, userID, deviceID)
		if errors.Is(err, ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return tx.Revoke(ctx, rec.ID, now, ReasonLogout, nil, rec.Version)
	})
	if errors.Is(err, ErrConflict) {
		return fail(CodeConflict, msgConflict), nil
	}
	if err != nil {
		s.log.Error("auth.logout.fail", "user_id", userID, "err", err)
		return Outcome{}, fatal(op, err)
	}
	if !found {
		return fail(CodeNoActiveSession, msgNoActiveSession), nil
	}

	s.log.Info("auth.logout.success", "user_id", userID, "device_id", deviceID)
	return success(msgLoggedOut), nil
}

// LogoutAll revokes every live session of userID in one statement.
func (s *Service) LogoutAll(ctx context.Context, userID string) (out Outcome, err error) {
	const op = "session.LogoutAll"
	start := time.Now()
	defer func() { s.observe("logout_all", start, out, err) }()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fail(CodeInvalidInput, "user id is required"), nil
	}

	now := s.clock()
	var n int64
	err = s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		var err error
		n, err = tx.RevokeAllForUser(ctx, userID, now, ReasonLogoutAll)
		return err
	})
	if errors.Is(err, ErrConflict) {
		return fail(CodeConflict, msgConflict), nil
	}
	if err != nil {
		s.log.Error("auth.logout_all.fail", "user_id", userID, "err", err)
		return Outcome{}, fatal(op, err)
	}
	if n == 0 {
		return fail(CodeNoActiveSessions, msgNoActiveSessions), nil
	}

	s.log.Info("auth.logout_all.success", "user_id", userID, "revoked", n)
	return success(msgLoggedOutAll), nil
}
