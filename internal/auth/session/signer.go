package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/KhaledSayed04/Askfm-Clone/internal/identity"
	"github.com/KhaledSayed04/Askfm-Clone/internal/security/token"
)

// AccessClaims are the claims carried by an access token.
// Subject is the user id.
type AccessClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c AccessClaims) UserID() string { return c.Subject }

// Signer mints and verifies access tokens and mints/hashes refresh tokens.
// It is immutable after construction and safe for concurrent use.
type Signer struct {
	key          []byte
	issuer       string
	audience     string
	accessTTL    time.Duration
	skew         time.Duration
	refreshBytes int
	hasher       token.Hasher
}

// NewSigner validates cfg and returns a Signer bound to it.
func NewSigner(cfg Config) (*Signer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hasher, err := token.NewHasher(cfg.RefreshHashKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	return &Signer{
		key:          []byte(cfg.SigningKey),
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		accessTTL:    cfg.AccessTokenTTL,
		skew:         cfg.ClockSkew,
		refreshBytes: cfg.RefreshTokenBytes,
		hasher:       hasher,
	}, nil
}

// IssueAccessToken signs an HS256 token for u valid from now until now+AccessTokenTTL.
func (s *Signer) IssueAccessToken(u identity.User, now time.Time) (string, time.Time, error) {
	if u.ID == "" {
		return "", time.Time{}, errors.New("session: access token without subject")
	}

	now = now.UTC()
	exp := now.Add(s.accessTTL)

	claims := AccessClaims{
		Name:  u.Name,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign access token: %w", err)
	}
	return signed, exp, nil
}

// VerifyAccessToken checks signature, algorithm, issuer, audience and time
// claims as of now. Any failure returns ErrInvalidToken.
func (s *Signer) VerifyAccessToken(raw string, now time.Time) (AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 8192 {
		return AccessClaims{}, ErrInvalidToken
	}

	var claims AccessClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.skew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// IssueRefreshToken returns a fresh opaque refresh token. It is never derived from user data.
func (s *Signer) IssueRefreshToken() (string, error) {
	return token.NewOpaque(s.refreshBytes)
}

// Hash returns the at-rest digest for a raw refresh token.
func (s *Signer) Hash(raw string) string {
	return s.hasher.Hash(raw)
}

// KeyedHashing reports whether refresh tokens are digested with HMAC-SHA256.
func (s *Signer) KeyedHashing() bool { return s.hasher.HMAC() }
