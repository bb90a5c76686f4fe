// Package auth binds WebSocket connections to the session identity issued
// by the REST API.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var (
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidToken = errors.New("invalid session token")
	ErrRevoked      = errors.New("session token revoked")
	ErrUnknownUser  = errors.New("unknown user")
)

// Claims is the payload of the session cookie issued at login.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// RevocationList reports whether a token id has been revoked.
type RevocationList interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// UserDirectory reports whether a user account exists.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Authenticator verifies session tokens.
type Authenticator struct {
	secret      []byte
	revocations RevocationList
	users       UserDirectory
	logger      zerolog.Logger
}

type Option func(*Authenticator)

// WithRevocations rejects tokens found in list.
func WithRevocations(list RevocationList) Option {
	return func(a *Authenticator) { a.revocations = list }
}

// WithUserDirectory rejects tokens for users missing from dir.
func WithUserDirectory(dir UserDirectory) Option {
	return func(a *Authenticator) { a.users = dir }
}

func NewAuthenticator(secret string, logger zerolog.Logger, opts ...Option) *Authenticator {
	a := &Authenticator{
		secret: []byte(secret),
		logger: logger.With().Str("component", "auth").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Verify parses token and returns its claims when the signature, expiry,
// revocation status and user all check out.
func (a *Authenticator) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if a.revocations != nil {
		revoked, err := a.revocations.IsRevoked(ctx, TokenID(token, claims))
		if err != nil {
			// Fail open so a cache outage does not lock everyone out.
			a.logger.Error().Err(err).Msg("revocation check failed")
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	if a.users != nil {
		ok, err := a.users.Exists(ctx, claims.UserID)
		if err != nil {
			return nil, fmt.Errorf("lookup user %s: %w", claims.UserID, err)
		}
		if !ok {
			return nil, ErrUnknownUser
		}
	}

	return claims, nil
}

// Issue signs a session token for userID, as the login endpoint does.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// TokenID identifies a token for revocation: its jti, or a digest of the
// raw token when it carries none.
func TokenID(token string, claims *Claims) string {
	if claims != nil && claims.ID != "" {
		return claims.ID
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
