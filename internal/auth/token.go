package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/taskflow/apiserver/types"
)

// DefaultTokenLifetime applies when TokenConfig.Lifetime is zero.
const DefaultTokenLifetime = 24 * time.Hour

var (
	// ErrTokenMalformed covers undecodable, tampered and wrongly signed tokens
	// as well as tokens with missing or invalid claims.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenExpired is returned for correctly signed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	// Secret is the HMAC signing key.
	Secret []byte

	// Lifetime is the validity window of issued tokens.
	Lifetime time.Duration

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Claims are the identity claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role         types.Role `json:"role"`
	TokenVersion int        `json:"tokenVersion"`
}

// UserID returns the subject of the token.
func (c Claims) UserID() string {
	return c.Subject
}

// TokenCodec issues and verifies HS256 session tokens.
type TokenCodec struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenCodec constructs a codec. The secret is required.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenCodec{
		secret:   secret,
		lifetime: lifetime,
		now:      now,
	}, nil
}

// Lifetime returns the validity window of issued tokens.
func (c *TokenCodec) Lifetime() time.Duration {
	return c.lifetime
}

// Issue signs a token for user snapshotting its role and token version.
func (c *TokenCodec) Issue(user types.User) (string, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", errors.New("user id is required")
	}
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks the signature and expiry of tokenString and returns its claims.
// Errors wrap ErrTokenMalformed or ErrTokenExpired.
func (c *TokenCodec) Verify(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !token.Valid {
		return Claims{}, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	if _, err := types.ParseRole(string(claims.Role)); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if claims.TokenVersion < 0 {
		return Claims{}, fmt.Errorf("%w: negative token version", ErrTokenMalformed)
	}
	return claims, nil
}
