package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/internal/store"
	"github.com/taskflow/apiserver/types"
)

// Client messages for authentication failures.
const (
	MsgAuthRequired    = "Authentication required"
	MsgInvalidToken    = "Invalid authentication token"
	MsgUserNotFound    = "User not found"
	MsgAccountInactive = "User account is inactive"
	MsgSessionExpired  = "Session expired, please login again"
)

// IdentityStore is the read side of the user store the gate depends on.
type IdentityStore interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// Gate authenticates requests against the live state of the identity store.
type Gate struct {
	codec *TokenCodec
	users IdentityStore
}

// NewGate constructs a Gate.
func NewGate(codec *TokenCodec, users IdentityStore) *Gate {
	return &Gate{codec: codec, users: users}
}

// Authenticate resolves the user behind an Authorization header value.
//
// The token is only trusted for the user id it names: the account is reloaded
// and must still be active with the same token version the token was issued
// at. All rejections are apperr.KindUnauthenticated except store failures,
// which are apperr.KindInternal.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (types.User, error) {
	logger := zerolog.Ctx(ctx)

	tokenString, err := bearerToken(authorization)
	if err != nil {
		if errors.Is(err, errMissingToken) {
			logger.Debug().Str("step", "extract").Msg("authentication rejected: no bearer token")
			return types.User{}, apperr.Unauthenticated(MsgAuthRequired)
		}
		logger.Debug().Str("step", "extract").Err(err).Msg("authentication rejected")
		return types.User{}, apperr.Wrap(apperr.KindUnauthenticated, MsgInvalidToken, err)
	}

	claims, err := g.codec.Verify(tokenString)
	if err != nil {
		logger.Debug().Str("step", "verify").Err(err).Msg("authentication rejected")
		return types.User{}, apperr.Wrap(apperr.KindUnauthenticated, MsgInvalidToken, err)
	}

	user, err := g.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Debug().Str("step", "lookup").Str("user_id", claims.UserID()).Msg("authentication rejected: unknown user")
			return types.User{}, apperr.Wrap(apperr.KindUnauthenticated, MsgUserNotFound, err)
		}
		logger.Error().Str("step", "lookup").Str("user_id", claims.UserID()).Err(err).Msg("failed to load user")
		return types.User{}, apperr.Internal(err)
	}

	if !user.IsActive() {
		logger.Debug().Str("step", "status").Str("user_id", user.ID).Msg("authentication rejected: inactive account")
		return types.User{}, apperr.Unauthenticated(MsgAccountInactive)
	}

	if claims.TokenVersion != user.TokenVersion {
		logger.Debug().
			Str("step", "version").
			Str("user_id", user.ID).
			Int("token_version", claims.TokenVersion).
			Int("current_version", user.TokenVersion).
			Msg("authentication rejected: stale session")
		return types.User{}, apperr.Unauthenticated(MsgSessionExpired)
	}

	return user, nil
}

var (
	errMissingToken  = errors.New("missing authorization")
	errInvalidScheme = errors.New("invalid authorization scheme")
)

func bearerToken(header string) (string, error) {
	auth := strings.TrimSpace(header)
	if auth == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(auth, " ", 2)
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", errInvalidScheme
	}
	if len(parts) != 2 {
		return "", errMissingToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
