package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/internal/store/fakestore"
	"github.com/taskflow/apiserver/types"
)

type failingStore struct{}

func (failingStore) GetByID(context.Context, string) (types.User, error) {
	return types.User{}, errors.New("connection reset")
}

func newGateFixture(t *testing.T) (*Gate, *TokenCodec, *fakestore.UserRepository) {
	t.Helper()
	codec := newTestCodec(t, nil)
	users := fakestore.New().Users()
	return NewGate(codec, users), codec, users
}

func TestGate_Authenticate(t *testing.T) {
	gate, codec, users := newGateFixture(t)
	ctx := context.Background()

	user, err := users.Create(ctx, types.User{Name: "Ann", Email: "ann@example.com", Role: types.RoleUser})
	require.NoError(t, err)
	token, err := codec.Issue(user)
	require.NoError(t, err)

	got, err := gate.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, types.RoleUser, got.Role)

	got, err = gate.Authenticate(ctx, "bearer   "+token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestGate_Rejections(t *testing.T) {
	gate, codec, users := newGateFixture(t)
	ctx := context.Background()

	ghost, err := codec.Issue(types.User{ID: "ghost", Role: types.RoleUser})
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"no header", "", MsgAuthRequired},
		{"scheme only", "Bearer", MsgAuthRequired},
		{"blank token", "Bearer    ", MsgAuthRequired},
		{"wrong scheme", "Basic dXNlcjpwYXNz", MsgInvalidToken},
		{"garbage token", "Bearer abc.def.ghi", MsgInvalidToken},
		{"unknown user", "Bearer " + ghost, MsgUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.Authenticate(ctx, tt.header)
			assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
			assert.Equal(t, tt.message, apperr.MessageOf(err))
		})
	}

	t.Run("inactive account", func(t *testing.T) {
		user, err := users.Create(ctx, types.User{Name: "Bob", Email: "bob@example.com", Role: types.RoleUser})
		require.NoError(t, err)
		token, err := codec.Issue(user)
		require.NoError(t, err)

		_, err = users.UpdateStatus(ctx, user.ID, types.StatusInactive)
		require.NoError(t, err)

		_, err = gate.Authenticate(ctx, "Bearer "+token)
		assert.Equal(t, MsgAccountInactive, apperr.MessageOf(err))
	})

	t.Run("expired token", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		old := newTestCodec(t, func() time.Time { return past })
		user, err := users.Create(ctx, types.User{Name: "Cy", Email: "cy@example.com", Role: types.RoleUser})
		require.NoError(t, err)
		token, err := old.Issue(user)
		require.NoError(t, err)

		_, err = gate.Authenticate(ctx, "Bearer "+token)
		assert.Equal(t, MsgInvalidToken, apperr.MessageOf(err))
	})
}

func TestGate_StaleSessionAfterDeactivation(t *testing.T) {
	gate, codec, users := newGateFixture(t)
	ctx := context.Background()

	user, err := users.Create(ctx, types.User{Name: "Dee", Email: "dee@example.com", Role: types.RoleUser})
	require.NoError(t, err)
	stale, err := codec.Issue(user)
	require.NoError(t, err)

	_, err = users.UpdateStatus(ctx, user.ID, types.StatusInactive)
	require.NoError(t, err)
	reactivated, err := users.UpdateStatus(ctx, user.ID, types.StatusActive)
	require.NoError(t, err)
	require.Equal(t, 1, reactivated.TokenVersion)

	_, err = gate.Authenticate(ctx, "Bearer "+stale)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	assert.Equal(t, MsgSessionExpired, apperr.MessageOf(err))

	fresh, err := codec.Issue(reactivated)
	require.NoError(t, err)
	got, err := gate.Authenticate(ctx, "Bearer "+fresh)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestGate_StoreFailureIsInternal(t *testing.T) {
	codec := newTestCodec(t, nil)
	gate := NewGate(codec, failingStore{})

	token, err := codec.Issue(types.User{ID: "u1", Role: types.RoleUser})
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), "Bearer "+token)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}
