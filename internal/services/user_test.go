package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/mq"
	"github.com/taskflow/apiserver/types"
)

func TestUserService_Register(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.users.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, res.User.Role)
	assert.Equal(t, types.StatusActive, res.User.Status)
	assert.Equal(t, 0, res.User.TokenVersion)
	assert.NotEqual(t, "secret", res.User.PasswordHash)

	claims, err := f.codec.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID())
	assert.Equal(t, 0, claims.TokenVersion)

	assert.Contains(t, f.events.seen(), mq.ChannelIdentity+"/"+mq.EventUserRegistered)
}

func TestUserService_RegisterValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.users.Register(ctx, RegisterInput{Email: "a@example.com", Password: "x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.users.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = f.users.Register(ctx, RegisterInput{Name: "B", Email: "a@example.com", Password: "y"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, MsgUserExists, apperr.MessageOf(err))
}

func TestUserService_Login(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := f.provision(t, "bob", types.RoleUser)

	res, err := f.users.Login(ctx, user.Email, "bob-password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)

	_, err = f.users.Login(ctx, user.Email, "wrong")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	assert.Equal(t, MsgInvalidCredentials, apperr.MessageOf(err))

	_, err = f.users.Login(ctx, "nobody@example.com", "bob-password")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	assert.Equal(t, MsgInvalidCredentials, apperr.MessageOf(err))

	_, err = f.users.Login(ctx, "", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUserService_LoginInactive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	admin := f.provision(t, "root", types.RoleAdmin)
	user := f.provision(t, "carol", types.RoleUser)

	_, err := f.users.UpdateStatus(ctx, admin, user.ID, types.StatusInactive)
	require.NoError(t, err)

	_, err = f.users.Login(ctx, user.Email, "carol-password")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	assert.Equal(t, auth.MsgAccountInactive, apperr.MessageOf(err))
}

func TestUserService_UpdateStatusBumpsVersionOnDeactivation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	admin := f.provision(t, "root", types.RoleAdmin)
	user := f.provision(t, "dave", types.RoleUser)

	steps := []struct {
		status  types.Status
		version int
	}{
		{types.StatusInactive, 1},
		{types.StatusInactive, 1},
		{types.StatusActive, 1},
		{types.StatusActive, 1},
		{types.StatusInactive, 2},
	}
	for _, step := range steps {
		updated, err := f.users.UpdateStatus(ctx, admin, user.ID, step.status)
		require.NoError(t, err)
		assert.Equal(t, step.status, updated.Status)
		assert.Equal(t, step.version, updated.TokenVersion)
	}

	assert.Contains(t, f.events.seen(), mq.ChannelIdentity+"/"+mq.EventUserStatusChanged)
}

func TestUserService_UpdateStatusErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	admin := f.provision(t, "root", types.RoleAdmin)

	_, err := f.users.UpdateStatus(ctx, admin, admin.ID, types.Status("banned"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.users.UpdateStatus(ctx, admin, "missing", types.StatusInactive)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, MsgUserNotFound, apperr.MessageOf(err))
}

func TestUserService_ReactivationNeedsFreshLogin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	admin := f.provision(t, "root", types.RoleAdmin)
	user := f.provision(t, "erin", types.RoleUser)
	gate := auth.NewGate(f.codec, f.store.Users())

	old, err := f.users.Login(ctx, user.Email, "erin-password")
	require.NoError(t, err)

	_, err = f.users.UpdateStatus(ctx, admin, user.ID, types.StatusInactive)
	require.NoError(t, err)
	_, err = f.users.UpdateStatus(ctx, admin, user.ID, types.StatusActive)
	require.NoError(t, err)

	_, err = gate.Authenticate(ctx, "Bearer "+old.Token)
	assert.Equal(t, auth.MsgSessionExpired, apperr.MessageOf(err))

	fresh, err := f.users.Login(ctx, user.Email, "erin-password")
	require.NoError(t, err)
	identity, err := gate.Authenticate(ctx, "Bearer "+fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.ID)
	assert.Equal(t, 1, identity.TokenVersion)
}

func TestUserService_ProvisionRejectsUnknownRole(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.users.Provision(context.Background(), RegisterInput{Name: "x", Email: "x@example.com", Password: "x"}, types.Role("owner"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
