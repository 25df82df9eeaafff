package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskflow/apiserver/types"
)

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin(types.User{ID: "a", Role: types.RoleAdmin}))
	assert.False(t, IsAdmin(types.User{ID: "u", Role: types.RoleUser}))
	assert.False(t, IsAdmin(types.User{ID: "x", Role: types.Role("superuser")}))
}

func TestIsOwnerOrAdmin(t *testing.T) {
	admin := types.User{ID: "a", Role: types.RoleAdmin}
	user := types.User{ID: "u", Role: types.RoleUser}

	assert.True(t, IsOwnerOrAdmin(admin, "someone-else"))
	assert.True(t, IsOwnerOrAdmin(user, "u"))
	assert.False(t, IsOwnerOrAdmin(user, "v"))
	assert.False(t, IsOwnerOrAdmin(types.User{Role: types.RoleUser}, ""))
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	user := types.User{ID: "u", Role: types.RoleUser}
	got, ok := IdentityFromContext(WithIdentity(context.Background(), user))
	assert.True(t, ok)
	assert.Equal(t, user, got)
}
