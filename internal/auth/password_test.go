package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("user123")
	require.NoError(t, err)
	assert.NotEqual(t, "user123", hashed)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, passwordCost, cost)

	again, err := HashPassword("user123")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, again, "hashes are salted")
}

func TestVerifyPassword(t *testing.T) {
	hashed, err := HashPassword("user123")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("user123", hashed))
	assert.False(t, VerifyPassword("user124", hashed))
	assert.False(t, VerifyPassword("", hashed))
	assert.False(t, VerifyPassword("user123", ""))
	assert.False(t, VerifyPassword("user123", "not-a-hash"))
}
