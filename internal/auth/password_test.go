package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsVerify(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	creds := Credentials{Username: "admin", PasswordHash: hash}

	assert.NoError(t, creds.Verify("admin", "hunter2"))
	assert.ErrorIs(t, creds.Verify("admin", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, creds.Verify("root", "hunter2"), ErrInvalidCredentials)
	assert.ErrorIs(t, Credentials{Username: "admin"}.Verify("admin", ""), ErrInvalidCredentials)

	_, err = HashPassword("  ")
	assert.Error(t, err)
}
