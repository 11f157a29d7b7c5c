package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	mgr := NewTokenManager("secret-1", time.Hour)

	token, err := mgr.Issue("billing-watcher")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "billing-watcher", claims.ServiceName)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-1", time.Hour).Issue("svc")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-2", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	token, err := NewTokenManager("secret-1", -time.Minute).Issue("svc")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-1", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewTokenManager("secret-1", time.Hour).Validate("not-a-token")
	assert.Error(t, err)
}

func TestAPIKeyRoundTrip(t *testing.T) {
	hash, err := HashAPIKey("super-secret-key")
	require.NoError(t, err)

	assert.True(t, VerifyAPIKey("super-secret-key", hash))
	assert.False(t, VerifyAPIKey("wrong-key", hash))
	assert.False(t, VerifyAPIKey("", hash))
	assert.False(t, VerifyAPIKey("super-secret-key", ""))
}
