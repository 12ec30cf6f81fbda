package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewJWTManager(t *testing.T) {
	_, err := NewJWTManager("too-short", 15000)
	require.EqualError(t, err, "secret is required to have at least 12 characters")

	_, err = NewJWTManager("long-enough-secret", 4999)
	require.EqualError(t, err, "expiration milliseconds is required to be at least 5000")

	manager, err := NewJWTManager("long-enough-secret", 5000)
	require.NoError(t, err)
	require.NotNil(t, manager)
}

func Test_JWTManager_GenerateAndParseCallbackToken(t *testing.T) {
	manager, err := NewJWTManager("long-enough-secret", 15000)
	require.NoError(t, err)

	token, err := manager.GenerateCallbackToken("tx-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ParseCallbackTokenClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "tx-123", claims.ID)
	assert.Equal(t, "anchor-deposits-processor", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(15*time.Second), claims.ExpiresAt.Time, 5*time.Second)
}

func Test_JWTManager_ParseCallbackTokenClaims_rejectsForeignTokens(t *testing.T) {
	manager, err := NewJWTManager("long-enough-secret", 15000)
	require.NoError(t, err)
	otherManager, err := NewJWTManager("another-long-secret", 15000)
	require.NoError(t, err)

	token, err := otherManager.GenerateCallbackToken("tx-123")
	require.NoError(t, err)

	_, err = manager.ParseCallbackTokenClaims(token)
	require.ErrorContains(t, err, "parsing callback token")
}
