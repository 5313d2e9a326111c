package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("u1", "alice", testSecret, 1)
	require.NoError(t, err)

	claims, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "access", claims.TokenType)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	refresh, err := GenerateRefreshToken("u1", "alice", testSecret, 7)
	require.NoError(t, err)

	_, err = ValidateToken(refresh, testSecret)
	assert.Error(t, err)

	claims, err := ValidateRefreshToken(refresh, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.TokenType)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := GenerateToken("u1", "alice", testSecret, 1)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}
