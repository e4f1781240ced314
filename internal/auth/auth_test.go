package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService("test-secret")
	svc.RegisterAPICredentials("key", "secret")

	token, err := svc.GenerateToken(Credentials{APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), token.Expiration, time.Minute)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "key", claims.ClientID)
	assert.ElementsMatch(t, []string{PermWriteOffers, PermTake, PermSettle}, claims.Permissions)
}

func TestGenerateTokenInvalidCredentials(t *testing.T) {
	svc := NewService("test-secret")
	svc.RegisterAPICredentials("key", "secret")

	_, err := svc.GenerateToken(Credentials{APIKey: "key", APISecret: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.GenerateToken(Credentials{APIKey: "unknown", APISecret: "secret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	issuer := NewService("secret-a")
	issuer.RegisterAPICredentials("key", "secret")
	verifier := NewService("secret-b")

	token, err := issuer.GenerateToken(Credentials{APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token.Token)
	assert.Error(t, err)
}
