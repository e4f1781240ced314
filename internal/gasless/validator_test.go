package gasless

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/calder-fi/optio-api/internal/types"
)

const payer = "0x2222222222222222222222222222222222222222"

func validAuth(now time.Time) types.Authorization {
	return types.Authorization{
		From:        payer,
		To:          "0x3333333333333333333333333333333333333333",
		Value:       "1000000",
		ValidAfter:  0,
		ValidBefore: now.Add(time.Hour).Unix(),
		Nonce:       "0x01",
		V:           27,
		R:           "0xr",
		S:           "0xs",
	}
}

func TestVerifyAuthorization(t *testing.T) {
	now := time.Now()

	assert.NoError(t, VerifyAuthorization(validAuth(now), big.NewInt(1_000_000), payer, now))

	// Case-insensitive payer comparison
	auth := validAuth(now)
	auth.From = "0x2222222222222222222222222222222222222222"
	assert.NoError(t, VerifyAuthorization(auth, big.NewInt(1), "0x2222222222222222222222222222222222222222", now))
}

func TestVerifyAuthorizationWrongPayer(t *testing.T) {
	now := time.Now()
	auth := validAuth(now)
	auth.From = "0x9999999999999999999999999999999999999999"

	err := VerifyAuthorization(auth, big.NewInt(1), payer, now)
	assert.ErrorIs(t, err, types.ErrAuthorizationInvalid)
	assert.Contains(t, err.Error(), "payer")
}

func TestVerifyAuthorizationNotYetValid(t *testing.T) {
	now := time.Now()
	auth := validAuth(now)
	auth.ValidAfter = now.Add(time.Minute).Unix()

	err := VerifyAuthorization(auth, big.NewInt(1), payer, now)
	assert.ErrorIs(t, err, types.ErrAuthorizationInvalid)
	assert.Contains(t, err.Error(), "not valid until")
}

func TestVerifyAuthorizationExpired(t *testing.T) {
	now := time.Now()
	auth := validAuth(now)
	auth.ValidBefore = now.Unix() - 1

	err := VerifyAuthorization(auth, big.NewInt(1), payer, now)
	assert.ErrorIs(t, err, types.ErrAuthorizationInvalid)
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifyAuthorizationBoundaryTimestamps(t *testing.T) {
	now := time.Now()

	// validAfter == now and validBefore == now are both inside the window
	auth := validAuth(now)
	auth.ValidAfter = now.Unix()
	auth.ValidBefore = now.Unix()
	assert.NoError(t, VerifyAuthorization(auth, big.NewInt(1), payer, now))
}

func TestVerifyAuthorizationInsufficientValue(t *testing.T) {
	now := time.Now()
	auth := validAuth(now)
	auth.Value = "999999"

	err := VerifyAuthorization(auth, big.NewInt(1_000_000), payer, now)
	assert.ErrorIs(t, err, types.ErrAuthorizationInvalid)
	assert.Contains(t, err.Error(), "below required")

	// Exact cover passes
	auth.Value = "1000000"
	assert.NoError(t, VerifyAuthorization(auth, big.NewInt(1_000_000), payer, now))
}

// The first failing check in the fixed order wins, even when several apply.
func TestVerifyAuthorizationOrderedChecks(t *testing.T) {
	now := time.Now()
	auth := validAuth(now)
	auth.From = "0x9999999999999999999999999999999999999999"
	auth.ValidBefore = now.Unix() - 1
	auth.Value = "0"

	err := VerifyAuthorization(auth, big.NewInt(1_000_000), payer, now)
	assert.ErrorIs(t, err, types.ErrAuthorizationInvalid)
	assert.Contains(t, err.Error(), "payer")
}

func TestVerifyAuthorizationMalformedValue(t *testing.T) {
	now := time.Now()
	auth := validAuth(now)
	auth.Value = "not-a-number"

	err := VerifyAuthorization(auth, big.NewInt(1), payer, now)
	assert.ErrorIs(t, err, types.ErrValidation)
}
