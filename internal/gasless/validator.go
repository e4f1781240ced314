package gasless

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/calder-fi/optio-api/internal/types"
)

// VerifyAuthorization checks an EIP-3009 authorization against the amount it
// must cover and the payer it must come from. Checks run in a fixed order and
// the first failure is returned alone, keeping error messages unambiguous.
// On-chain nonce consumption is deliberately not checked here; a locally
// valid authorization stays provisional until the transaction confirms.
func VerifyAuthorization(auth types.Authorization, required *big.Int, expectedPayer string, now time.Time) error {
	if !strings.EqualFold(auth.From, expectedPayer) {
		return fmt.Errorf("%w: payer %s does not match expected %s",
			types.ErrAuthorizationInvalid, auth.From, expectedPayer)
	}

	ts := now.Unix()
	if ts < auth.ValidAfter {
		return fmt.Errorf("%w: not valid until %d", types.ErrAuthorizationInvalid, auth.ValidAfter)
	}
	if ts > auth.ValidBefore {
		return fmt.Errorf("%w: expired at %d", types.ErrAuthorizationInvalid, auth.ValidBefore)
	}

	value, err := types.ParseAmount(auth.Value)
	if err != nil {
		return err
	}
	if value.Cmp(required) < 0 {
		return fmt.Errorf("%w: value %s below required %s",
			types.ErrAuthorizationInvalid, value.String(), required.String())
	}

	return nil
}
