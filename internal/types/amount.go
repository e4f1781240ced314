package types

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseAmount parses a base-10 decimal-string integer amount. All external
// surfaces carry amounts this way; parse once at the boundary and work with
// big.Int internally.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrValidation)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: amount %q is not a base-10 integer", ErrValidation, s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount %q is negative", ErrValidation, s)
	}
	return n, nil
}

// ParseAmountOrZero reads a stored amount column, treating an absent value as
// zero. Stored amounts have already passed boundary validation.
func ParseAmountOrZero(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}
