package types

import "errors"

// Stable error kinds. Services wrap these with context via fmt.Errorf and %w;
// pkg/response maps them to HTTP status codes with errors.Is.
var (
	// ErrValidation marks malformed input rejected synchronously.
	ErrValidation = errors.New("validation failed")

	// ErrOfferNotFound is returned when an offer hash is unknown to the ledger.
	ErrOfferNotFound = errors.New("offer not found")

	// ErrInsufficientRemaining is returned when a fill would push the filled
	// amount past the offer's collateral. The caller needs new input, not a retry.
	ErrInsufficientRemaining = errors.New("insufficient remaining collateral")

	// ErrOfferExpired is returned when a fill arrives after the offer deadline.
	ErrOfferExpired = errors.New("offer deadline passed")

	// ErrPositionNotFound is returned when a token id has no recorded position.
	ErrPositionNotFound = errors.New("position not found")

	// ErrAuthorizationInvalid is returned when a gasless payment authorization
	// fails verification. The caller must resubmit a corrected authorization.
	ErrAuthorizationInvalid = errors.New("authorization invalid")

	// ErrStateConflict is returned when a settlement action is attempted from
	// the wrong state.
	ErrStateConflict = errors.New("settlement state conflict")

	// ErrUpstreamUnavailable marks a transport failure against the oracle,
	// chain, or exchange. Callers retry with backoff.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
