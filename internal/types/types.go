package types

import (
	"time"

	"gorm.io/gorm"
)

// Offer is a writer-signed set of option terms. It is identified by its
// deterministic offer hash, computed by the protocol contract from every term
// field. Amount fields are base-10 decimal strings of integer token units.
type Offer struct {
	gorm.Model    `json:"-"`
	OfferHash     string    `gorm:"uniqueIndex" json:"offer_hash"`
	Writer        string    `json:"writer"`
	Underlying    string    `json:"underlying"`
	CollateralAmount string `json:"collateral_amount"`
	Stablecoin    string    `json:"stablecoin"`
	IsCall        bool      `json:"is_call"`
	PremiumPerDay string    `json:"premium_per_day"`
	MinDuration   int64     `json:"min_duration"` // days
	MaxDuration   int64     `json:"max_duration"` // days
	MinFillAmount string    `json:"min_fill_amount"`
	Deadline      int64     `json:"deadline"` // unix seconds
	ConfigHash    string    `json:"config_hash"`
	Signature     string    `json:"signature"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FilledAmount tracks how much of an offer's collateral has been taken.
// The amount is monotonically non-decreasing except for the explicit
// release path after a failed chain submission.
type FilledAmount struct {
	gorm.Model `json:"-"`
	OfferHash  string `gorm:"uniqueIndex" json:"offer_hash"`
	Amount     string `json:"amount"`
}

// ActiveOption is the position minted by a successful fill. Records are
// never deleted; settlement only flips the Settled flag.
type ActiveOption struct {
	gorm.Model       `json:"-"`
	TokenID          string    `gorm:"uniqueIndex" json:"token_id"`
	OfferHash        string    `gorm:"index" json:"offer_hash"`
	Writer           string    `gorm:"index" json:"writer"`
	Taker            string    `gorm:"index" json:"taker"`
	Underlying       string    `json:"underlying"`
	CollateralLocked string    `json:"collateral_locked"`
	IsCall           bool      `json:"is_call"`
	StrikePrice      string    `json:"strike_price"`
	StartTime        int64     `json:"start_time"`
	ExpiryTime       int64     `json:"expiry_time"`
	Settled          bool      `json:"settled"`
	ConfigHash       string    `json:"config_hash"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TokenConfig is an underlying token's protocol configuration, read from the
// contract. Offers reference it indirectly through ConfigHash.
type TokenConfig struct {
	Token           string `json:"token"`
	ConfigHash      string `json:"config_hash"`
	Stablecoin      string `json:"stablecoin"`
	MinUnit         string `json:"min_unit"`
	SwapVenue       string `json:"swap_venue"`
	PoolFee         int64  `json:"pool_fee"`
	PythPriceFeedID string `json:"pyth_price_feed_id"`
	UniswapFallback bool   `json:"uniswap_fallback"`
}

// Authorization is an EIP-3009 transferWithAuthorization payload: a signed,
// time-bounded permission for the relayer to move the payer's funds without
// the payer submitting a transaction. Nonce consumption is enforced on chain,
// not here.
type Authorization struct {
	From        string `json:"from" binding:"required"`
	To          string `json:"to" binding:"required"`
	Value       string `json:"value" binding:"required"`
	ValidAfter  int64  `json:"valid_after"`
	ValidBefore int64  `json:"valid_before" binding:"required"`
	Nonce       string `json:"nonce" binding:"required"`
	V           uint8  `json:"v"`
	R           string `json:"r" binding:"required"`
	S           string `json:"s" binding:"required"`
}
