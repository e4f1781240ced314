package settlement

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/calder-fi/optio-api/internal/exchange"
)

// Settlement lifecycle. Forward path INITIATED → APPROVED → SUBMITTED →
// COMPLETED; EXPIRED and CANCELLED are venue outcomes, REJECTED an operator
// action. Terminal states never transition again.
const (
	StatusInitiated = "INITIATED"
	StatusApproved  = "APPROVED"
	StatusSubmitted = "SUBMITTED"
	StatusCompleted = "COMPLETED"
	StatusExpired   = "EXPIRED"
	StatusCancelled = "CANCELLED"
	StatusRejected  = "REJECTED"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusExpired, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Settlement tracks one position's path through the external venue. Exactly
// one Settlement exists per position; the conditions hash binds what the
// taker approved to what gets submitted.
type Settlement struct {
	gorm.Model         `json:"-"`
	SettlementID       string    `gorm:"uniqueIndex" json:"settlement_id"`
	TokenID            string    `gorm:"uniqueIndex" json:"token_id"`
	OrderJSON          string    `json:"-"`
	OrderHash          string    `json:"order_hash"`
	MinBuyAmount       string    `json:"min_buy_amount"`
	ValidTo            int64     `json:"valid_to"`
	ConditionsHash     string    `json:"conditions_hash"`
	TakerSignature     string    `json:"taker_signature,omitempty"`
	CompositeSignature string    `json:"composite_signature,omitempty"`
	ExternalOrderUID   string    `json:"external_order_uid,omitempty"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Order deserializes the stored exchange order payload.
func (s *Settlement) Order() (exchange.Order, error) {
	var order exchange.Order
	err := json.Unmarshal([]byte(s.OrderJSON), &order)
	return order, err
}
