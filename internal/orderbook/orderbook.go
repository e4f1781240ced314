package orderbook

import (
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"github.com/calder-fi/optio-api/internal/types"
)

// Entry is a tradeable orderbook row derived from an offer and its fill
// state. TotalPremium is a per-unit quote: premiumPerDay scaled by the
// remaining share of the offer, deliberately NOT multiplied by a duration
// (the taker picks the duration; the book ranks price per unit of capacity).
type Entry struct {
	types.Offer
	FilledAmount    string `json:"filled_amount"`
	RemainingAmount string `json:"remaining_amount"`
	TotalPremium    string `json:"total_premium"`
}

// Filter narrows a Query. Nil fields are ignored.
type Filter struct {
	IsCall      *bool
	MinDuration *int64
	MaxDuration *int64
	MinSize     *big.Int
}

// Service derives the orderbook from the ledger tables. It is a pure
// projection: read-only scans, no locks, snapshot-consistent to within one
// concurrent fill.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Query returns tradeable entries for an underlying, sorted ascending by
// total premium with insertion order breaking ties. Exhausted and expired
// offers are excluded rather than flagged so stale liquidity is never served.
func (s *Service) Query(underlying string, filter Filter, now time.Time) ([]Entry, error) {
	q := s.db.Where("underlying = ?", common.HexToAddress(underlying).Hex())
	if filter.IsCall != nil {
		q = q.Where("is_call = ?", *filter.IsCall)
	}

	var offers []types.Offer
	if err := q.Order("id ASC").Find(&offers).Error; err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(offers))
	for _, offer := range offers {
		if offer.Deadline <= now.Unix() {
			continue
		}
		// Duration ranges must intersect the requested window.
		if filter.MinDuration != nil && offer.MaxDuration < *filter.MinDuration {
			continue
		}
		if filter.MaxDuration != nil && offer.MinDuration > *filter.MaxDuration {
			continue
		}

		filled, err := s.filledAmount(offer.OfferHash)
		if err != nil {
			return nil, err
		}

		collateral := types.ParseAmountOrZero(offer.CollateralAmount)
		remaining := new(big.Int).Sub(collateral, filled)
		if remaining.Sign() <= 0 {
			continue
		}
		if filter.MinSize != nil && remaining.Cmp(filter.MinSize) < 0 {
			continue
		}

		premium := types.ParseAmountOrZero(offer.PremiumPerDay)
		totalPremium := new(big.Int).Mul(premium, remaining)
		if collateral.Sign() > 0 {
			totalPremium.Quo(totalPremium, collateral)
		}

		entries = append(entries, Entry{
			Offer:           offer,
			FilledAmount:    filled.String(),
			RemainingAmount: remaining.String(),
			TotalPremium:    totalPremium.String(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a := types.ParseAmountOrZero(entries[i].TotalPremium)
		b := types.ParseAmountOrZero(entries[j].TotalPremium)
		return a.Cmp(b) < 0
	})

	return entries, nil
}

func (s *Service) filledAmount(offerHash string) (*big.Int, error) {
	var fill types.FilledAmount
	if err := s.db.Where("offer_hash = ?", offerHash).First(&fill).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return new(big.Int), nil
		}
		return nil, err
	}
	return types.ParseAmountOrZero(fill.Amount), nil
}
