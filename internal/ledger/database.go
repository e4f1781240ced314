package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/calder-fi/optio-api/internal/types"
)

// keyedMutex hands out one mutex per offer hash so fill mutations on a single
// offer are serialized while unrelated offers proceed concurrently.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

type Database struct {
	db        *gorm.DB
	fillLocks keyedMutex
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// UpsertOffer stores an offer keyed by its hash. Re-submitting the same offer
// overwrites the stored terms, so the operation is idempotent.
func (d *Database) UpsertOffer(offer *types.Offer) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var existing types.Offer
		err := tx.Where("offer_hash = ?", offer.OfferHash).First(&existing).Error
		if err == nil {
			offer.ID = existing.ID
			offer.CreatedAt = existing.CreatedAt
			return tx.Save(offer).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(offer).Error
	})
}

func (d *Database) GetOffer(offerHash string) (*types.Offer, error) {
	var offer types.Offer
	if err := d.db.Where("offer_hash = ?", offerHash).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

func (d *Database) ListOffers() ([]types.Offer, error) {
	var offers []types.Offer
	if err := d.db.Order("id ASC").Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

// DeleteOffer removes an offer. Deleting an unknown hash is a no-op: the
// offer is treated as already cancelled.
func (d *Database) DeleteOffer(offerHash string) error {
	return d.db.Where("offer_hash = ?", offerHash).Delete(&types.Offer{}).Error
}

// FilledAmount returns the amount already taken from an offer, zero if none.
func (d *Database) FilledAmount(offerHash string) (*big.Int, error) {
	var fill types.FilledAmount
	if err := d.db.Where("offer_hash = ?", offerHash).First(&fill).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return new(big.Int), nil
		}
		return nil, err
	}
	return types.ParseAmountOrZero(fill.Amount), nil
}

// ReserveFill atomically checks and increments an offer's filled amount.
// The deadline and capacity checks plus the write happen under the offer's
// lock inside one transaction; splitting them would let concurrent takers
// oversell the collateral. Returns the new filled total.
func (d *Database) ReserveFill(offerHash string, amount *big.Int, now time.Time) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: fill amount must be positive", types.ErrValidation)
	}

	unlock := d.fillLocks.lock(offerHash)
	defer unlock()

	var newTotal *big.Int
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var offer types.Offer
		if err := tx.Where("offer_hash = ?", offerHash).First(&offer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", types.ErrOfferNotFound, offerHash)
			}
			return err
		}

		// An offer is takeable through its deadline instant inclusive.
		if offer.Deadline < now.Unix() {
			return fmt.Errorf("%w: deadline %d", types.ErrOfferExpired, offer.Deadline)
		}

		collateral := types.ParseAmountOrZero(offer.CollateralAmount)

		var fill types.FilledAmount
		filled := new(big.Int)
		err := tx.Where("offer_hash = ?", offerHash).First(&fill).Error
		switch {
		case err == nil:
			filled = types.ParseAmountOrZero(fill.Amount)
		case errors.Is(err, gorm.ErrRecordNotFound):
			fill = types.FilledAmount{OfferHash: offerHash, Amount: "0"}
		default:
			return err
		}

		total := new(big.Int).Add(filled, amount)
		if total.Cmp(collateral) > 0 {
			remaining := new(big.Int).Sub(collateral, filled)
			return fmt.Errorf("%w: remaining %s, requested %s",
				types.ErrInsufficientRemaining, remaining.String(), amount.String())
		}

		fill.Amount = total.String()
		if err := tx.Save(&fill).Error; err != nil {
			return err
		}
		newTotal = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newTotal, nil
}

// ReleaseFill returns previously reserved capacity after a failed chain
// submission. The filled amount never drops below zero.
func (d *Database) ReleaseFill(offerHash string, amount *big.Int) error {
	unlock := d.fillLocks.lock(offerHash)
	defer unlock()

	return d.db.Transaction(func(tx *gorm.DB) error {
		var fill types.FilledAmount
		if err := tx.Where("offer_hash = ?", offerHash).First(&fill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		filled := types.ParseAmountOrZero(fill.Amount)
		filled.Sub(filled, amount)
		if filled.Sign() < 0 {
			filled.SetInt64(0)
		}
		fill.Amount = filled.String()
		return tx.Save(&fill).Error
	})
}

func (d *Database) CreatePosition(position *types.ActiveOption) error {
	return d.db.Create(position).Error
}

func (d *Database) GetPosition(tokenID string) (*types.ActiveOption, error) {
	var position types.ActiveOption
	if err := d.db.Where("token_id = ?", tokenID).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// SettlePosition flips the settled flag. Settling an already-settled
// position is a no-op; unknown token ids are an error.
func (d *Database) SettlePosition(tokenID string) error {
	result := d.db.Model(&types.ActiveOption{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"settled":    true,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", types.ErrPositionNotFound, tokenID)
	}
	return nil
}

func (d *Database) PositionsByTaker(taker string) ([]types.ActiveOption, error) {
	var positions []types.ActiveOption
	if err := d.db.Where("taker = ? AND settled = ?", taker, false).
		Order("id ASC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (d *Database) PositionsByWriter(writer string) ([]types.ActiveOption, error) {
	var positions []types.ActiveOption
	if err := d.db.Where("writer = ? AND settled = ?", writer, false).
		Order("id ASC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (d *Database) PositionsByOffer(offerHash string) ([]types.ActiveOption, error) {
	var positions []types.ActiveOption
	if err := d.db.Where("offer_hash = ? AND settled = ?", offerHash, false).
		Order("id ASC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}
