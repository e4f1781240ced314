package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/calder-fi/optio-api/internal/chain"
	"github.com/calder-fi/optio-api/internal/types"
)

// Service owns offers, filled amounts and positions. Offer signatures are not
// re-verified here; hash computation and signature checks belong to the
// protocol contract.
type Service struct {
	db    *Database
	chain chain.Client
}

func NewService(gormDB *gorm.DB, chainClient chain.Client) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		chain: chainClient,
	}
}

// GetDB exposes the ledger database to collaborating services (orderbook
// projection, gasless relayer, settlement coordinator).
func (s *Service) GetDB() *Database {
	return s.db
}

// OfferView is an offer annotated with its fill state.
type OfferView struct {
	types.Offer
	FilledAmount    string `json:"filled_amount"`
	RemainingAmount string `json:"remaining_amount"`
}

// AddOffer validates an offer's shape, computes its hash via the protocol
// contract and stores it. Re-adding the same offer is an idempotent upsert.
func (s *Service) AddOffer(ctx context.Context, offer *types.Offer) error {
	if offer.Writer == "" || offer.Signature == "" || offer.Underlying == "" {
		return fmt.Errorf("%w: writer, underlying and signature are required", types.ErrValidation)
	}
	if _, err := types.ParseAmount(offer.CollateralAmount); err != nil {
		return fmt.Errorf("collateral_amount: %w", err)
	}
	if _, err := types.ParseAmount(offer.PremiumPerDay); err != nil {
		return fmt.Errorf("premium_per_day: %w", err)
	}
	if _, err := types.ParseAmount(offer.MinFillAmount); err != nil {
		return fmt.Errorf("min_fill_amount: %w", err)
	}
	if offer.MinDuration <= 0 || offer.MaxDuration < offer.MinDuration {
		return fmt.Errorf("%w: duration range [%d, %d] is invalid",
			types.ErrValidation, offer.MinDuration, offer.MaxDuration)
	}

	offer.Writer = common.HexToAddress(offer.Writer).Hex()
	offer.Underlying = common.HexToAddress(offer.Underlying).Hex()
	offer.Stablecoin = common.HexToAddress(offer.Stablecoin).Hex()

	hash, err := s.chain.OfferHash(ctx, *offer)
	if err != nil {
		return fmt.Errorf("compute offer hash: %w", err)
	}
	offer.OfferHash = hash.Hex()

	if err := s.db.UpsertOffer(offer); err != nil {
		return err
	}

	log.Info().
		Str("offer_hash", offer.OfferHash).
		Str("writer", offer.Writer).
		Str("underlying", offer.Underlying).
		Str("collateral_amount", offer.CollateralAmount).
		Msg("offer stored")
	return nil
}

// CancelOffer tombstones an offer. Cancelling an unknown hash succeeds
// silently; the offer is gone either way.
func (s *Service) CancelOffer(offerHash string) error {
	if err := s.db.DeleteOffer(offerHash); err != nil {
		return err
	}
	log.Info().Str("offer_hash", offerHash).Msg("offer cancelled")
	return nil
}

// GetOffer returns an offer together with its filled and remaining amounts.
func (s *Service) GetOffer(offerHash string) (*OfferView, error) {
	offer, err := s.db.GetOffer(offerHash)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrOfferNotFound, offerHash)
	}

	filled, err := s.db.FilledAmount(offerHash)
	if err != nil {
		return nil, err
	}
	collateral := types.ParseAmountOrZero(offer.CollateralAmount)
	remaining := collateral.Sub(collateral, filled)

	return &OfferView{
		Offer:           *offer,
		FilledAmount:    filled.String(),
		RemainingAmount: remaining.String(),
	}, nil
}

func (s *Service) ListOffers() ([]types.Offer, error) {
	return s.db.ListOffers()
}

// TakerPositions lists a taker's unsettled positions.
func (s *Service) TakerPositions(address string) ([]types.ActiveOption, error) {
	return s.db.PositionsByTaker(common.HexToAddress(address).Hex())
}

// WriterPositions lists the unsettled positions written by an address.
func (s *Service) WriterPositions(address string) ([]types.ActiveOption, error) {
	return s.db.PositionsByWriter(common.HexToAddress(address).Hex())
}

// TokenConfig reads an underlying token's protocol configuration from the
// contract. Nothing is cached; the config is expected to change rarely but
// the contract is authoritative.
func (s *Service) TokenConfig(ctx context.Context, token string) (*types.TokenConfig, error) {
	return s.chain.TokenConfig(ctx, common.HexToAddress(token))
}

// GetOption returns a position by token id, falling back to the contract
// when the local ledger has no record (e.g. fills observed only on chain).
func (s *Service) GetOption(ctx context.Context, tokenID string) (*types.ActiveOption, error) {
	position, err := s.db.GetPosition(tokenID)
	if err != nil {
		return nil, err
	}
	if position != nil {
		return position, nil
	}

	id, err := types.ParseAmount(tokenID)
	if err != nil {
		return nil, err
	}
	option, err := s.chain.ActiveOption(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrPositionNotFound, tokenID)
	}
	return option, nil
}
