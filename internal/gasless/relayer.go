package gasless

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/calder-fi/optio-api/internal/chain"
	"github.com/calder-fi/optio-api/internal/ledger"
	"github.com/calder-fi/optio-api/internal/oracle"
	"github.com/calder-fi/optio-api/internal/types"
)

const secondsPerDay = 86_400

// TakeResult is returned to the taker after a confirmed gasless take.
type TakeResult struct {
	TxHash      string   `json:"tx_hash"`
	TokenID     string   `json:"token_id"`
	FilledTotal string   `json:"filled_total"`
	GasCost     *GasCost `json:"gas_cost"`
}

// ReconcileResult is the actual cost of a confirmed take, for relayer
// reimbursement accounting. Independent of the originally quoted estimate.
type ReconcileResult struct {
	TxHash            string `json:"tx_hash"`
	GasUsed           uint64 `json:"gas_used"`
	EffectiveGasPrice string `json:"effective_gas_price"`
	ActualCost        string `json:"actual_cost"` // settlement currency, 6 decimals
}

// VaultStatus reports whether the relayer wallet holds enough native balance
// to front another take.
type VaultStatus struct {
	Balance         string `json:"balance"` // wei
	RequiredReserve string `json:"required_reserve"`
	CanProcess      bool   `json:"can_process"`
}

// Relayer drives the gasless take flow: reserve capacity, verify both
// payment authorizations, estimate and buffer gas, submit on chain, and
// record the resulting position.
type Relayer struct {
	ledger      *ledger.Database
	chain       chain.Client
	estimator   *Estimator
	oracle      oracle.Source
	nativeAsset common.Address
	reserveWei  *big.Int
}

func NewRelayer(ledgerDB *ledger.Database, chainClient chain.Client, estimator *Estimator, priceSource oracle.Source, nativeAsset common.Address, reserveWei *big.Int) *Relayer {
	return &Relayer{
		ledger:      ledgerDB,
		chain:       chainClient,
		estimator:   estimator,
		oracle:      priceSource,
		nativeAsset: nativeAsset,
		reserveWei:  reserveWei,
	}
}

// VaultStatus returns the relayer wallet's balance against its configured
// reserve.
func (r *Relayer) VaultStatus(ctx context.Context) (*VaultStatus, error) {
	balance, err := r.chain.RelayerBalance(ctx)
	if err != nil {
		return nil, err
	}
	return &VaultStatus{
		Balance:         balance.String(),
		RequiredReserve: r.reserveWei.String(),
		CanProcess:      balance.Cmp(r.reserveWei) >= 0,
	}, nil
}

// Submit executes a gasless take end to end. A failed or reverted chain
// transaction releases the ledger reservation; without that the reserved
// capacity would leak and the offer could never fill completely.
func (r *Relayer) Submit(ctx context.Context, req chain.TakeRequest) (*TakeResult, error) {
	logger := log.With().
		Str("service", "gasless").
		Str("taker", req.Taker).
		Str("fill_amount", req.FillAmount.String()).
		Int64("duration", req.Duration).
		Logger()

	if req.Duration < req.Offer.MinDuration || req.Duration > req.Offer.MaxDuration {
		return nil, fmt.Errorf("%w: duration %d outside offer range [%d, %d]",
			types.ErrValidation, req.Duration, req.Offer.MinDuration, req.Offer.MaxDuration)
	}
	minFill, err := types.ParseAmount(req.Offer.MinFillAmount)
	if err != nil {
		return nil, err
	}
	if req.FillAmount.Cmp(minFill) < 0 {
		return nil, fmt.Errorf("%w: fill %s below offer minimum %s",
			types.ErrValidation, req.FillAmount.String(), minFill.String())
	}

	offerHash, err := r.chain.OfferHash(ctx, req.Offer)
	if err != nil {
		return nil, fmt.Errorf("compute offer hash: %w", err)
	}
	req.Offer.OfferHash = offerHash.Hex()
	logger = logger.With().Str("offer_hash", req.Offer.OfferHash).Logger()

	now := time.Now()
	filledTotal, err := r.ledger.ReserveFill(req.Offer.OfferHash, req.FillAmount, now)
	if err != nil {
		return nil, err
	}

	// Everything after the reservation must release it on failure.
	result, gasCost, err := r.submitReserved(ctx, req, now, logger)
	if err != nil {
		if releaseErr := r.ledger.ReleaseFill(req.Offer.OfferHash, req.FillAmount); releaseErr != nil {
			logger.Error().Err(releaseErr).Msg("failed to release fill reservation")
		}
		return nil, err
	}

	strike, err := r.oracle.Price(ctx, common.HexToAddress(req.Offer.Underlying))
	if err != nil {
		strike = new(big.Int).Set(oracle.FallbackPrice)
	}

	position := &types.ActiveOption{
		TokenID:          result.TokenID.String(),
		OfferHash:        req.Offer.OfferHash,
		Writer:           common.HexToAddress(req.Offer.Writer).Hex(),
		Taker:            common.HexToAddress(req.Taker).Hex(),
		Underlying:       common.HexToAddress(req.Offer.Underlying).Hex(),
		CollateralLocked: req.FillAmount.String(),
		IsCall:           req.Offer.IsCall,
		StrikePrice:      strike.String(),
		StartTime:        now.Unix(),
		ExpiryTime:       now.Unix() + req.Duration*secondsPerDay,
		Settled:          false,
		ConfigHash:       req.Offer.ConfigHash,
	}
	if err := r.ledger.CreatePosition(position); err != nil {
		// The chain transaction is already confirmed; the reservation stands.
		logger.Error().Err(err).Str("token_id", position.TokenID).
			Msg("position record failed after confirmed take")
		return nil, fmt.Errorf("record position: %w", err)
	}

	logger.Info().
		Str("tx_hash", result.TxHash.Hex()).
		Str("token_id", position.TokenID).
		Str("strike_price", position.StrikePrice).
		Msg("gasless take confirmed")

	return &TakeResult{
		TxHash:      result.TxHash.Hex(),
		TokenID:     result.TokenID.String(),
		FilledTotal: filledTotal.String(),
		GasCost:     gasCost,
	}, nil
}

func (r *Relayer) submitReserved(ctx context.Context, req chain.TakeRequest, now time.Time, logger zerolog.Logger) (*chain.TakeResult, *GasCost, error) {
	requiredPremium, err := requiredPremium(req.Offer, req.FillAmount, req.Duration)
	if err != nil {
		return nil, nil, err
	}
	if err := VerifyAuthorization(req.PremiumAuth, requiredPremium, req.Taker, now); err != nil {
		return nil, nil, fmt.Errorf("premium authorization: %w", err)
	}

	gasCost := r.estimator.EstimateCost(ctx, DefaultTakeGasLimit)
	if err := VerifyAuthorization(req.GasAuth, gasCost.CostAmount(), req.Taker, now); err != nil {
		return nil, nil, fmt.Errorf("gas authorization: %w", err)
	}

	// The relayer fronts the gas; refuse the take when the wallet is below
	// its reserve rather than fail mid-broadcast.
	balance, err := r.chain.RelayerBalance(ctx)
	if err != nil {
		return nil, nil, err
	}
	if balance.Cmp(r.reserveWei) < 0 {
		return nil, nil, fmt.Errorf("%w: relayer balance %s below reserve %s",
			types.ErrUpstreamUnavailable, balance.String(), r.reserveWei.String())
	}

	gasEstimate, err := r.chain.EstimateTakeGas(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	gasLimit := gasEstimate + gasEstimate/5 // +20% over the simulated estimate

	logger.Debug().
		Uint64("gas_estimate", gasEstimate).
		Uint64("gas_limit", gasLimit).
		Str("quoted_cost", gasCost.Cost).
		Msg("submitting take transaction")

	result, err := r.chain.SubmitTake(ctx, req, gasLimit)
	if err != nil {
		return nil, nil, err
	}
	return result, gasCost, nil
}

// Reconcile computes a confirmed take's actual gas spend in settlement
// currency, unbuffered.
func (r *Relayer) Reconcile(ctx context.Context, txHash string) (*ReconcileResult, error) {
	receipt, err := r.chain.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}

	nativePrice, err := r.oracle.Price(ctx, r.nativeAsset)
	if err != nil {
		nativePrice = new(big.Int).Set(oracle.FallbackPrice)
	}

	actual := convertGasCost(receipt.EffectiveGasPrice, receipt.GasUsed, nativePrice, decimal.NewFromInt(1))

	return &ReconcileResult{
		TxHash:            txHash,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice.String(),
		ActualCost:        actual.String(),
	}, nil
}

// requiredPremium computes the duration-weighted premium a taker owes:
// premiumPerDay × duration × fillAmount / collateralAmount. The orderbook's
// per-unit quote intentionally omits the duration factor; the cost of an
// actual take does not.
func requiredPremium(offer types.Offer, fillAmount *big.Int, duration int64) (*big.Int, error) {
	premiumPerDay, err := types.ParseAmount(offer.PremiumPerDay)
	if err != nil {
		return nil, err
	}
	collateral, err := types.ParseAmount(offer.CollateralAmount)
	if err != nil {
		return nil, err
	}
	if collateral.Sign() == 0 {
		return nil, fmt.Errorf("%w: offer has zero collateral", types.ErrValidation)
	}

	premium := new(big.Int).Mul(premiumPerDay, big.NewInt(duration))
	premium.Mul(premium, fillAmount)
	premium.Quo(premium, collateral)
	return premium, nil
}
