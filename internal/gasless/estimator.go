package gasless

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/calder-fi/optio-api/internal/chain"
	"github.com/calder-fi/optio-api/internal/oracle"
)

// DefaultTakeGasLimit is the simulation baseline for a gasless take.
const DefaultTakeGasLimit = 500_000

const (
	nativeDecimals     = 18
	settlementDecimals = 6
)

// gasBuffer pads the quoted cost 20% against fee volatility between quote
// and submission.
var gasBuffer = decimal.NewFromFloat(1.2)

// Fallback quote used when fee data cannot be fetched: 1 gwei and a flat
// $0.05 in settlement units. A missing estimate only affects the quoted
// price; it must never block an otherwise-valid take.
var (
	fallbackGasPrice = big.NewInt(1_000_000_000)
	fallbackCost     = big.NewInt(50_000)
)

// GasCost is a gas quote denominated in the settlement currency.
type GasCost struct {
	GasUnits    uint64 `json:"gas_units"`
	GasPriceWei string `json:"gas_price_wei"`
	Cost        string `json:"cost"` // settlement currency, 6 decimals
	NativePrice string `json:"native_price"`
	Fallback    bool   `json:"fallback"`
}

// CostAmount returns the quoted cost as a big.Int.
func (g *GasCost) CostAmount() *big.Int {
	n, _ := new(big.Int).SetString(g.Cost, 10)
	return n
}

// Estimator converts network fee data into settlement-currency gas quotes.
type Estimator struct {
	chain       chain.Client
	oracle      oracle.Source
	nativeAsset common.Address
}

func NewEstimator(chainClient chain.Client, priceSource oracle.Source, nativeAsset common.Address) *Estimator {
	return &Estimator{
		chain:       chainClient,
		oracle:      priceSource,
		nativeAsset: nativeAsset,
	}
}

// EstimateCost quotes the settlement-currency cost of gasLimit units at
// current network fees, with the 20% buffer applied. On any upstream failure
// it returns the documented fallback quote instead of an error.
func (e *Estimator) EstimateCost(ctx context.Context, gasLimit uint64) *GasCost {
	gasPrice, err := e.chain.SuggestGasPrice(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("fee data unavailable, quoting fallback gas cost")
		return &GasCost{
			GasUnits:    gasLimit,
			GasPriceWei: fallbackGasPrice.String(),
			Cost:        fallbackCost.String(),
			NativePrice: oracle.FallbackPrice.String(),
			Fallback:    true,
		}
	}

	nativePrice, err := e.oracle.Price(ctx, e.nativeAsset)
	if err != nil {
		// Oracle sources degrade internally; an error here means no
		// fallback is configured either.
		nativePrice = new(big.Int).Set(oracle.FallbackPrice)
	}

	cost := convertGasCost(gasPrice, gasLimit, nativePrice, gasBuffer)

	return &GasCost{
		GasUnits:    gasLimit,
		GasPriceWei: gasPrice.String(),
		Cost:        cost.String(),
		NativePrice: nativePrice.String(),
		Fallback:    false,
	}
}

// convertGasCost turns gasPrice×gasLimit wei into settlement-currency fixed
// point via the native asset's USD price, applying the given buffer. Rounds
// up so the quote always covers the computed cost.
func convertGasCost(gasPriceWei *big.Int, gasLimit uint64, nativePrice *big.Int, buffer decimal.Decimal) *big.Int {
	costWei := new(big.Int).Mul(gasPriceWei, new(big.Int).SetUint64(gasLimit))

	cost := decimal.NewFromBigInt(costWei, -nativeDecimals).
		Mul(decimal.NewFromBigInt(nativePrice, -oracle.PriceDecimals)).
		Mul(buffer).
		Shift(settlementDecimals).
		Ceil()

	return cost.BigInt()
}
