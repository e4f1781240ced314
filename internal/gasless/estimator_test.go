package gasless

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-fi/optio-api/internal/chain"
	"github.com/calder-fi/optio-api/internal/oracle"
	"github.com/calder-fi/optio-api/internal/types"
)

var testNativeAsset = common.HexToAddress("0x4200000000000000000000000000000000000006")

// fakeChain lets each test script the chain client's behavior.
type fakeChain struct {
	gasPrice    *big.Int
	gasPriceErr error
	estimate    uint64
	estimateErr error
	takeResult  *chain.TakeResult
	takeErr     error
	receipt     *chain.Receipt
	receiptErr  error
	balance     *big.Int // relayer wallet; nil means comfortably funded
	balanceErr  error

	submittedGasLimit uint64
}

func (f *fakeChain) OfferHash(_ context.Context, offer types.Offer) (common.Hash, error) {
	return common.HexToHash("0xdeadbeef"), nil
}

func (f *fakeChain) EstimateTakeGas(context.Context, chain.TakeRequest) (uint64, error) {
	return f.estimate, f.estimateErr
}

func (f *fakeChain) SubmitTake(_ context.Context, _ chain.TakeRequest, gasLimit uint64) (*chain.TakeResult, error) {
	f.submittedGasLimit = gasLimit
	return f.takeResult, f.takeErr
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, f.gasPriceErr
}

func (f *fakeChain) RelayerBalance(context.Context) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if f.balance == nil {
		return big.NewInt(1_000_000_000_000_000_000), nil // 1 native unit
	}
	return f.balance, nil
}

func (f *fakeChain) TokenConfig(context.Context, common.Address) (*types.TokenConfig, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChain) TransactionReceipt(context.Context, common.Hash) (*chain.Receipt, error) {
	return f.receipt, f.receiptErr
}

func (f *fakeChain) ActiveOption(context.Context, *big.Int) (*types.ActiveOption, error) {
	return nil, errors.New("not implemented")
}

func TestEstimateCost(t *testing.T) {
	fc := &fakeChain{gasPrice: big.NewInt(1_000_000_000)} // 1 gwei
	price := oracle.Static{Value: big.NewInt(250_000_000_000)} // $2500
	est := NewEstimator(fc, price, testNativeAsset)

	quote := est.EstimateCost(context.Background(), DefaultTakeGasLimit)

	// 500k gas * 1 gwei = 0.0005 ETH; * $2500 = $1.25; * 1.2 buffer = $1.50
	assert.Equal(t, "1500000", quote.Cost)
	assert.Equal(t, uint64(DefaultTakeGasLimit), quote.GasUnits)
	assert.Equal(t, "1000000000", quote.GasPriceWei)
	assert.False(t, quote.Fallback)

	require.NotNil(t, quote.CostAmount())
	assert.Equal(t, int64(1_500_000), quote.CostAmount().Int64())
}

func TestEstimateCostFallback(t *testing.T) {
	fc := &fakeChain{gasPriceErr: errors.New("rpc down")}
	est := NewEstimator(fc, oracle.Static{Value: big.NewInt(1)}, testNativeAsset)

	quote := est.EstimateCost(context.Background(), DefaultTakeGasLimit)

	assert.True(t, quote.Fallback)
	assert.Equal(t, "50000", quote.Cost) // flat $0.05
	assert.Equal(t, "1000000000", quote.GasPriceWei)
	assert.Equal(t, oracle.FallbackPrice.String(), quote.NativePrice)
}

func TestConvertGasCostRoundsUp(t *testing.T) {
	// 1 wei of gas at $2500 is far below one settlement unit; ceiling keeps
	// the quote from rounding to zero.
	cost := convertGasCost(big.NewInt(1), 1, big.NewInt(250_000_000_000), decimal.NewFromInt(1))
	assert.Equal(t, "1", cost.String())
}

func TestConvertGasCostUnbuffered(t *testing.T) {
	// 290k gas * 1 gwei = 0.00029 ETH * $2500 = $0.725
	cost := convertGasCost(big.NewInt(1_000_000_000), 290_000, big.NewInt(250_000_000_000), decimal.NewFromInt(1))
	assert.Equal(t, "725000", cost.String())
}
