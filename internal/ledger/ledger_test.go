package ledger

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-fi/optio-api/internal/chain"
	"github.com/calder-fi/optio-api/internal/types"
)

// stubChain hashes offers deterministically and serves canned on-chain
// reads.
type stubChain struct {
	option      *types.ActiveOption
	tokenConfig *types.TokenConfig
}

func (s *stubChain) OfferHash(_ context.Context, offer types.Offer) (common.Hash, error) {
	return crypto.Keccak256Hash([]byte(offer.Writer + "|" + offer.CollateralAmount + "|" + offer.PremiumPerDay)), nil
}

func (s *stubChain) EstimateTakeGas(context.Context, chain.TakeRequest) (uint64, error) {
	return 300_000, nil
}

func (s *stubChain) SubmitTake(context.Context, chain.TakeRequest, uint64) (*chain.TakeResult, error) {
	return &chain.TakeResult{TokenID: big.NewInt(1)}, nil
}

func (s *stubChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (s *stubChain) TransactionReceipt(context.Context, common.Hash) (*chain.Receipt, error) {
	return &chain.Receipt{GasUsed: 300_000, EffectiveGasPrice: big.NewInt(1_000_000_000)}, nil
}

func (s *stubChain) RelayerBalance(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000_000_000_000), nil
}

func (s *stubChain) TokenConfig(_ context.Context, token common.Address) (*types.TokenConfig, error) {
	if s.tokenConfig != nil && s.tokenConfig.Token == token.Hex() {
		return s.tokenConfig, nil
	}
	return nil, fmt.Errorf("%w: no config for %s", types.ErrUpstreamUnavailable, token.Hex())
}

func (s *stubChain) ActiveOption(_ context.Context, tokenID *big.Int) (*types.ActiveOption, error) {
	if s.option != nil && s.option.TokenID == tokenID.String() {
		return s.option, nil
	}
	return nil, fmt.Errorf("token %s not found", tokenID)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(newTestDB(t), &stubChain{})
}

func validOffer() *types.Offer {
	return testOffer("", "1000", time.Now().Add(time.Hour).Unix())
}

func TestAddOfferComputesHash(t *testing.T) {
	svc := newTestService(t)

	offer := validOffer()
	require.NoError(t, svc.AddOffer(context.Background(), offer))
	assert.NotEmpty(t, offer.OfferHash)

	// Same terms, same hash: re-adding overwrites rather than duplicates
	again := validOffer()
	require.NoError(t, svc.AddOffer(context.Background(), again))
	assert.Equal(t, offer.OfferHash, again.OfferHash)

	offers, err := svc.ListOffers()
	require.NoError(t, err)
	assert.Len(t, offers, 1)
}

func TestAddOfferValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	missing := validOffer()
	missing.Writer = ""
	assert.ErrorIs(t, svc.AddOffer(ctx, missing), types.ErrValidation)

	badAmount := validOffer()
	badAmount.CollateralAmount = "1.5"
	assert.ErrorIs(t, svc.AddOffer(ctx, badAmount), types.ErrValidation)

	negative := validOffer()
	negative.PremiumPerDay = "-10"
	assert.ErrorIs(t, svc.AddOffer(ctx, negative), types.ErrValidation)

	badRange := validOffer()
	badRange.MinDuration = 10
	badRange.MaxDuration = 5
	assert.ErrorIs(t, svc.AddOffer(ctx, badRange), types.ErrValidation)
}

func TestAddOfferNormalizesAddresses(t *testing.T) {
	svc := newTestService(t)

	offer := validOffer()
	offer.Writer = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
	require.NoError(t, svc.AddOffer(context.Background(), offer))

	// Stored in EIP-55 checksum form
	assert.Equal(t, common.HexToAddress("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd").Hex(), offer.Writer)
}

func TestGetOfferView(t *testing.T) {
	svc := newTestService(t)

	offer := validOffer()
	require.NoError(t, svc.AddOffer(context.Background(), offer))

	_, err := svc.GetDB().ReserveFill(offer.OfferHash, big.NewInt(250), time.Now())
	require.NoError(t, err)

	view, err := svc.GetOffer(offer.OfferHash)
	require.NoError(t, err)
	assert.Equal(t, "250", view.FilledAmount)
	assert.Equal(t, "750", view.RemainingAmount)

	_, err = svc.GetOffer("0xunknown")
	assert.ErrorIs(t, err, types.ErrOfferNotFound)
}

func TestCancelOfferSilent(t *testing.T) {
	svc := newTestService(t)

	offer := validOffer()
	require.NoError(t, svc.AddOffer(context.Background(), offer))
	require.NoError(t, svc.CancelOffer(offer.OfferHash))

	_, err := svc.GetOffer(offer.OfferHash)
	assert.ErrorIs(t, err, types.ErrOfferNotFound)

	// Cancelling an unknown hash succeeds
	assert.NoError(t, svc.CancelOffer("0xunknown"))
}

func TestTokenConfig(t *testing.T) {
	weth := common.HexToAddress("0x4200000000000000000000000000000000000006")
	canned := &types.TokenConfig{
		Token:           weth.Hex(),
		ConfigHash:      common.HexToHash("0xc0ffee").Hex(),
		Stablecoin:      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		MinUnit:         "100000000000000000",
		PoolFee:         500,
		PythPriceFeedID: common.HexToHash("0xfeed").Hex(),
	}
	svc := NewService(newTestDB(t), &stubChain{tokenConfig: canned})
	ctx := context.Background()

	// Lookup normalizes the address before hitting the contract
	cfg, err := svc.TokenConfig(ctx, "0x4200000000000000000000000000000000000006")
	require.NoError(t, err)
	assert.Equal(t, canned.ConfigHash, cfg.ConfigHash)
	assert.Equal(t, "100000000000000000", cfg.MinUnit)

	_, err = svc.TokenConfig(ctx, "0x01")
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
}

func TestGetOptionFallsBackToChain(t *testing.T) {
	db := newTestDB(t)
	onChain := &types.ActiveOption{TokenID: "7", CollateralLocked: "100"}
	svc := NewService(db, &stubChain{option: onChain})
	ctx := context.Background()

	// Local record wins when present
	require.NoError(t, svc.GetDB().CreatePosition(&types.ActiveOption{TokenID: "5", CollateralLocked: "50"}))
	position, err := svc.GetOption(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "50", position.CollateralLocked)

	// Unknown locally, known on chain
	position, err = svc.GetOption(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "100", position.CollateralLocked)

	// Unknown everywhere
	_, err = svc.GetOption(ctx, "9")
	assert.ErrorIs(t, err, types.ErrPositionNotFound)
}
