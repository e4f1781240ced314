package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/calder-fi/optio-api/internal/exchange"
	"github.com/calder-fi/optio-api/internal/ledger"
	"github.com/calder-fi/optio-api/internal/oracle"
	"github.com/calder-fi/optio-api/internal/types"
)

var testConfig = Config{
	ChainID:            8453,
	SettlementContract: common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
	ProtocolAddress:    common.HexToAddress("0x4444444444444444444444444444444444444444"),
	Stablecoin:         common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
}

// stubVenue records submissions and serves scripted statuses.
type stubVenue struct {
	uid       string
	submitErr error
	status    *exchange.OrderStatus
	statusErr error
	submits   int
}

func (v *stubVenue) SubmitOrder(context.Context, exchange.Order, hexutil.Bytes, common.Address) (string, error) {
	v.submits++
	if v.submitErr != nil {
		return "", v.submitErr
	}
	return v.uid, nil
}

func (v *stubVenue) GetOrderStatus(_ context.Context, uid string) (*exchange.OrderStatus, error) {
	if v.statusErr != nil {
		return nil, v.statusErr
	}
	return v.status, nil
}

func newTestDBs(t *testing.T) (*gorm.DB, *ledger.Database) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Offer{}, &types.FilledAmount{}, &types.ActiveOption{}, &Settlement{}))
	return db, ledger.NewDatabase(db)
}

// seedPosition inserts a position whose option has already run out, the
// normal precondition for settlement.
func seedPosition(t *testing.T, db *ledger.Database, tokenID string) {
	t.Helper()
	require.NoError(t, db.CreatePosition(&types.ActiveOption{
		TokenID:          tokenID,
		OfferHash:        "0xoffer",
		Writer:           "0x1111111111111111111111111111111111111111",
		Taker:            "0x2222222222222222222222222222222222222222",
		Underlying:       "0x4200000000000000000000000000000000000006",
		CollateralLocked: "1000000000000000000",
		IsCall:           true,
		StrikePrice:      "250000000000",
		StartTime:        time.Now().Add(-48 * time.Hour).Unix(),
		ExpiryTime:       time.Now().Add(-time.Hour).Unix(),
	}))
}

func newTestCoordinator(t *testing.T, venue Venue) (*Service, *ledger.Database) {
	t.Helper()
	db, ledgerDB := newTestDBs(t)
	svc := NewService(db, ledgerDB, venue, oracle.Static{Value: big.NewInt(250_000_000_000)}, testConfig)
	return svc, ledgerDB
}

func TestInitiate(t *testing.T) {
	svc, ledgerDB := newTestCoordinator(t, &stubVenue{uid: "0xuid"})
	seedPosition(t, ledgerDB, "42")
	ctx := context.Background()

	result, err := svc.Initiate(ctx, "42", big.NewInt(1_000_000_000))
	require.NoError(t, err)

	assert.Equal(t, StatusInitiated, result.Status)
	assert.NotEmpty(t, result.OrderHash)
	assert.NotEmpty(t, result.ConditionsHash)
	assert.Equal(t, "0x4200000000000000000000000000000000000006", result.Order.SellToken)
	assert.Equal(t, testConfig.Stablecoin.Hex(), result.Order.BuyToken)
	assert.Equal(t, testConfig.ProtocolAddress.Hex(), result.Order.Receiver)
	assert.Equal(t, "1000000000000000000", result.Order.SellAmount)
	assert.Equal(t, "1000000000", result.Order.BuyAmount)

	// Retrying with the same floor returns the stored order
	again, err := svc.Initiate(ctx, "42", big.NewInt(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, result.OrderHash, again.OrderHash)
	assert.Equal(t, result.ConditionsHash, again.ConditionsHash)

	// A different floor on an already-initiated settlement conflicts
	_, err = svc.Initiate(ctx, "42", big.NewInt(2_000_000_000))
	assert.ErrorIs(t, err, types.ErrStateConflict)
}

func TestInitiateUnknownPosition(t *testing.T) {
	svc, _ := newTestCoordinator(t, &stubVenue{})

	_, err := svc.Initiate(context.Background(), "999", big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrPositionNotFound)
}

func TestInitiateUnexpiredPosition(t *testing.T) {
	svc, ledgerDB := newTestCoordinator(t, &stubVenue{})
	require.NoError(t, ledgerDB.CreatePosition(&types.ActiveOption{
		TokenID:          "42",
		OfferHash:        "0xoffer",
		Writer:           "0x1111111111111111111111111111111111111111",
		Taker:            "0x2222222222222222222222222222222222222222",
		Underlying:       "0x4200000000000000000000000000000000000006",
		CollateralLocked: "1000000000000000000",
		StartTime:        time.Now().Unix(),
		ExpiryTime:       time.Now().Add(24 * time.Hour).Unix(),
	}))

	_, err := svc.Initiate(context.Background(), "42", big.NewInt(1_000_000_000))
	assert.ErrorIs(t, err, types.ErrStateConflict)
	assert.Contains(t, err.Error(), "not yet expired")

	// Nothing may have been persisted for the live option
	stored, err := svc.GetDB().GetByTokenID("42")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestInitiateSettledPosition(t *testing.T) {
	svc, ledgerDB := newTestCoordinator(t, &stubVenue{})
	seedPosition(t, ledgerDB, "42")
	require.NoError(t, ledgerDB.SettlePosition("42"))

	_, err := svc.Initiate(context.Background(), "42", big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrStateConflict)
}

func TestApprove(t *testing.T) {
	svc, ledgerDB := newTestCoordinator(t, &stubVenue{uid: "0xuid"})
	seedPosition(t, ledgerDB, "42")
	ctx := context.Background()

	initiated, err := svc.Initiate(ctx, "42", big.NewInt(1_000_000_000))
	require.NoError(t, err)

	takerSig := "0x" + strings.Repeat("ab", 65)
	approved, err := svc.Approve("42", initiated.ConditionsHash, takerSig)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.NotEmpty(t, approved.CompositeSignature)

	// The composite signature embeds the abi-encoded token id before the
	// taker's raw signature bytes
	raw, err := hexutil.Decode(approved.CompositeSignature)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), new(big.Int).SetBytes(raw[:32]))

	// Re-approving is a no-op success with the same signature
	again, err := svc.Approve("42", initiated.ConditionsHash, takerSig)
	require.NoError(t, err)
	assert.Equal(t, approved.CompositeSignature, again.CompositeSignature)
}

func TestApproveConditionsMismatch(t *testing.T) {
	svc, ledgerDB := newTestCoordinator(t, &stubVenue{})
	seedPosition(t, ledgerDB, "42")

	_, err := svc.Initiate(context.Background(), "42", big.NewInt(1_000_000_000))
	require.NoError(t, err)

	_, err = svc.Approve("42", common.HexToHash("0xbad").Hex(), "0xabcd")
	assert.ErrorIs(t, err, ErrConditionsMismatch)

	// The settlement must still be approvable afterwards
	stored, err := svc.GetDB().GetByTokenID("42")
	require.NoError(t, err)
	assert.Equal(t, StatusInitiated, stored.Status)
}

func TestApproveWithoutInitiate(t *testing.T) {
	svc, _ := newTestCoordinator(t, &stubVenue{})

	_, err := svc.Approve("42", common.HexToHash("0x1").Hex(), "0xabcd")
	assert.ErrorIs(t, err, types.ErrStateConflict)
}

func TestSubmit(t *testing.T) {
	venue := &stubVenue{uid: "0xorderuid"}
	svc, ledgerDB := newTestCoordinator(t, venue)
	seedPosition(t, ledgerDB, "42")
	ctx := context.Background()

	initiated, err := svc.Initiate(ctx, "42", big.NewInt(1_000_000_000))
	require.NoError(t, err)
	_, err = svc.Approve("42", initiated.ConditionsHash, "0x"+strings.Repeat("ab", 65))
	require.NoError(t, err)

	submitted, err := svc.Submit(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, submitted.Status)
	assert.Equal(t, "0xorderuid", submitted.ExternalOrderUID)
	assert.Equal(t, 1, venue.submits)

	// Resubmitting does not hit the venue again
	again, err := svc.Submit(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "0xorderuid", again.ExternalOrderUID)
	assert.Equal(t, 1, venue.submits)
}

func TestSubmitVenueRejection(t *testing.T) {
	venue := &stubVenue{submitErr: fmt.Errorf("%w: 400 InsufficientBalance", exchange.ErrOrderRejected)}
	svc, ledgerDB := newTestCoordinator(t, venue)
	seedPosition(t, ledgerDB, "42")
	ctx := context.Background()

	initiated, err := svc.Initiate(ctx, "42", big.NewInt(1_000_000_000))
	require.NoError(t, err)
	_, err = svc.Approve("42", initiated.ConditionsHash, "0x"+strings.Repeat("ab", 65))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "42")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exchange.ErrOrderRejected))

	// State unchanged so the caller can retry
	stored, err := svc.GetDB().GetByTokenID("42")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, stored.Status)
	assert.Empty(t, stored.ExternalOrderUID)
}

func TestSubmitBeforeApprove(t *testing.T) {
	svc, ledgerDB := newTestCoordinator(t, &stubVenue{})
	seedPosition(t, ledgerDB, "42")
	ctx := context.Background()

	_, err := svc.Initiate(ctx, "42", big.NewInt(1))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "42")
	assert.ErrorIs(t, err, types.ErrStateConflict)
}

func TestReject(t *testing.T) {
	svc, ledgerDB := newTestCoordinator(t, &stubVenue{})
	seedPosition(t, ledgerDB, "42")

	_, err := svc.Initiate(context.Background(), "42", big.NewInt(1))
	require.NoError(t, err)

	require.NoError(t, svc.Reject("42"))

	stored, err := svc.GetDB().GetByTokenID("42")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, stored.Status)

	// Terminal states admit no further transitions
	assert.ErrorIs(t, svc.Reject("42"), types.ErrStateConflict)
}

func TestConditionsHash(t *testing.T) {
	orderHash := common.HexToHash("0xfeed")

	h1, err := ConditionsHash(big.NewInt(42), orderHash, big.NewInt(1000), 1700000000)
	require.NoError(t, err)
	h2, err := ConditionsHash(big.NewInt(42), orderHash, big.NewInt(1000), 1700000000)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// Every bound field changes the hash
	h3, err := ConditionsHash(big.NewInt(43), orderHash, big.NewInt(1000), 1700000000)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	h4, err := ConditionsHash(big.NewInt(42), orderHash, big.NewInt(1001), 1700000000)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)

	h5, err := ConditionsHash(big.NewInt(42), orderHash, big.NewInt(1000), 1700000001)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h5)
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []string{StatusCompleted, StatusExpired, StatusCancelled, StatusRejected} {
		assert.True(t, IsTerminal(status), status)
	}
	for _, status := range []string{StatusInitiated, StatusApproved, StatusSubmitted} {
		assert.False(t, IsTerminal(status), status)
	}
}
