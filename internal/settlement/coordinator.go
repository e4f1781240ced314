package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/calder-fi/optio-api/internal/exchange"
	"github.com/calder-fi/optio-api/internal/ledger"
	"github.com/calder-fi/optio-api/internal/oracle"
	"github.com/calder-fi/optio-api/internal/types"
)

// ErrConditionsMismatch is returned when an approval's conditions hash does
// not match the stored one. The hash is the taker's entire consent boundary;
// any mismatch rejects the approval outright.
var ErrConditionsMismatch = errors.New("settlement conditions hash mismatch")

// orderValidity is how long a settlement order stays biddable at the venue.
const orderValidity = time.Hour

// Venue is the slice of the exchange client the coordinator needs.
type Venue interface {
	SubmitOrder(ctx context.Context, order exchange.Order, compositeSig hexutil.Bytes, from common.Address) (string, error)
	GetOrderStatus(ctx context.Context, uid string) (*exchange.OrderStatus, error)
}

// Config pins the addresses and chain the coordinator settles against.
type Config struct {
	ChainID            int64
	SettlementContract common.Address // venue's settlement contract (signing domain)
	ProtocolAddress    common.Address // our contract: order signer and beneficiary
	Stablecoin         common.Address
}

// Service drives the four-phase settlement protocol. Transitions on a single
// token id are serialized; each externally-observable action is idempotent
// at the state level so clients can retry on timeout.
type Service struct {
	db     *Database
	ledger *ledger.Database
	venue  Venue
	oracle oracle.Source
	cfg    Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(gormDB *gorm.DB, ledgerDB *ledger.Database, venue Venue, priceSource oracle.Source, cfg Config) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		ledger: ledgerDB,
		venue:  venue,
		oracle: priceSource,
		cfg:    cfg,
		locks:  make(map[string]*sync.Mutex),
	}
}

// GetDB exposes the settlement database to the background processor.
func (s *Service) GetDB() *Database {
	return s.db
}

func (s *Service) lockToken(tokenID string) func() {
	s.mu.Lock()
	m, ok := s.locks[tokenID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[tokenID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// InitiateResult is handed to the taker for signing.
type InitiateResult struct {
	TokenID        string         `json:"token_id"`
	Order          exchange.Order `json:"order"`
	OrderHash      string         `json:"order_hash"`
	ConditionsHash string         `json:"settlement_conditions_hash"`
	Status         string         `json:"status"`
}

// Initiate builds the exchange order for a position and persists a new
// Settlement in INITIATED. Calling it again with identical arguments on an
// already-initiated settlement returns the stored order and hash, not a
// second record.
func (s *Service) Initiate(ctx context.Context, tokenID string, minBuyAmount *big.Int) (*InitiateResult, error) {
	unlock := s.lockToken(tokenID)
	defer unlock()

	logger := log.With().Str("service", "settlement").Str("token_id", tokenID).Logger()

	if existing, err := s.db.GetByTokenID(tokenID); err != nil {
		return nil, err
	} else if existing != nil {
		if existing.Status != StatusInitiated {
			return nil, fmt.Errorf("%w: settlement is %s", types.ErrStateConflict, existing.Status)
		}
		if existing.MinBuyAmount != minBuyAmount.String() {
			return nil, fmt.Errorf("%w: settlement already initiated with min buy %s",
				types.ErrStateConflict, existing.MinBuyAmount)
		}
		return s.initiateResult(existing)
	}

	position, err := s.ledger.GetPosition(tokenID)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrPositionNotFound, tokenID)
	}
	if position.Settled {
		return nil, fmt.Errorf("%w: position already settled", types.ErrStateConflict)
	}
	// Collateral is only sellable once the option has run its course.
	if position.ExpiryTime > time.Now().Unix() {
		return nil, fmt.Errorf("%w: option not yet expired (expiry %d)",
			types.ErrStateConflict, position.ExpiryTime)
	}

	// Oracle price is fetched for operator sanity only; it does not gate
	// settlement.
	if price, err := s.oracle.Price(ctx, common.HexToAddress(position.Underlying)); err == nil {
		logger.Info().Str("oracle_price", price.String()).Msg("initiating settlement")
	}

	id, err := types.ParseAmount(tokenID)
	if err != nil {
		return nil, err
	}
	collateral, err := types.ParseAmount(position.CollateralLocked)
	if err != nil {
		return nil, err
	}

	validTo := uint32(time.Now().Add(orderValidity).Unix())
	order := exchange.NewSellOrder(
		common.HexToAddress(position.Underlying),
		s.cfg.Stablecoin,
		s.cfg.ProtocolAddress,
		collateral,
		minBuyAmount,
		validTo,
		exchange.AppData(id),
	)

	orderHash, err := order.Hash(s.cfg.ChainID, s.cfg.SettlementContract)
	if err != nil {
		return nil, err
	}
	conditionsHash, err := ConditionsHash(id, orderHash, minBuyAmount, validTo)
	if err != nil {
		return nil, err
	}

	orderJSON, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	settlement := &Settlement{
		SettlementID:   "STL_" + uuid.New().String(),
		TokenID:        tokenID,
		OrderJSON:      string(orderJSON),
		OrderHash:      orderHash.Hex(),
		MinBuyAmount:   minBuyAmount.String(),
		ValidTo:        int64(validTo),
		ConditionsHash: conditionsHash.Hex(),
		Status:         StatusInitiated,
	}
	if err := s.db.CreateSettlement(settlement); err != nil {
		return nil, err
	}

	logger.Info().
		Str("settlement_id", settlement.SettlementID).
		Str("order_hash", settlement.OrderHash).
		Str("conditions_hash", settlement.ConditionsHash).
		Msg("settlement initiated")

	return s.initiateResult(settlement)
}

func (s *Service) initiateResult(settlement *Settlement) (*InitiateResult, error) {
	order, err := settlement.Order()
	if err != nil {
		return nil, err
	}
	return &InitiateResult{
		TokenID:        settlement.TokenID,
		Order:          order,
		OrderHash:      settlement.OrderHash,
		ConditionsHash: settlement.ConditionsHash,
		Status:         settlement.Status,
	}, nil
}

// ApproveResult carries the composite signature ready for venue submission.
type ApproveResult struct {
	TokenID            string `json:"token_id"`
	CompositeSignature string `json:"composite_signature"`
	Status             string `json:"status"`
}

// Approve records the taker's consent. The submitted conditions hash must
// match the stored one byte for byte; anything else is rejected without
// side effects. The composite signature concatenates the abi-encoded token
// id with the taker's raw signature bytes in the contract's fixed layout.
func (s *Service) Approve(tokenID, conditionsHash, takerSignature string) (*ApproveResult, error) {
	unlock := s.lockToken(tokenID)
	defer unlock()

	settlement, err := s.db.GetByTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, fmt.Errorf("%w: settlement not initiated", types.ErrStateConflict)
	}

	if common.HexToHash(conditionsHash) != common.HexToHash(settlement.ConditionsHash) {
		return nil, fmt.Errorf("%w: token %s", ErrConditionsMismatch, tokenID)
	}

	// Retrying an identical approval is a no-op success.
	if settlement.Status == StatusApproved {
		return &ApproveResult{
			TokenID:            tokenID,
			CompositeSignature: settlement.CompositeSignature,
			Status:             settlement.Status,
		}, nil
	}
	if settlement.Status != StatusInitiated {
		return nil, fmt.Errorf("%w: cannot approve from %s", types.ErrStateConflict, settlement.Status)
	}

	id, err := types.ParseAmount(tokenID)
	if err != nil {
		return nil, err
	}
	sigBytes, err := hexutil.Decode(takerSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: taker signature is not valid hex", types.ErrValidation)
	}

	composite, err := exchange.CompositeSignature(id, sigBytes)
	if err != nil {
		return nil, err
	}

	settlement.TakerSignature = takerSignature
	settlement.CompositeSignature = composite.String()
	settlement.Status = StatusApproved
	if err := s.db.UpdateSettlement(settlement); err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "settlement").
		Str("token_id", tokenID).
		Str("settlement_id", settlement.SettlementID).
		Msg("settlement approved")

	return &ApproveResult{
		TokenID:            tokenID,
		CompositeSignature: settlement.CompositeSignature,
		Status:             settlement.Status,
	}, nil
}

// SubmitResult reports the venue's order uid.
type SubmitResult struct {
	TokenID          string `json:"token_id"`
	ExternalOrderUID string `json:"external_order_uid"`
	Status           string `json:"status"`
}

// Submit posts the approved order to the venue, the settling contract acting
// as both signer and beneficiary. Venue rejections surface verbatim and
// leave the state unchanged so the caller may retry.
func (s *Service) Submit(ctx context.Context, tokenID string) (*SubmitResult, error) {
	unlock := s.lockToken(tokenID)
	defer unlock()

	settlement, err := s.db.GetByTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, fmt.Errorf("%w: settlement not initiated", types.ErrStateConflict)
	}
	if settlement.Status == StatusSubmitted {
		return &SubmitResult{
			TokenID:          tokenID,
			ExternalOrderUID: settlement.ExternalOrderUID,
			Status:           settlement.Status,
		}, nil
	}
	if settlement.Status != StatusApproved {
		return nil, fmt.Errorf("%w: cannot submit from %s", types.ErrStateConflict, settlement.Status)
	}

	order, err := settlement.Order()
	if err != nil {
		return nil, err
	}
	compositeSig, err := hexutil.Decode(settlement.CompositeSignature)
	if err != nil {
		return nil, err
	}

	uid, err := s.venue.SubmitOrder(ctx, order, compositeSig, s.cfg.ProtocolAddress)
	if err != nil {
		return nil, err
	}

	settlement.ExternalOrderUID = uid
	settlement.Status = StatusSubmitted
	if err := s.db.UpdateSettlement(settlement); err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "settlement").
		Str("token_id", tokenID).
		Str("order_uid", uid).
		Msg("settlement order submitted")

	return &SubmitResult{
		TokenID:          tokenID,
		ExternalOrderUID: uid,
		Status:           settlement.Status,
	}, nil
}

// Reject moves a non-terminal settlement to REJECTED. Operator escape hatch.
func (s *Service) Reject(tokenID string) error {
	unlock := s.lockToken(tokenID)
	defer unlock()

	settlement, err := s.db.GetByTokenID(tokenID)
	if err != nil {
		return err
	}
	if settlement == nil {
		return fmt.Errorf("%w: settlement not initiated", types.ErrStateConflict)
	}
	if IsTerminal(settlement.Status) {
		return fmt.Errorf("%w: settlement is %s", types.ErrStateConflict, settlement.Status)
	}

	settlement.Status = StatusRejected
	return s.db.UpdateSettlement(settlement)
}

// StatusView combines the settlement record with its position.
type StatusView struct {
	Settlement *Settlement         `json:"settlement"`
	Position   *types.ActiveOption `json:"position,omitempty"`
}

func (s *Service) Status(tokenID string) (*StatusView, error) {
	settlement, err := s.db.GetByTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, fmt.Errorf("%w: no settlement for token %s", types.ErrPositionNotFound, tokenID)
	}
	position, err := s.ledger.GetPosition(tokenID)
	if err != nil {
		return nil, err
	}
	return &StatusView{Settlement: settlement, Position: position}, nil
}

// OrderStatus proxies the venue's view of an order.
func (s *Service) OrderStatus(ctx context.Context, uid string) (*exchange.OrderStatus, error) {
	return s.venue.GetOrderStatus(ctx, uid)
}

// ConditionsHash binds everything the taker is asked to approve:
// keccak256(abi.encode(tokenId, orderHash, minBuyAmount, validTo)).
func ConditionsHash(tokenID *big.Int, orderHash common.Hash, minBuyAmount *big.Int, validTo uint32) (common.Hash, error) {
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return common.Hash{}, err
	}
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return common.Hash{}, err
	}

	args := abi.Arguments{
		{Type: uint256Ty}, {Type: bytes32Ty}, {Type: uint256Ty}, {Type: uint256Ty},
	}
	packed, err := args.Pack(tokenID, [32]byte(orderHash), minBuyAmount, new(big.Int).SetUint64(uint64(validTo)))
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode settlement conditions: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}
