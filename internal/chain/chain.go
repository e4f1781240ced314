package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/calder-fi/optio-api/internal/types"
)

// TakeRequest bundles everything the protocol contract needs for a gasless
// take: the signed offer, the taker's fill parameters, and both EIP-3009
// payment authorizations.
type TakeRequest struct {
	Offer          types.Offer
	OfferSignature string
	Taker          string
	FillAmount     *big.Int
	Duration       int64 // days
	PremiumAuth    types.Authorization
	GasAuth        types.Authorization
}

// TakeResult is the confirmed outcome of a take transaction.
type TakeResult struct {
	TxHash  common.Hash
	TokenID *big.Int
}

// Receipt carries the fields needed for relayer reimbursement accounting.
type Receipt struct {
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// Client is the protocol chain collaborator. The service only calls the
// contract; offer-hash computation, collateral custody and minting live
// on chain and are assumed correct.
type Client interface {
	// OfferHash computes the deterministic hash of an offer via the contract.
	OfferHash(ctx context.Context, offer types.Offer) (common.Hash, error)

	// EstimateTakeGas simulates takeOptionGasless and returns the gas estimate.
	EstimateTakeGas(ctx context.Context, req TakeRequest) (uint64, error)

	// SubmitTake broadcasts takeOptionGasless with the given gas limit and
	// waits for confirmation, returning the minted token id.
	SubmitTake(ctx context.Context, req TakeRequest, gasLimit uint64) (*TakeResult, error)

	// SuggestGasPrice returns current network fee data.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// RelayerBalance returns the relayer account's native balance in wei.
	RelayerBalance(ctx context.Context) (*big.Int, error)

	// TokenConfig reads an underlying token's protocol configuration.
	TokenConfig(ctx context.Context, token common.Address) (*types.TokenConfig, error)

	// TransactionReceipt fetches the receipt of a confirmed transaction.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)

	// ActiveOption reads a minted option back from the contract. Used as a
	// fallback when the local ledger has no record for a token id.
	ActiveOption(ctx context.Context, tokenID *big.Int) (*types.ActiveOption, error)
}
