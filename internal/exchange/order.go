package exchange

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Order is a batch-auction sell order in the venue's wire format. Amounts are
// base-10 decimal strings.
type Order struct {
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	Receiver          string `json:"receiver"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	ValidTo           uint32 `json:"validTo"`
	AppData           string `json:"appData"`
	FeeAmount         string `json:"feeAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	SellTokenBalance  string `json:"sellTokenBalance"`
	BuyTokenBalance   string `json:"buyTokenBalance"`
}

// NewSellOrder builds a fill-or-kill sell order with the venue's defaults:
// zero fee, erc20 balances, proceeds to receiver.
func NewSellOrder(sellToken, buyToken, receiver common.Address, sellAmount, buyAmount *big.Int, validTo uint32, appData common.Hash) Order {
	return Order{
		SellToken:         sellToken.Hex(),
		BuyToken:          buyToken.Hex(),
		Receiver:          receiver.Hex(),
		SellAmount:        sellAmount.String(),
		BuyAmount:         buyAmount.String(),
		ValidTo:           validTo,
		AppData:           appData.Hex(),
		FeeAmount:         "0",
		Kind:              "sell",
		PartiallyFillable: false,
		SellTokenBalance:  "erc20",
		BuyTokenBalance:   "erc20",
	}
}

var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": {
		{Name: "sellToken", Type: "address"},
		{Name: "buyToken", Type: "address"},
		{Name: "receiver", Type: "address"},
		{Name: "sellAmount", Type: "uint256"},
		{Name: "buyAmount", Type: "uint256"},
		{Name: "validTo", Type: "uint32"},
		{Name: "appData", Type: "bytes32"},
		{Name: "feeAmount", Type: "uint256"},
		{Name: "kind", Type: "string"},
		{Name: "partiallyFillable", Type: "bool"},
		{Name: "sellTokenBalance", Type: "string"},
		{Name: "buyTokenBalance", Type: "string"},
	},
}

// Hash computes the order's canonical EIP-712 hash under the venue's signing
// domain ("Gnosis Protocol" v2 at the settlement contract).
func (o Order) Hash(chainID int64, settlementContract common.Address) (common.Hash, error) {
	td := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Gnosis Protocol",
			Version:           "v2",
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: settlementContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sellToken":         o.SellToken,
			"buyToken":          o.BuyToken,
			"receiver":          o.Receiver,
			"sellAmount":        o.SellAmount,
			"buyAmount":         o.BuyAmount,
			"validTo":           fmt.Sprintf("%d", o.ValidTo),
			"appData":           o.AppData,
			"feeAmount":         o.FeeAmount,
			"kind":              o.Kind,
			"partiallyFillable": o.PartiallyFillable,
			"sellTokenBalance":  o.SellTokenBalance,
			"buyTokenBalance":   o.BuyTokenBalance,
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash order: %w", err)
	}
	return common.BytesToHash(digest), nil
}

// AppData derives the order's appData hash from a metadata document naming
// the settling token id.
func AppData(tokenID *big.Int) common.Hash {
	doc := struct {
		Version  string `json:"version"`
		Metadata struct {
			OrderType string `json:"orderType"`
			TokenID   string `json:"tokenId"`
		} `json:"metadata"`
	}{Version: "0.1.0"}
	doc.Metadata.OrderType = "options-settlement"
	doc.Metadata.TokenID = tokenID.String()

	raw, _ := json.Marshal(doc)
	return crypto.Keccak256Hash(raw)
}

// CompositeSignature builds the contract's EIP-1271 signature payload:
// abi.encode(uint256 tokenId, bytes takerSignature). The contract decodes
// the leading token id itself, so the field order and widths are fixed.
func CompositeSignature(tokenID *big.Int, takerSignature []byte) (hexutil.Bytes, error) {
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, err
	}
	bytesTy, err := abi.NewType("bytes", "", nil)
	if err != nil {
		return nil, err
	}

	args := abi.Arguments{{Type: uint256Ty}, {Type: bytesTy}}
	packed, err := args.Pack(tokenID, takerSignature)
	if err != nil {
		return nil, fmt.Errorf("encode composite signature: %w", err)
	}
	return packed, nil
}
