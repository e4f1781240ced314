package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/calder-fi/optio-api/internal/types"
)

// protocolABI covers the slice of the protocol contract the relay touches.
const protocolABI = `[
  {"type":"function","name":"getOfferHash","stateMutability":"view",
   "inputs":[{"name":"offer","type":"tuple","components":[
     {"name":"writer","type":"address"},
     {"name":"underlying","type":"address"},
     {"name":"collateralAmount","type":"uint256"},
     {"name":"stablecoin","type":"address"},
     {"name":"isCall","type":"bool"},
     {"name":"premiumPerDay","type":"uint256"},
     {"name":"minDuration","type":"uint256"},
     {"name":"maxDuration","type":"uint256"},
     {"name":"minFillAmount","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"configHash","type":"bytes32"}]}],
   "outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"takeOptionGasless","stateMutability":"nonpayable",
   "inputs":[
     {"name":"offer","type":"tuple","components":[
       {"name":"writer","type":"address"},
       {"name":"underlying","type":"address"},
       {"name":"collateralAmount","type":"uint256"},
       {"name":"stablecoin","type":"address"},
       {"name":"isCall","type":"bool"},
       {"name":"premiumPerDay","type":"uint256"},
       {"name":"minDuration","type":"uint256"},
       {"name":"maxDuration","type":"uint256"},
       {"name":"minFillAmount","type":"uint256"},
       {"name":"deadline","type":"uint256"},
       {"name":"configHash","type":"bytes32"}]},
     {"name":"offerSignature","type":"bytes"},
     {"name":"fillAmount","type":"uint256"},
     {"name":"duration","type":"uint256"},
     {"name":"premiumAuth","type":"tuple","components":[
       {"name":"from","type":"address"},
       {"name":"to","type":"address"},
       {"name":"value","type":"uint256"},
       {"name":"validAfter","type":"uint256"},
       {"name":"validBefore","type":"uint256"},
       {"name":"nonce","type":"bytes32"},
       {"name":"v","type":"uint8"},
       {"name":"r","type":"bytes32"},
       {"name":"s","type":"bytes32"}]},
     {"name":"gasAuth","type":"tuple","components":[
       {"name":"from","type":"address"},
       {"name":"to","type":"address"},
       {"name":"value","type":"uint256"},
       {"name":"validAfter","type":"uint256"},
       {"name":"validBefore","type":"uint256"},
       {"name":"nonce","type":"bytes32"},
       {"name":"v","type":"uint8"},
       {"name":"r","type":"bytes32"},
       {"name":"s","type":"bytes32"}]}],
   "outputs":[{"name":"tokenId","type":"uint256"}]},
  {"type":"function","name":"getActiveOption","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"option","type":"tuple","components":[
     {"name":"tokenId","type":"uint256"},
     {"name":"offerHash","type":"bytes32"},
     {"name":"writer","type":"address"},
     {"name":"taker","type":"address"},
     {"name":"underlying","type":"address"},
     {"name":"collateralLocked","type":"uint256"},
     {"name":"isCall","type":"bool"},
     {"name":"strikePrice","type":"uint256"},
     {"name":"startTime","type":"uint256"},
     {"name":"expiryTime","type":"uint256"},
     {"name":"settled","type":"bool"},
     {"name":"configHash","type":"bytes32"}]}]},
  {"type":"function","name":"getTokenConfig","stateMutability":"view",
   "inputs":[{"name":"token","type":"address"}],
   "outputs":[
     {"name":"config","type":"tuple","components":[
       {"name":"stablecoin","type":"address"},
       {"name":"minUnit","type":"uint256"},
       {"name":"swapVenue","type":"address"},
       {"name":"poolFee","type":"uint24"},
       {"name":"pythPriceFeedId","type":"bytes32"},
       {"name":"uniswapPriceFallback","type":"bool"}]},
     {"name":"configHash","type":"bytes32"}]},
  {"type":"event","name":"OptionTaken","inputs":[
     {"name":"tokenId","type":"uint256","indexed":true},
     {"name":"offerHash","type":"bytes32","indexed":true},
     {"name":"taker","type":"address","indexed":true},
     {"name":"fillAmount","type":"uint256","indexed":false}]}
]`

type offerTuple struct {
	Writer           common.Address
	Underlying       common.Address
	CollateralAmount *big.Int
	Stablecoin       common.Address
	IsCall           bool
	PremiumPerDay    *big.Int
	MinDuration      *big.Int
	MaxDuration      *big.Int
	MinFillAmount    *big.Int
	Deadline         *big.Int
	ConfigHash       [32]byte
}

type authTuple struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
	V           uint8
	R           [32]byte
	S           [32]byte
}

type optionTuple struct {
	TokenId          *big.Int
	OfferHash        [32]byte
	Writer           common.Address
	Taker            common.Address
	Underlying       common.Address
	CollateralLocked *big.Int
	IsCall           bool
	StrikePrice      *big.Int
	StartTime        *big.Int
	ExpiryTime       *big.Int
	Settled          bool
	ConfigHash       [32]byte
}

type tokenConfigTuple struct {
	Stablecoin           common.Address
	MinUnit              *big.Int
	SwapVenue            common.Address
	PoolFee              *big.Int
	PythPriceFeedId      [32]byte
	UniswapPriceFallback bool
}

// EthClient implements Client against the protocol contract over JSON-RPC.
type EthClient struct {
	rpc      *ethclient.Client
	abi      abi.ABI
	protocol common.Address
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
}

// NewEthClient dials the RPC endpoint and prepares the relayer signer. The
// private key may be empty for read-only use (offer hashing, lookups); any
// submit then fails with a clear error.
func NewEthClient(rawurl string, protocol string, chainID int64, relayerKeyHex string) (*EthClient, error) {
	rpc, err := ethclient.Dial(rawurl)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(protocolABI))
	if err != nil {
		return nil, fmt.Errorf("parse protocol abi: %w", err)
	}

	c := &EthClient{
		rpc:      rpc,
		abi:      parsed,
		protocol: common.HexToAddress(protocol),
		chainID:  big.NewInt(chainID),
	}

	if relayerKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(relayerKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse relayer key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// RelayerAddress returns the relayer's sending address.
func (c *EthClient) RelayerAddress() common.Address {
	return c.from
}

func (c *EthClient) OfferHash(ctx context.Context, offer types.Offer) (common.Hash, error) {
	tuple, err := toOfferTuple(offer)
	if err != nil {
		return common.Hash{}, err
	}

	data, err := c.abi.Pack("getOfferHash", tuple)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack getOfferHash: %w", err)
	}

	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.protocol, Data: data}, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: getOfferHash call: %v", types.ErrUpstreamUnavailable, err)
	}

	results, err := c.abi.Unpack("getOfferHash", out)
	if err != nil {
		return common.Hash{}, fmt.Errorf("unpack getOfferHash: %w", err)
	}
	raw := results[0].([32]byte)
	return common.BytesToHash(raw[:]), nil
}

func (c *EthClient) EstimateTakeGas(ctx context.Context, req TakeRequest) (uint64, error) {
	data, err := c.packTake(req)
	if err != nil {
		return 0, err
	}
	gas, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &c.protocol, Data: data})
	if err != nil {
		return 0, fmt.Errorf("%w: estimate gas: %v", types.ErrUpstreamUnavailable, err)
	}
	return gas, nil
}

func (c *EthClient) SubmitTake(ctx context.Context, req TakeRequest, gasLimit uint64) (*TakeResult, error) {
	if c.key == nil {
		return nil, fmt.Errorf("relayer key not configured")
	}

	data, err := c.packTake(req)
	if err != nil {
		return nil, err
	}

	nonce, err := c.rpc.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("%w: pending nonce: %v", types.ErrUpstreamUnavailable, err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gas price: %v", types.ErrUpstreamUnavailable, err)
	}

	tx, err := ethtypes.SignNewTx(c.key, ethtypes.LatestSignerForChainID(c.chainID), &ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &c.protocol,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("sign take tx: %w", err)
	}

	if err := c.rpc.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: send take tx: %v", types.ErrUpstreamUnavailable, err)
	}

	log.Debug().Str("tx_hash", tx.Hash().Hex()).Msg("take transaction broadcast")

	receipt, err := bind.WaitMined(ctx, c.rpc, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: wait mined: %v", types.ErrUpstreamUnavailable, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("take transaction %s reverted", tx.Hash().Hex())
	}

	tokenID, err := c.tokenIDFromLogs(receipt)
	if err != nil {
		return nil, err
	}

	return &TakeResult{TxHash: tx.Hash(), TokenID: tokenID}, nil
}

func (c *EthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gas price: %v", types.ErrUpstreamUnavailable, err)
	}
	return price, nil
}

func (c *EthClient) RelayerBalance(ctx context.Context) (*big.Int, error) {
	balance, err := c.rpc.BalanceAt(ctx, c.from, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: relayer balance: %v", types.ErrUpstreamUnavailable, err)
	}
	return balance, nil
}

func (c *EthClient) TokenConfig(ctx context.Context, token common.Address) (*types.TokenConfig, error) {
	data, err := c.abi.Pack("getTokenConfig", token)
	if err != nil {
		return nil, fmt.Errorf("pack getTokenConfig: %w", err)
	}
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.protocol, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: getTokenConfig call: %v", types.ErrUpstreamUnavailable, err)
	}

	results, err := c.abi.Unpack("getTokenConfig", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getTokenConfig: %w", err)
	}
	cfg := *abi.ConvertType(results[0], new(tokenConfigTuple)).(*tokenConfigTuple)
	configHash := *abi.ConvertType(results[1], new([32]byte)).(*[32]byte)

	return &types.TokenConfig{
		Token:           token.Hex(),
		ConfigHash:      common.BytesToHash(configHash[:]).Hex(),
		Stablecoin:      cfg.Stablecoin.Hex(),
		MinUnit:         cfg.MinUnit.String(),
		SwapVenue:       cfg.SwapVenue.Hex(),
		PoolFee:         cfg.PoolFee.Int64(),
		PythPriceFeedID: common.BytesToHash(cfg.PythPriceFeedId[:]).Hex(),
		UniswapFallback: cfg.UniswapPriceFallback,
	}, nil
}

func (c *EthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	receipt, err := c.rpc.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt %s: %v", types.ErrUpstreamUnavailable, txHash.Hex(), err)
	}
	return &Receipt{GasUsed: receipt.GasUsed, EffectiveGasPrice: receipt.EffectiveGasPrice}, nil
}

func (c *EthClient) ActiveOption(ctx context.Context, tokenID *big.Int) (*types.ActiveOption, error) {
	data, err := c.abi.Pack("getActiveOption", tokenID)
	if err != nil {
		return nil, fmt.Errorf("pack getActiveOption: %w", err)
	}
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.protocol, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: getActiveOption call: %v", types.ErrUpstreamUnavailable, err)
	}

	var opt optionTuple
	if err := c.abi.UnpackIntoInterface(&opt, "getActiveOption", out); err != nil {
		return nil, fmt.Errorf("unpack getActiveOption: %w", err)
	}

	return &types.ActiveOption{
		TokenID:          opt.TokenId.String(),
		OfferHash:        common.BytesToHash(opt.OfferHash[:]).Hex(),
		Writer:           opt.Writer.Hex(),
		Taker:            opt.Taker.Hex(),
		Underlying:       opt.Underlying.Hex(),
		CollateralLocked: opt.CollateralLocked.String(),
		IsCall:           opt.IsCall,
		StrikePrice:      opt.StrikePrice.String(),
		StartTime:        opt.StartTime.Int64(),
		ExpiryTime:       opt.ExpiryTime.Int64(),
		Settled:          opt.Settled,
		ConfigHash:       common.BytesToHash(opt.ConfigHash[:]).Hex(),
	}, nil
}

func (c *EthClient) packTake(req TakeRequest) ([]byte, error) {
	offer, err := toOfferTuple(req.Offer)
	if err != nil {
		return nil, err
	}
	premium, err := toAuthTuple(req.PremiumAuth)
	if err != nil {
		return nil, err
	}
	gas, err := toAuthTuple(req.GasAuth)
	if err != nil {
		return nil, err
	}

	sig := common.FromHex(req.OfferSignature)
	data, err := c.abi.Pack("takeOptionGasless",
		offer, sig, req.FillAmount, big.NewInt(req.Duration), premium, gas)
	if err != nil {
		return nil, fmt.Errorf("pack takeOptionGasless: %w", err)
	}
	return data, nil
}

func (c *EthClient) tokenIDFromLogs(receipt *ethtypes.Receipt) (*big.Int, error) {
	takenTopic := c.abi.Events["OptionTaken"].ID
	for _, lg := range receipt.Logs {
		if lg.Address == c.protocol && len(lg.Topics) >= 2 && lg.Topics[0] == takenTopic {
			return new(big.Int).SetBytes(lg.Topics[1].Bytes()), nil
		}
	}
	return nil, fmt.Errorf("transaction %s emitted no OptionTaken event", receipt.TxHash.Hex())
}

func toOfferTuple(offer types.Offer) (offerTuple, error) {
	collateral, err := types.ParseAmount(offer.CollateralAmount)
	if err != nil {
		return offerTuple{}, err
	}
	premium, err := types.ParseAmount(offer.PremiumPerDay)
	if err != nil {
		return offerTuple{}, err
	}
	minFill, err := types.ParseAmount(offer.MinFillAmount)
	if err != nil {
		return offerTuple{}, err
	}

	return offerTuple{
		Writer:           common.HexToAddress(offer.Writer),
		Underlying:       common.HexToAddress(offer.Underlying),
		CollateralAmount: collateral,
		Stablecoin:       common.HexToAddress(offer.Stablecoin),
		IsCall:           offer.IsCall,
		PremiumPerDay:    premium,
		MinDuration:      big.NewInt(offer.MinDuration),
		MaxDuration:      big.NewInt(offer.MaxDuration),
		MinFillAmount:    minFill,
		Deadline:         big.NewInt(offer.Deadline),
		ConfigHash:       common.HexToHash(offer.ConfigHash),
	}, nil
}

func toAuthTuple(auth types.Authorization) (authTuple, error) {
	value, err := types.ParseAmount(auth.Value)
	if err != nil {
		return authTuple{}, err
	}
	return authTuple{
		From:        common.HexToAddress(auth.From),
		To:          common.HexToAddress(auth.To),
		Value:       value,
		ValidAfter:  big.NewInt(auth.ValidAfter),
		ValidBefore: big.NewInt(auth.ValidBefore),
		Nonce:       common.HexToHash(auth.Nonce),
		V:           auth.V,
		R:           common.HexToHash(auth.R),
		S:           common.HexToHash(auth.S),
	}, nil
}
