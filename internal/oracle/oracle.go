package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// PriceDecimals is the fixed-point scale every Source answer is normalized to.
const PriceDecimals = 8

// Source returns the current price of an asset in USD, scaled to
// PriceDecimals. Implementations must degrade to a fallback value on
// failure rather than erroring: a missing quote must never block a take.
type Source interface {
	Price(ctx context.Context, asset common.Address) (*big.Int, error)
}

// Static is a fixed-price source used in tests and as a last-resort fallback.
type Static struct {
	Value *big.Int
}

func (s Static) Price(_ context.Context, _ common.Address) (*big.Int, error) {
	return new(big.Int).Set(s.Value), nil
}

// FallbackPrice is the documented degraded quote: $2500 at 8 decimals.
var FallbackPrice = big.NewInt(250_000_000_000)

// PythSource reads spot prices from the Pyth Hermes API.
type PythSource struct {
	baseURL string
	feeds   map[common.Address]string
	client  *http.Client
}

// NewPythSource builds a Hermes-backed source. feeds maps asset addresses to
// Pyth price feed ids.
func NewPythSource(baseURL string, feeds map[common.Address]string) *PythSource {
	return &PythSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		feeds:   feeds,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type hermesResponse struct {
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price       string `json:"price"`
			Conf        string `json:"conf"`
			Expo        int    `json:"expo"`
			PublishTime int64  `json:"publish_time"`
		} `json:"price"`
	} `json:"parsed"`
}

// Price fetches the latest quote for the asset's configured feed. Any failure
// (unknown feed, transport, bad payload) logs a warning and returns
// FallbackPrice.
func (p *PythSource) Price(ctx context.Context, asset common.Address) (*big.Int, error) {
	price, err := p.fetch(ctx, asset)
	if err != nil {
		log.Warn().Err(err).Str("asset", asset.Hex()).
			Str("fallback", FallbackPrice.String()).
			Msg("oracle price unavailable, using fallback")
		return new(big.Int).Set(FallbackPrice), nil
	}
	return price, nil
}

func (p *PythSource) fetch(ctx context.Context, asset common.Address) (*big.Int, error) {
	feedID, ok := p.feeds[asset]
	if !ok {
		return nil, fmt.Errorf("no price feed configured for %s", asset.Hex())
	}

	url := fmt.Sprintf("%s/v2/updates/price/latest?ids[]=%s", p.baseURL, feedID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hermes responded %d", resp.StatusCode)
	}

	var body hermesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Parsed) == 0 {
		return nil, fmt.Errorf("no price data for feed %s", feedID)
	}

	raw, ok := new(big.Int).SetString(body.Parsed[0].Price.Price, 10)
	if !ok {
		return nil, fmt.Errorf("malformed price %q", body.Parsed[0].Price.Price)
	}

	return normalize(raw, body.Parsed[0].Price.Expo), nil
}

// normalize rescales a Pyth price with exponent expo to PriceDecimals.
// Hermes typically publishes USD feeds with expo=-8, making this a no-op.
func normalize(raw *big.Int, expo int) *big.Int {
	shift := PriceDecimals + expo
	if shift == 0 {
		return raw
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(shift))), nil)
	if shift > 0 {
		return new(big.Int).Mul(raw, factor)
	}
	return new(big.Int).Quo(raw, factor)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
