package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog/log"

	"github.com/calder-fi/optio-api/internal/types"
)

// Venue order lifecycle statuses.
const (
	StatusOpen      = "open"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// ErrOrderRejected marks a synchronous rejection by the venue API. The
// upstream message is carried verbatim so the caller can correct and retry.
var ErrOrderRejected = errors.New("order rejected by exchange")

// OrderStatus is the venue's view of a submitted order.
type OrderStatus struct {
	UID                string `json:"uid"`
	Status             string `json:"status"`
	ExecutedSellAmount string `json:"executedSellAmount"`
	ExecutedBuyAmount  string `json:"executedBuyAmount"`
	ValidTo            uint32 `json:"validTo"`
	CreationDate       string `json:"creationDate"`
}

// Client talks to the batch-auction venue's order API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type orderSubmission struct {
	Order
	SigningScheme string `json:"signingScheme"`
	Signature     string `json:"signature"`
	From          string `json:"from"`
}

// SubmitOrder posts an order signed under the contract's EIP-1271 scheme and
// returns the venue's order uid. A non-2xx response surfaces the upstream
// error body verbatim via ErrOrderRejected; transport failures map to
// ErrUpstreamUnavailable.
func (c *Client) SubmitOrder(ctx context.Context, order Order, compositeSig hexutil.Bytes, from common.Address) (string, error) {
	payload := orderSubmission{
		Order:         order,
		SigningScheme: "eip1271",
		Signature:     compositeSig.String(),
		From:          from.Hex(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: submit order: %v", types.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d %s", ErrOrderRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	// The venue returns the order uid as a JSON string.
	uid := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if uid == "" {
		return "", fmt.Errorf("%w: empty order uid in response", types.ErrUpstreamUnavailable)
	}

	log.Debug().Str("order_uid", uid).Msg("exchange order accepted")
	return uid, nil
}

// GetOrderStatus fetches the venue's current view of an order.
func (c *Client) GetOrderStatus(ctx context.Context, uid string) (*OrderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders/"+uid, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: order status: %v", types.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: order status responded %d", types.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var status OrderStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: decode order status: %v", types.ErrUpstreamUnavailable, err)
	}
	if status.UID == "" {
		status.UID = uid
	}
	return &status, nil
}
