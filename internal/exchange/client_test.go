package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-fi/optio-api/internal/types"
)

func TestSubmitOrder(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`"0xorderuid0001"`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	uid, err := client.SubmitOrder(context.Background(), testOrder(), hexutil.Bytes{0x01, 0x02}, receiver)
	require.NoError(t, err)
	assert.Equal(t, "0xorderuid0001", uid)

	assert.Equal(t, "eip1271", captured["signingScheme"])
	assert.Equal(t, "0x0102", captured["signature"])
	assert.Equal(t, receiver.Hex(), captured["from"])
	assert.Equal(t, "sell", captured["kind"])
}

func TestSubmitOrderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorType":"InsufficientBalance","description":"not enough sellToken"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.SubmitOrder(context.Background(), testOrder(), nil, receiver)
	require.ErrorIs(t, err, ErrOrderRejected)
	// The upstream message survives verbatim
	assert.Contains(t, err.Error(), "InsufficientBalance")
}

func TestSubmitOrderTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(srv.URL)
	_, err := client.SubmitOrder(context.Background(), testOrder(), nil, receiver)
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
}

func TestGetOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders/0xuid", r.URL.Path)
		json.NewEncoder(w).Encode(OrderStatus{
			Status:             StatusFulfilled,
			ExecutedSellAmount: "1000000000000000000",
			ExecutedBuyAmount:  "1250000000",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	status, err := client.GetOrderStatus(context.Background(), "0xuid")
	require.NoError(t, err)

	assert.Equal(t, StatusFulfilled, status.Status)
	assert.Equal(t, "0xuid", status.UID) // filled in when the venue omits it
	assert.Equal(t, "1250000000", status.ExecutedBuyAmount)
}

func TestGetOrderStatusUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetOrderStatus(context.Background(), "0xuid")
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
}
