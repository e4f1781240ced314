package oracle

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	weth   = common.HexToAddress("0x4200000000000000000000000000000000000006")
	feedID = "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"
)

func hermesStub(t *testing.T, price string, expo int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/updates/price/latest", r.URL.Path)
		require.Equal(t, feedID, r.URL.Query()["ids[]"][0])
		fmt.Fprintf(w, `{"parsed":[{"id":"%s","price":{"price":"%s","conf":"1","expo":%d,"publish_time":1700000000}}]}`,
			feedID[2:], price, expo)
	}))
}

func TestPythSourcePrice(t *testing.T) {
	srv := hermesStub(t, "251234567890", -8)
	defer srv.Close()

	src := NewPythSource(srv.URL, map[common.Address]string{weth: feedID})
	price, err := src.Price(context.Background(), weth)
	require.NoError(t, err)
	assert.Equal(t, "251234567890", price.String())
}

func TestPythSourceNormalizesExponent(t *testing.T) {
	// expo -10 needs a divide-by-100 to land on 8 decimals
	srv := hermesStub(t, "25123456789000", -10)
	defer srv.Close()

	src := NewPythSource(srv.URL, map[common.Address]string{weth: feedID})
	price, err := src.Price(context.Background(), weth)
	require.NoError(t, err)
	assert.Equal(t, "251234567890", price.String())

	// expo -6 scales up
	srv2 := hermesStub(t, "2512345678", -6)
	defer srv2.Close()

	src2 := NewPythSource(srv2.URL, map[common.Address]string{weth: feedID})
	price, err = src2.Price(context.Background(), weth)
	require.NoError(t, err)
	assert.Equal(t, "251234567800", price.String())
}

func TestPythSourceFallsBack(t *testing.T) {
	ctx := context.Background()

	// Upstream failure
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewPythSource(srv.URL, map[common.Address]string{weth: feedID})
	price, err := src.Price(ctx, weth)
	require.NoError(t, err)
	assert.Equal(t, FallbackPrice.String(), price.String())

	// Unknown asset
	price, err = src.Price(ctx, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, FallbackPrice.String(), price.String())

	// Empty payload
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"parsed":[]}`)
	}))
	defer srv2.Close()

	src2 := NewPythSource(srv2.URL, map[common.Address]string{weth: feedID})
	price, err = src2.Price(ctx, weth)
	require.NoError(t, err)
	assert.Equal(t, FallbackPrice.String(), price.String())
}

func TestStaticSource(t *testing.T) {
	src := Static{Value: big.NewInt(123)}

	price, err := src.Price(context.Background(), weth)
	require.NoError(t, err)
	assert.Equal(t, "123", price.String())

	// Callers get a copy, not the shared value
	price.SetInt64(999)
	price2, _ := src.Price(context.Background(), weth)
	assert.Equal(t, "123", price2.String())
}
