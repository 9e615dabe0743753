// internal/marketdata/client_test.go
package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solsniper/simbot/internal/pricing"
)

// wsolMint is a real, parseable Solana mint address.
const wsolMint = "So11111111111111111111111111111111111111112"

func TestGetQuotePicksDeepestSolanaPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, wsolMint)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"schemaVersion": "1.0.0",
			"pairs": [
				{"chainId": "solana", "dexId": "raydium", "pairAddress": "pair-a",
				 "priceUsd": "0.002", "liquidity": {"usd": 50000},
				 "volume": {"h24": 120000}, "priceChange": {"h24": 14.5}},
				{"chainId": "ethereum", "dexId": "uniswap", "pairAddress": "pair-b",
				 "priceUsd": "0.009", "liquidity": {"usd": 900000}},
				{"chainId": "solana", "dexId": "orca", "pairAddress": "pair-c",
				 "priceUsd": "0.003", "liquidity": {"usd": 150000},
				 "volume": {"h24": 80000}, "priceChange": {"h24": -3.2}}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zaptest.NewLogger(t))
	defer client.Close()

	quote, err := client.GetQuote(context.Background(), wsolMint)
	require.NoError(t, err)

	// pair-c: deepest liquidity on the right chain. The ethereum pair is
	// ignored even though its pool is bigger.
	assert.Equal(t, 0.003, quote.PriceUSD)
	assert.Equal(t, 150000.0, quote.LiquidityUSD)
	assert.Equal(t, 80000.0, quote.Volume24hUSD)
	assert.Equal(t, -3.2, quote.PriceChange24h)
}

func TestGetQuoteSyntheticAddressShortCircuits(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, zaptest.NewLogger(t))
	defer client.Close()

	// Not a parseable mint: no live market can exist for it.
	_, err := client.GetQuote(context.Background(), "SIM000000001xdeadbeef")
	assert.ErrorIs(t, err, pricing.ErrQuoteNotFound)
	assert.False(t, called, "no request should be made for synthetic addresses")
}

func TestGetQuoteNoSolanaPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"schemaVersion": "1.0.0", "pairs": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zaptest.NewLogger(t))
	defer client.Close()

	_, err := client.GetQuote(context.Background(), wsolMint)
	assert.ErrorIs(t, err, pricing.ErrQuoteNotFound)
}

func TestGetQuoteClientErrorNotRetried(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, zaptest.NewLogger(t))
	defer client.Close()

	_, err := client.GetQuote(context.Background(), wsolMint)
	require.Error(t, err)
	assert.Equal(t, 1, requests, "4xx responses are permanent failures")
}

func TestGetQuoteRetriesServerErrors(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"pairs": [{"chainId": "solana", "pairAddress": "p",
			           "priceUsd": "0.001", "liquidity": {"usd": 10000}}]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zaptest.NewLogger(t))
	defer client.Close()

	quote, err := client.GetQuote(context.Background(), wsolMint)
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
	assert.Equal(t, 0.001, quote.PriceUSD)
}
