// internal/marketdata/client.go

// Package marketdata supplies live token quotes: a rate-limited HTTP
// client against a DexScreener-compatible API plus a websocket stream
// for push price updates. Both are optional inputs; the simulation keeps
// running without them.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/solsniper/simbot/internal/pricing"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.dexscreener.com/latest/dex"
	rateLimit      = 300 // requests per minute
	solanaChain    = "solana"
)

// pairsResponse is the API envelope for token pair lookups.
type pairsResponse struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []PairInfo `json:"pairs"`
}

// PairInfo is one trading pair as reported by the API.
type PairInfo struct {
	ChainID     string        `json:"chainId"`
	DexID       string        `json:"dexId"`
	PairAddress string        `json:"pairAddress"`
	BaseToken   TokenInfo     `json:"baseToken"`
	QuoteToken  TokenInfo     `json:"quoteToken"`
	PriceUSD    string        `json:"priceUsd"`
	Liquidity   LiquidityInfo `json:"liquidity"`
	Volume      VolumeInfo    `json:"volume"`
	PriceChange PriceChange   `json:"priceChange"`
}

// TokenInfo identifies one side of a pair.
type TokenInfo struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// LiquidityInfo is the pair's pooled liquidity.
type LiquidityInfo struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// VolumeInfo is rolling trade volume in USD.
type VolumeInfo struct {
	H24 float64 `json:"h24"`
}

// PriceChange is rolling price change in percent.
type PriceChange struct {
	H24 float64 `json:"h24"`
}

// Client queries a DexScreener-compatible HTTP API for live quotes. It
// implements pricing.QuoteProvider.
type Client struct {
	baseURL     string
	client      *http.Client
	logger      *zap.Logger
	rateLimiter *time.Ticker
	mu          sync.Mutex
}

// NewClient creates a quote client. baseURL may be empty to use the
// public DexScreener endpoint.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:      logger.Named("dexscreener"),
		rateLimiter: time.NewTicker(time.Minute / rateLimit),
	}
}

// GetQuote returns the current quote for a token, taken from its
// highest-liquidity Solana pair. Synthetic simulation addresses are not
// valid mints and report pricing.ErrQuoteNotFound immediately, without
// burning a request.
func (c *Client) GetQuote(ctx context.Context, tokenAddress string) (*pricing.Quote, error) {
	if _, err := solana.PublicKeyFromBase58(tokenAddress); err != nil {
		return nil, pricing.ErrQuoteNotFound
	}

	url := fmt.Sprintf("%s/tokens/%s", c.baseURL, tokenAddress)

	operation := func() (*pairsResponse, error) {
		return c.doRequest(ctx, url)
	}

	response, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Debug("Quote request failed, retrying",
				zap.String("token", tokenAddress),
				zap.Duration("backoff", d),
				zap.Error(err))
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to get token pairs: %w", err)
	}

	best := bestPair(response.Pairs)
	if best == nil {
		return nil, pricing.ErrQuoteNotFound
	}

	priceUSD, err := strconv.ParseFloat(best.PriceUSD, 64)
	if err != nil || priceUSD <= 0 {
		return nil, pricing.ErrQuoteNotFound
	}

	c.logger.Debug("Quote resolved",
		zap.String("token", tokenAddress),
		zap.String("pair", best.PairAddress),
		zap.String("dex", best.DexID),
		zap.Float64("price_usd", priceUSD),
		zap.Float64("liquidity_usd", best.Liquidity.USD))

	return &pricing.Quote{
		PriceUSD:       priceUSD,
		LiquidityUSD:   best.Liquidity.USD,
		Volume24hUSD:   best.Volume.H24,
		PriceChange24h: best.PriceChange.H24,
	}, nil
}

// bestPair picks the Solana pair with the deepest liquidity.
func bestPair(pairs []PairInfo) *PairInfo {
	var best *PairInfo
	maxLiquidity := 0.0

	for i := range pairs {
		pair := &pairs[i]
		if pair.ChainID != solanaChain {
			continue
		}
		if pair.Liquidity.USD > maxLiquidity {
			maxLiquidity = pair.Liquidity.USD
			best = pair
		}
	}
	return best
}

// doRequest performs one rate-limited GET against the API.
func (c *Client) doRequest(ctx context.Context, url string) (*pairsResponse, error) {
	select {
	case <-ctx.Done():
		return nil, backoff.Permanent(ctx.Err())
	case <-c.rateLimiter.C:
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var response pairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &response, nil
}

// Close releases the rate limiter.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimiter.Stop()
}
