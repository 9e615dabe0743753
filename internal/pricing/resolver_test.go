// internal/pricing/resolver_test.go
package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/solsniper/simbot/internal/types"
)

type stubProvider struct {
	quote *Quote
	err   error
	calls int
}

func (s *stubProvider) GetQuote(_ context.Context, _ string) (*Quote, error) {
	s.calls++
	return s.quote, s.err
}

func TestEntryPricePrefersSignalPrice(t *testing.T) {
	provider := &stubProvider{quote: &Quote{PriceUSD: 99}}
	r := NewResolver(provider, NewRandomWalkModel(1), zaptest.NewLogger(t))

	sig := &types.TokenSignal{Address: "tok", PriceUSD: 0.5}

	assert.Equal(t, 0.5, r.EntryPrice(context.Background(), sig))
	assert.Zero(t, provider.calls, "live lookup skipped when signal carries a price")
}

func TestEntryPriceFallsBackToQuote(t *testing.T) {
	provider := &stubProvider{quote: &Quote{PriceUSD: 0.002}}
	r := NewResolver(provider, NewRandomWalkModel(1), zaptest.NewLogger(t))

	sig := &types.TokenSignal{Address: "tok", LiquidityUSD: 30_000}

	assert.Equal(t, 0.002, r.EntryPrice(context.Background(), sig))
	assert.Equal(t, 1, provider.calls)
}

func TestEntryPriceSynthesizesWhenNoMarket(t *testing.T) {
	provider := &stubProvider{err: ErrQuoteNotFound}
	r := NewResolver(provider, NewRandomWalkModel(1), zaptest.NewLogger(t))

	sig := &types.TokenSignal{Address: "tok", LiquidityUSD: 30_000, SourceTag: "pump"}

	price := r.EntryPrice(context.Background(), sig)
	assert.GreaterOrEqual(t, price, PriceFloor)
}

func TestEntryPriceSynthesizesOnProviderFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("api down")}
	r := NewResolver(provider, NewRandomWalkModel(1), zaptest.NewLogger(t))

	sig := &types.TokenSignal{Address: "tok", LiquidityUSD: 10_000}

	price := r.EntryPrice(context.Background(), sig)
	assert.GreaterOrEqual(t, price, PriceFloor)
}

func TestEntryPriceWithoutProvider(t *testing.T) {
	r := NewResolver(nil, NewRandomWalkModel(1), zaptest.NewLogger(t))

	sig := &types.TokenSignal{Address: "tok", LiquidityUSD: 10_000}

	price := r.EntryPrice(context.Background(), sig)
	assert.GreaterOrEqual(t, price, PriceFloor)
}

func TestEntryPriceNeverBelowFloor(t *testing.T) {
	r := NewResolver(nil, NewRandomWalkModel(1), zaptest.NewLogger(t))

	sig := &types.TokenSignal{Address: "tok", PriceUSD: 1e-30}

	assert.Equal(t, PriceFloor, r.EntryPrice(context.Background(), sig))
}
