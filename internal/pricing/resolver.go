// internal/pricing/resolver.go
package pricing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/solsniper/simbot/internal/types"
	"go.uber.org/zap"
)

// ErrQuoteNotFound is returned by quote providers when a token cannot be
// resolved to a live market. The resolver treats it as a cache miss, not
// a failure.
var ErrQuoteNotFound = errors.New("quote not found")

// Quote is a current market snapshot for one token.
type Quote struct {
	PriceUSD       float64
	LiquidityUSD   float64
	Volume24hUSD   float64
	PriceChange24h float64
}

// QuoteProvider supplies live quotes. The engine must keep working when
// the provider is absent or failing.
type QuoteProvider interface {
	GetQuote(ctx context.Context, tokenAddress string) (*Quote, error)
}

// Resolver establishes the entry price for a position:
// signal price first, then a live quote, then model synthesis. The
// result is never retroactively corrected.
type Resolver struct {
	provider QuoteProvider // may be nil
	model    SimulationModel
	timeout  time.Duration
	logger   *zap.Logger
}

// NewResolver creates a price resolver. provider may be nil, in which
// case every unknown price is synthesized.
func NewResolver(provider QuoteProvider, model SimulationModel, logger *zap.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		model:    model,
		timeout:  5 * time.Second,
		logger:   logger.Named("price_resolver"),
	}
}

// EntryPrice resolves a strictly positive entry price for the signal.
func (r *Resolver) EntryPrice(ctx context.Context, sig *types.TokenSignal) float64 {
	if sig.PriceUSD > 0 {
		return math.Max(sig.PriceUSD, PriceFloor)
	}

	if r.provider != nil {
		qctx, cancel := context.WithTimeout(ctx, r.timeout)
		quote, err := r.provider.GetQuote(qctx, sig.Address)
		cancel()
		switch {
		case err == nil && quote.PriceUSD > 0:
			return math.Max(quote.PriceUSD, PriceFloor)
		case errors.Is(err, ErrQuoteNotFound):
			r.logger.Debug("No live market for token, synthesizing price",
				zap.String("token", sig.Address))
		case err != nil:
			r.logger.Warn("Quote lookup failed, falling back to synthesis",
				zap.String("token", sig.Address),
				zap.Error(err))
		}
	}

	price := r.model.FallbackPrice(sig)
	r.logger.Debug("Synthesized fallback price",
		zap.String("token", sig.Address),
		zap.Float64("price", price),
		zap.Float64("liquidity_usd", sig.LiquidityUSD))
	return price
}
