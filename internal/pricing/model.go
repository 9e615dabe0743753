// internal/pricing/model.go
// Package pricing establishes entry prices for new positions and drives
// simulated price movement for tokens with no live feed.
package pricing

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/solsniper/simbot/internal/types"
)

// PriceFloor is the minimum price any synthesis or simulation step can
// produce. Entry prices are the immutable ROI basis for a position's
// lifetime, so a zero or negative price is never allowed.
const PriceFloor = 1e-9

// SimulationModel produces synthetic prices. It is injectable so tests
// can replace the random walk with a deterministic stub.
type SimulationModel interface {
	// FallbackPrice synthesizes an entry price for a token whose live
	// price is unknown.
	FallbackPrice(sig *types.TokenSignal) float64

	// NextPrice advances a position's price one tick. Volatility depends
	// on elapsed hold time and the position's risk tier.
	NextPrice(current float64, elapsed time.Duration, risk types.RiskLevel) float64
}

// RandomWalkModel is a bounded random-walk with occasional jump events.
// Volatility starts high and decays as the position ages, which mirrors
// how fresh listings behave: violent early, calmer later.
type RandomWalkModel struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomWalkModel creates a model seeded from the given source. Pass a
// fixed seed for reproducible simulations.
func NewRandomWalkModel(seed int64) *RandomWalkModel {
	return &RandomWalkModel{rng: rand.New(rand.NewSource(seed))}
}

// FallbackPrice derives a price from liquidity magnitude and source
// family with bounded randomness. Thin pools get micro-cap prices.
func (m *RandomWalkModel) FallbackPrice(sig *types.TokenSignal) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := 1e-6
	switch {
	case sig.LiquidityUSD >= 250_000:
		base = 1e-4
	case sig.LiquidityUSD >= 50_000:
		base = 1e-5
	case sig.LiquidityUSD >= 10_000:
		base = 5e-6
	}

	// Pump-style launches start from the bonding-curve floor.
	if strings.Contains(strings.ToLower(sig.SourceTag), "pump") {
		base /= 10
	}

	price := base * (0.5 + m.rng.Float64()) // 0.5x..1.5x
	return math.Max(price, PriceFloor)
}

// NextPrice applies one random-walk step with decaying volatility plus a
// small-probability pump or dump jump.
func (m *RandomWalkModel) NextPrice(current float64, elapsed time.Duration, risk types.RiskLevel) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current <= 0 {
		current = PriceFloor
	}

	vol := baseVolatility(risk) * decay(elapsed)

	// Mild upward drift early: snipes are taken on momentum.
	drift := 0.002 * decay(elapsed)
	step := drift + (m.rng.Float64()*2-1)*vol

	// Jump events. Riskier tiers both moon and rug more often.
	roll := m.rng.Float64()
	switch {
	case roll < jumpProbability(risk):
		step += 0.5 + m.rng.Float64()*1.5 // big pump: +50%..+200%
	case roll > 1-jumpProbability(risk):
		step -= 0.4 + m.rng.Float64()*0.4 // big dump: -40%..-80%
	}

	next := current * (1 + step)
	return math.Max(next, PriceFloor)
}

// baseVolatility is the per-tick swing for each risk tier.
func baseVolatility(risk types.RiskLevel) float64 {
	switch risk {
	case types.RiskVeryHigh:
		return 0.12
	case types.RiskHigh:
		return 0.08
	case types.RiskMedium:
		return 0.05
	case types.RiskLow:
		return 0.03
	default:
		return 0.02
	}
}

// decay halves volatility roughly every 15 minutes of hold time.
func decay(elapsed time.Duration) float64 {
	halflife := 15 * time.Minute
	d := math.Pow(0.5, elapsed.Seconds()/halflife.Seconds())
	if d < 0.1 {
		return 0.1
	}
	return d
}

func jumpProbability(risk types.RiskLevel) float64 {
	switch risk {
	case types.RiskVeryHigh:
		return 0.02
	case types.RiskHigh:
		return 0.012
	default:
		return 0.006
	}
}
