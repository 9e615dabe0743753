// ====================================
// File: internal/bot/feeder.go
// ====================================
package bot

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/solsniper/simbot/internal/engine"
	"github.com/solsniper/simbot/internal/types"
)

// Feeder generates synthetic token detections so the simulation has a
// signal flow without any external scanner. Every generated signal goes
// through the same pipeline a real detection would.
type Feeder struct {
	engine *engine.Engine
	logger *zap.Logger
	rng    *rand.Rand
	seq    int
}

var feederSources = []string{
	"pump.fun",
	"raydium",
	"dexscreener",
	"trending",
	"unknown-scanner",
}

var feederSymbols = []string{
	"MOON", "DOGE2", "PEPE", "WIF", "BONK", "CHAD", "GIGA", "FROG", "CAT", "SNEK",
}

// NewFeeder creates a feeder seeded for reproducible signal streams.
func NewFeeder(eng *engine.Engine, logger *zap.Logger, seed int64) *Feeder {
	return &Feeder{
		engine: eng,
		logger: logger.Named("feeder"),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Run emits one synthetic signal every few seconds until ctx ends.
func (f *Feeder) Run(ctx context.Context) {
	f.logger.Info("🎲 Demo signal feeder started")

	ticker := time.NewTicker(7 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Demo signal feeder stopped")
			return
		case <-ticker.C:
			sig := f.nextSignal()
			if err := f.engine.OnTokenDetected(ctx, sig); err != nil {
				f.logger.Warn("Signal rejected",
					zap.String("token", sig.Address),
					zap.Error(err))
			}
		}
	}
}

// nextSignal fabricates one plausible token detection.
func (f *Feeder) nextSignal() *types.TokenSignal {
	f.seq++

	source := feederSources[f.rng.Intn(len(feederSources))]
	symbol := feederSymbols[f.rng.Intn(len(feederSymbols))]

	sig := &types.TokenSignal{
		Address:       fmt.Sprintf("SIM%09dx%08x", f.seq, f.rng.Uint32()),
		Symbol:        symbol,
		Name:          symbol + " Token",
		CreatedAt:     time.Now().Add(-time.Duration(f.rng.Intn(600)) * time.Second),
		LiquidityUSD:  float64(500 + f.rng.Intn(200_000)),
		SecurityScore: f.rng.Intn(101),
		SourceTag:     source,
		Metadata:      map[string]interface{}{},
	}
	sig.LiquiditySOL = sig.LiquidityUSD / 150 // rough SOL/USD for the demo

	// A slice of signals carries momentum hints, like a real scanner.
	if f.rng.Float64() < 0.2 {
		sig.Metadata["pump_detected"] = true
	}
	if f.rng.Float64() < 0.3 {
		sig.Metadata["trending_score"] = float64(f.rng.Intn(101))
	}

	return sig
}
