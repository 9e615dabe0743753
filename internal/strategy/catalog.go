// internal/strategy/catalog.go
package strategy

import (
	"strings"
	"time"

	"github.com/solsniper/simbot/internal/types"
)

// Catalog resolves a token's source tag to the Strategy for its family.
// Resolution is a pure function of the tag; unknown tags fall back to a
// conservative default so unknown provenance never gets the most
// permissive treatment.
type Catalog struct {
	families []family
	fallback *Strategy
}

type family struct {
	match    string // case-insensitive substring
	strategy *Strategy
}

// NewCatalog builds the built-in strategy table.
func NewCatalog() *Catalog {
	return &Catalog{
		families: []family{
			{match: "pump", strategy: pumpStrategy()},
			{match: "raydium", strategy: raydiumStrategy()},
			{match: "dexscreener", strategy: trendingStrategy()},
			{match: "trending", strategy: trendingStrategy()},
		},
		fallback: defaultStrategy(),
	}
}

// Resolve returns the Strategy for a source tag. Matching is
// case-insensitive substring matching; exactly one strategy (or the
// fallback) resolves per tag.
func (c *Catalog) Resolve(sourceTag string) *Strategy {
	tag := strings.ToLower(sourceTag)
	for _, f := range c.families {
		if strings.Contains(tag, f.match) {
			return f.strategy
		}
	}
	return c.fallback
}

// Default returns the fallback strategy for unknown sources.
func (c *Catalog) Default() *Strategy {
	return c.fallback
}

func pumpStrategy() *Strategy {
	s := &Strategy{
		Name:             "pump",
		Tier:             types.TierUltraHigh,
		BasePositionSize: 0.02,
		MaxHoldTime:      30 * time.Minute,
		Entry: EntryGate{
			MinSecurityScore: 25,
			MaxTokenAge:      10 * time.Minute,
			MinLiquidityUSD:  2_000,
		},
		ExitLadder: []ExitTier{
			{ROIThresholdPercent: 500, SellFractionPercent: 80, Label: "moon bag"},
			{ROIThresholdPercent: 200, SellFractionPercent: 60, Label: "take profit 3x"},
			{ROIThresholdPercent: 100, SellFractionPercent: 40, Label: "take profit 2x"},
			{ROIThresholdPercent: 50, SellFractionPercent: 25, Label: "early scalp"},
		},
		StopLoss: StopLoss{ROIThresholdPercent: -35, Label: "stop loss"},
		TimeExit: &TimeExit{MaxHold: 30 * time.Minute, Label: "max hold time reached"},
		// Freshness seconds under MaxTokenAge: a 2-minute-old token on a
		// 10-minute gate has 480s of freshness and hits the top bucket.
		AgeBuckets: []Bucket{
			{Min: 420, Multiplier: 1.5},
			{Min: 240, Multiplier: 1.25},
			{Min: 60, Multiplier: 1.0},
		},
		SecurityBuckets: []Bucket{
			{Min: 90, Multiplier: 1.5},
			{Min: 70, Multiplier: 1.2},
			{Min: 40, Multiplier: 1.0},
		},
		LiquidityBuckets: []Bucket{
			{Min: 50_000, Multiplier: 1.5},
			{Min: 20_000, Multiplier: 1.25},
			{Min: 5_000, Multiplier: 1.0},
		},
		SourceMultiplier:     1.3,
		SecondarySecurityBar: 40,
	}
	return s.normalize()
}

func raydiumStrategy() *Strategy {
	s := &Strategy{
		Name:             "raydium",
		Tier:             types.TierHigh,
		BasePositionSize: 0.03,
		MaxHoldTime:      2 * time.Hour,
		Entry: EntryGate{
			MinSecurityScore: 40,
			MaxTokenAge:      1 * time.Hour,
			MinLiquidityUSD:  10_000,
		},
		ExitLadder: []ExitTier{
			{ROIThresholdPercent: 300, SellFractionPercent: 75, Label: "take profit 4x"},
			{ROIThresholdPercent: 150, SellFractionPercent: 50, Label: "take profit 2.5x"},
			{ROIThresholdPercent: 60, SellFractionPercent: 30, Label: "scale out"},
		},
		StopLoss: StopLoss{ROIThresholdPercent: -25, Label: "stop loss"},
		TimeExit: &TimeExit{MaxHold: 2 * time.Hour, Label: "max hold time reached"},
		AgeBuckets: []Bucket{
			{Min: 3000, Multiplier: 1.4},
			{Min: 1800, Multiplier: 1.2},
			{Min: 600, Multiplier: 1.0},
		},
		SecurityBuckets: []Bucket{
			{Min: 85, Multiplier: 1.4},
			{Min: 65, Multiplier: 1.15},
			{Min: 50, Multiplier: 1.0},
		},
		LiquidityBuckets: []Bucket{
			{Min: 100_000, Multiplier: 1.4},
			{Min: 50_000, Multiplier: 1.2},
			{Min: 20_000, Multiplier: 1.0},
		},
		SourceMultiplier:     1.1,
		SecondarySecurityBar: 55,
	}
	return s.normalize()
}

func trendingStrategy() *Strategy {
	s := &Strategy{
		Name:             "trending",
		Tier:             types.TierMedium,
		BasePositionSize: 0.025,
		MaxHoldTime:      4 * time.Hour,
		Entry: EntryGate{
			MinSecurityScore: 50,
			MaxTokenAge:      24 * time.Hour,
			MinLiquidityUSD:  25_000,
		},
		ExitLadder: []ExitTier{
			{ROIThresholdPercent: 200, SellFractionPercent: 70, Label: "take profit 3x"},
			{ROIThresholdPercent: 80, SellFractionPercent: 40, Label: "take profit"},
			{ROIThresholdPercent: 30, SellFractionPercent: 20, Label: "trim"},
		},
		StopLoss: StopLoss{ROIThresholdPercent: -20, Label: "stop loss"},
		TimeExit: &TimeExit{MaxHold: 4 * time.Hour, Label: "max hold time reached"},
		AgeBuckets: []Bucket{
			{Min: 72_000, Multiplier: 1.3},
			{Min: 36_000, Multiplier: 1.1},
		},
		SecurityBuckets: []Bucket{
			{Min: 80, Multiplier: 1.3},
			{Min: 65, Multiplier: 1.1},
		},
		LiquidityBuckets: []Bucket{
			{Min: 250_000, Multiplier: 1.3},
			{Min: 100_000, Multiplier: 1.15},
		},
		SourceMultiplier:     1.0,
		SecondarySecurityBar: 60,
	}
	return s.normalize()
}

// defaultStrategy is the conservative fallback for unrecognized sources:
// high security floor, small size, tight stop.
func defaultStrategy() *Strategy {
	s := &Strategy{
		Name:             "default",
		Tier:             types.TierLow,
		BasePositionSize: 0.01,
		MaxHoldTime:      1 * time.Hour,
		Entry: EntryGate{
			MinSecurityScore: 70,
			MaxTokenAge:      6 * time.Hour,
			MinLiquidityUSD:  50_000,
		},
		ExitLadder: []ExitTier{
			{ROIThresholdPercent: 100, SellFractionPercent: 100, Label: "take profit 2x"},
			{ROIThresholdPercent: 40, SellFractionPercent: 50, Label: "take profit"},
		},
		StopLoss: StopLoss{ROIThresholdPercent: -15, Label: "stop loss"},
		TimeExit: &TimeExit{MaxHold: 1 * time.Hour, Label: "max hold time reached"},
		SecurityBuckets: []Bucket{
			{Min: 90, Multiplier: 1.2},
		},
		LiquidityBuckets: []Bucket{
			{Min: 200_000, Multiplier: 1.2},
		},
		SourceMultiplier:     0.8,
		SecondarySecurityBar: 80,
	}
	return s.normalize()
}
