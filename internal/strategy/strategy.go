// internal/strategy/strategy.go
package strategy

import (
	"sort"
	"time"

	"github.com/solsniper/simbot/internal/types"
)

// ExitTier is one rung of a take-profit ladder. Ladders are evaluated
// highest ROI threshold first; the first qualifying tier fires.
type ExitTier struct {
	ROIThresholdPercent float64
	SellFractionPercent float64
	Label               string
}

// StopLoss closes the full position once ROI falls to the threshold.
type StopLoss struct {
	ROIThresholdPercent float64 // negative
	Label               string
}

// TimeExit closes the full position after MaxHold regardless of price.
type TimeExit struct {
	MaxHold time.Duration
	Label   string
}

// EntryGate holds the hard requirements a signal must clear before sizing.
type EntryGate struct {
	MinSecurityScore int
	MaxTokenAge      time.Duration
	MinLiquidityUSD  float64
}

// Bucket maps a minimum metric value to a sizing multiplier. Buckets are
// not cumulative: the highest qualifying bucket wins.
type Bucket struct {
	Min        float64
	Multiplier float64
}

// highestMatch returns the multiplier of the highest bucket whose Min the
// value meets, or 1.0 when no bucket qualifies.
func highestMatch(buckets []Bucket, value float64) float64 {
	best := 1.0
	bestMin := -1.0
	for _, b := range buckets {
		if value >= b.Min && b.Min > bestMin {
			best = b.Multiplier
			bestMin = b.Min
		}
	}
	return best
}

// Strategy is the static rule set for one token source family.
type Strategy struct {
	Name             string
	Tier             types.PriorityTier
	BasePositionSize float64 // virtual SOL committed before multipliers
	MaxHoldTime      time.Duration

	Entry      EntryGate
	ExitLadder []ExitTier // kept sorted descending by threshold
	StopLoss   StopLoss
	TimeExit   *TimeExit

	// Sizing multiplier tables. Age buckets are keyed by recency in
	// seconds remaining under MaxTokenAge; security by score; liquidity
	// by USD.
	AgeBuckets       []Bucket
	SecurityBuckets  []Bucket
	LiquidityBuckets []Bucket
	SourceMultiplier float64

	// SecondarySecurityBar is the lower bar a MEDIUM-urgency signal must
	// clear to still be bought rather than watched.
	SecondarySecurityBar int
}

// normalize sorts the exit ladder descending so the highest threshold is
// always evaluated first.
func (s *Strategy) normalize() *Strategy {
	sort.Slice(s.ExitLadder, func(i, j int) bool {
		return s.ExitLadder[i].ROIThresholdPercent > s.ExitLadder[j].ROIThresholdPercent
	})
	if s.SourceMultiplier == 0 {
		s.SourceMultiplier = 1.0
	}
	return s
}

// AgeMultiplier returns the sizing multiplier for a token of the given age.
// Younger tokens qualify for higher buckets, so the lookup is inverted:
// bucket Min values are "freshness seconds" (MaxTokenAge - age).
func (s *Strategy) AgeMultiplier(age time.Duration) float64 {
	freshness := (s.Entry.MaxTokenAge - age).Seconds()
	if freshness < 0 {
		freshness = 0
	}
	return highestMatch(s.AgeBuckets, freshness)
}

// SecurityMultiplier returns the sizing multiplier for a security score.
func (s *Strategy) SecurityMultiplier(score int) float64 {
	return highestMatch(s.SecurityBuckets, float64(score))
}

// LiquidityMultiplier returns the sizing multiplier for pool liquidity.
func (s *Strategy) LiquidityMultiplier(liquidityUSD float64) float64 {
	return highestMatch(s.LiquidityBuckets, liquidityUSD)
}

// CopyLadder returns a copy of the exit ladder so runtime catalog tuning
// never retroactively alters an open position.
func (s *Strategy) CopyLadder() []ExitTier {
	ladder := make([]ExitTier, len(s.ExitLadder))
	copy(ladder, s.ExitLadder)
	return ladder
}
