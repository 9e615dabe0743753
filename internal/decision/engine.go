// internal/decision/engine.go
// Package decision converts a token signal plus its resolved strategy
// into a sized trade decision. Evaluate is pure given the signal and the
// clock: identical inputs with a fixed "now" produce identical output,
// so the whole path is reproducible in tests.
package decision

import (
	"fmt"
	"math"
	"time"

	"github.com/solsniper/simbot/internal/strategy"
	"github.com/solsniper/simbot/internal/types"
	"go.uber.org/zap"
)

const (
	// HardSizeCeiling caps every position regardless of multipliers.
	HardSizeCeiling = 0.1
	// MinViableSize is the smallest position worth opening.
	MinViableSize = 0.001
	// minExpectedHold floors the expected hold estimate.
	minExpectedHold = 5 * time.Minute
)

// Decision is the ephemeral result of evaluating one token signal.
type Decision struct {
	Action       types.Action
	Strategy     *strategy.Strategy
	PositionSize float64
	Confidence   int // 0-100, reporting only
	RiskLevel    types.RiskLevel
	Urgency      types.Urgency
	ExpectedHold time.Duration
	Reason       string
}

// Engine evaluates token signals against the strategy catalog.
type Engine struct {
	catalog *strategy.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine creates a decision engine. now may be nil for the wall clock;
// tests inject a fixed clock for reproducibility.
func NewEngine(catalog *strategy.Catalog, logger *zap.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		catalog: catalog,
		logger:  logger.Named("decision"),
		now:     now,
	}
}

// Evaluate runs the full decision pipeline: strategy resolution, entry
// gates, sizing, urgency, action mapping, and the reporting labels.
func (e *Engine) Evaluate(sig *types.TokenSignal) *Decision {
	strat := e.catalog.Resolve(sig.SourceTag)
	now := e.now()
	age := sig.Age(now)

	// Entry gates, each a hard rejection naming its threshold.
	if sig.SecurityScore < strat.Entry.MinSecurityScore {
		return e.skip(strat, fmt.Sprintf("security score %d below minimum %d",
			sig.SecurityScore, strat.Entry.MinSecurityScore))
	}
	if age > strat.Entry.MaxTokenAge {
		return e.skip(strat, fmt.Sprintf("token age %s exceeds maximum %s",
			age.Round(time.Second), strat.Entry.MaxTokenAge))
	}
	if sig.LiquidityUSD < strat.Entry.MinLiquidityUSD {
		return e.skip(strat, fmt.Sprintf("liquidity $%.0f below minimum $%.0f",
			sig.LiquidityUSD, strat.Entry.MinLiquidityUSD))
	}

	size := e.positionSize(strat, sig, age)
	urgency := e.urgency(strat, sig, age)
	action, reason := e.action(strat, sig, urgency)

	d := &Decision{
		Action:       action,
		Strategy:     strat,
		PositionSize: size,
		Confidence:   e.confidence(strat, sig, age),
		RiskLevel:    e.riskLevel(strat, sig, age),
		Urgency:      urgency,
		ExpectedHold: e.expectedHold(strat, sig),
		Reason:       reason,
	}
	if !action.Actionable() {
		d.PositionSize = 0
	}

	e.logger.Debug("Signal evaluated",
		zap.String("token", sig.Address),
		zap.String("strategy", strat.Name),
		zap.String("action", string(action)),
		zap.Float64("size", d.PositionSize),
		zap.String("urgency", string(urgency)),
		zap.String("reason", reason))

	return d
}

func (e *Engine) skip(strat *strategy.Strategy, reason string) *Decision {
	return &Decision{
		Action:    types.ActionSkip,
		Strategy:  strat,
		RiskLevel: types.RiskHigh,
		Urgency:   types.UrgencyLow,
		Reason:    reason,
	}
}

// positionSize multiplies the strategy base by the highest qualifying
// age/security/liquidity buckets and the flat source multiplier, then
// clamps to [MinViableSize, HardSizeCeiling].
func (e *Engine) positionSize(strat *strategy.Strategy, sig *types.TokenSignal, age time.Duration) float64 {
	size := strat.BasePositionSize *
		strat.AgeMultiplier(age) *
		strat.SecurityMultiplier(sig.SecurityScore) *
		strat.LiquidityMultiplier(sig.LiquidityUSD) *
		strat.SourceMultiplier

	size = math.Min(size, HardSizeCeiling)
	return math.Max(size, MinViableSize)
}

// urgency sums weighted tiers and maps the total to the four levels via
// fixed breakpoints.
func (e *Engine) urgency(strat *strategy.Strategy, sig *types.TokenSignal, age time.Duration) types.Urgency {
	score := strat.Tier.Score() * 2 // strategy priority dominates

	switch {
	case sig.SecurityScore >= 90:
		score += 3
	case sig.SecurityScore >= 70:
		score += 2
	case sig.SecurityScore >= 50:
		score++
	}

	switch {
	case age <= 5*time.Minute:
		score += 3
	case age <= 30*time.Minute:
		score += 2
	case age <= 2*time.Hour:
		score++
	}

	switch {
	case sig.LiquidityUSD >= 100_000:
		score += 2
	case sig.LiquidityUSD >= 25_000:
		score++
	}

	if sig.MetaBool("pump_detected") {
		score += 2
	}
	if v, ok := sig.MetaFloat("trending_score"); ok && v >= 75 {
		score++
	}

	switch {
	case score >= 13:
		return types.UrgencyUltraHigh
	case score >= 10:
		return types.UrgencyHigh
	case score >= 6:
		return types.UrgencyMedium
	default:
		return types.UrgencyLow
	}
}

// action maps urgency to the trade action. MEDIUM urgency buys only when
// the security score clears the strategy's secondary bar.
func (e *Engine) action(strat *strategy.Strategy, sig *types.TokenSignal, urgency types.Urgency) (types.Action, string) {
	switch urgency {
	case types.UrgencyUltraHigh:
		return types.ActionPriorityBuy, "ultra-high urgency entry"
	case types.UrgencyHigh:
		return types.ActionBuy, "high urgency entry"
	case types.UrgencyMedium:
		if sig.SecurityScore >= strat.SecondarySecurityBar {
			return types.ActionBuy, "medium urgency, security cleared secondary bar"
		}
		return types.ActionWatch, fmt.Sprintf("medium urgency, security score %d below secondary bar %d",
			sig.SecurityScore, strat.SecondarySecurityBar)
	default:
		return types.ActionSkip, "low urgency, no edge"
	}
}

// confidence blends normalized security, liquidity, recency and strategy
// priority into a 0-100 reporting score. It never drives the action.
func (e *Engine) confidence(strat *strategy.Strategy, sig *types.TokenSignal, age time.Duration) int {
	security := float64(sig.SecurityScore) / 100

	liquidity := math.Min(sig.LiquidityUSD/200_000, 1)

	recency := 1 - age.Seconds()/strat.Entry.MaxTokenAge.Seconds()
	if recency < 0 {
		recency = 0
	}

	priority := float64(strat.Tier.Score()) / 4

	c := int(math.Round((security*0.40 + liquidity*0.25 + recency*0.20 + priority*0.15) * 100))
	if c > 100 {
		c = 100
	}
	return c
}

// riskLevel accumulates risk points and maps them to the five levels.
func (e *Engine) riskLevel(strat *strategy.Strategy, sig *types.TokenSignal, age time.Duration) types.RiskLevel {
	risk := 0

	switch {
	case sig.SecurityScore < 40:
		risk += 3
	case sig.SecurityScore < 60:
		risk += 2
	case sig.SecurityScore < 80:
		risk++
	}

	switch {
	case sig.LiquidityUSD < 10_000:
		risk += 3
	case sig.LiquidityUSD < 50_000:
		risk += 2
	case sig.LiquidityUSD < 100_000:
		risk++
	}

	if age <= 5*time.Minute {
		risk += 2 // extreme youth
	} else if age <= 30*time.Minute {
		risk++
	}

	// The most speculative family carries structural risk.
	if strat.Name == "pump" {
		risk += 2
	}

	switch {
	case risk >= 8:
		return types.RiskVeryHigh
	case risk >= 6:
		return types.RiskHigh
	case risk >= 4:
		return types.RiskMedium
	case risk >= 2:
		return types.RiskLow
	default:
		return types.RiskVeryLow
	}
}

// expectedHold estimates hold time as a fraction of the strategy maximum,
// adjusted by family and liquidity, floored at five minutes.
func (e *Engine) expectedHold(strat *strategy.Strategy, sig *types.TokenSignal) time.Duration {
	fraction := 0.5
	if strat.Name == "pump" {
		fraction = 0.25 // pumps resolve fast, one way or the other
	}
	if sig.LiquidityUSD >= 100_000 {
		fraction += 0.15 // deep pools can be ridden longer
	}

	hold := time.Duration(float64(strat.MaxHoldTime) * fraction)
	if hold < minExpectedHold {
		hold = minExpectedHold
	}
	if hold > strat.MaxHoldTime {
		hold = strat.MaxHoldTime
	}
	return hold
}
