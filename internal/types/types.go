// internal/types/types.go
// Package types holds the shared data model for the simulation engine:
// detected token signals and the enums that classify trade decisions.
package types

import (
	"errors"
	"time"
)

// ErrInvalidSignal is returned when a TokenSignal is missing required fields.
var ErrInvalidSignal = errors.New("invalid token signal")

// TokenSignal is a normalized record describing a detected token.
// It is produced by the discovery layer and treated as immutable here.
type TokenSignal struct {
	Address       string
	Symbol        string
	Name          string
	CreatedAt     time.Time
	LiquidityUSD  float64
	LiquiditySOL  float64
	SecurityScore int    // 0-100, produced by the external scorer
	SourceTag     string // origin hint: "pump", "raydium", "dexscreener", ...
	PriceUSD      float64
	Metadata      map[string]interface{}
}

// Validate checks that the signal carries the fields the engine requires.
func (s *TokenSignal) Validate() error {
	if s == nil || s.Address == "" {
		return ErrInvalidSignal
	}
	if s.SecurityScore < 0 || s.SecurityScore > 100 {
		return ErrInvalidSignal
	}
	if s.LiquidityUSD < 0 || s.PriceUSD < 0 {
		return ErrInvalidSignal
	}
	return nil
}

// Age returns how long ago the token pair was created.
func (s *TokenSignal) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// MetaBool reads an optional boolean flag from the metadata bag.
func (s *TokenSignal) MetaBool(key string) bool {
	if s.Metadata == nil {
		return false
	}
	v, ok := s.Metadata[key].(bool)
	return ok && v
}

// MetaFloat reads an optional numeric value from the metadata bag.
func (s *TokenSignal) MetaFloat(key string) (float64, bool) {
	if s.Metadata == nil {
		return 0, false
	}
	switch v := s.Metadata[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Action is the outcome of evaluating a token signal.
type Action string

const (
	ActionSkip        Action = "SKIP"
	ActionWatch       Action = "WATCH"
	ActionBuy         Action = "BUY"
	ActionPriorityBuy Action = "PRIORITY_BUY"
)

// Actionable reports whether the action opens a position.
func (a Action) Actionable() bool {
	return a == ActionBuy || a == ActionPriorityBuy
}

// Urgency classifies how quickly a buy should be executed.
type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyMedium    Urgency = "MEDIUM"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyUltraHigh Urgency = "ULTRA_HIGH"
)

// PriorityTier ranks strategy families against each other.
type PriorityTier string

const (
	TierLow       PriorityTier = "LOW"
	TierMedium    PriorityTier = "MEDIUM"
	TierHigh      PriorityTier = "HIGH"
	TierUltraHigh PriorityTier = "ULTRA_HIGH"
)

// Score converts a tier to a numeric weight for urgency scoring.
func (t PriorityTier) Score() int {
	switch t {
	case TierUltraHigh:
		return 4
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	default:
		return 1
	}
}

// RiskLevel labels a decision for reporting. It never drives the action.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "VERY_LOW"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)
