// internal/position/position.go
package position

import (
	"sync"
	"time"

	"github.com/solsniper/simbot/internal/strategy"
	"github.com/solsniper/simbot/internal/types"
)

// Status is the binary lifecycle state of a position.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED" // terminal, never reopened
)

// priceHistoryCap bounds the in-memory price history ring. The history
// feeds momentum heuristics only, so a short window is enough.
const priceHistoryCap = 60

// PricePoint is one sample of the position's price history.
type PricePoint struct {
	Price float64
	Time  time.Time
}

// Position is a simulated open stake in one token. All mutation happens
// under mu, from the position's own tick or from Close.
type Position struct {
	mu sync.Mutex

	ID           string
	TokenAddress string
	Symbol       string
	StrategyName string

	EntryTime      time.Time
	EntryPrice     float64
	CurrentPrice   float64
	InvestedAmount float64
	Status         Status
	ROIPercent     float64
	Risk           types.RiskLevel
	MaxHold        time.Duration
	TimeExitLabel  string

	// Copied from the strategy at open time so runtime catalog tuning
	// never retroactively alters an open position. Fired take-profit
	// tiers are removed so each tier realizes profit exactly once.
	ExitLadder []strategy.ExitTier
	StopLoss   strategy.StopLoss

	history []PricePoint

	// lastPriceAt orders price applications: an update older than the
	// one already applied is discarded.
	lastPriceAt time.Time

	// inFlight guards against overlapping ticks for the same position.
	inFlight bool

	// holdTimer is the independent hard-timeout safety net armed at
	// open and disarmed at close.
	holdTimer *time.Timer
}

// applyPrice updates the current price, ROI and history. It returns false
// when the update is older than the last applied one. Caller holds mu.
func (p *Position) applyPrice(price float64, ts time.Time) bool {
	if !ts.After(p.lastPriceAt) {
		return false
	}
	p.CurrentPrice = price
	p.lastPriceAt = ts
	p.ROIPercent = (price - p.EntryPrice) / p.EntryPrice * 100

	if len(p.history) >= priceHistoryCap {
		p.history = p.history[1:]
	}
	p.history = append(p.history, PricePoint{Price: price, Time: ts})
	return true
}

// tryAcquire marks a tick in flight. Caller holds mu.
func (p *Position) tryAcquire() bool {
	if p.inFlight || p.Status != StatusActive {
		return false
	}
	p.inFlight = true
	return true
}

func (p *Position) release() {
	p.mu.Lock()
	p.inFlight = false
	p.mu.Unlock()
}

// Snapshot is an immutable copy of the position for events and reporting.
type Snapshot struct {
	ID             string
	TokenAddress   string
	Symbol         string
	StrategyName   string
	EntryTime      time.Time
	EntryPrice     float64
	CurrentPrice   float64
	InvestedAmount float64
	Status         Status
	ROIPercent     float64
	Risk           types.RiskLevel
}

// Snapshot returns a copy of the position's visible state.
func (p *Position) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		ID:             p.ID,
		TokenAddress:   p.TokenAddress,
		Symbol:         p.Symbol,
		StrategyName:   p.StrategyName,
		EntryTime:      p.EntryTime,
		EntryPrice:     p.EntryPrice,
		CurrentPrice:   p.CurrentPrice,
		InvestedAmount: p.InvestedAmount,
		Status:         p.Status,
		ROIPercent:     p.ROIPercent,
		Risk:           p.Risk,
	}
}

// History returns a copy of the recent price samples.
func (p *Position) History() []PricePoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PricePoint, len(p.history))
	copy(out, p.history)
	return out
}

// StillPumping reports whether the last few samples are monotonically
// rising, a cheap momentum heuristic over the history ring.
func (p *Position) StillPumping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) < 3 {
		return false
	}
	tail := p.history[len(p.history)-3:]
	return tail[0].Price < tail[1].Price && tail[1].Price < tail[2].Price
}
