// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Position lifecycle events
	PositionOpened EventType = "position.opened"
	PositionClosed EventType = "position.closed"

	// Trade settlement events
	TradeExecuted EventType = "trade.executed"

	// Portfolio events
	PortfolioUpdated EventType = "portfolio.updated"

	// Decision outcome events
	TokenSkipped EventType = "token.skipped"
	TokenWatched EventType = "token.watched"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// PositionOpenedEvent is emitted when a simulated position is opened.
type PositionOpenedEvent struct {
	BaseEvent
	PositionID   string
	TokenAddress string
	TokenSymbol  string
	EntryPrice   float64
	InvestedSOL  float64
	Strategy     string
	Urgency      string
}

// PositionClosedEvent is emitted on the transition to CLOSED. Partial
// exits do not produce this event; they produce TradeExecutedEvent only.
type PositionClosedEvent struct {
	BaseEvent
	PositionID   string
	TokenAddress string
	TokenSymbol  string
	Strategy     string
	EntryPrice   float64
	ExitPrice    float64
	ROIPercent   float64
	ExitValueSOL float64
	HoldTime     time.Duration
	Reason       string
}

// TradeExecutedEvent is emitted for every buy, sell and partial sell.
type TradeExecutedEvent struct {
	BaseEvent
	TradeID      string
	PositionID   string
	TokenAddress string
	TokenSymbol  string
	TradeType    string // BUY, SELL, PARTIAL_SELL
	AmountSOL    float64
	Price        float64
	PnLSOL       float64
	Reason       string
}

// PortfolioUpdatedEvent carries a full ledger snapshot after a tick batch
// or settlement.
type PortfolioUpdatedEvent struct {
	BaseEvent
	Balance       float64
	TotalInvested float64
	TotalRealized float64
	UnrealizedPnL float64
	OpenPositions int
	TotalValue    float64
}

// TokenSkippedEvent is emitted when a signal is rejected. Reason names
// the specific gate or check that failed.
type TokenSkippedEvent struct {
	BaseEvent
	TokenAddress string
	TokenSymbol  string
	SourceTag    string
	Reason       string
}

// TokenWatchedEvent is emitted when a signal is put on the watch list
// instead of being bought.
type TokenWatchedEvent struct {
	BaseEvent
	TokenAddress string
	TokenSymbol  string
	SourceTag    string
	Reason       string
}
