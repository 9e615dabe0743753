// internal/position/manager.go
// Package position owns the set of open simulated positions and the
// periodic price-update and exit-check loop that drives them from entry
// to exit.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/solsniper/simbot/internal/decision"
	"github.com/solsniper/simbot/internal/events"
	"github.com/solsniper/simbot/internal/portfolio"
	"github.com/solsniper/simbot/internal/pricing"
	"github.com/solsniper/simbot/internal/types"
	"go.uber.org/zap"
)

// ErrDuplicatePosition is returned when a token already has an active
// position.
var ErrDuplicatePosition = errors.New("position already open for token")

const defaultTimeExitLabel = "max hold time reached"

// pendingTick is a live price update waiting to be applied on the next
// scheduler tick, so all position mutation stays on the tick path.
type pendingTick struct {
	price float64
	ts    time.Time
}

// Config configures a position manager.
type Config struct {
	Ledger       *portfolio.Ledger
	Model        pricing.SimulationModel
	Bus          *events.Bus
	Logger       *zap.Logger
	TickInterval time.Duration
	Now          func() time.Time // nil for wall clock
}

// Manager runs the position lifecycle: open, batch tick, exit, close.
// A single scheduler iterates all active positions per tick instead of
// one timer per position, bounding resource usage under many positions.
type Manager struct {
	mu      sync.RWMutex
	active  map[string]*Position // by position ID
	byToken map[string]string    // token address -> position ID
	closed  []*Position
	pending map[string]pendingTick // token address -> latest live update

	ledger       *portfolio.Ledger
	model        pricing.SimulationModel
	bus          *events.Bus
	logger       *zap.Logger
	tickInterval time.Duration
	now          func() time.Time
}

// NewManager creates a position manager.
func NewManager(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	interval := cfg.TickInterval
	if interval == 0 {
		interval = 5 * time.Second
	}
	return &Manager{
		active:       make(map[string]*Position),
		byToken:      make(map[string]string),
		pending:      make(map[string]pendingTick),
		ledger:       cfg.Ledger,
		model:        cfg.Model,
		bus:          cfg.Bus,
		logger:       cfg.Logger.Named("positions"),
		tickInterval: interval,
		now:          now,
	}
}

// Open creates an ACTIVE position from an actionable decision, debiting
// the ledger. It refuses the open when the balance cannot cover the size
// or the token already has an active position.
func (m *Manager) Open(dec *decision.Decision, sig *types.TokenSignal, entryPrice float64) (*Position, error) {
	if !dec.Action.Actionable() {
		return nil, fmt.Errorf("decision %s is not actionable", dec.Action)
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("entry price must be positive, got %f", entryPrice)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byToken[sig.Address]; exists {
		return nil, ErrDuplicatePosition
	}

	// Re-check the sizing clamp against the live balance at open time.
	if err := m.ledger.Reserve(dec.PositionSize); err != nil {
		return nil, err
	}

	now := m.now()
	maxHold := dec.Strategy.MaxHoldTime
	timeExitLabel := defaultTimeExitLabel
	if dec.Strategy.TimeExit != nil {
		maxHold = dec.Strategy.TimeExit.MaxHold
		timeExitLabel = dec.Strategy.TimeExit.Label
	}

	p := &Position{
		ID:             uuid.New().String(),
		TokenAddress:   sig.Address,
		Symbol:         sig.Symbol,
		StrategyName:   dec.Strategy.Name,
		EntryTime:      now,
		EntryPrice:     entryPrice,
		CurrentPrice:   entryPrice,
		InvestedAmount: dec.PositionSize,
		Status:         StatusActive,
		Risk:           dec.RiskLevel,
		MaxHold:        maxHold,
		TimeExitLabel:  timeExitLabel,
		ExitLadder:     dec.Strategy.CopyLadder(),
		StopLoss:       dec.Strategy.StopLoss,
		lastPriceAt:    now,
		history:        []PricePoint{{Price: entryPrice, Time: now}},
	}

	// Safety net against orphaned positions: a hard timeout fires even
	// if the scheduler loop is not running. One tick of grace lets the
	// scheduler's own time-based exit win in the normal case.
	id := p.ID
	p.holdTimer = time.AfterFunc(maxHold+m.tickInterval, func() {
		_ = m.Close(id, timeExitLabel)
	})

	m.active[p.ID] = p
	m.byToken[sig.Address] = p.ID

	trade := m.ledger.RecordTrade(portfolio.Trade{
		PositionID:   p.ID,
		TokenAddress: sig.Address,
		TokenSymbol:  sig.Symbol,
		Type:         portfolio.TradeBuy,
		AmountSOL:    dec.PositionSize,
		Price:        entryPrice,
		Timestamp:    now,
		Reason:       dec.Reason,
	})

	m.logger.Info("🚀 Position opened",
		zap.String("position_id", p.ID),
		zap.String("token", sig.Address),
		zap.String("strategy", dec.Strategy.Name),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("invested_sol", dec.PositionSize))

	m.publishTrade(trade)
	m.publish(events.PositionOpenedEvent{
		BaseEvent:    events.BaseEvent{EventType: events.PositionOpened, EventTime: now},
		PositionID:   p.ID,
		TokenAddress: sig.Address,
		TokenSymbol:  sig.Symbol,
		EntryPrice:   entryPrice,
		InvestedSOL:  dec.PositionSize,
		Strategy:     dec.Strategy.Name,
		Urgency:      string(dec.Urgency),
	})

	return p, nil
}

// ApplyPriceUpdate records a live price for a token. It is consumed by
// that position's next tick; a later timestamp always wins. Updates for
// tokens without an active position are dropped so a still-streaming
// feed cannot grow the pending map.
func (m *Manager) ApplyPriceUpdate(tokenAddress string, price float64, ts time.Time) {
	if price <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, open := m.byToken[tokenAddress]; !open {
		return
	}
	if cur, ok := m.pending[tokenAddress]; ok && !ts.After(cur.ts) {
		return
	}
	m.pending[tokenAddress] = pendingTick{price: price, ts: ts}
}

// Run drives the batch tick scheduler until the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("📊 Position scheduler started",
		zap.Duration("interval", m.tickInterval))

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Position scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			m.TickAll(ctx)
		}
	}
}

// TickAll runs one tick for every active position. Ticks for different
// positions are dispatched concurrently; each position's own state is
// only touched by its own in-flight tick.
func (m *Manager) TickAll(ctx context.Context) {
	m.mu.RLock()
	batch := make([]*Position, 0, len(m.active))
	for _, p := range m.active {
		batch = append(batch, p)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, p := range batch {
		wg.Add(1)
		go func(p *Position) {
			defer wg.Done()
			m.tick(ctx, p)
		}(p)
	}
	wg.Wait()

	m.publishPortfolio()
}

// tick refreshes one position's price and runs the exit check. A fault
// inside the tick is caught per position so one failure cannot halt
// ticking for the others; the position stays ACTIVE for the next tick.
func (m *Manager) tick(_ context.Context, p *Position) {
	p.mu.Lock()
	if !p.tryAcquire() {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	defer p.release()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Tick handler fault, position left active for retry",
				zap.String("position_id", p.ID),
				zap.Any("fault", r))
		}
	}()

	now := m.now()

	// Prefer a streamed live price; otherwise advance the simulation.
	price, ts, live := m.takePending(p.TokenAddress)
	if !live {
		p.mu.Lock()
		elapsed := now.Sub(p.EntryTime)
		current := p.CurrentPrice
		risk := p.Risk
		p.mu.Unlock()
		price = m.model.NextPrice(current, elapsed, risk)
		ts = now
	}

	p.mu.Lock()
	applied := p.applyPrice(price, ts)
	p.mu.Unlock()
	if !applied {
		m.logger.Debug("Stale price update discarded",
			zap.String("position_id", p.ID))
	}

	// The exit check runs against the last known price even when no
	// fresh data arrived this tick.
	m.checkExit(p, now)
}

func (m *Manager) takePending(tokenAddress string) (float64, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tick, ok := m.pending[tokenAddress]
	if !ok {
		return 0, time.Time{}, false
	}
	delete(m.pending, tokenAddress)
	return tick.price, tick.ts, true
}

// checkExit evaluates, in strict priority order: the take-profit ladder
// from highest threshold to lowest, then stop-loss, then the time-based
// exit. Protecting gains outranks cutting losses outranks the timeout.
func (m *Manager) checkExit(p *Position, now time.Time) {
	p.mu.Lock()

	if p.Status != StatusActive {
		p.mu.Unlock()
		return
	}

	roi := p.ROIPercent
	elapsed := now.Sub(p.EntryTime)

	for i, tier := range p.ExitLadder {
		if roi < tier.ROIThresholdPercent {
			continue
		}
		if tier.SellFractionPercent >= 100 {
			p.mu.Unlock()
			_ = m.Close(p.ID, tier.Label)
			return
		}

		// Partial exit: realize the tier's fraction, keep the rest
		// running. The fired tier is removed so it fires exactly once.
		released := p.InvestedAmount * tier.SellFractionPercent / 100
		exitValue := released * (1 + roi/100)
		p.InvestedAmount -= released
		p.ExitLadder = append(p.ExitLadder[:i], p.ExitLadder[i+1:]...)

		trade := portfolio.Trade{
			PositionID:   p.ID,
			TokenAddress: p.TokenAddress,
			TokenSymbol:  p.Symbol,
			Type:         portfolio.TradePartialSell,
			AmountSOL:    exitValue,
			Price:        p.CurrentPrice,
			Timestamp:    now,
			Reason:       tier.Label,
			EntryPrice:   p.EntryPrice,
			PnLSOL:       exitValue - released,
			ROIPercent:   roi,
			HoldTime:     portfolio.FormatHoldTime(elapsed),
		}
		p.mu.Unlock()

		m.ledger.Settle(released, exitValue)
		recorded := m.ledger.RecordTrade(trade)

		m.logger.Info("💰 Partial exit",
			zap.String("position_id", trade.PositionID),
			zap.String("tier", tier.Label),
			zap.Float64("roi_percent", roi),
			zap.Float64("released_sol", released),
			zap.Float64("exit_value_sol", exitValue))

		m.publishTrade(recorded)
		return
	}

	if roi <= p.StopLoss.ROIThresholdPercent {
		label := p.StopLoss.Label
		p.mu.Unlock()
		_ = m.Close(p.ID, label)
		return
	}

	if elapsed >= p.MaxHold {
		label := p.TimeExitLabel
		p.mu.Unlock()
		_ = m.Close(p.ID, label)
		return
	}

	p.mu.Unlock()
}

// Close performs the only transition into CLOSED: full exit at the last
// known price, ledger settlement, trade log append and event emission.
// Closing an already-closed position is a no-op.
func (m *Manager) Close(positionID, reason string) error {
	m.mu.Lock()
	p, ok := m.active[positionID]
	m.mu.Unlock()
	if !ok {
		return nil // already closed and evicted
	}

	p.mu.Lock()
	if p.Status == StatusClosed {
		p.mu.Unlock()
		return nil
	}
	p.Status = StatusClosed
	if p.holdTimer != nil {
		p.holdTimer.Stop() // idempotent disarm
	}

	now := m.now()
	invested := p.InvestedAmount
	roi := p.ROIPercent
	exitPrice := p.CurrentPrice
	entryPrice := p.EntryPrice
	hold := now.Sub(p.EntryTime)
	exitValue := invested * (1 + roi/100)
	p.InvestedAmount = 0
	p.mu.Unlock()

	m.ledger.Settle(invested, exitValue)
	trade := m.ledger.RecordTrade(portfolio.Trade{
		PositionID:   positionID,
		TokenAddress: p.TokenAddress,
		TokenSymbol:  p.Symbol,
		Type:         portfolio.TradeSell,
		AmountSOL:    exitValue,
		Price:        exitPrice,
		Timestamp:    now,
		Reason:       reason,
		EntryPrice:   entryPrice,
		PnLSOL:       exitValue - invested,
		ROIPercent:   roi,
		HoldTime:     portfolio.FormatHoldTime(hold),
	})

	m.mu.Lock()
	delete(m.active, positionID)
	delete(m.byToken, p.TokenAddress)
	delete(m.pending, p.TokenAddress)
	m.closed = append(m.closed, p)
	m.mu.Unlock()

	m.logger.Info("🛑 Position closed",
		zap.String("position_id", positionID),
		zap.String("token", p.TokenAddress),
		zap.String("reason", reason),
		zap.Float64("roi_percent", roi),
		zap.Float64("exit_value_sol", exitValue))

	m.publishTrade(trade)
	m.publish(events.PositionClosedEvent{
		BaseEvent:    events.BaseEvent{EventType: events.PositionClosed, EventTime: now},
		PositionID:   positionID,
		TokenAddress: p.TokenAddress,
		TokenSymbol:  p.Symbol,
		Strategy:     p.StrategyName,
		EntryPrice:   entryPrice,
		ExitPrice:    exitPrice,
		ROIPercent:   roi,
		ExitValueSOL: exitValue,
		HoldTime:     hold,
		Reason:       reason,
	})

	return nil
}

// Get returns an active position by token address.
func (m *Manager) Get(tokenAddress string) (*Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byToken[tokenAddress]
	if !ok {
		return nil, false
	}
	p, ok := m.active[id]
	return p, ok
}

// ActiveCount returns the number of open positions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// ClosedPositions returns snapshots of every closed position, oldest
// first, for reporting.
func (m *Manager) ClosedPositions() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.closed))
	for _, p := range m.closed {
		out = append(out, p.Snapshot())
	}
	return out
}

// UnrealizedPnL sums (currentPrice/entryPrice - 1) * investedAmount over
// all active positions.
func (m *Manager) UnrealizedPnL() float64 {
	m.mu.RLock()
	batch := make([]*Position, 0, len(m.active))
	for _, p := range m.active {
		batch = append(batch, p)
	}
	m.mu.RUnlock()

	total := 0.0
	for _, p := range batch {
		p.mu.Lock()
		if p.EntryPrice > 0 {
			total += (p.CurrentPrice/p.EntryPrice - 1) * p.InvestedAmount
		}
		p.mu.Unlock()
	}
	return total
}

// Shutdown force-closes every active position, settling at last known
// prices so the ledger balances out.
func (m *Manager) Shutdown(_ context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	m.logger.Info("Shutting down position manager",
		zap.Int("active_positions", len(ids)))

	for _, id := range ids {
		_ = m.Close(id, "shutdown")
	}
	return nil
}

func (m *Manager) publish(event events.Event) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(event)
}

func (m *Manager) publishTrade(trade portfolio.Trade) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(events.TradeExecutedEvent{
		BaseEvent:    events.BaseEvent{EventType: events.TradeExecuted, EventTime: trade.Timestamp},
		TradeID:      trade.ID,
		PositionID:   trade.PositionID,
		TokenAddress: trade.TokenAddress,
		TokenSymbol:  trade.TokenSymbol,
		TradeType:    string(trade.Type),
		AmountSOL:    trade.AmountSOL,
		Price:        trade.Price,
		PnLSOL:       trade.PnLSOL,
		Reason:       trade.Reason,
	})
}

func (m *Manager) publishPortfolio() {
	if m.bus == nil {
		return
	}
	snap := m.ledger.Snapshot(m.UnrealizedPnL())
	_ = m.bus.Publish(events.PortfolioUpdatedEvent{
		BaseEvent:     events.BaseEvent{EventType: events.PortfolioUpdated, EventTime: m.now()},
		Balance:       snap.CurrentBalance,
		TotalInvested: snap.TotalInvested,
		TotalRealized: snap.TotalRealized,
		UnrealizedPnL: snap.UnrealizedPnL,
		OpenPositions: m.ActiveCount(),
		TotalValue:    snap.TotalValue,
	})
}
