// internal/portfolio/ledger.go
// Package portfolio holds the simulated cash balance, the append-only
// trade log and the realized/unrealized P&L aggregates. The ledger is the
// one shared mutable resource across all positions; every mutation is a
// single atomic delta under the lock so concurrent settlements never
// interleave partially.
package portfolio

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInsufficientBalance is returned when a reserve would drive the
// balance negative. The caller must treat this as a refused open, never
// as a fatal error.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is the process-wide portfolio aggregate.
type Ledger struct {
	mu sync.RWMutex

	startingBalance float64
	currentBalance  float64
	totalInvested   float64
	totalRealized   float64

	trades    []Trade
	maxTrades int

	logger *zap.Logger
}

// NewLedger creates a ledger with the given starting virtual balance.
func NewLedger(startingBalance float64, logger *zap.Logger) *Ledger {
	return &Ledger{
		startingBalance: startingBalance,
		currentBalance:  startingBalance,
		trades:          make([]Trade, 0, 256),
		maxTrades:       10_000,
		logger:          logger.Named("ledger"),
	}
}

// Reserve debits amount from the cash balance into invested capital.
// It refuses any debit that would leave the balance negative.
func (l *Ledger) Reserve(amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount <= 0 {
		return ErrInsufficientBalance
	}
	if amount > l.currentBalance {
		l.logger.Warn("Reserve refused",
			zap.Float64("requested", amount),
			zap.Float64("balance", l.currentBalance))
		return ErrInsufficientBalance
	}

	l.currentBalance -= amount
	l.totalInvested += amount
	return nil
}

// Settle credits the proceeds of a full or partial exit back to the cash
// balance. investedAmount is the portion of invested capital being
// released; exitValue is what it is worth at the exit price. The full
// delta is applied in one step.
func (l *Ledger) Settle(investedAmount, exitValue float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentBalance += exitValue
	l.totalRealized += exitValue - investedAmount
	l.totalInvested -= investedAmount
	if l.totalInvested < 0 {
		// Float drift guard; invested capital can never really go negative.
		l.totalInvested = 0
	}
}

// RecordTrade appends a trade to the log, assigning an ID and timestamp
// when missing. The in-memory log is a bounded ring; the full stream is
// observable through TradeExecuted events.
func (l *Ledger) RecordTrade(trade Trade) Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now()
	}

	if len(l.trades) >= l.maxTrades {
		l.trades = l.trades[1:]
	}
	l.trades = append(l.trades, trade)

	l.logger.Info("Trade logged",
		zap.String("id", trade.ID),
		zap.String("type", string(trade.Type)),
		zap.String("token", trade.TokenSymbol),
		zap.Float64("amount_sol", trade.AmountSOL),
		zap.Float64("pnl_sol", trade.PnLSOL))

	return trade
}

// Balances returns the current cash balance and invested total.
func (l *Ledger) Balances() (balance, invested float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentBalance, l.totalInvested
}

// CurrentBalance returns the available cash balance.
func (l *Ledger) CurrentBalance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentBalance
}

// TotalRealized returns realized P&L since start.
func (l *Ledger) TotalRealized() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalRealized
}

// RecentTrades returns up to limit most recent trades.
func (l *Ledger) RecentTrades(limit int) []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.trades) {
		limit = len(l.trades)
	}
	out := make([]Trade, limit)
	copy(out, l.trades[len(l.trades)-limit:])
	return out
}

// Snapshot is a point-in-time view of the portfolio, including the
// unrealized P&L supplied by the position manager.
type Snapshot struct {
	StartingBalance float64 `json:"starting_balance"`
	CurrentBalance  float64 `json:"current_balance"`
	TotalInvested   float64 `json:"total_invested"`
	TotalRealized   float64 `json:"total_realized"`
	UnrealizedPnL   float64 `json:"unrealized_pnl"`
	TotalValue      float64 `json:"total_value"`
}

// Snapshot builds a snapshot given the current unrealized P&L over all
// active positions.
func (l *Ledger) Snapshot(unrealizedPnL float64) Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Snapshot{
		StartingBalance: l.startingBalance,
		CurrentBalance:  l.currentBalance,
		TotalInvested:   l.totalInvested,
		TotalRealized:   l.totalRealized,
		UnrealizedPnL:   unrealizedPnL,
		TotalValue:      l.currentBalance + l.totalInvested + unrealizedPnL,
	}
}

// Statistics holds aggregate trade statistics for reporting.
type Statistics struct {
	TotalTrades int     `json:"total_trades"`
	BuyCount    int     `json:"buy_count"`
	SellCount   int     `json:"sell_count"`
	TotalVolume float64 `json:"total_volume"`
	TotalPnL    float64 `json:"total_pnl"`
	WinRate     float64 `json:"win_rate"`
	AvgWinPnL   float64 `json:"avg_win_pnl"`
	AvgLossPnL  float64 `json:"avg_loss_pnl"`
}

// Statistics computes win rate and P&L aggregates over the trade log.
func (l *Ledger) Statistics() Statistics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var stats Statistics
	var winCount int
	var winPnL, lossPnL float64

	for _, t := range l.trades {
		stats.TotalTrades++
		stats.TotalVolume += t.AmountSOL

		if t.Type == TradeBuy {
			stats.BuyCount++
			continue
		}
		stats.SellCount++
		stats.TotalPnL += t.PnLSOL
		if t.PnLSOL > 0 {
			winCount++
			winPnL += t.PnLSOL
		} else if t.PnLSOL < 0 {
			lossPnL += t.PnLSOL
		}
	}

	if stats.SellCount > 0 {
		stats.WinRate = float64(winCount) / float64(stats.SellCount) * 100
	}
	if winCount > 0 {
		stats.AvgWinPnL = winPnL / float64(winCount)
	}
	if lossCount := stats.SellCount - winCount; lossCount > 0 {
		stats.AvgLossPnL = lossPnL / float64(lossCount)
	}

	return stats
}
