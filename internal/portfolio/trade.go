// internal/portfolio/trade.go
package portfolio

import (
	"fmt"
	"time"
)

// TradeType distinguishes entries, full exits and partial exits.
type TradeType string

const (
	TradeBuy         TradeType = "BUY"
	TradeSell        TradeType = "SELL"
	TradePartialSell TradeType = "PARTIAL_SELL"
)

// Trade is one append-only log record. Immutable once recorded.
type Trade struct {
	ID           string    `json:"id"`
	PositionID   string    `json:"position_id"`
	TokenAddress string    `json:"token_address"`
	TokenSymbol  string    `json:"token_symbol"`
	Type         TradeType `json:"type"`
	AmountSOL    float64   `json:"amount_sol"`
	Price        float64   `json:"price"`
	Timestamp    time.Time `json:"timestamp"`
	Reason       string    `json:"reason"`

	// For sells only
	EntryPrice float64 `json:"entry_price,omitempty"`
	PnLSOL     float64 `json:"pnl_sol,omitempty"`
	ROIPercent float64 `json:"roi_percent,omitempty"`
	HoldTime   string  `json:"hold_time,omitempty"`
}

// IsSell reports whether the trade realized P&L.
func (t *Trade) IsSell() bool {
	return t.Type == TradeSell || t.Type == TradePartialSell
}

// FormatHoldTime renders a hold duration compactly for trade records.
func FormatHoldTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
}
