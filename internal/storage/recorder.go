// internal/storage/recorder.go
package storage

import (
	"context"
	"fmt"

	"github.com/solsniper/simbot/internal/events"
	"github.com/solsniper/simbot/internal/storage/models"
	"go.uber.org/zap"
)

// Recorder subscribes to the event bus and persists trades and closed
// positions. Persistence failures are logged and never propagate back
// into the trading path.
type Recorder struct {
	store  Storage
	logger *zap.Logger
	subs   []events.Subscription
}

// NewRecorder creates a recorder around a storage backend.
func NewRecorder(store Storage, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.Named("recorder"),
	}
}

// Attach subscribes the recorder to the bus.
func (r *Recorder) Attach(bus *events.Bus) {
	r.subs = append(r.subs,
		bus.SubscribeFunc(events.TradeExecuted, r.onTrade),
		bus.SubscribeFunc(events.PositionClosed, r.onPositionClosed),
	)
}

// Detach removes the recorder's subscriptions.
func (r *Recorder) Detach() {
	for _, sub := range r.subs {
		sub.Unsubscribe()
	}
	r.subs = nil
}

func (r *Recorder) onTrade(ctx context.Context, event events.Event) error {
	e, ok := event.(events.TradeExecutedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.Type())
	}

	record := &models.TradeRecord{
		TradeID:      e.TradeID,
		PositionID:   e.PositionID,
		TokenAddress: e.TokenAddress,
		TokenSymbol:  e.TokenSymbol,
		TradeType:    e.TradeType,
		AmountSOL:    e.AmountSOL,
		Price:        e.Price,
		PnLSOL:       e.PnLSOL,
		Reason:       e.Reason,
		ExecutedAt:   e.Timestamp(),
	}

	if err := r.store.SaveTrade(ctx, record); err != nil {
		r.logger.Warn("Failed to persist trade",
			zap.String("trade_id", e.TradeID),
			zap.Error(err))
	}
	return nil
}

func (r *Recorder) onPositionClosed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.PositionClosedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.Type())
	}

	record := &models.PositionRecord{
		PositionID:   e.PositionID,
		TokenAddress: e.TokenAddress,
		TokenSymbol:  e.TokenSymbol,
		Strategy:     e.Strategy,
		EntryPrice:   e.EntryPrice,
		ExitPrice:    e.ExitPrice,
		ROIPercent:   e.ROIPercent,
		ExitValueSOL: e.ExitValueSOL,
		HoldTime:     e.HoldTime,
		ExitReason:   e.Reason,
		OpenedAt:     e.Timestamp().Add(-e.HoldTime),
		ClosedAt:     e.Timestamp(),
	}

	if err := r.store.SavePosition(ctx, record); err != nil {
		r.logger.Warn("Failed to persist position",
			zap.String("position_id", e.PositionID),
			zap.Error(err))
	}
	return nil
}
