// internal/engine/engine.go
// Package engine wires signal intake, decision making, price resolution
// and position management into one simulation loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solsniper/simbot/internal/decision"
	"github.com/solsniper/simbot/internal/events"
	"github.com/solsniper/simbot/internal/marketdata"
	"github.com/solsniper/simbot/internal/portfolio"
	"github.com/solsniper/simbot/internal/position"
	"github.com/solsniper/simbot/internal/pricing"
	"github.com/solsniper/simbot/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PriceStream feeds live prices for tokens with open positions.
// *marketdata.PriceStream satisfies it.
type PriceStream interface {
	Updates() <-chan marketdata.PriceUpdate
	Subscribe(tokenAddress string) error
	Unsubscribe(tokenAddress string) error
}

// Config wires the engine's collaborators.
type Config struct {
	Decisions    *decision.Engine
	Resolver     *pricing.Resolver
	Positions    *position.Manager
	Ledger       *portfolio.Ledger
	Bus          *events.Bus
	Stream       PriceStream // optional
	Logger       *zap.Logger
	MaxPositions int
	Now          func() time.Time // nil for wall clock
}

// Engine is the simulation's front door: every detected token signal
// enters through OnTokenDetected, and Run drives the background loops.
type Engine struct {
	decisions    *decision.Engine
	resolver     *pricing.Resolver
	positions    *position.Manager
	ledger       *portfolio.Ledger
	bus          *events.Bus
	stream       PriceStream
	logger       *zap.Logger
	maxPositions int
	now          func() time.Time
}

// New creates the engine.
func New(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		decisions:    cfg.Decisions,
		resolver:     cfg.Resolver,
		positions:    cfg.Positions,
		ledger:       cfg.Ledger,
		bus:          cfg.Bus,
		stream:       cfg.Stream,
		logger:       cfg.Logger.Named("engine"),
		maxPositions: cfg.MaxPositions,
		now:          now,
	}

	// Stream subscriptions follow the position lifecycle: a closed
	// position stops its live price feed.
	if e.stream != nil && e.bus != nil {
		e.bus.SubscribeFunc(events.PositionClosed, func(_ context.Context, event events.Event) error {
			closed, ok := event.(events.PositionClosedEvent)
			if !ok {
				return nil
			}
			if err := e.stream.Unsubscribe(closed.TokenAddress); err != nil {
				e.logger.Debug("Stream unsubscribe failed",
					zap.String("token", closed.TokenAddress),
					zap.Error(err))
			}
			return nil
		})
	}

	return e
}

// Run drives the position scheduler and, when a stream is configured,
// the live price forwarding loop. It blocks until the context ends.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := e.positions.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if e.stream != nil {
		g.Go(func() error {
			return e.forwardPrices(ctx)
		})
	}

	return g.Wait()
}

// forwardPrices moves stream ticks into the position manager, where they
// are consumed by each position's next scheduled tick.
func (e *Engine) forwardPrices(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-e.stream.Updates():
			if !ok {
				return nil
			}
			e.positions.ApplyPriceUpdate(update.TokenAddress, update.PriceUSD, update.Timestamp)
		}
	}
}

// OnTokenDetected runs the full decision pipeline for one signal. An
// invalid signal is an error; every valid signal resolves to an opened
// position, a watch or a skip, each observable through the bus.
func (e *Engine) OnTokenDetected(ctx context.Context, sig *types.TokenSignal) error {
	if err := sig.Validate(); err != nil {
		return fmt.Errorf("invalid token signal: %w", err)
	}

	if _, exists := e.positions.Get(sig.Address); exists {
		e.skip(sig, "position already open for token")
		return nil
	}

	dec := e.decisions.Evaluate(sig)

	switch dec.Action {
	case types.ActionSkip:
		e.skip(sig, dec.Reason)
		return nil

	case types.ActionWatch:
		e.logger.Info("👀 Watching token",
			zap.String("token", sig.Address),
			zap.String("symbol", sig.Symbol),
			zap.String("reason", dec.Reason))
		e.publish(events.TokenWatchedEvent{
			BaseEvent:    events.BaseEvent{EventType: events.TokenWatched, EventTime: e.now()},
			TokenAddress: sig.Address,
			TokenSymbol:  sig.Symbol,
			SourceTag:    sig.SourceTag,
			Reason:       dec.Reason,
		})
		return nil
	}

	// BUY or PRIORITY_BUY from here on.
	if e.maxPositions > 0 && e.positions.ActiveCount() >= e.maxPositions {
		e.skip(sig, fmt.Sprintf("position limit %d reached", e.maxPositions))
		return nil
	}

	entryPrice := e.resolver.EntryPrice(ctx, sig)

	p, err := e.positions.Open(dec, sig, entryPrice)
	if err != nil {
		switch {
		case errors.Is(err, portfolio.ErrInsufficientBalance):
			e.skip(sig, fmt.Sprintf("insufficient balance for position size %.4f SOL", dec.PositionSize))
			return nil
		case errors.Is(err, position.ErrDuplicatePosition):
			e.skip(sig, "position already open for token")
			return nil
		default:
			return fmt.Errorf("open position: %w", err)
		}
	}

	if e.stream != nil {
		if err := e.stream.Subscribe(sig.Address); err != nil {
			e.logger.Debug("Stream subscribe failed, simulation covers pricing",
				zap.String("token", sig.Address),
				zap.Error(err))
		}
	}

	e.logger.Info("✅ Signal converted to position",
		zap.String("token", sig.Address),
		zap.String("position_id", p.ID),
		zap.String("action", string(dec.Action)),
		zap.String("urgency", string(dec.Urgency)))

	return nil
}

func (e *Engine) skip(sig *types.TokenSignal, reason string) {
	e.logger.Info("⏭️ Token skipped",
		zap.String("token", sig.Address),
		zap.String("symbol", sig.Symbol),
		zap.String("reason", reason))
	e.publish(events.TokenSkippedEvent{
		BaseEvent:    events.BaseEvent{EventType: events.TokenSkipped, EventTime: e.now()},
		TokenAddress: sig.Address,
		TokenSymbol:  sig.Symbol,
		SourceTag:    sig.SourceTag,
		Reason:       reason,
	})
}

func (e *Engine) publish(event events.Event) {
	if e.bus == nil {
		return
	}
	_ = e.bus.Publish(event)
}

// Report returns the final portfolio snapshot and trade statistics.
func (e *Engine) Report() (portfolio.Snapshot, portfolio.Statistics) {
	return e.ledger.Snapshot(e.positions.UnrealizedPnL()), e.ledger.Statistics()
}
