// internal/events/bus_test.go
package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPublishSyncDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)
	defer bus.Shutdown(context.Background())

	var got atomic.Int32
	bus.SubscribeFunc(TradeExecuted, func(_ context.Context, event Event) error {
		assert.Equal(t, TradeExecuted, event.Type())
		got.Add(1)
		return nil
	})

	event := TradeExecutedEvent{
		BaseEvent: BaseEvent{EventType: TradeExecuted, EventTime: time.Now()},
		TradeID:   "t-1",
	}
	require.NoError(t, bus.PublishSync(context.Background(), event))
	assert.Equal(t, int32(1), got.Load())
}

func TestPublishDeliversAsynchronously(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)

	done := make(chan Event, 1)
	bus.SubscribeFunc(PositionOpened, func(_ context.Context, event Event) error {
		done <- event
		return nil
	})

	event := PositionOpenedEvent{
		BaseEvent:  BaseEvent{EventType: PositionOpened, EventTime: time.Now()},
		PositionID: "p-1",
	}
	require.NoError(t, bus.Publish(event))

	select {
	case got := <-done:
		opened, ok := got.(PositionOpenedEvent)
		require.True(t, ok)
		assert.Equal(t, "p-1", opened.PositionID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestSubscribersOnlySeeTheirType(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)
	defer bus.Shutdown(context.Background())

	var trades, skips atomic.Int32
	bus.SubscribeFunc(TradeExecuted, func(_ context.Context, _ Event) error {
		trades.Add(1)
		return nil
	})
	bus.SubscribeFunc(TokenSkipped, func(_ context.Context, _ Event) error {
		skips.Add(1)
		return nil
	})

	_ = bus.PublishSync(context.Background(), TokenSkippedEvent{
		BaseEvent: BaseEvent{EventType: TokenSkipped, EventTime: time.Now()},
	})

	assert.Zero(t, trades.Load())
	assert.Equal(t, int32(1), skips.Load())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)
	defer bus.Shutdown(context.Background())

	var got atomic.Int32
	sub := bus.SubscribeFunc(PortfolioUpdated, func(_ context.Context, _ Event) error {
		got.Add(1)
		return nil
	})

	event := PortfolioUpdatedEvent{
		BaseEvent: BaseEvent{EventType: PortfolioUpdated, EventTime: time.Now()},
	}
	_ = bus.PublishSync(context.Background(), event)
	sub.Unsubscribe()
	_ = bus.PublishSync(context.Background(), event)

	assert.Equal(t, int32(1), got.Load())
}

func TestPublishAfterShutdownFails(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(TradeExecutedEvent{
		BaseEvent: BaseEvent{EventType: TradeExecuted, EventTime: time.Now()},
	})
	assert.Error(t, err)
}
