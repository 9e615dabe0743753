// internal/engine/engine_test.go
package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solsniper/simbot/internal/decision"
	"github.com/solsniper/simbot/internal/events"
	"github.com/solsniper/simbot/internal/marketdata"
	"github.com/solsniper/simbot/internal/portfolio"
	"github.com/solsniper/simbot/internal/position"
	"github.com/solsniper/simbot/internal/pricing"
	"github.com/solsniper/simbot/internal/strategy"
	"github.com/solsniper/simbot/internal/types"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	engine *Engine
	ledger *portfolio.Ledger
	bus    *events.Bus
}

// fakeStream records subscription traffic in place of a live websocket.
type fakeStream struct {
	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
	updates      chan marketdata.PriceUpdate
}

func newFakeStream() *fakeStream {
	return &fakeStream{updates: make(chan marketdata.PriceUpdate, 8)}
}

func (s *fakeStream) Updates() <-chan marketdata.PriceUpdate { return s.updates }

func (s *fakeStream) Subscribe(tokenAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, tokenAddress)
	return nil
}

func (s *fakeStream) Unsubscribe(tokenAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = append(s.unsubscribed, tokenAddress)
	return nil
}

func (s *fakeStream) subscribedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.subscribed))
	copy(out, s.subscribed)
	return out
}

func (s *fakeStream) unsubscribedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.unsubscribed))
	copy(out, s.unsubscribed)
	return out
}

func newHarness(t *testing.T, balance float64, maxPositions int) *harness {
	return newHarnessWithStream(t, balance, maxPositions, nil)
}

func newHarnessWithStream(t *testing.T, balance float64, maxPositions int, stream PriceStream) *harness {
	t.Helper()

	log := zaptest.NewLogger(t)
	now := func() time.Time { return fixedNow }

	bus := events.NewBus(log, 64)
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })

	ledger := portfolio.NewLedger(balance, log)
	model := pricing.NewRandomWalkModel(1)
	positions := position.NewManager(position.Config{
		Ledger:       ledger,
		Model:        model,
		Bus:          bus,
		Logger:       log,
		TickInterval: time.Second,
		Now:          now,
	})

	eng := New(Config{
		Decisions:    decision.NewEngine(strategy.NewCatalog(), log, now),
		Resolver:     pricing.NewResolver(nil, model, log),
		Positions:    positions,
		Ledger:       ledger,
		Bus:          bus,
		Stream:       stream,
		Logger:       log,
		MaxPositions: maxPositions,
		Now:          now,
	})

	return &harness{engine: eng, ledger: ledger, bus: bus}
}

func strongSignal(addr string) *types.TokenSignal {
	return &types.TokenSignal{
		Address:       addr,
		Symbol:        "MOON",
		CreatedAt:     fixedNow.Add(-2 * time.Minute),
		LiquidityUSD:  60_000,
		SecurityScore: 92,
		SourceTag:     "pump.fun",
		Metadata:      map[string]interface{}{"pump_detected": true},
	}
}

func collect(t *testing.T, bus *events.Bus, eventType events.EventType) <-chan events.Event {
	t.Helper()
	ch := make(chan events.Event, 8)
	bus.SubscribeFunc(eventType, func(_ context.Context, event events.Event) error {
		ch <- event
		return nil
	})
	return ch
}

func waitEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("expected event not delivered")
		return nil
	}
}

func TestStrongSignalOpensPosition(t *testing.T) {
	h := newHarness(t, 10, 5)
	opened := collect(t, h.bus, events.PositionOpened)

	require.NoError(t, h.engine.OnTokenDetected(context.Background(), strongSignal("tok-1")))

	event := waitEvent(t, opened).(events.PositionOpenedEvent)
	assert.Equal(t, "tok-1", event.TokenAddress)
	assert.Equal(t, "pump", event.Strategy)
	assert.Positive(t, event.EntryPrice)
	assert.Positive(t, event.InvestedSOL)

	balance, invested := h.ledger.Balances()
	assert.Less(t, balance, 10.0)
	assert.Equal(t, event.InvestedSOL, invested)
}

func TestRejectedSignalEmitsSkip(t *testing.T) {
	h := newHarness(t, 10, 5)
	skipped := collect(t, h.bus, events.TokenSkipped)

	sig := strongSignal("tok-1")
	sig.SecurityScore = 10

	require.NoError(t, h.engine.OnTokenDetected(context.Background(), sig))

	event := waitEvent(t, skipped).(events.TokenSkippedEvent)
	assert.Equal(t, "tok-1", event.TokenAddress)
	assert.Contains(t, event.Reason, "security score 10 below minimum")

	// A rejection must never touch the ledger.
	balance, invested := h.ledger.Balances()
	assert.Equal(t, 10.0, balance)
	assert.Zero(t, invested)
}

func TestMediumSignalIsWatched(t *testing.T) {
	h := newHarness(t, 10, 5)
	watched := collect(t, h.bus, events.TokenWatched)

	// Default family at MEDIUM urgency under the secondary bar.
	sig := &types.TokenSignal{
		Address:       "tok-w",
		Symbol:        "UNK",
		CreatedAt:     fixedNow.Add(-20 * time.Minute),
		LiquidityUSD:  60_000,
		SecurityScore: 75,
		SourceTag:     "mystery",
	}

	require.NoError(t, h.engine.OnTokenDetected(context.Background(), sig))

	event := waitEvent(t, watched).(events.TokenWatchedEvent)
	assert.Equal(t, "tok-w", event.TokenAddress)
	assert.Zero(t, h.engine.positions.ActiveCount())
}

func TestInsufficientBalanceIsSkipNotError(t *testing.T) {
	h := newHarness(t, 0.0005, 5) // below the minimum viable size
	skipped := collect(t, h.bus, events.TokenSkipped)

	require.NoError(t, h.engine.OnTokenDetected(context.Background(), strongSignal("tok-1")))

	event := waitEvent(t, skipped).(events.TokenSkippedEvent)
	assert.Contains(t, event.Reason, "insufficient balance")

	balance, _ := h.ledger.Balances()
	assert.Equal(t, 0.0005, balance)
}

func TestDuplicateSignalIsSkipped(t *testing.T) {
	h := newHarness(t, 10, 5)
	skipped := collect(t, h.bus, events.TokenSkipped)

	require.NoError(t, h.engine.OnTokenDetected(context.Background(), strongSignal("tok-1")))
	require.NoError(t, h.engine.OnTokenDetected(context.Background(), strongSignal("tok-1")))

	event := waitEvent(t, skipped).(events.TokenSkippedEvent)
	assert.Contains(t, event.Reason, "already open")
	assert.Equal(t, 1, h.engine.positions.ActiveCount())
}

func TestPositionLimitEnforced(t *testing.T) {
	h := newHarness(t, 10, 1)
	skipped := collect(t, h.bus, events.TokenSkipped)

	require.NoError(t, h.engine.OnTokenDetected(context.Background(), strongSignal("tok-1")))
	require.NoError(t, h.engine.OnTokenDetected(context.Background(), strongSignal("tok-2")))

	event := waitEvent(t, skipped).(events.TokenSkippedEvent)
	assert.Contains(t, event.Reason, "position limit 1 reached")
	assert.Equal(t, 1, h.engine.positions.ActiveCount())
}

func TestStreamSubscriptionFollowsPositionLifecycle(t *testing.T) {
	stream := newFakeStream()
	h := newHarnessWithStream(t, 10, 5, stream)

	require.NoError(t, h.engine.OnTokenDetected(context.Background(), strongSignal("tok-1")))
	assert.Equal(t, []string{"tok-1"}, stream.subscribedTokens())

	p, ok := h.engine.positions.Get("tok-1")
	require.True(t, ok)
	require.NoError(t, h.engine.positions.Close(p.ID, "manual"))

	// The close event propagates through the bus; the dead subscription
	// must be torn down so the feed stops streaming it.
	assert.Eventually(t, func() bool {
		tokens := stream.unsubscribedTokens()
		return len(tokens) == 1 && tokens[0] == "tok-1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidSignalIsError(t *testing.T) {
	h := newHarness(t, 10, 5)

	err := h.engine.OnTokenDetected(context.Background(), &types.TokenSignal{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidSignal)
}

func TestReportReflectsLedger(t *testing.T) {
	h := newHarness(t, 10, 5)

	require.NoError(t, h.engine.OnTokenDetected(context.Background(), strongSignal("tok-1")))

	snapshot, stats := h.engine.Report()
	assert.Equal(t, 10.0, snapshot.StartingBalance)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.BuyCount)
}
