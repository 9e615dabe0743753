// internal/position/position_test.go
package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPosition(entry float64) *Position {
	return &Position{
		ID:             "pos-1",
		TokenAddress:   "tok-1",
		EntryTime:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		EntryPrice:     entry,
		CurrentPrice:   entry,
		InvestedAmount: 0.05,
		Status:         StatusActive,
	}
}

func TestApplyPriceUpdatesROI(t *testing.T) {
	p := newTestPosition(0.002)
	ts := p.EntryTime.Add(time.Second)

	require.True(t, p.applyPrice(0.003, ts))
	assert.Equal(t, 0.003, p.CurrentPrice)
	assert.InDelta(t, 50.0, p.ROIPercent, 1e-9)

	// Same or older timestamp is discarded.
	assert.False(t, p.applyPrice(0.004, ts))
	assert.False(t, p.applyPrice(0.004, ts.Add(-time.Second)))
	assert.Equal(t, 0.003, p.CurrentPrice)
}

func TestHistoryRingTrimsOldest(t *testing.T) {
	p := newTestPosition(1.0)

	for i := 0; i < priceHistoryCap+10; i++ {
		ts := p.EntryTime.Add(time.Duration(i+1) * time.Second)
		require.True(t, p.applyPrice(float64(i+1), ts))
	}

	history := p.History()
	require.Len(t, history, priceHistoryCap)

	// The first ten samples fell off the front.
	assert.Equal(t, 11.0, history[0].Price)
	assert.Equal(t, float64(priceHistoryCap+10), history[len(history)-1].Price)
}

func TestHistoryReturnsCopy(t *testing.T) {
	p := newTestPosition(1.0)
	require.True(t, p.applyPrice(2.0, p.EntryTime.Add(time.Second)))

	history := p.History()
	history[0].Price = 999

	assert.Equal(t, 2.0, p.History()[0].Price)
}

func TestStillPumping(t *testing.T) {
	p := newTestPosition(1.0)
	assert.False(t, p.StillPumping(), "too few samples")

	base := p.EntryTime
	for i, price := range []float64{1.1, 1.2, 1.3} {
		require.True(t, p.applyPrice(price, base.Add(time.Duration(i+1)*time.Second)))
	}
	assert.True(t, p.StillPumping())

	// A dip breaks the streak.
	require.True(t, p.applyPrice(1.25, base.Add(10*time.Second)))
	assert.False(t, p.StillPumping())
}

func TestTryAcquireBlocksOverlapAndClosed(t *testing.T) {
	p := newTestPosition(1.0)

	assert.True(t, p.tryAcquire())
	assert.False(t, p.tryAcquire(), "tick already in flight")

	p.release()
	assert.True(t, p.tryAcquire())
	p.release()

	p.Status = StatusClosed
	assert.False(t, p.tryAcquire(), "closed positions never tick")
}
