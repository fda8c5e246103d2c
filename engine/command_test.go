package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

func TestApplyAddAndCancel(t *testing.T) {
	me, stats := newEngine(t)
	ctx := context.Background()

	askID, err := me.Apply(ctx, "add ethusd limit ask 100 64000")
	require.NoError(t, err)
	_, err = me.Apply(ctx, "ADD ETHUSD limit bid 40 63000")
	require.NoError(t, err)
	settle(t, me, "ETHUSD")

	ask, ok := me.BestAsk("ETHUSD")
	require.True(t, ok)
	assert.True(t, ask.Equal(decimal.NewFromInt(64000)))

	_, err = me.Apply(ctx, "add ETHUSD market buy 30")
	require.NoError(t, err)
	settle(t, me, "ETHUSD")
	require.Eventually(t, func() bool { return stats.TradeCount("ETHUSD") == 1 }, time.Second, time.Millisecond)

	o, ok := me.Order("ETHUSD", askID)
	require.True(t, ok)
	assert.Equal(t, int64(70), o.OpenQuantity())

	id, err := me.Apply(ctx, "cancel ethusd "+askID)
	require.NoError(t, err)
	assert.Equal(t, askID, id)
	_, ok = me.BestAsk("ETHUSD")
	assert.False(t, ok)

	_, err = me.Apply(ctx, "cancel ETHUSD "+askID)
	assert.ErrorIs(t, err, orderbook.ErrOrderNotFound)
}

func TestApplyRejectsMalformedCommands(t *testing.T) {
	me, _ := newEngine(t)
	ctx := context.Background()
	for _, msg := range []string{
		"",
		"modify ETHUSD buy 1",
		"add ETHUSD limit buy 10",
		"add ETHUSD limit hold 10 5",
		"add ETHUSD stop buy 10 5",
		"add ETHUSD limit buy 0 5",
		"add ETHUSD limit buy 1.5 5",
		"cancel ETHUSD",
	} {
		_, err := me.Apply(ctx, msg)
		assert.ErrorIs(t, err, orderbook.ErrInvalidOrder, msg)
	}
	assert.Empty(t, me.Symbols())
}

func TestCancelFollowsEarlierAdds(t *testing.T) {
	me, _ := newEngine(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		// queue enough work that the add is still pending when the cancel arrives
		for j := 0; j < 20; j++ {
			submit(t, me, orderbook.NewLimitOrder("Q", orderbook.Buy, decimal.NewFromInt(int64(1+j)), 1))
		}
		id, err := me.Apply(ctx, "add Q limit sell 5 1000")
		require.NoError(t, err)
		_, err = me.Apply(ctx, "cancel Q "+id)
		require.NoError(t, err, "cancel right after add")
		_, ok := me.Order("Q", id)
		assert.False(t, ok)
	}
	assert.Equal(t, int64(0), me.MarketDepth("Q", orderbook.Sell, 10))
}

func TestCancelUnknownSymbolOrClosedEngine(t *testing.T) {
	me, err := NewMatchingEngine(Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, me.Cancel(ctx, "NONE", "x"), orderbook.ErrOrderNotFound)
	assert.Empty(t, me.Symbols())

	require.NoError(t, me.Close(ctx))
	assert.ErrorIs(t, me.Cancel(ctx, "NONE", "x"), ErrEngineClosed)
}

func TestCancelWaitIsBoundedByContext(t *testing.T) {
	me, err := NewMatchingEngine(Config{FeedCapacity: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_ = me.Close(ctx)
	})
	_, err = me.Subscribe(stalled{})
	require.NoError(t, err)

	// the lane blocks publishing to the stalled subscriber
	for i := 0; i < 3; i++ {
		submit(t, me, orderbook.NewLimitOrder("S", orderbook.Sell, px(1), 1))
		submit(t, me, orderbook.NewMarketOrder("S", orderbook.Buy, 1))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, me.Cancel(ctx, "S", "any"), context.DeadlineExceeded)
}
