package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeithZHIJIAN/nce-simexchange/analytics"
	"github.com/KeithZHIJIAN/nce-simexchange/engine"
	"github.com/KeithZHIJIAN/nce-simexchange/simulator"
)

func newConsole(t *testing.T) (*console, *bytes.Buffer) {
	t.Helper()
	stats := analytics.NewService(analytics.DefaultWindow, 1)
	me, err := engine.NewMatchingEngine(engine.Config{}, stats)
	require.NoError(t, err)
	t.Cleanup(func() { _ = me.Close(context.Background()) })
	gen := simulator.NewGenerator(me, simulator.Config{Symbols: []string{"AAPL"}, Rate: 100, MakerInterval: time.Hour})
	t.Cleanup(func() { gen.Stop(time.Second) })

	out := &bytes.Buffer{}
	return &console{me: me, stats: stats, gen: gen, out: out, grace: time.Second}, out
}

func TestConsoleTradesAndReports(t *testing.T) {
	c, out := newConsole(t)
	ctx := context.Background()

	assert.False(t, c.execute(ctx, "add aapl limit sell 100 150.25"))
	askID := strings.Fields(out.String())[1]
	assert.False(t, c.execute(ctx, "add AAPL limit buy 50 149.75"))
	assert.False(t, c.execute(ctx, "add AAPL market buy 40"))
	require.Eventually(t, func() bool { return c.stats.TradeCount("AAPL") == 1 }, time.Second, time.Millisecond)

	out.Reset()
	c.execute(ctx, "book AAPL 3")
	assert.Contains(t, out.String(), "150.25")
	assert.Contains(t, out.String(), "149.75")

	out.Reset()
	c.execute(ctx, "order AAPL "+askID)
	assert.Contains(t, out.String(), askID)
	assert.Contains(t, out.String(), "40/100")
	assert.Contains(t, out.String(), "submitted ")

	out.Reset()
	c.execute(ctx, "stats all")
	assert.Contains(t, out.String(), "AAPL vwap=150.2500 volume=40 trades=1")

	out.Reset()
	c.execute(ctx, "summary")
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "AAPL"))
	assert.Contains(t, lines[1], "$149.75")
	assert.Contains(t, lines[1], "$150.25")
	assert.Contains(t, lines[1], "$0.50")
}

func TestConsoleReportsErrors(t *testing.T) {
	c, out := newConsole(t)
	ctx := context.Background()

	c.execute(ctx, "add AAPL limit buy -5 10")
	assert.Contains(t, out.String(), "error:")

	out.Reset()
	c.execute(ctx, "cancel AAPL nope")
	assert.Contains(t, out.String(), "error:")

	out.Reset()
	c.execute(ctx, "book AAPL zero")
	assert.Contains(t, out.String(), "bad level count")

	out.Reset()
	c.execute(ctx, "order AAPL nope")
	assert.Contains(t, out.String(), "not resting")

	out.Reset()
	c.execute(ctx, "frobnicate")
	assert.Contains(t, out.String(), "commands:")
}

func TestConsoleControlsSimulator(t *testing.T) {
	c, out := newConsole(t)
	ctx := context.Background()

	c.execute(ctx, "rate 250")
	assert.Equal(t, 250, c.gen.Rate())
	c.execute(ctx, "rate -1")
	assert.Contains(t, out.String(), "bad rate")

	c.execute(ctx, "toggle")
	assert.True(t, c.gen.Running())
	c.execute(ctx, "toggle")
	assert.False(t, c.gen.Running())

	assert.True(t, c.execute(ctx, "exit"))
	assert.False(t, c.execute(ctx, "   "))
}
