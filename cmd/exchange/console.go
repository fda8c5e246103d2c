package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/KeithZHIJIAN/nce-simexchange/analytics"
	"github.com/KeithZHIJIAN/nce-simexchange/engine"
	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
	"github.com/KeithZHIJIAN/nce-simexchange/simulator"
)

const help = `commands:
  summary                                         market summary of every symbol
  stats <SYM|all>                                 trade statistics
  add <SYM> <limit|market> <buy|sell> <qty> [price]
  cancel <SYM> <id>
  order <SYM> <id>                                a resting order
  book <SYM> [levels]                             price levels, default 5
  rate <n>                                        simulator orders per second
  toggle                                          start or stop the simulator
  exit`

type console struct {
	me    *engine.MatchingEngine
	stats *analytics.Service
	gen   *simulator.Generator
	out   io.Writer
	grace time.Duration
}

// execute runs one console line and reports whether the console should exit.
func (c *console) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "exit", "quit":
		return true
	case "summary":
		c.summary()
	case "stats":
		c.printStats(fields[1:])
	case "add", "cancel":
		id, err := c.me.Apply(ctx, line)
		if err != nil {
			fmt.Fprintln(c.out, "error:", err)
			return false
		}
		fmt.Fprintf(c.out, "%s %s\n", strings.ToLower(fields[0]), id)
	case "order":
		c.order(fields[1:])
	case "book":
		c.book(fields[1:])
	case "rate":
		c.rate(fields[1:])
	case "toggle":
		if c.gen.Running() {
			c.gen.Stop(c.grace)
			fmt.Fprintln(c.out, "simulator stopped")
		} else if c.gen.Start() {
			fmt.Fprintln(c.out, "simulator started")
		}
	default:
		fmt.Fprintln(c.out, help)
	}
	return false
}

func (c *console) summary() {
	fmt.Fprintf(c.out, "%-8s %-12s %-12s %-12s %-12s %-10s %-8s %s\n",
		"SYMBOL", "BID", "ASK", "SPREAD", "LAST", "VOLUME", "TRADES", "CHANGE")
	for _, symbol := range c.me.Symbols() {
		fmt.Fprintln(c.out, c.me.MarketSummary(symbol))
	}
	fmt.Fprintf(c.out, "simulator running=%t orders=%d rate=%d/s\n", c.gen.Running(), c.gen.OrderCount(), c.gen.Rate())
}

func (c *console) printStats(args []string) {
	symbols := c.me.Symbols()
	if len(args) > 0 && !strings.EqualFold(args[0], "all") {
		symbols = []string{strings.ToUpper(args[0])}
	}
	for _, symbol := range symbols {
		st := c.stats.Stats(symbol)
		fmt.Fprintf(c.out, "%s vwap=%s volume=%d trades=%d last=%s high=%s low=%s avgSize=%s change=%s%%\n",
			symbol, st.Vwap.StringFixed(4), st.Volume, st.Trades, st.LastPrice.StringFixed(2),
			st.High.StringFixed(2), st.Low.StringFixed(2), st.AverageTradeSize.StringFixed(2), st.PriceChange.StringFixed(2))
	}
}

func (c *console) order(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "usage: order <SYM> <id>")
		return
	}
	o, ok := c.me.Order(strings.ToUpper(args[0]), args[1])
	if !ok {
		fmt.Fprintf(c.out, "error: order %s not resting\n", args[1])
		return
	}
	fmt.Fprintf(c.out, "%s submitted %s\n", &o, o.SubmissionTime().Format(time.RFC3339Nano))
}

func (c *console) book(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: book <SYM> [levels]")
		return
	}
	symbol := strings.ToUpper(args[0])
	levels := 5
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(c.out, "error: bad level count %q\n", args[1])
			return
		}
		levels = n
	}
	asks := c.me.Levels(symbol, orderbook.Sell, levels)
	fmt.Fprintf(c.out, "%s asks:\n", symbol)
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Fprintf(c.out, "  %12s %10d (%d)\n", asks[i].Price.StringFixed(2), asks[i].Volume, asks[i].Orders)
	}
	fmt.Fprintf(c.out, "%s bids:\n", symbol)
	for _, l := range c.me.Levels(symbol, orderbook.Buy, levels) {
		fmt.Fprintf(c.out, "  %12s %10d (%d)\n", l.Price.StringFixed(2), l.Volume, l.Orders)
	}
}

func (c *console) rate(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "rate %d/s\n", c.gen.Rate())
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		fmt.Fprintf(c.out, "error: bad rate %q\n", args[0])
		return
	}
	c.gen.SetRate(n)
	fmt.Fprintf(c.out, "rate %d/s\n", n)
}
