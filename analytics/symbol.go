package analytics

import (
	"sync"

	"github.com/emirpasic/gods/queues/circularbuffer"
	"github.com/shopspring/decimal"

	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

var hundred = decimal.NewFromInt(100)

// Stats is a consistent snapshot of one symbol's statistics. All values
// are zero when the symbol has not traded.
type Stats struct {
	Symbol           string          `json:"symbol"`
	Vwap             decimal.Decimal `json:"vwap"`
	Volume           int64           `json:"volume"`
	Trades           int64           `json:"trades"`
	LastPrice        decimal.Decimal `json:"lastPrice"`
	High             decimal.Decimal `json:"high"`
	Low              decimal.Decimal `json:"low"`
	AverageTradeSize decimal.Decimal `json:"averageTradeSize"`
	// PriceChange is the percent move from the oldest to the newest trade
	// in the recency window. The window is bounded by trade count, not time.
	PriceChange decimal.Decimal `json:"priceChange"`
	WindowSize  int             `json:"windowSize"`
}

// symbolAnalytics accumulates one symbol's trades.
type symbolAnalytics struct {
	mu       sync.RWMutex
	volume   int64
	notional decimal.Decimal
	trades   int64
	last     decimal.Decimal
	high     decimal.Decimal
	low      decimal.Decimal
	window   *circularbuffer.Queue
}

func newSymbolAnalytics(window int) *symbolAnalytics {
	return &symbolAnalytics{
		notional: decimal.Zero,
		last:     decimal.Zero,
		high:     decimal.Zero,
		low:      decimal.Zero,
		window:   circularbuffer.New(window),
	}
}

func (a *symbolAnalytics) update(trade orderbook.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.volume += trade.Quantity
	a.notional = a.notional.Add(trade.Notional())
	if a.trades == 0 {
		a.high, a.low = trade.Price, trade.Price
	} else {
		a.high = decimal.Max(a.high, trade.Price)
		a.low = decimal.Min(a.low, trade.Price)
	}
	a.trades++
	a.last = trade.Price
	// a full circular buffer overwrites its oldest entry
	a.window.Enqueue(trade.Price)
}

func (a *symbolAnalytics) vwap() decimal.Decimal {
	if a.volume == 0 {
		return decimal.Zero
	}
	return a.notional.Div(decimal.NewFromInt(a.volume))
}

func (a *symbolAnalytics) averageTradeSize() decimal.Decimal {
	if a.trades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(a.volume).Div(decimal.NewFromInt(a.trades))
}

// priceChange needs the newest window entry, which is always the last price.
func (a *symbolAnalytics) priceChange() decimal.Decimal {
	if a.window.Size() < 2 {
		return decimal.Zero
	}
	v, _ := a.window.Peek()
	oldest := v.(decimal.Decimal)
	if !oldest.IsPositive() {
		return decimal.Zero
	}
	return a.last.Sub(oldest).Div(oldest).Mul(hundred)
}

func (a *symbolAnalytics) stats(symbol string) Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Stats{
		Symbol:           symbol,
		Vwap:             a.vwap(),
		Volume:           a.volume,
		Trades:           a.trades,
		LastPrice:        a.last,
		High:             a.high,
		Low:              a.low,
		AverageTradeSize: a.averageTradeSize(),
		PriceChange:      a.priceChange(),
		WindowSize:       a.window.Size(),
	}
}
