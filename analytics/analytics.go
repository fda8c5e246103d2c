// Package analytics derives live per-symbol statistics from the trade feed
// and never looks into an order book.
package analytics

import (
	"log"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/KeithZHIJIAN/nce-simexchange/feed"
	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

const (
	DefaultWindow  = 1000
	DefaultRequest = 1
)

// Service is a feed.Subscriber keeping one accumulator per traded symbol.
type Service struct {
	symbols sync.Map // string -> *symbolAnalytics
	window  int
	request int64

	mu       sync.Mutex
	sub      *feed.Subscription
	received int64
	done     chan struct{}
}

// NewService creates a service whose recency window holds window trades
// and which asks the feed for request trades at a time.
func NewService(window int, request int64) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	if request <= 0 {
		request = DefaultRequest
	}
	return &Service{window: window, request: request, done: make(chan struct{})}
}

func (s *Service) OnSubscribe(sub *feed.Subscription) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	sub.Request(s.request)
	log.Println("[analytics] subscribed to trade feed")
}

func (s *Service) OnTrade(trade orderbook.Trade) {
	s.UpdateMetrics(trade)

	s.mu.Lock()
	s.received++
	sub, again := s.sub, s.received%s.request == 0
	s.mu.Unlock()
	if again && sub != nil {
		sub.Request(s.request)
	}
}

func (s *Service) OnComplete() {
	log.Println("[analytics] trade feed completed")
	close(s.done)
}

// Done is closed once the feed has delivered its last trade.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Cancel detaches the service from the feed.
func (s *Service) Cancel() {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// UpdateMetrics folds trades into their symbols' accumulators.
func (s *Service) UpdateMetrics(trades ...orderbook.Trade) {
	for _, trade := range trades {
		v, ok := s.symbols.Load(trade.Symbol)
		if !ok {
			v, _ = s.symbols.LoadOrStore(trade.Symbol, newSymbolAnalytics(s.window))
		}
		v.(*symbolAnalytics).update(trade)
	}
}

func (s *Service) lookup(symbol string) (*symbolAnalytics, bool) {
	v, ok := s.symbols.Load(symbol)
	if !ok {
		return nil, false
	}
	return v.(*symbolAnalytics), true
}

// Stats returns every statistic of symbol from one consistent read.
func (s *Service) Stats(symbol string) Stats {
	a, ok := s.lookup(symbol)
	if !ok {
		return Stats{
			Symbol:           symbol,
			Vwap:             decimal.Zero,
			LastPrice:        decimal.Zero,
			High:             decimal.Zero,
			Low:              decimal.Zero,
			AverageTradeSize: decimal.Zero,
			PriceChange:      decimal.Zero,
		}
	}
	return a.stats(symbol)
}

func (s *Service) VWAP(symbol string) decimal.Decimal {
	return s.Stats(symbol).Vwap
}

func (s *Service) TotalVolume(symbol string) int64 {
	return s.Stats(symbol).Volume
}

func (s *Service) TradeCount(symbol string) int64 {
	return s.Stats(symbol).Trades
}

func (s *Service) LastPrice(symbol string) decimal.Decimal {
	return s.Stats(symbol).LastPrice
}

// PriceChange is the percent change across the trade-count recency window.
func (s *Service) PriceChange(symbol string) decimal.Decimal {
	return s.Stats(symbol).PriceChange
}

func (s *Service) High(symbol string) decimal.Decimal {
	return s.Stats(symbol).High
}

func (s *Service) Low(symbol string) decimal.Decimal {
	return s.Stats(symbol).Low
}

func (s *Service) AverageTradeSize(symbol string) decimal.Decimal {
	return s.Stats(symbol).AverageTradeSize
}

// Symbols lists every symbol that has traded, sorted.
func (s *Service) Symbols() []string {
	symbols := make([]string, 0)
	s.symbols.Range(func(k, _ interface{}) bool {
		symbols = append(symbols, k.(string))
		return true
	})
	sort.Strings(symbols)
	return symbols
}
