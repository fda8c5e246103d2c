// Package simulator produces synthetic order flow for an exchange. It is
// an ordinary client of the engine's submission API.
package simulator

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

const (
	MinQuantity     = 10
	MaxQuantity     = 1000
	MinPrice        = 10.0
	MaxPrice        = 1000.0
	PriceVolatility = 0.02
	// share of generated orders that are limit orders, in tenths
	limitShare = 7

	makerQuantity = 500
	makerSpread   = 0.001
)

// Exchange is the part of the engine the generator drives.
type Exchange interface {
	AddOrderBook(symbol string)
	Submit(ctx context.Context, order *orderbook.Order) error
	BestBid(symbol string) (decimal.Decimal, bool)
	BestAsk(symbol string) (decimal.Decimal, bool)
}

type Config struct {
	Symbols []string
	// Rate is random orders per second.
	Rate int
	// MakerInterval is how often two-sided quotes are placed around the mid.
	MakerInterval time.Duration
	Seed          int64
}

type Generator struct {
	exchange Exchange
	symbols  []string
	maker    time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	running atomic.Bool
	rate    atomic.Int64
	count   atomic.Int64
	rateCh  chan struct{}

	mu     sync.Mutex
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGenerator(exchange Exchange, cfg Config) *Generator {
	if cfg.Rate <= 0 {
		cfg.Rate = 50
	}
	if cfg.MakerInterval <= 0 {
		cfg.MakerInterval = 2 * time.Second
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	g := &Generator{
		exchange: exchange,
		maker:    cfg.MakerInterval,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		rateCh:   make(chan struct{}, 1),
	}
	g.rate.Store(int64(cfg.Rate))
	for _, symbol := range cfg.Symbols {
		g.AddSymbol(symbol)
	}
	return g
}

// AddSymbol registers symbol with the exchange and the generator.
// It must be called before Start.
func (g *Generator) AddSymbol(symbol string) {
	g.symbols = append(g.symbols, symbol)
	g.exchange.AddOrderBook(symbol)
}

func (g *Generator) Symbols() []string {
	return append([]string(nil), g.symbols...)
}

func (g *Generator) Running() bool {
	return g.running.Load()
}

func (g *Generator) OrderCount() int64 {
	return g.count.Load()
}

func (g *Generator) Rate() int {
	return int(g.rate.Load())
}

// SetRate changes the random order rate; it applies to a running generator.
func (g *Generator) SetRate(perSecond int) {
	if perSecond <= 0 {
		return
	}
	g.rate.Store(int64(perSecond))
	select {
	case g.rateCh <- struct{}{}:
	default:
	}
}

func (g *Generator) interval() time.Duration {
	return time.Second / time.Duration(g.rate.Load())
}

// Start launches order generation. It reports false if already running.
func (g *Generator) Start() bool {
	if len(g.symbols) == 0 || !g.running.CompareAndSwap(false, true) {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	g.mu.Lock()
	g.stop, g.cancel = stop, cancel
	g.mu.Unlock()

	g.wg.Add(2)
	go g.randomLoop(ctx, stop)
	go g.makerLoop(ctx, stop)
	log.Printf("[simulator] started with %d orders/sec", g.Rate())
	return true
}

// Stop ends generation. In-flight submissions get up to grace to finish
// before they are abandoned.
func (g *Generator) Stop(grace time.Duration) bool {
	if !g.running.CompareAndSwap(true, false) {
		return false
	}
	g.mu.Lock()
	stop, cancel := g.stop, g.cancel
	g.mu.Unlock()
	close(stop)

	finished := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(grace):
		log.Printf("[simulator] grace period %s over, abandoning in-flight orders", grace)
		cancel()
		<-finished
	}
	cancel()
	log.Printf("[simulator] stopped after %d orders", g.OrderCount())
	return true
}

func (g *Generator) randomLoop(ctx context.Context, stop <-chan struct{}) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.interval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-g.rateCh:
			ticker.Reset(g.interval())
		case <-ticker.C:
			if !g.running.Load() {
				return
			}
			g.generateRandomOrder(ctx)
		}
	}
}

func (g *Generator) makerLoop(ctx context.Context, stop <-chan struct{}) {
	defer g.wg.Done()
	select {
	case <-stop:
		return
	case <-time.After(g.maker / 4):
	}
	ticker := time.NewTicker(g.maker)
	defer ticker.Stop()
	for {
		if !g.running.Load() {
			return
		}
		g.generateMarketMakingOrders(ctx)
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (g *Generator) submit(ctx context.Context, order *orderbook.Order) {
	if err := g.exchange.Submit(ctx, order); err != nil {
		log.Printf("[simulator] order %s not submitted: %v", order.ID(), err)
		return
	}
	if n := g.count.Add(1); n%100 == 0 {
		log.Printf("[simulator] generated %d orders so far", n)
	}
}

func (g *Generator) generateRandomOrder(ctx context.Context) {
	g.rngMu.Lock()
	symbol := g.symbols[g.rng.Intn(len(g.symbols))]
	side := orderbook.Buy
	if g.rng.Intn(2) == 1 {
		side = orderbook.Sell
	}
	isLimit := g.rng.Intn(10) < limitShare
	quantity := int64(MinQuantity + g.rng.Intn(MaxQuantity-MinQuantity+1))
	noise, base := g.rng.Float64(), g.rng.Float64()
	g.rngMu.Unlock()

	if !isLimit {
		g.submit(ctx, orderbook.NewMarketOrder(symbol, side, quantity))
		return
	}
	g.submit(ctx, orderbook.NewLimitOrder(symbol, side, g.price(symbol, noise, base), quantity))
}

// price jitters the current mid, or picks a random level for an empty book.
func (g *Generator) price(symbol string, noise, base float64) decimal.Decimal {
	mid, ok := g.midPrice(symbol)
	if !ok {
		mid = decimal.NewFromFloat(MinPrice + base*(MaxPrice-MinPrice))
	}
	variation := mid.Mul(decimal.NewFromFloat(PriceVolatility * (noise - 0.5)))
	price := mid.Add(variation).Round(2)
	if !price.IsPositive() {
		return decimal.NewFromFloat(MinPrice)
	}
	return price
}

func (g *Generator) generateMarketMakingOrders(ctx context.Context) {
	half := decimal.NewFromFloat(makerSpread / 2)
	for _, symbol := range g.symbols {
		if !g.running.Load() {
			return
		}
		mid, ok := g.midPrice(symbol)
		if !ok {
			continue
		}
		offset := mid.Mul(half)
		bid := mid.Sub(offset).Round(2)
		ask := mid.Add(offset).Round(2)
		if !bid.IsPositive() {
			continue
		}
		g.submit(ctx, orderbook.NewLimitOrder(symbol, orderbook.Buy, bid, makerQuantity))
		g.submit(ctx, orderbook.NewLimitOrder(symbol, orderbook.Sell, ask, makerQuantity))
	}
}

func (g *Generator) midPrice(symbol string) (decimal.Decimal, bool) {
	bid, okBid := g.exchange.BestBid(symbol)
	ask, okAsk := g.exchange.BestAsk(symbol)
	switch {
	case okBid && okAsk:
		return bid.Add(ask).Div(decimal.NewFromInt(2)), true
	case okBid:
		return bid, true
	case okAsk:
		return ask, true
	}
	return decimal.Zero, false
}
