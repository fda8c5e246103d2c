// Package engine owns the symbol registry, sequences submissions into one
// serial lane per symbol and broadcasts the resulting trades.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/KeithZHIJIAN/nce-simexchange/analytics"
	"github.com/KeithZHIJIAN/nce-simexchange/feed"
	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

var ErrEngineClosed = errors.New("engine: closed")

const DefaultLaneBuffer = 1024

type Config struct {
	// LaneBuffer is how many accepted orders may wait per symbol.
	LaneBuffer int
	// FeedCapacity is how many undelivered trades a subscriber buffers per symbol.
	FeedCapacity int
}

type MatchingEngine struct {
	lanes      sync.Map // string -> *lane
	seq        Sequencer
	feed       *feed.Feed
	stats      *analytics.Service
	laneBuffer int

	// mu is held for reading by submitters and for writing by Close
	// before lane channels are closed. closing wakes submitters blocked
	// on a full lane so Close never waits on them.
	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewMatchingEngine creates an engine and subscribes stats, when given, to
// its trade feed.
func NewMatchingEngine(cfg Config, stats *analytics.Service) (*MatchingEngine, error) {
	if cfg.LaneBuffer <= 0 {
		cfg.LaneBuffer = DefaultLaneBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	me := &MatchingEngine{
		feed:       feed.NewFeed(cfg.FeedCapacity),
		stats:      stats,
		laneBuffer: cfg.LaneBuffer,
		closing:    make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	if stats != nil {
		if _, err := me.feed.Subscribe(stats); err != nil {
			cancel()
			return nil, err
		}
	}
	return me, nil
}

// AddOrderBook registers symbol; it is a no-op when the book exists.
func (me *MatchingEngine) AddOrderBook(symbol string) {
	me.mu.RLock()
	defer me.mu.RUnlock()
	if me.closed {
		return
	}
	me.lane(symbol)
}

func (me *MatchingEngine) lane(symbol string) *lane {
	v, ok := me.lanes.Load(symbol)
	if !ok {
		var loaded bool
		v, loaded = me.lanes.LoadOrStore(symbol, newLane(symbol, me.laneBuffer))
		if !loaded {
			log.Printf("[engine] order book %s created", symbol)
		}
	}
	l := v.(*lane)
	l.run(me.ctx, me.feed.Publish)
	return l
}

func (me *MatchingEngine) book(symbol string) (*orderbook.OrderBook, bool) {
	v, ok := me.lanes.Load(symbol)
	if !ok {
		return nil, false
	}
	return v.(*lane).book, true
}

// Submit validates order and queues it on its symbol's lane. It returns
// before matching happens; results show up on the trade feed and in
// queries. A book is created for an unknown symbol.
func (me *MatchingEngine) Submit(ctx context.Context, order *orderbook.Order) error {
	if err := order.Validate(); err != nil {
		order.Reject()
		return err
	}

	me.mu.RLock()
	defer me.mu.RUnlock()
	if me.closed {
		return ErrEngineClosed
	}
	if err := me.lane(order.Symbol()).submit(ctx, me.closing, &me.seq, order); err != nil {
		if errors.Is(err, ErrEngineClosed) {
			return err
		}
		return fmt.Errorf("engine: submit %s: %w", order.ID(), err)
	}
	return nil
}

// CancelOrder cancels a resting order. It reports false when the book or
// the order is unknown, or the order is no longer live.
func (me *MatchingEngine) CancelOrder(symbol, orderID string) bool {
	ob, ok := me.book(symbol)
	if !ok {
		return false
	}
	if err := ob.Cancel(orderID); err != nil {
		return false
	}
	return true
}

// Cancel cancels orderID after every order already submitted for symbol
// has been matched, so it can follow an add of the same order. It waits
// for the outcome until ctx is done.
func (me *MatchingEngine) Cancel(ctx context.Context, symbol, orderID string) error {
	me.mu.RLock()
	if me.closed {
		me.mu.RUnlock()
		return ErrEngineClosed
	}
	l, ok := me.lanes.Load(symbol)
	if !ok {
		me.mu.RUnlock()
		return fmt.Errorf("%w: %s in %s", orderbook.ErrOrderNotFound, orderID, symbol)
	}
	result := make(chan error, 1)
	err := l.(*lane).push(ctx, me.closing, &me.seq, command{cancel: orderID, result: result})
	me.mu.RUnlock()
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Order returns a snapshot of a resting order.
func (me *MatchingEngine) Order(symbol, orderID string) (orderbook.Order, bool) {
	ob, ok := me.book(symbol)
	if !ok {
		return orderbook.Order{}, false
	}
	return ob.Lookup(orderID)
}

func (me *MatchingEngine) BestBid(symbol string) (decimal.Decimal, bool) {
	ob, ok := me.book(symbol)
	if !ok {
		return decimal.Zero, false
	}
	return ob.BestBid()
}

func (me *MatchingEngine) BestAsk(symbol string) (decimal.Decimal, bool) {
	ob, ok := me.book(symbol)
	if !ok {
		return decimal.Zero, false
	}
	return ob.BestAsk()
}

// Spread is best ask minus best bid, unavailable unless both sides rest.
// Both prices are read under one book lock.
func (me *MatchingEngine) Spread(symbol string) (decimal.Decimal, bool) {
	spread := me.Top(symbol).Spread()
	return spread.Decimal, spread.Valid
}

// Top returns the best bid and ask of symbol read together.
func (me *MatchingEngine) Top(symbol string) orderbook.Top {
	ob, ok := me.book(symbol)
	if !ok {
		return orderbook.Top{}
	}
	return ob.Top()
}

// MarketDepth sums the open quantity of the best levels distinct prices on side.
func (me *MatchingEngine) MarketDepth(symbol string, side orderbook.Side, levels int) int64 {
	ob, ok := me.book(symbol)
	if !ok {
		return 0
	}
	return ob.Depth(side, levels)
}

// Levels lists the best n price levels of side.
func (me *MatchingEngine) Levels(symbol string, side orderbook.Side, n int) []orderbook.Level {
	ob, ok := me.book(symbol)
	if !ok {
		return []orderbook.Level{}
	}
	return ob.Levels(side, n)
}

// Symbols returns the registered symbols at this moment, sorted.
func (me *MatchingEngine) Symbols() []string {
	symbols := make([]string, 0)
	me.lanes.Range(func(k, _ interface{}) bool {
		symbols = append(symbols, k.(string))
		return true
	})
	sort.Strings(symbols)
	return symbols
}

// Processed is the sequence number of the last order the symbol's lane finished.
func (me *MatchingEngine) Processed(symbol string) uint64 {
	v, ok := me.lanes.Load(symbol)
	if !ok {
		return 0
	}
	return v.(*lane).processed.Load()
}

// Idle reports whether every order accepted for symbol has been matched.
func (me *MatchingEngine) Idle(symbol string) bool {
	v, ok := me.lanes.Load(symbol)
	if !ok {
		return true
	}
	l := v.(*lane)
	return l.processed.Load() == l.accepted.Load()
}

// Sequence is the last sequence number handed out.
func (me *MatchingEngine) Sequence() uint64 {
	return me.seq.Current()
}

// Subscribe attaches another consumer to the trade feed.
func (me *MatchingEngine) Subscribe(s feed.Subscriber) (*feed.Subscription, error) {
	return me.feed.Subscribe(s)
}

// Close stops admission, lets every lane finish its queue and the feed
// deliver what it holds. Work still pending when ctx ends is abandoned.
func (me *MatchingEngine) Close(ctx context.Context) error {
	me.closeOnce.Do(func() { close(me.closing) })
	me.mu.Lock()
	if me.closed {
		me.mu.Unlock()
		return nil
	}
	me.closed = true
	me.mu.Unlock()

	lanes := make([]*lane, 0)
	me.lanes.Range(func(_, v interface{}) bool {
		l := v.(*lane)
		close(l.orders)
		lanes = append(lanes, l)
		return true
	})

	var err error
	for _, l := range lanes {
		select {
		case <-l.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			break
		}
	}
	if err != nil {
		log.Printf("[engine] grace period over, abandoning queued orders: %v", err)
		me.cancel()
		for _, l := range lanes {
			<-l.done
		}
	}
	if ferr := me.feed.Close(ctx); ferr != nil && err == nil {
		err = ferr
	}
	me.cancel()
	return err
}
