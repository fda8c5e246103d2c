package feed

import (
	"context"
	"math"
	"sync"

	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

type batch struct {
	symbol string
	trades []orderbook.Trade
	pos    int
}

// Subscription links one Subscriber to the feed.
type Subscription struct {
	feed       *Feed
	subscriber Subscriber

	mu        sync.Mutex
	cond      *sync.Cond
	demand    int64
	batches   []*batch
	pending   map[string]int
	cancelled bool
	closed    bool
	done      chan struct{}
}

func newSubscription(f *Feed, s Subscriber) *Subscription {
	sub := &Subscription{
		feed:       f,
		subscriber: s,
		pending:    make(map[string]int),
		done:       make(chan struct{}),
	}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

// Request adds n to the number of trades the subscriber is ready for.
func (s *Subscription) Request(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	if s.demand > math.MaxInt64-n {
		s.demand = math.MaxInt64
	} else {
		s.demand += n
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Cancel stops delivery; undelivered trades are discarded and OnComplete is
// not called.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.batches = nil
	s.pending = make(map[string]int)
	s.cond.Broadcast()
	s.mu.Unlock()
	s.feed.remove(s)
}

// Pending is the number of trades queued but not yet delivered.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.pending {
		total += n
	}
	return total
}

// Demand is the outstanding requested count.
func (s *Subscription) Demand() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demand
}

// Done is closed when the delivery loop has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// full reports whether a batch of n trades must wait for symbol; must hold s.mu.
// An oversized batch is admitted into an empty queue so it cannot wait forever.
func (s *Subscription) full(symbol string, n int) bool {
	return s.pending[symbol] > 0 && s.pending[symbol]+n > s.feed.capacity
}

// admit appends the batch; must hold s.mu.
func (s *Subscription) admit(symbol string, trades []orderbook.Trade) error {
	if s.cancelled {
		return nil
	}
	if s.closed {
		return ErrFeedClosed
	}
	s.batches = append(s.batches, &batch{symbol: symbol, trades: trades})
	s.pending[symbol] += len(trades)
	s.cond.Broadcast()
	return nil
}

// tryEnqueue admits the batch if there is room and reports whether it did.
func (s *Subscription) tryEnqueue(symbol string, trades []orderbook.Trade) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cancelled && !s.closed && s.full(symbol, len(trades)) {
		return false, nil
	}
	return true, s.admit(symbol, trades)
}

// enqueue waits for room until ctx is done.
func (s *Subscription) enqueue(ctx context.Context, symbol string, trades []orderbook.Trade) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.cancelled && !s.closed && s.full(symbol, len(trades)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	return s.admit(symbol, trades)
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Subscription) next() (orderbook.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.cancelled && (s.demand == 0 || len(s.batches) == 0) && !(s.closed && len(s.batches) == 0) {
		s.cond.Wait()
	}
	if s.cancelled || len(s.batches) == 0 {
		return orderbook.Trade{}, false
	}

	b := s.batches[0]
	trade := b.trades[b.pos]
	b.pos++
	if b.pos == len(b.trades) {
		s.batches[0] = nil
		s.batches = s.batches[1:]
	}
	s.pending[b.symbol]--
	if s.pending[b.symbol] == 0 {
		delete(s.pending, b.symbol)
	}
	s.demand--
	s.cond.Broadcast()
	return trade, true
}

func (s *Subscription) deliver() {
	defer close(s.done)
	for {
		trade, ok := s.next()
		if !ok {
			break
		}
		s.subscriber.OnTrade(trade)
	}

	s.mu.Lock()
	cancelled := s.cancelled
	s.mu.Unlock()
	if !cancelled {
		s.feed.remove(s)
		s.subscriber.OnComplete()
	}
}
