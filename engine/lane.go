package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

// lane serialises every submission for one symbol: orders are matched in
// exactly the order they were enqueued. Lanes of different symbols run in
// parallel.
type lane struct {
	book   *orderbook.OrderBook
	orders chan command
	// held while stamping and enqueueing so sequence order is queue order
	enqueue   sync.Mutex
	start     sync.Once
	done      chan struct{}
	accepted  atomic.Uint64
	processed atomic.Uint64
}

// command is one unit of lane work: an order to match, or a cancel of a
// resting order whose outcome is sent on result.
type command struct {
	seq    uint64
	order  *orderbook.Order
	cancel string
	result chan error
}

func newLane(symbol string, buffer int) *lane {
	return &lane{
		book:   orderbook.NewOrderBook(symbol),
		orders: make(chan command, buffer),
		done:   make(chan struct{}),
	}
}

// submit waits for room in the lane until ctx is done or closing is closed.
func (l *lane) submit(ctx context.Context, closing <-chan struct{}, seq *Sequencer, order *orderbook.Order) error {
	return l.push(ctx, closing, seq, command{order: order})
}

func (l *lane) push(ctx context.Context, closing <-chan struct{}, seq *Sequencer, cmd command) error {
	l.enqueue.Lock()
	defer l.enqueue.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-closing:
		return ErrEngineClosed
	default:
	}
	cmd.seq = seq.Next()
	if cmd.order != nil {
		cmd.order.SetSeq(cmd.seq)
	}
	select {
	case l.orders <- cmd:
		l.accepted.Store(cmd.seq)
		return nil
	case <-closing:
		return ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lane) run(ctx context.Context, publish func(ctx context.Context, symbol string, trades []orderbook.Trade) error) {
	l.start.Do(func() {
		go l.loop(ctx, publish)
	})
}

func (l *lane) loop(ctx context.Context, publish func(ctx context.Context, symbol string, trades []orderbook.Trade) error) {
	defer close(l.done)
	symbol := l.book.Symbol()
	abandoned := 0
	for cmd := range l.orders {
		if ctx.Err() != nil {
			abandoned++
			if cmd.result != nil {
				cmd.result <- ctx.Err()
			}
			l.processed.Store(cmd.seq)
			continue
		}
		if last := l.processed.Load(); cmd.seq <= last {
			log.Printf("[engine] %s: command %d out of sequence (after %d)", symbol, cmd.seq, last)
		}
		if cmd.order == nil {
			cmd.result <- l.book.Cancel(cmd.cancel)
			l.processed.Store(cmd.seq)
			continue
		}
		trades, err := l.book.Match(cmd.order)
		if err != nil {
			log.Printf("[engine] %s: dropping order %s: %v", symbol, cmd.order.ID(), err)
		} else if err := publish(ctx, symbol, trades); err != nil {
			log.Printf("[engine] %s: %d trades not published: %v", symbol, len(trades), err)
		}
		l.processed.Store(cmd.seq)
	}
	if abandoned > 0 {
		log.Printf("[engine] %s: abandoned %d queued orders", symbol, abandoned)
	}
}
