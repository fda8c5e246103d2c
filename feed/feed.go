// Package feed broadcasts executed trades to subscribers with
// demand-based flow control. A subscriber receives no more trades than it
// has requested; undelivered trades wait in a bounded per-symbol queue and
// a full queue holds back only the publisher of that symbol.
package feed

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

var ErrFeedClosed = errors.New("feed: closed")

// DefaultCapacity is the number of undelivered trades a subscription
// buffers per symbol.
const DefaultCapacity = 1024

// Subscriber consumes the trade stream. OnTrade and OnComplete are called
// from one goroutine per subscription, never concurrently.
type Subscriber interface {
	// OnSubscribe is called once before any delivery; the subscriber
	// should keep s and call s.Request to receive trades.
	OnSubscribe(s *Subscription)
	OnTrade(trade orderbook.Trade)
	// OnComplete is called after the last trade once the feed is closed.
	OnComplete()
}

type Feed struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	capacity int
	closed   bool
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers s and starts its delivery loop.
func (f *Feed) Subscribe(s Subscriber) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}
	sub := newSubscription(f, s)
	f.subs[sub] = struct{}{}
	s.OnSubscribe(sub)
	go sub.deliver()
	return sub, nil
}

// Publish hands the trades of one match to every subscription. Trades of
// one call are delivered contiguously and in order. It blocks while a
// subscription's queue for symbol is full, until ctx is done.
func (f *Feed) Publish(ctx context.Context, symbol string, trades []orderbook.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return ErrFeedClosed
	}
	subs := make([]*Subscription, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	// every subscription with room gets the batch before any full one is waited on
	waiting := subs[:0]
	for _, sub := range subs {
		admitted, err := sub.tryEnqueue(symbol, trades)
		if err != nil {
			return err
		}
		if !admitted {
			waiting = append(waiting, sub)
		}
	}
	for _, sub := range waiting {
		if err := sub.enqueue(ctx, symbol, trades); err != nil {
			return err
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
}

// Close stops accepting trades and lets every subscription drain what it
// already holds. Subscriptions still draining when ctx ends are abandoned.
func (f *Feed) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	subs := make([]*Subscription, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	for _, sub := range subs {
		select {
		case <-sub.done:
		case <-ctx.Done():
			log.Printf("[feed] abandoning %d undelivered trades: %v", sub.Pending(), ctx.Err())
			for _, s := range subs {
				s.Cancel()
			}
			return ctx.Err()
		}
	}
	return nil
}
