package orderbook

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Level is a read-only view of one price level.
type Level struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
	Orders int             `json:"orders"`
}

// OrderBook owns all resting liquidity for one symbol. Matching and cancel
// hold the write lock for their whole duration; queries share the read lock.
type OrderBook struct {
	mu     sync.RWMutex
	symbol string
	asks   *OrderTree
	bids   *OrderTree
	orders map[string]*Order
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		asks:   NewOrderTree(false),
		bids:   NewOrderTree(true),
		orders: make(map[string]*Order),
	}
}

func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

func (ob *OrderBook) tree(side Side) *OrderTree {
	if side == Buy {
		return ob.bids
	}
	return ob.asks
}

// Match executes inbound against the opposite side and rests any limit
// remainder. Trades are returned in execution order.
func (ob *OrderBook) Match(inbound *Order) ([]Trade, error) {
	if inbound.Symbol() != ob.symbol {
		return nil, fmt.Errorf("%w: order %s, book %s", ErrSymbolMismatch, inbound.Symbol(), ob.symbol)
	}
	if err := inbound.Validate(); err != nil {
		return nil, err
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.match(inbound), nil
}

// match must run under the write lock.
func (ob *OrderBook) match(inbound *Order) []Trade {
	outbound := ob.tree(inbound.Side().Opposite())
	trades := make([]Trade, 0)
	curr := time.Now()

	for inbound.OpenQuantity() > 0 {
		level, ok := outbound.Best()
		if !ok {
			break
		}
		if inbound.Kind() == Limit && !NewPrice(level.Price(), outbound.isBuy).Match(inbound.Price()) {
			break
		}
		for inbound.OpenQuantity() > 0 {
			resting, ok := level.Head()
			if !ok {
				break
			}
			trades = append(trades, ob.createTrade(inbound, resting, level, curr))
			if resting.Filled() {
				level.Remove(resting.ID())
				delete(ob.orders, resting.ID())
			}
		}
		if level.Empty() {
			outbound.RemoveLevel(level.Price())
		}
	}

	if inbound.OpenQuantity() > 0 && inbound.Kind() == Limit {
		ob.rest(inbound)
	}
	return trades
}

// createTrade fills both orders at the resting order's price.
func (ob *OrderBook) createTrade(inbound, resting *Order, level *OrderList, curr time.Time) Trade {
	fillQty := min(inbound.OpenQuantity(), resting.OpenQuantity())

	buyer, seller := resting, inbound
	if inbound.IsBuy() {
		buyer, seller = inbound, resting
	}

	resting.Fill(fillQty)
	inbound.Fill(fillQty)
	level.Fill(fillQty)

	return NewTrade(buyer.ID(), seller.ID(), ob.symbol, resting.Price(), fillQty, curr)
}

// rest must run under the write lock.
func (ob *OrderBook) rest(o *Order) {
	ob.tree(o.Side()).Add(o)
	ob.orders[o.ID()] = o
}

// Cancel removes a resting order and marks it Cancelled.
func (ob *OrderBook) Cancel(id string) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	o, ok := ob.orders[id]
	if !ok || o.Status().Terminal() {
		return fmt.Errorf("%w: %s in %s", ErrOrderNotFound, id, ob.symbol)
	}
	if err := ob.tree(o.Side()).Remove(o.Price(), id); err != nil {
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	}
	delete(ob.orders, id)
	o.Cancel()
	return nil
}

// Lookup returns a copy of a resting order.
func (ob *OrderBook) Lookup(id string) (Order, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	o, ok := ob.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.Snapshot(), true
}

// BestBid returns the highest resting buy price; false when there are no bids.
func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.best(ob.bids)
}

// BestAsk returns the lowest resting sell price; false when there are no asks.
func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.best(ob.asks)
}

func (ob *OrderBook) best(ot *OrderTree) (decimal.Decimal, bool) {
	level, ok := ot.Best()
	if !ok {
		return decimal.Zero, false
	}
	return level.Price(), true
}

// Top is the best bid and ask of one book read at the same instant.
type Top struct {
	Bid decimal.NullDecimal `json:"bid"`
	Ask decimal.NullDecimal `json:"ask"`
}

// Spread is ask minus bid, null unless both sides rest.
func (t Top) Spread() decimal.NullDecimal {
	if !t.Bid.Valid || !t.Ask.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(t.Ask.Decimal.Sub(t.Bid.Decimal))
}

func (ob *OrderBook) Top() Top {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	var top Top
	top.Bid.Decimal, top.Bid.Valid = ob.best(ob.bids)
	top.Ask.Decimal, top.Ask.Valid = ob.best(ob.asks)
	return top
}

// VolumeAtPrice is the open quantity resting at exactly price on side.
func (ob *OrderBook) VolumeAtPrice(side Side, price decimal.Decimal) int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	level, ok := ob.tree(side).Get(price)
	if !ok {
		return 0
	}
	return level.Volume()
}

// Depth sums the open quantity of the best n distinct levels on side.
func (ob *OrderBook) Depth(side Side, n int) int64 {
	var total int64
	for _, level := range ob.Levels(side, n) {
		total += level.Volume
	}
	return total
}

// Levels lists up to n levels of side, best first.
func (ob *OrderBook) Levels(side Side, n int) []Level {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	levels := make([]Level, 0)
	if n <= 0 {
		return levels
	}
	ob.tree(side).Walk(func(ol *OrderList) bool {
		levels = append(levels, Level{Price: ol.Price(), Volume: ol.Volume(), Orders: ol.Size()})
		return len(levels) < n
	})
	return levels
}

// Len is the number of resting orders.
func (ob *OrderBook) Len() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return len(ob.orders)
}

func (ob *OrderBook) String() string {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return fmt.Sprintf("\nsymbol:%s\n\nasks:\n%v\nbids:\n%v\n", ob.symbol, ob.asks, ob.bids)
}
