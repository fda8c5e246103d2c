package orderbook

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/shopspring/decimal"
)

// OrderTree is one side of the book: price levels ordered by matching
// priority. It is not synchronized; the owning OrderBook locks around it.
type OrderTree struct {
	isBuy bool
	t     *treemap.Map
}

// depth is how many levels String prints.
const depth = 4

func NewOrderTree(isBuy bool) *OrderTree {
	return &OrderTree{isBuy: isBuy, t: treemap.NewWith(func(a, b interface{}) int {
		return a.(*Price).Cmp(*b.(*Price))
	})}
}

func (ot *OrderTree) key(price decimal.Decimal) *Price {
	return NewPrice(price, ot.isBuy)
}

// Add appends o to the level at its price, creating the level if needed.
func (ot *OrderTree) Add(o *Order) *OrderList {
	p := ot.key(o.Price())
	ls, ok := ot.t.Get(p)
	if !ok {
		ls = NewOrderList(o.Price())
		ot.t.Put(p, ls)
	}
	ls.(*OrderList).Add(o)
	return ls.(*OrderList)
}

func (ot *OrderTree) Remove(price decimal.Decimal, id string) error {
	p := ot.key(price)
	ls, ok := ot.t.Get(p)
	if !ok {
		return fmt.Errorf("OrderTree: price %s not found", price)
	}
	if !ls.(*OrderList).Remove(id) {
		return fmt.Errorf("OrderTree: order %s not found at %s", id, price)
	}
	if ls.(*OrderList).Empty() {
		ot.t.Remove(p)
	}
	return nil
}

// RemoveLevel drops the level at price regardless of content.
func (ot *OrderTree) RemoveLevel(price decimal.Decimal) {
	ot.t.Remove(ot.key(price))
}

func (ot *OrderTree) Get(price decimal.Decimal) (*OrderList, bool) {
	ls, ok := ot.t.Get(ot.key(price))
	if !ok {
		return nil, false
	}
	return ls.(*OrderList), true
}

// Best returns the level with matching priority, if any.
func (ot *OrderTree) Best() (*OrderList, bool) {
	_, ls := ot.t.Min()
	if ls == nil {
		return nil, false
	}
	return ls.(*OrderList), true
}

func (ot *OrderTree) Empty() bool {
	return ot.t.Empty()
}

// Levels returns the number of distinct prices on this side.
func (ot *OrderTree) Levels() int {
	return ot.t.Size()
}

// Walk visits levels best first until fn returns false.
func (ot *OrderTree) Walk(fn func(ol *OrderList) bool) {
	it := ot.t.Iterator()
	for it.Next() {
		if !fn(it.Value().(*OrderList)) {
			return
		}
	}
}

func (ot *OrderTree) String() string {
	var b strings.Builder
	cnt := 0
	ot.Walk(func(ol *OrderList) bool {
		line := fmt.Sprintf("%s\t%d (%d orders)\n", ol.Price(), ol.Volume(), ol.Size())
		if ot.isBuy {
			b.WriteString(line)
		} else {
			// asks print worst first so the two sides meet at the spread
			s := b.String()
			b.Reset()
			b.WriteString(line + s)
		}
		cnt++
		return cnt < depth
	})
	return b.String()
}
