package orderbook

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/shopspring/decimal"
)

// OrderList is one price level: resting orders in arrival order plus the
// cached open quantity of the level.
type OrderList struct {
	price  decimal.Decimal
	orders *linkedhashmap.Map
	volume int64
}

func NewOrderList(price decimal.Decimal) *OrderList {
	return &OrderList{price: price, orders: linkedhashmap.New()}
}

func (ol *OrderList) Price() decimal.Decimal {
	return ol.price
}

// Add appends o to the back of the level.
func (ol *OrderList) Add(o *Order) {
	ol.orders.Put(o.ID(), o)
	ol.volume += o.OpenQuantity()
}

func (ol *OrderList) Get(id string) (*Order, bool) {
	o, ok := ol.orders.Get(id)
	if !ok {
		return nil, false
	}
	return o.(*Order), true
}

// Head returns the oldest order of the level.
func (ol *OrderList) Head() (*Order, bool) {
	it := ol.orders.Iterator()
	if !it.First() {
		return nil, false
	}
	return it.Value().(*Order), true
}

// Remove drops an order and its open quantity from the level.
func (ol *OrderList) Remove(id string) bool {
	o, ok := ol.Get(id)
	if !ok {
		return false
	}
	ol.orders.Remove(id)
	ol.volume -= o.OpenQuantity()
	return true
}

// Fill accounts for quantity executed against one of the level's orders.
func (ol *OrderList) Fill(quantity int64) {
	ol.volume -= quantity
}

// Volume is the total open quantity resting at this price.
func (ol *OrderList) Volume() int64 {
	return ol.volume
}

func (ol *OrderList) Size() int {
	return ol.orders.Size()
}

func (ol *OrderList) Empty() bool {
	return ol.orders.Empty()
}

func (ol *OrderList) Iterator() linkedhashmap.Iterator {
	return ol.orders.Iterator()
}
