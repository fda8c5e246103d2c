package orderbook

import (
	"github.com/shopspring/decimal"
)

// Price is a ladder key. Bids sort highest first, asks lowest first, so the
// first key of either ladder is always its best price.
type Price struct {
	price decimal.Decimal
	isBuy bool
}

func NewPrice(price decimal.Decimal, isBuy bool) *Price {
	return &Price{price: price, isBuy: isBuy}
}

func (p Price) Value() decimal.Decimal {
	return p.price
}

func (p Price) Cmp(rhs Price) int {
	if p.isBuy {
		return rhs.price.Cmp(p.price)
	}
	return p.price.Cmp(rhs.price)
}

// Match reports whether a resting level at p is marketable for an incoming
// limit order priced at limit.
func (p Price) Match(limit decimal.Decimal) bool {
	if p.isBuy {
		// resting bid, incoming sell: bid must be at or above the sell limit
		return p.price.Cmp(limit) >= 0
	}
	return p.price.Cmp(limit) <= 0
}

func (p Price) String() string {
	return p.price.String()
}
