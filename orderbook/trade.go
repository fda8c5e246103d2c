package orderbook

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is an execution between a resting and an incoming order. It is
// never modified after creation.
type Trade struct {
	ID          string          `json:"id"`
	BuyOrderID  string          `json:"buyOrderId"`
	SellOrderID string          `json:"sellOrderId"`
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Time        time.Time       `json:"time"`
}

func NewTrade(buyOrderID, sellOrderID, symbol string, price decimal.Decimal, quantity int64, currTime time.Time) Trade {
	return Trade{
		ID:          uuid.New().String(),
		BuyOrderID:  buyOrderID,
		SellOrderID: sellOrderID,
		Symbol:      symbol,
		Price:       price,
		Quantity:    quantity,
		Time:        currTime,
	}
}

// Notional is price times quantity.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

func (t Trade) String() string {
	return fmt.Sprintf("%s\t%s %d @ $%s buy=%s sell=%s", t.ID, t.Symbol, t.Quantity, t.Price, t.BuyOrderID, t.SellOrderID)
}
