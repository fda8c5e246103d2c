package orderbook

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantity bounds a single order so level and cumulative volumes
// cannot overflow int64.
const MaxQuantity int64 = 1_000_000_000

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the side an order of side s matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// ParseSide accepts buy/bid and sell/ask in any case.
func ParseSide(token string) (Side, error) {
	switch strings.ToUpper(token) {
	case "BUY", "BID":
		return Buy, nil
	case "SELL", "ASK":
		return Sell, nil
	}
	return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, token)
}

type Kind int

const (
	Limit Kind = iota
	Market
)

func (k Kind) Valid() bool {
	return k == Limit || k == Market
}

func (k Kind) String() string {
	switch k {
	case Limit:
		return "Limit"
	case Market:
		return "Market"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(token string) (Kind, error) {
	switch strings.ToUpper(token) {
	case "LIMIT":
		return Limit, nil
	case "MARKET":
		return Market, nil
	}
	return 0, fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, token)
}

type Status int

const (
	New Status = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case New:
		return "New"
	case PartiallyFilled:
		return "PartiallyFilled"
	case Filled:
		return "Filled"
	case Cancelled:
		return "Cancelled"
	case Rejected:
		return "Rejected"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Order stores information about a request. Once submitted it is owned by
// the book that holds it and must only be read through that book.
type Order struct {
	id       string
	symbol   string
	side     Side
	kind     Kind
	price    decimal.Decimal
	quantity int64
	filled   int64
	status   Status
	seq      uint64
	// submitted is when the order was created; price levels keep orders
	// in this order.
	submitted time.Time
}

// NewLimitOrder creates a limit order. Input is checked by Validate.
func NewLimitOrder(symbol string, side Side, price decimal.Decimal, quantity int64) *Order {
	return &Order{
		id:        uuid.New().String(),
		symbol:    symbol,
		side:      side,
		kind:      Limit,
		price:     price,
		quantity:  quantity,
		status:    New,
		submitted: time.Now(),
	}
}

// NewMarketOrder creates a market order, which carries no limit price.
func NewMarketOrder(symbol string, side Side, quantity int64) *Order {
	return &Order{
		id:        uuid.New().String(),
		symbol:    symbol,
		side:      side,
		kind:      Market,
		price:     decimal.Zero,
		quantity:  quantity,
		status:    New,
		submitted: time.Now(),
	}
}

// ID returns orderID field copy
func (o *Order) ID() string {
	return o.id
}

func (o *Order) Symbol() string {
	return o.symbol
}

func (o *Order) Side() Side {
	return o.side
}

func (o *Order) IsBuy() bool {
	return o.side == Buy
}

func (o *Order) Kind() Kind {
	return o.kind
}

// Price returns the limit price; zero for market orders.
func (o *Order) Price() decimal.Decimal {
	return o.price
}

func (o *Order) Quantity() int64 {
	return o.quantity
}

func (o *Order) FilledQuantity() int64 {
	return o.filled
}

func (o *Order) OpenQuantity() int64 {
	return o.quantity - o.filled
}

func (o *Order) Status() Status {
	return o.status
}

// Seq is the engine sequence number stamped at submission, 0 before.
func (o *Order) Seq() uint64 {
	return o.seq
}

func (o *Order) SetSeq(seq uint64) {
	o.seq = seq
}

func (o *Order) SubmissionTime() time.Time {
	return o.submitted
}

func (o *Order) Filled() bool {
	return o.status == Filled
}

// Validate checks the order before it is admitted to any book.
func (o *Order) Validate() error {
	if o.symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if !o.side.Valid() {
		return fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, int(o.side))
	}
	if !o.kind.Valid() {
		return fmt.Errorf("%w: unknown order type %d", ErrInvalidOrder, int(o.kind))
	}
	if o.quantity <= 0 || o.quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity %d must be between 1 and %d", ErrInvalidOrder, o.quantity, MaxQuantity)
	}
	if o.kind == Limit && !o.price.IsPositive() {
		return fmt.Errorf("%w: limit price %s must be positive", ErrInvalidOrder, o.price)
	}
	if o.status != New || o.filled != 0 {
		return fmt.Errorf("%w: order %s already processed", ErrInvalidOrder, o.id)
	}
	return nil
}

// Reject marks an order that failed validation.
func (o *Order) Reject() {
	if o.status == New {
		o.status = Rejected
	}
}

// Fill applies an execution and recomputes the status.
func (o *Order) Fill(quantity int64) {
	if quantity <= 0 || quantity > o.OpenQuantity() || o.status.Terminal() {
		panic(fmt.Sprintf("orderbook: invalid fill of %d on %s", quantity, o))
	}
	o.filled += quantity
	if o.filled == o.quantity {
		o.status = Filled
	} else {
		o.status = PartiallyFilled
	}
}

// Cancel moves a live order to Cancelled. It reports false for terminal orders.
func (o *Order) Cancel() bool {
	if o.status.Terminal() {
		return false
	}
	o.status = Cancelled
	return true
}

// Snapshot returns a copy safe to hand out of the book's critical section.
func (o *Order) Snapshot() Order {
	return *o
}

func (o *Order) String() string {
	if o.kind == Market {
		return fmt.Sprintf("%s\t%s %s %s %d/%d @ market (%s)", o.id, o.symbol, o.side, o.kind, o.filled, o.quantity, o.status)
	}
	return fmt.Sprintf("%s\t%s %s %s %d/%d @ $%s (%s)", o.id, o.symbol, o.side, o.kind, o.filled, o.quantity, o.price, o.status)
}

// ParseOrder builds an order from text tokens:
//
//	Symbol, Type, Side, Quantity, Price (ignored for market orders)
//	ETHUSD limit buy 100 64000
//	ethusd market ask 100
func ParseOrder(fields []string) (*Order, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: expected symbol type side quantity [price]", ErrInvalidOrder)
	}
	symbol := strings.ToUpper(fields[0])
	kind, err := ParseKind(fields[1])
	if err != nil {
		return nil, err
	}
	side, err := ParseSide(fields[2])
	if err != nil {
		return nil, err
	}
	quantity, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad quantity %q", ErrInvalidOrder, fields[3])
	}
	var order *Order
	if kind == Market {
		order = NewMarketOrder(symbol, side, quantity)
	} else {
		if len(fields) < 5 {
			return nil, fmt.Errorf("%w: limit order needs a price", ErrInvalidOrder)
		}
		price, err := decimal.NewFromString(fields[4])
		if err != nil {
			return nil, fmt.Errorf("%w: bad price %q", ErrInvalidOrder, fields[4])
		}
		order = NewLimitOrder(symbol, side, price, quantity)
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}
