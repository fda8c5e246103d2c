package orderbook

import "errors"

var (
	// ErrInvalidOrder wraps every validation failure; such orders never reach a book.
	ErrInvalidOrder   = errors.New("orderbook: invalid order")
	ErrOrderNotFound  = errors.New("orderbook: order not found")
	ErrSymbolMismatch = errors.New("orderbook: symbol mismatch")
)
