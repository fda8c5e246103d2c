package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

// Apply executes one text command:
//
//	add <SYM> <limit|market> <buy|sell> <qty> [price]
//	add ETHUSD limit ask 100 64000
//	cancel <SYM> <order id>
//
// Commands for one symbol take effect in the order they are applied.
// For add it returns the submitted order's id.
func (me *MatchingEngine) Apply(ctx context.Context, msg string) (string, error) {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty command", orderbook.ErrInvalidOrder)
	}
	switch strings.ToUpper(fields[0]) {
	case "ADD":
		return me.doAdd(ctx, fields[1:])
	case "CANCEL":
		return me.doCancel(ctx, fields[1:])
	}
	return "", fmt.Errorf("%w: unknown command %q", orderbook.ErrInvalidOrder, fields[0])
}

func (me *MatchingEngine) doAdd(ctx context.Context, fields []string) (string, error) {
	order, err := orderbook.ParseOrder(fields)
	if err != nil {
		return "", err
	}
	if err := me.Submit(ctx, order); err != nil {
		return "", err
	}
	return order.ID(), nil
}

func (me *MatchingEngine) doCancel(ctx context.Context, fields []string) (string, error) {
	if len(fields) < 2 {
		return "", fmt.Errorf("%w: expected cancel symbol order-id", orderbook.ErrInvalidOrder)
	}
	symbol, id := strings.ToUpper(fields[0]), fields[1]
	if err := me.Cancel(ctx, symbol, id); err != nil {
		return "", err
	}
	return id, nil
}
