package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/KeithZHIJIAN/nce-simexchange/analytics"
)

// MarketSummary combines book state with trade statistics. Book prices are
// null when the side has no resting liquidity.
type MarketSummary struct {
	Symbol      string              `json:"symbol"`
	BestBid     decimal.NullDecimal `json:"bestBid"`
	BestAsk     decimal.NullDecimal `json:"bestAsk"`
	Spread      decimal.NullDecimal `json:"spread"`
	Vwap        decimal.Decimal     `json:"vwap"`
	TotalVolume int64               `json:"totalVolume"`
	TradeCount  int64               `json:"tradeCount"`
	LastPrice   decimal.Decimal     `json:"lastPrice"`
	// PriceChange is measured over the last trades of the recency window,
	// not over a period of time.
	PriceChange decimal.Decimal `json:"priceChange"`
}

func (me *MatchingEngine) MarketSummary(symbol string) MarketSummary {
	st := analytics.Stats{Symbol: symbol}
	if me.stats != nil {
		st = me.stats.Stats(symbol)
	}
	top := me.Top(symbol)
	return MarketSummary{
		Symbol:      symbol,
		BestBid:     top.Bid,
		BestAsk:     top.Ask,
		Spread:      top.Spread(),
		Vwap:        st.Vwap,
		TotalVolume: st.Volume,
		TradeCount:  st.Trades,
		LastPrice:   st.LastPrice,
		PriceChange: st.PriceChange,
	}
}

func orNone(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return "$" + d.Decimal.StringFixed(2)
}

func (s MarketSummary) String() string {
	return fmt.Sprintf("%-8s %-12s %-12s %-12s $%-11s %-10d %-8d %s%%",
		s.Symbol, orNone(s.BestBid), orNone(s.BestAsk), orNone(s.Spread),
		s.LastPrice.StringFixed(2), s.TotalVolume, s.TradeCount, s.PriceChange.StringFixed(2))
}
