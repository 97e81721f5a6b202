package consume

import "MarketFeed/internal/feed"

// SpreadWatcher is a minimal example strategy shell: it tracks the latest
// top of book and flags wide spreads and large aggressive trades. Order
// submission belongs to a gateway on another core and is out of scope here.
type SpreadWatcher struct {
	LastBid uint64
	LastAsk uint64

	// WideSpreadTicks is the spread (in fixed-point price units) above
	// which a quote counts as wide.
	WideSpreadTicks uint64
	// LargeTradeQty is the quantity at or above which a trade counts as
	// pressure on its side.
	LargeTradeQty uint32

	WideSpreads  uint64
	BuyPressure  uint64
	SellPressure uint64
	TradesSeen   uint64
	QuotesSeen   uint64
}

// NewSpreadWatcher uses the thresholds from the reference strategy: a
// spread wider than 1000 fixed-point units, trades of 10k+ lots.
func NewSpreadWatcher() *SpreadWatcher {
	return &SpreadWatcher{
		WideSpreadTicks: 1000,
		LargeTradeQty:   10_000,
	}
}

// OnEvent implements Handler.
func (w *SpreadWatcher) OnEvent(ev *feed.Event) {
	switch ev.Kind {
	case feed.KindTrade:
		w.TradesSeen++
		if ev.Trade.Qty >= w.LargeTradeQty {
			if ev.Trade.Side == 'B' {
				w.BuyPressure++
			} else {
				w.SellPressure++
			}
		}
	case feed.KindQuote:
		w.QuotesSeen++
		w.LastBid = ev.Quote.BidPx
		w.LastAsk = ev.Quote.AskPx
		if w.LastAsk > w.LastBid && w.LastAsk-w.LastBid > w.WideSpreadTicks {
			w.WideSpreads++
		}
	}
}
