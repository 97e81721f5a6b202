package consume_test

import (
	"testing"

	"github.com/rs/zerolog"

	"MarketFeed/internal/clock"
	"MarketFeed/internal/consume"
	"MarketFeed/internal/feed"
	"MarketFeed/internal/queue"
)

type collectingHandler struct {
	events []feed.Event
}

func (h *collectingHandler) OnEvent(ev *feed.Event) {
	h.events = append(h.events, *ev)
}

func TestShellDrainsQueueBeforeExit(t *testing.T) {
	producer, consumer, err := queue.New[feed.Event](16)
	if err != nil {
		t.Fatal(err)
	}

	for i := uint64(1); i <= 10; i++ {
		ok := producer.TryPush(feed.Event{
			RecvTS:     clock.Ticks(),
			ExchangeTS: i,
			SymbolID:   1,
			Kind:       feed.KindTrade,
			Trade:      feed.TradeBody{Price: 100, Qty: 1, Side: 'B'},
		})
		if !ok {
			t.Fatalf("push %d failed", i)
		}
	}

	handler := &collectingHandler{}
	shell := consume.NewShell(consumer, handler, &feed.Counters{}, nil, zerolog.Nop(), -1)

	// Stop is already requested: Run must still drain everything in the
	// queue before returning.
	shell.Stop()
	if err := shell.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(handler.events) != 10 {
		t.Fatalf("handled %d events, want 10", len(handler.events))
	}
	for i, ev := range handler.events {
		if ev.ExchangeTS != uint64(i+1) {
			t.Fatalf("event %d out of order: %+v", i, ev)
		}
	}
	if shell.Latency().Count.Load() != 10 {
		t.Errorf("latency count = %d, want 10", shell.Latency().Count.Load())
	}
	if shell.Latency().MaxNS.Load() < shell.Latency().MinNS.Load() {
		t.Error("latency min/max inverted")
	}
}

func TestShellCountsConsumedEvents(t *testing.T) {
	producer, consumer, err := queue.New[feed.Event](8)
	if err != nil {
		t.Fatal(err)
	}
	producer.TryPush(feed.Event{RecvTS: clock.Ticks(), Kind: feed.KindQuote})

	counters := &feed.Counters{}
	shell := consume.NewShell(consumer, &collectingHandler{}, counters, nil, zerolog.Nop(), -1)
	shell.Stop()
	if err := shell.Run(); err != nil {
		t.Fatal(err)
	}

	if counters.EventsConsumed.Load() != 1 {
		t.Errorf("events_consumed = %d, want 1", counters.EventsConsumed.Load())
	}
}

func TestSpreadWatcher(t *testing.T) {
	w := consume.NewSpreadWatcher()

	w.OnEvent(&feed.Event{
		Kind:  feed.KindQuote,
		Quote: feed.QuoteBody{BidPx: 1_000_000, AskPx: 1_002_000, BidSz: 10, AskSz: 10},
	})
	if w.LastBid != 1_000_000 || w.LastAsk != 1_002_000 {
		t.Fatalf("top of book not tracked: bid=%d ask=%d", w.LastBid, w.LastAsk)
	}
	if w.WideSpreads != 1 {
		t.Errorf("wide spreads = %d, want 1 (spread 2000 > 1000)", w.WideSpreads)
	}

	w.OnEvent(&feed.Event{
		Kind:  feed.KindTrade,
		Trade: feed.TradeBody{Price: 1_001_000, Qty: 20_000, Side: 'B'},
	})
	if w.BuyPressure != 1 {
		t.Errorf("buy pressure = %d, want 1", w.BuyPressure)
	}

	w.OnEvent(&feed.Event{
		Kind:  feed.KindTrade,
		Trade: feed.TradeBody{Price: 1_001_000, Qty: 5, Side: 'S'},
	})
	if w.SellPressure != 0 {
		t.Errorf("small trade counted as pressure")
	}
	if w.TradesSeen != 2 || w.QuotesSeen != 1 {
		t.Errorf("seen trades=%d quotes=%d, want 2/1", w.TradesSeen, w.QuotesSeen)
	}
}
