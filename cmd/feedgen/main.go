// feedgen is a stand-alone feed simulator for exercising the pipeline: it
// sends trade/quote/heartbeat packets over UDP with configurable duplicate,
// drop, and reorder ratios so gap detection, dedup, and resequencing can be
// observed against a live marketfeed process.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"MarketFeed/internal/feed"
)

func main() {
	var (
		addr      = flag.String("addr", "127.0.0.1:15000", "destination host:port")
		count     = flag.Uint64("count", 100_000, "packets to send")
		startSeq  = flag.Uint64("start", 1, "first sequence number")
		rate      = flag.Int("rate", 10_000, "packets per second (0 = unthrottled)")
		dupRatio  = flag.Float64("dup", 0.01, "fraction of packets re-sent as duplicates")
		dropRatio = flag.Float64("drop", 0.001, "fraction of packets silently skipped (creates gaps)")
		swapRatio = flag.Float64("swap", 0.005, "fraction of adjacent packet pairs sent out of order")
		quoteFrac = flag.Float64("quotes", 0.5, "fraction of packets that are quotes (rest trades)")
		hbEvery   = flag.Uint64("heartbeat", 1000, "send a heartbeat every N sequences (0 = never)")
		seed      = flag.Int64("seed", 1, "rng seed")
	)
	flag.Parse()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "feedgen: dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	rng := rand.New(rand.NewSource(*seed))

	var interval time.Duration
	if *rate > 0 {
		interval = time.Second / time.Duration(*rate)
	}

	var sent, dropped, duped, swapped uint64
	var held []byte // packet delayed by one slot to force a reorder
	buf := make([]byte, 0, 128)

	send := func(pkt []byte) {
		conn.Write(pkt)
		sent++
		if interval > 0 {
			time.Sleep(interval)
		}
	}

	for i := uint64(0); i < *count; i++ {
		seq := *startSeq + i
		buf = buf[:0]

		switch {
		case *hbEvery > 0 && seq%*hbEvery == 0:
			buf = feed.AppendHeartbeatPacket(buf, seq)
		case rng.Float64() < *quoteFrac:
			buf = feed.AppendQuotePacket(buf, seq, feed.QuoteMsg{
				Timestamp: uint64(time.Now().UnixNano()),
				SeqNum:    seq,
				SymbolID:  uint32(1 + rng.Intn(16)),
				BidPx:     uint64(1_000_000 + rng.Intn(5_000)),
				AskPx:     uint64(1_005_000 + rng.Intn(5_000)),
				BidSz:     uint32(1 + rng.Intn(1_000)),
				AskSz:     uint32(1 + rng.Intn(1_000)),
				NumLevels: 1,
			})
		default:
			buf = feed.AppendTradePacket(buf, seq, feed.TradeMsg{
				Timestamp: uint64(time.Now().UnixNano()),
				SeqNum:    seq,
				SymbolID:  uint32(1 + rng.Intn(16)),
				TradeID:   uint32(seq),
				Price:     uint64(1_000_000 + rng.Intn(10_000)),
				Qty:       uint32(1 + rng.Intn(20_000)),
				Side:      byte("BS"[rng.Intn(2)]),
			})
		}

		if rng.Float64() < *dropRatio {
			dropped++
			continue // sequence consumed but never sent: a gap
		}

		pkt := append([]byte(nil), buf...)

		if held != nil {
			// Send the newer packet first, then the held one.
			send(pkt)
			send(held)
			held = nil
			swapped++
			continue
		}
		if rng.Float64() < *swapRatio {
			held = pkt
			continue
		}

		send(pkt)
		if rng.Float64() < *dupRatio {
			send(pkt)
			duped++
		}
	}
	if held != nil {
		send(held)
	}

	fmt.Printf("feedgen: sent=%d dropped=%d duplicated=%d swapped=%d\n",
		sent, dropped, duped, swapped)
}
